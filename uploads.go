package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	maxUploadSizeBytes int64 = 200 * 1024 * 1024
	signedURLLifetime        = 15 * time.Minute
)

var uploadMimeTypes = map[string]bool{
	"image/jpeg":        true,
	"image/png":         true,
	"image/tiff":        true,
	"image/x-adobe-dng": true,
	"image/x-canon-cr2": true,
	"image/x-nikon-nef": true,
	"image/x-sony-arw":  true,
	"video/mp4":         true,
	"video/quicktime":   true,
	"application/pdf":   true,
	"application/zip":   true,
}

type uploadSignRequest struct {
	JobId      string `json:"jobId" binding:"required"`
	FileName   string `json:"fileName" binding:"required"`
	MimeType   string `json:"mimeType" binding:"required"`
	Size       int64  `json:"size" binding:"required,gt=0"`
	FolderPath string `json:"folderPath"`
}

// signer is swapped in tests; production signs against GCS.
var signer = utils.SignUpload

// signUploadHandler issues a PUT URL under the job prefix. The object is
// registered afterwards through the order submit or editor uploads endpoints.
func signUploadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		var req uploadSignRequest
		if !bindJSON(c, &req) {
			return
		}
		req.MimeType = strings.ToLower(strings.TrimSpace(req.MimeType))
		if req.Size > maxUploadSizeBytes {
			respondError(c, utils.BadRequest("file size exceeds 200MB limit", map[string]string{"size": "max"}))
			return
		}
		if !uploadMimeTypes[req.MimeType] {
			respondError(c, utils.BadRequest("unsupported file type", map[string]string{"mimeType": "oneof"}))
			return
		}

		ctx := c.Request.Context()
		objectKey, job, err := models.NewUploadObjectKey(ctx, req.JobId, req.FolderPath, req.FileName)
		if err != nil {
			respondError(c, err)
			return
		}
		signed, err := signer(ctx, objectKey, req.MimeType, signedURLLifetime)
		if err != nil {
			config.LogError(logger, "uploads.go", "signUploadHandler", "SignUpload", objectKey, err)
			respondError(c, utils.Internal("failed to sign upload", err))
			return
		}

		logger.WithFields(logrus.Fields{
			"partner_id": job.PartnerId,
			"job_id":     job.ID,
			"mime_type":  req.MimeType,
			"size":       req.Size,
			"object_key": objectKey,
		}).Info("[upload.sign]")

		c.JSON(http.StatusOK, signed)
	}
}

var downloadSigner = utils.SignDownload

func signDownloadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		objectKey := strings.TrimSpace(c.Query("key"))
		if objectKey == "" {
			respondError(c, utils.BadRequest("key is required", map[string]string{"key": "required"}))
			return
		}
		ctx := c.Request.Context()
		if _, err := models.AuthorizeObjectKey(ctx, c.Param("id"), objectKey); err != nil {
			respondError(c, err)
			return
		}
		signed, err := downloadSigner(ctx, objectKey, signedURLLifetime)
		if err != nil {
			config.LogError(config.GetLogger(), "uploads.go", "signDownloadHandler", "SignDownload", objectKey, err)
			respondError(c, utils.Internal("failed to sign download", err))
			return
		}
		c.JSON(http.StatusOK, signed)
	}
}
