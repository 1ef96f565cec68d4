package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"github.com/sirupsen/logrus"
)

func listEditorOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.EditorOrderFilter
		if !bindQuery(c, &filter) {
			return
		}
		ctx := c.Request.Context()
		orders, pageInfo, err := models.GetEditorOrders(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, viewOrders(ctx, orders), pageInfo)
	}
}

func startOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := models.StartOrder(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func submitForQCHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := models.SubmitForQC(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

// thumbnailer builds preview images for registered uploads. Replaced in tests.
var thumbnailer = utils.CreateThumbnail

func registerUploadsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.RegisterUploadsInput
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		uploads, order, err := models.RegisterEditorUploads(ctx, c.Param("jobId"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		attachThumbnails(ctx, uploads)
		c.JSON(http.StatusCreated, gin.H{"uploads": uploads, "order": order})
	}
}

// attachThumbnails is best effort: a failed thumbnail never fails the
// registration.
func attachThumbnails(ctx context.Context, uploads []*models.EditorUpload) {
	logger := config.GetLogger()
	for _, u := range uploads {
		if !utils.IsImageContentType(u.ContentType) {
			continue
		}
		key, err := thumbnailer(ctx, u.ObjectKey)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":      "attachThumbnails",
				"upload_id":  u.ID,
				"object_key": u.ObjectKey,
			}).Warn("thumbnail failed: " + err.Error())
			continue
		}
		if err := models.SetUploadThumbnail(ctx, u.ID, key); err != nil {
			config.LogError(logger, "editor.go", "attachThumbnails", "SetUploadThumbnail", u.ID, err)
			continue
		}
		u.ThumbnailKey = &key
	}
}

func createFolderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFolderInput
		if !bindJSON(c, &input) {
			return
		}
		folder, err := models.CreateFolder(c.Request.Context(), c.Param("jobId"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, folder)
	}
}

func getEditorServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		editorId := c.Query("editorId")
		if editorId == "" {
			editorId, _ = utils.GetUserIdFromContext(ctx)
		}
		serviceIds, err := models.GetEditorServices(ctx, editorId)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, serviceIds, nil)
	}
}

func setEditorServicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SetEditorServicesInput
		if !bindJSON(c, &input) {
			return
		}
		services, err := models.SetEditorServices(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, services, nil)
	}
}
