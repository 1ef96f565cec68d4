package models

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// EditorUpload is a deliverable registered by the assigned editor after the
// bytes were PUT to storage through a signed URL.
type EditorUpload struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	OrderId      string    `gorm:"size:36;not null;index" json:"orderId"`
	JobId        string    `gorm:"size:36;not null;index" json:"jobId"`
	PartnerId    string    `gorm:"size:64;not null;index" json:"partnerId"`
	EditorId     string    `gorm:"size:128;not null;index" json:"editorId"`
	FileName     string    `gorm:"size:500;not null" json:"fileName"`
	ObjectKey    string    `gorm:"size:1024;not null" json:"objectKey"`
	ThumbnailKey *string   `gorm:"size:1024" json:"thumbnailKey"`
	ContentType  string    `gorm:"size:128" json:"contentType"`
	Size         int64     `json:"size"`
	FolderPath   string    `gorm:"size:512" json:"folderPath"`
	Notes        *string   `gorm:"type:text" json:"notes"`
	ExpiresAt    time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (u EditorUpload) GetPartnerId() string {
	return u.PartnerId
}

type NewEditorUpload struct {
	FileName    string `json:"fileName" binding:"required"`
	ObjectKey   string `json:"objectKey" binding:"required"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	FolderPath  string `json:"folderPath"`
}

type RegisterUploadsInput struct {
	OrderId string            `json:"orderId" binding:"required"`
	Uploads []NewEditorUpload `json:"uploads" binding:"required,min=1,dive"`
	Notes   string            `json:"notes"`
}

type UploadFilter struct {
	OrderId string `form:"orderId"`
}

type DeliverablesPayload struct {
	OrderId     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	JobId       string `json:"jobId"`
	EditorId    string `json:"editorId"`
	Count       int    `json:"count"`
}

// RegisterEditorUploads records deliverables for an order, updates folder
// counts and moves the order into in_progress when the editor was waiting
// to start or revising.
func RegisterEditorUploads(ctx context.Context, jobRef string, input *RegisterUploadsInput) ([]*EditorUpload, *Order, error) {
	ctx, span := tracer.Start(ctx, "models.RegisterEditorUploads")
	defer span.End()

	uid, err := requireEditor(ctx)
	if err != nil {
		return nil, nil, err
	}
	job, err := jobAccess(ctx, jobRef)
	if err != nil {
		return nil, nil, err
	}
	order, err := loadById[Order](crossTenant(ctx), input.OrderId)
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int("uploads", len(input.Uploads)))
	if order.JobId != job.ID || order.PartnerId != job.PartnerId {
		return nil, nil, utils.BadRequest("order does not belong to this job")
	}
	if order.AssigneeId() != uid {
		return nil, nil, utils.Forbidden("order is not assigned to you")
	}
	if order.Status.IsTerminal() {
		return nil, nil, utils.Conflict("order is already " + string(order.Status))
	}

	prefix := utils.JobObjectPrefix(job.PartnerId, job.ID)
	expiresAt := time.Now().Add(config.EditorUploadRetention())
	notes := utils.NilIfEmpty(strings.TrimSpace(input.Notes))
	uploads := make([]*EditorUpload, 0, len(input.Uploads))
	folderCounts := map[string]int{}
	var folderOrder []string
	for _, in := range input.Uploads {
		if !utils.ObjectKeyInPrefix(in.ObjectKey, prefix) {
			return nil, nil, utils.BadRequest("invalid upload", map[string]string{"uploads.objectKey": "prefix"})
		}
		folderPath, err := NormalizeFolderPath(in.FolderPath)
		if err != nil {
			return nil, nil, err
		}
		uploads = append(uploads, &EditorUpload{
			ID:          newId(),
			OrderId:     order.ID,
			JobId:       job.ID,
			PartnerId:   job.PartnerId,
			EditorId:    uid,
			FileName:    strings.TrimSpace(in.FileName),
			ObjectKey:   in.ObjectKey,
			ContentType: in.ContentType,
			Size:        in.Size,
			FolderPath:  folderPath,
			Notes:       notes,
			ExpiresAt:   expiresAt,
		})
		if folderPath != "" {
			if _, seen := folderCounts[folderPath]; !seen {
				folderOrder = append(folderOrder, folderPath)
			}
			folderCounts[folderPath]++
		}
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePartnership(ctx, tx, job.PartnerId, uid); err != nil {
			return err
		}
		if err := tx.Create(&uploads).Error; err != nil {
			return err
		}
		for _, fp := range folderOrder {
			if err := bumpFolderCount(tx, job.PartnerId, job.ID, fp, uid, folderCounts[fp]); err != nil {
				return err
			}
		}
		if order.Status == OrderStatusProcessing || order.Status == OrderStatusInRevision {
			if err := transitionOrder(ctx, tx, order, OrderStatusInProgress, nil); err != nil {
				return err
			}
		}
		if err := notify(tx, order.PartnerId, []string{order.CreatedBy}, notificationMessage{
			Type:    NotificationTypeDeliverablesUpload,
			Title:   "New files for order " + order.OrderNumber,
			Body:    job.Address,
			OrderId: &order.ID,
			JobId:   &job.ID,
		}); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, order.PartnerId, EventDeliverablesUpload, DeliverablesPayload{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			JobId:       job.ID,
			EditorId:    uid,
			Count:       len(uploads),
		}); err != nil {
			return err
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   order.PartnerId,
			JobId:       &job.ID,
			OrderId:     &order.ID,
			Action:      "deliverables_uploaded",
			Category:    ActivityCategoryUpload,
			Title:       "Files uploaded for order " + order.OrderNumber,
			Description: utils.DereferencePtr(notes),
			Metadata:    map[string]any{"count": len(uploads), "folders": folderOrder},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return uploads, order, nil
}

// SetUploadThumbnail stores the thumbnail key once the handler has written it.
func SetUploadThumbnail(ctx context.Context, uploadId, thumbnailKey string) error {
	return config.GetDB().WithContext(crossTenant(ctx)).Model(&EditorUpload{}).
		Where("id = ?", uploadId).
		Update("thumbnail_key", thumbnailKey).Error
}

// GetEditorUploads lists the deliverables of a job, newest first.
func GetEditorUploads(ctx context.Context, jobRef string, filter UploadFilter) ([]*EditorUpload, error) {
	job, err := jobAccess(ctx, jobRef)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(crossTenant(ctx)).Where("job_id = ? AND partner_id = ?", job.ID, job.PartnerId)
	if filter.OrderId != "" {
		dbCtx = dbCtx.Where("order_id = ?", filter.OrderId)
	}
	if callerRole(ctx) == UserRoleEditor {
		uid, _ := utils.GetUserIdFromContext(ctx)
		dbCtx = dbCtx.Where("editor_id = ?", uid)
	}
	var uploads []*EditorUpload
	err = dbCtx.Order("created_at DESC").Find(&uploads).Error
	return uploads, err
}

// NewUploadObjectKey authorizes the caller on the job and returns a fresh
// object key under the job prefix. Partners upload source files, partnered
// editors upload deliverables; both go through signed URLs.
func NewUploadObjectKey(ctx context.Context, jobRef, folderPath, fileName string) (string, *Job, error) {
	job, err := jobAccess(ctx, jobRef)
	if err != nil {
		return "", nil, err
	}
	folder, err := NormalizeFolderPath(folderPath)
	if err != nil {
		return "", nil, err
	}
	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" || strings.ContainsAny(ext, "/\\") {
		return "", nil, utils.BadRequest("file extension is required", map[string]string{"fileName": "extension"})
	}
	objectKey := path.Join(utils.JobObjectPrefix(job.PartnerId, job.ID), folder, newId()+ext)
	return objectKey, job, nil
}

// AuthorizeObjectKey checks the caller may read objectKey of the job.
func AuthorizeObjectKey(ctx context.Context, jobRef, objectKey string) (*Job, error) {
	job, err := jobAccess(ctx, jobRef)
	if err != nil {
		return nil, err
	}
	if !utils.ObjectKeyInPrefix(objectKey, utils.JobObjectPrefix(job.PartnerId, job.ID)) {
		return nil, utils.BadRequest("object key is outside the job", map[string]string{"key": "prefix"})
	}
	return job, nil
}
