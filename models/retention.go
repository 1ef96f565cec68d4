package models

import (
	"context"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

type ExpiredFileKind string

const (
	ExpiredOrderFile    ExpiredFileKind = "order_file"
	ExpiredEditorUpload ExpiredFileKind = "editor_upload"
)

// ExpiredFile is a stored object past its retention date.
type ExpiredFile struct {
	Kind         ExpiredFileKind
	ID           string
	PartnerId    string
	JobId        string
	FolderPath   string
	ObjectKey    string
	ThumbnailKey string
}

// FindExpiredFiles returns up to limit expired files of each kind.
func FindExpiredFiles(ctx context.Context, now time.Time, limit int) ([]ExpiredFile, error) {
	db := config.GetDB().WithContext(crossTenant(ctx))

	var files []OrderFile
	if err := db.Where("expires_at <= ?", now).Order("expires_at").Limit(limit).Find(&files).Error; err != nil {
		return nil, err
	}
	var uploads []EditorUpload
	if err := db.Where("expires_at <= ?", now).Order("expires_at").Limit(limit).Find(&uploads).Error; err != nil {
		return nil, err
	}

	out := make([]ExpiredFile, 0, len(files)+len(uploads))
	for _, f := range files {
		out = append(out, ExpiredFile{Kind: ExpiredOrderFile, ID: f.ID, PartnerId: f.PartnerId, ObjectKey: f.ObjectKey})
	}
	for _, u := range uploads {
		out = append(out, ExpiredFile{
			Kind:         ExpiredEditorUpload,
			ID:           u.ID,
			PartnerId:    u.PartnerId,
			JobId:        u.JobId,
			FolderPath:   u.FolderPath,
			ObjectKey:    u.ObjectKey,
			ThumbnailKey: utils.DereferencePtr(u.ThumbnailKey),
		})
	}
	return out, nil
}

// RemoveExpiredFile deletes the row of a file whose object is already gone.
// Deleting an editor upload also decrements its folder count.
func RemoveExpiredFile(ctx context.Context, f ExpiredFile) error {
	return config.GetDB().WithContext(crossTenant(ctx)).Transaction(func(tx *gorm.DB) error {
		switch f.Kind {
		case ExpiredOrderFile:
			return tx.Where("id = ?", f.ID).Delete(&OrderFile{}).Error
		case ExpiredEditorUpload:
			res := tx.Where("id = ?", f.ID).Delete(&EditorUpload{})
			if res.Error != nil || res.RowsAffected == 0 || f.FolderPath == "" {
				return res.Error
			}
			return tx.Model(&UploadFolder{}).
				Where("job_id = ? AND folder_path = ? AND file_count > 0", f.JobId, f.FolderPath).
				Update("file_count", gorm.Expr("file_count - 1")).Error
		}
		return nil
	})
}
