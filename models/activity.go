package models

import (
	"context"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Activity is the append-only audit trail. Rows are never updated.
type Activity struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	PartnerId   string           `gorm:"size:64;not null;index:idx_activity_partner_created,priority:1" json:"partnerId"`
	JobId       *string          `gorm:"size:36;index" json:"jobId"`
	OrderId     *string          `gorm:"size:36;index" json:"orderId"`
	UserId      string           `gorm:"size:128;index" json:"userId"`
	Action      string           `gorm:"size:64;not null" json:"action"`
	Category    ActivityCategory `gorm:"size:32;not null" json:"category"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSON   `json:"metadata"`
	IPAddress   string           `gorm:"size:64" json:"ipAddress"`
	UserAgent   string           `gorm:"size:512" json:"userAgent"`
	CreatedAt   time.Time        `gorm:"autoCreateTime;index:idx_activity_partner_created,priority:2" json:"createdAt"`
}

func (a Activity) GetPartnerId() string {
	return a.PartnerId
}

type ActivityInput struct {
	PartnerId   string
	JobId       *string
	OrderId     *string
	Action      string
	Category    ActivityCategory
	Title       string
	Description string
	Metadata    any
}

type ActivityFilter struct {
	OrderId string `form:"orderId"`
	JobId   string `form:"jobId"`
	PageRequest
}

// recordActivity appends an entry inside tx. Actor and request metadata come
// from ctx.
func recordActivity(ctx context.Context, tx *gorm.DB, input ActivityInput) error {
	userId, _ := utils.GetUserIdFromContext(ctx)
	activity := Activity{
		ID:          newId(),
		PartnerId:   input.PartnerId,
		JobId:       input.JobId,
		OrderId:     input.OrderId,
		UserId:      userId,
		Action:      input.Action,
		Category:    input.Category,
		Title:       input.Title,
		Description: input.Description,
		Metadata:    toJSON(input.Metadata),
		IPAddress:   utils.GetClientIPFromContext(ctx),
		UserAgent:   utils.GetUserAgentFromContext(ctx),
	}
	return tx.Create(&activity).Error
}

// RecordActivity appends an entry outside any transaction.
func RecordActivity(ctx context.Context, input ActivityInput) error {
	return recordActivity(ctx, config.GetDB().WithContext(ctx), input)
}

func GetActivities(ctx context.Context, filter ActivityFilter) ([]*Activity, PageInfo, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if filter.OrderId != "" {
		dbCtx = dbCtx.Where("order_id = ?", filter.OrderId)
	}
	if filter.JobId != "" {
		job, err := GetJob(ctx, filter.JobId)
		if err != nil {
			return nil, PageInfo{}, err
		}
		dbCtx = dbCtx.Where("job_id = ?", job.ID)
	}
	var rows []*Activity
	if err := paginate(dbCtx, filter.PageRequest).Find(&rows).Error; err != nil {
		return nil, PageInfo{}, err
	}
	rows, info := pageOf(rows, filter.PageRequest, func(a *Activity) string { return EncodeCompositeCursor(a.CreatedAt, a.ID) })
	return rows, info, nil
}
