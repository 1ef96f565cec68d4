package models

import (
	"context"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/datatypes"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and delivered after commit by workflow.OutboxDispatcher.
type OutboxEvent struct {
	ID              string         `gorm:"primaryKey;size:36;index:idx_outbox_dispatch,priority:3" json:"id"`
	PartnerId       string         `gorm:"size:64;not null;index" json:"partnerId"`
	EventType       string         `gorm:"size:64;not null" json:"eventType"`
	Payload         datatypes.JSON `json:"payload"`
	PublishStatus   string         `gorm:"size:20;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publishStatus"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishAttempts int            `gorm:"not null;default:0" json:"publishAttempts"`
	NextAttemptAt   *time.Time     `gorm:"index:idx_outbox_dispatch,priority:2" json:"nextAttemptAt"`
	LockedAt        *time.Time     `gorm:"index" json:"lockedAt"`
	LockedBy        *string        `gorm:"size:100" json:"lockedBy"`
	PubSubMessageId *string        `gorm:"size:255" json:"pubsubMessageId"`
	PublishedAt     *time.Time     `gorm:"index" json:"publishedAt"`
	LastError       *string        `gorm:"type:text" json:"lastError"`
	CorrelationId   string         `gorm:"size:64;index" json:"correlationId"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (e OutboxEvent) GetPartnerId() string {
	return e.PartnerId
}

type OutboxFilter struct {
	Status string `form:"status"`
	PageRequest
}

// GetOutboxEvents lists the tenant's events for ops; FAILED and DEAD rows are
// the interesting ones.
func GetOutboxEvents(ctx context.Context, filter OutboxFilter) ([]*OutboxEvent, PageInfo, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("publish_status = ?", filter.Status)
	}
	var rows []*OutboxEvent
	if err := paginate(dbCtx, filter.PageRequest).Find(&rows).Error; err != nil {
		return nil, PageInfo{}, err
	}
	rows, info := pageOf(rows, filter.PageRequest, func(e *OutboxEvent) string { return EncodeCompositeCursor(e.CreatedAt, e.ID) })
	return rows, info, nil
}

// ReplayOutboxEvent makes a FAILED or DEAD event due again with a fresh
// attempt budget. Sent events are never replayed.
func ReplayOutboxEvent(ctx context.Context, id string) (*OutboxEvent, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	ev, err := GetResource[OutboxEvent](ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.PublishStatus != OutboxPublishStatusFailed && ev.PublishStatus != OutboxPublishStatusDead {
		return nil, utils.Conflict("only FAILED or DEAD events can be replayed")
	}
	now := time.Now().UTC()
	res := config.GetDB().WithContext(ctx).Model(&OutboxEvent{}).
		Where("id = ? AND publish_status = ?", id, ev.PublishStatus).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusFailed,
			"publish_attempts": 0,
			"next_attempt_at":  now,
			"locked_at":        nil,
			"locked_by":        nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.Conflict("event changed while replaying")
	}
	ev.PublishStatus = OutboxPublishStatusFailed
	ev.PublishAttempts = 0
	ev.NextAttemptAt = &now
	ev.LockedAt, ev.LockedBy = nil, nil
	return ev, nil
}
