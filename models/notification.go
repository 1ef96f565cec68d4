package models

import (
	"context"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

// Notification is an in-app message, read by polling.
type Notification struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	PartnerId   string           `gorm:"size:64;not null;index" json:"partnerId"`
	RecipientId string           `gorm:"size:128;not null;index:idx_notification_recipient,priority:1" json:"recipientId"`
	Type        NotificationType `gorm:"size:40;not null" json:"type"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Body        string           `gorm:"type:text" json:"body"`
	OrderId     *string          `gorm:"size:36;index" json:"orderId"`
	JobId       *string          `gorm:"size:36" json:"jobId"`
	Read        bool             `gorm:"not null;default:false;index:idx_notification_recipient,priority:2" json:"read"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NotificationFilter struct {
	UnreadOnly bool `form:"unreadOnly"`
	PageRequest
}

type notificationMessage struct {
	Type    NotificationType
	Title   string
	Body    string
	OrderId *string
	JobId   *string
}

// notify fans one message out to recipients inside tx. Duplicate and empty
// recipient ids are skipped.
func notify(tx *gorm.DB, partnerId string, recipients []string, msg notificationMessage) error {
	rows := make([]*Notification, 0, len(recipients))
	for _, r := range utils.UniqueSlice(recipients) {
		if r == "" {
			continue
		}
		rows = append(rows, &Notification{
			ID:          newId(),
			PartnerId:   partnerId,
			RecipientId: r,
			Type:        msg.Type,
			Title:       msg.Title,
			Body:        msg.Body,
			OrderId:     msg.OrderId,
			JobId:       msg.JobId,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

// Notifications are addressed to a user, not a tenant: editors read theirs
// across partners.
func GetNotifications(ctx context.Context, filter NotificationFilter) ([]*Notification, PageInfo, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}
	dbCtx := config.GetDB().WithContext(crossTenant(ctx)).Where("recipient_id = ?", uid)
	if filter.UnreadOnly {
		dbCtx = dbCtx.Where("`read` = ?", false)
	}
	var rows []*Notification
	if err := paginate(dbCtx, filter.PageRequest).Find(&rows).Error; err != nil {
		return nil, PageInfo{}, err
	}
	rows, info := pageOf(rows, filter.PageRequest, func(n *Notification) string { return EncodeCompositeCursor(n.CreatedAt, n.ID) })
	return rows, info, nil
}

func MarkNotificationRead(ctx context.Context, id string) (*Notification, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	scoped := crossTenant(ctx)
	n, err := loadById[Notification](scoped, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientId != uid {
		return nil, utils.Forbidden("not your notification")
	}
	if !n.Read {
		if err := config.GetDB().WithContext(scoped).Model(n).Update("read", true).Error; err != nil {
			return nil, err
		}
		n.Read = true
	}
	return n, nil
}

func MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return 0, err
	}
	res := config.GetDB().WithContext(crossTenant(ctx)).Model(&Notification{}).
		Where("recipient_id = ? AND `read` = ?", uid, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}
