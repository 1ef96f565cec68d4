package workflow

import (
	"context"

	"github.com/photoflow/studio_backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// handlerDone reports whether handler already completed the event on an
// earlier attempt.
func handlerDone(ctx context.Context, db *gorm.DB, ev models.OutboxEvent, handler string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.DeliveryReceipt{}).
		Where("event_id = ? AND handler = ?", ev.ID, handler).
		Count(&n).Error
	return n > 0, err
}

// markHandlerDone writes the receipt. A concurrent writer for the same pair
// is not an error.
func markHandlerDone(ctx context.Context, db *gorm.DB, ev models.OutboxEvent, handler string) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&models.DeliveryReceipt{
		PartnerId: ev.PartnerId,
		EventId:   ev.ID,
		Handler:   handler,
	}).Error
}
