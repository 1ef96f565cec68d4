package models

import (
	"context"
	"errors"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

// OrderReservation holds an order number for a user while they fill in the
// order form. Expired rows are purged by the cleanup job.
type OrderReservation struct {
	OrderNumber string            `gorm:"primaryKey;size:32" json:"orderNumber"`
	PartnerId   string            `gorm:"primaryKey;size:64" json:"partnerId"`
	UserId      string            `gorm:"size:128;not null" json:"userId"`
	JobId       string            `gorm:"size:36;not null;index" json:"jobId"`
	Status      ReservationStatus `gorm:"size:20;not null" json:"status"`
	ExpiresAt   time.Time         `gorm:"not null;index" json:"expiresAt"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (r OrderReservation) GetPartnerId() string {
	return r.PartnerId
}

func (r OrderReservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationStatusReserved && !now.Before(r.ExpiresAt)
}

type ReserveOrderInput struct {
	JobId string `json:"jobId" binding:"required"`
}

type ReservationResult struct {
	OrderNumber string    `json:"orderNumber"`
	ExpiresAt   time.Time `json:"expiresAt"`
	JobId       string    `json:"jobId"`
	PublicJobId string    `json:"publicJobId"`
}

// ReserveOrderNumber allocates the tenant's next order number for the caller.
func ReserveOrderNumber(ctx context.Context, jobRef string) (*ReservationResult, error) {
	ctx, span := tracer.Start(ctx, "models.ReserveOrderNumber")
	defer span.End()

	userId, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	job, err := GetJob(ctx, jobRef)
	if err != nil {
		return nil, err
	}

	reservation := OrderReservation{
		PartnerId: job.PartnerId,
		UserId:    userId,
		JobId:     job.ID,
		Status:    ReservationStatusReserved,
		ExpiresAt: time.Now().Add(config.ReservationTTL()),
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := nextOrderNumber(ctx, tx, job.PartnerId)
		if err != nil {
			return err
		}
		reservation.OrderNumber = number
		return tx.Create(&reservation).Error
	})
	if err != nil {
		return nil, err
	}
	return &ReservationResult{
		OrderNumber: reservation.OrderNumber,
		ExpiresAt:   reservation.ExpiresAt,
		JobId:       job.ID,
		PublicJobId: job.JobId,
	}, nil
}

func loadReservation(ctx context.Context, tx *gorm.DB, partnerId, orderNumber string) (*OrderReservation, error) {
	var reservation OrderReservation
	err := tx.WithContext(ctx).
		Where("partner_id = ? AND order_number = ?", partnerId, orderNumber).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("reservation not found")
		}
		return nil, err
	}
	return &reservation, nil
}

// GetReservation is a tenant-checked read; other tenants' numbers are 404.
func GetReservation(ctx context.Context, orderNumber string) (*OrderReservation, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	return loadReservation(ctx, config.GetDB(), partnerId, orderNumber)
}

// ConfirmReservation flips reserved -> confirmed while unexpired. Confirming
// an already confirmed reservation succeeds without change.
func ConfirmReservation(ctx context.Context, orderNumber string) (*OrderReservation, error) {
	ctx, span := tracer.Start(ctx, "models.ConfirmReservation")
	defer span.End()

	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	res := db.WithContext(ctx).Model(&OrderReservation{}).
		Where("partner_id = ? AND order_number = ? AND status = ? AND expires_at > ?",
			partnerId, orderNumber, ReservationStatusReserved, time.Now()).
		Update("status", ReservationStatusConfirmed)
	if res.Error != nil {
		return nil, res.Error
	}
	reservation, err := loadReservation(ctx, db, partnerId, orderNumber)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && reservation.Status != ReservationStatusConfirmed {
		return nil, utils.Conflict("reservation expired")
	}
	return reservation, nil
}

// claimReservation validates a reserved number for order submission inside tx
// and marks it confirmed.
func claimReservation(ctx context.Context, tx *gorm.DB, partnerId, userId, jobId, orderNumber string) error {
	reservation, err := loadReservation(ctx, tx, partnerId, orderNumber)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return utils.BadRequest("order number was not reserved")
		}
		return err
	}
	if reservation.UserId != userId {
		return utils.BadRequest("reservation belongs to another user")
	}
	if reservation.JobId != jobId {
		return utils.BadRequest("reservation is for a different job")
	}
	if reservation.IsExpired(time.Now()) {
		return utils.Conflict("reservation expired")
	}
	if reservation.Status == ReservationStatusConfirmed {
		return nil
	}
	return tx.WithContext(ctx).Model(&OrderReservation{}).
		Where("partner_id = ? AND order_number = ?", partnerId, orderNumber).
		Update("status", ReservationStatusConfirmed).Error
}

// PurgeExpiredReservations deletes unconfirmed reservations past expiry.
func PurgeExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	res := config.GetDB().WithContext(crossTenant(ctx)).
		Where("status = ? AND expires_at <= ?", ReservationStatusReserved, now).
		Delete(&OrderReservation{})
	return res.RowsAffected, res.Error
}
