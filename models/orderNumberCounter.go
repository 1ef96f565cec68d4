package models

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderNumberCounter is the per-tenant order number sequence.
type OrderNumberCounter struct {
	PartnerId string    `gorm:"primaryKey;size:64" json:"partnerId"`
	LastValue int64     `gorm:"not null;default:0" json:"lastValue"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

const orderNumberDigits = 5

func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("%s%0*d", config.OrderNumberPrefix(), orderNumberDigits, seq)
}

// parseOrderNumber extracts the sequence part; ok is false for numbers not
// produced by FormatOrderNumber with the current prefix.
func parseOrderNumber(orderNumber string) (int64, bool) {
	rest, ok := strings.CutPrefix(orderNumber, config.OrderNumberPrefix())
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// seedOrderSequence returns the highest sequence used by existing orders or
// reservations of the tenant.
func seedOrderSequence(tx *gorm.DB, partnerId string) (int64, error) {
	var numbers []string
	if err := tx.Model(&Order{}).Where("partner_id = ?", partnerId).Pluck("order_number", &numbers).Error; err != nil {
		return 0, err
	}
	var reserved []string
	if err := tx.Model(&OrderReservation{}).Where("partner_id = ?", partnerId).Pluck("order_number", &reserved).Error; err != nil {
		return 0, err
	}
	var max int64
	for _, n := range append(numbers, reserved...) {
		if v, ok := parseOrderNumber(n); ok && v > max {
			max = v
		}
	}
	return max, nil
}

// nextOrderNumber increments the tenant counter under a row lock inside tx.
// Concurrent callers serialize on the counter row, so two allocations never
// return the same value.
func nextOrderNumber(ctx context.Context, tx *gorm.DB, partnerId string) (string, error) {
	_, span := tracer.Start(ctx, "models.nextOrderNumber")
	defer span.End()

	var counter OrderNumberCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("partner_id = ?", partnerId).
		First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seed, err := seedOrderSequence(tx, partnerId)
		if err != nil {
			return "", err
		}
		counter = OrderNumberCounter{PartnerId: partnerId, LastValue: seed}
		// A concurrent first allocation may insert the row first; fall through
		// to the locked increment either way.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&counter).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	res := tx.Model(&OrderNumberCounter{}).
		Where("partner_id = ?", partnerId).
		Update("last_value", gorm.Expr("last_value + 1"))
	if res.Error != nil {
		return "", res.Error
	}
	if err := tx.Where("partner_id = ?", partnerId).First(&counter).Error; err != nil {
		return "", err
	}
	return FormatOrderNumber(counter.LastValue), nil
}
