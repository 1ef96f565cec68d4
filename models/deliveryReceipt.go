package models

import "time"

// DeliveryReceipt records that one named handler finished an outbox event.
// A retried event skips handlers that already have a receipt.
type DeliveryReceipt struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PartnerId string    `gorm:"size:64;not null;index" json:"partnerId"`
	EventId   string    `gorm:"size:36;not null;uniqueIndex:uq_delivery_receipt,priority:1" json:"eventId"`
	Handler   string    `gorm:"size:64;not null;uniqueIndex:uq_delivery_receipt,priority:2" json:"handler"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
