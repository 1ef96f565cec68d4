package models

import (
	"log"

	"github.com/photoflow/studio_backend/config"
)

// AllModels is the migration set, also used by tests against SQLite.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &PendingInvite{}, &Partnership{}, &PartnershipInvite{},
		&Customer{}, &Product{}, &EditorService{},
		&Job{}, &Order{}, &OrderService{}, &OrderFile{},
		&OrderReservation{}, &OrderNumberCounter{},
		&EditorUpload{}, &UploadFolder{},
		&Notification{}, &Activity{}, &OutboxEvent{}, &DeliveryReceipt{},
		&OAuthState{}, &IntegrationConnection{},
	}
}

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(AllModels()...)
	if err != nil {
		log.Fatal(err)
	}
}
