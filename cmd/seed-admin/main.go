// seed-admin creates or promotes an admin user inside an existing partner
// tenant. The uid must match the Firebase (or JWT) subject of the account.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	SEED_ADMIN_UID=... SEED_ADMIN_EMAIL=... SEED_PARTNER_ID=... go run ./cmd/seed-admin
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

func mustEnv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		fmt.Fprintf(os.Stderr, "%s is required\n", key)
		os.Exit(2)
	}
	return v
}

func main() {
	uid := mustEnv("SEED_ADMIN_UID")
	email := utils.NormalizeEmail(mustEnv("SEED_ADMIN_EMAIL"))
	partnerId := mustEnv("SEED_PARTNER_ID")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	ctx := utils.SetSkipTenantScopeInContext(context.Background(), true)

	var owner models.User
	err := db.WithContext(ctx).Where("partner_id = ? AND role = ?", partnerId, models.UserRolePartner).First(&owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fmt.Fprintf(os.Stderr, "no partner owns tenant %q; register the partner account first\n", partnerId)
		os.Exit(2)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup partner: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("id = ?", uid).First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			ID:        uid,
			Email:     email,
			Name:      "Admin",
			Role:      models.UserRoleAdmin,
			PartnerId: &partnerId,
			Status:    models.UserStatusActive,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user %q in partner %q\n", uid, partnerId)
		return
	}

	if existing.Role == models.UserRoleEditor {
		fmt.Fprintf(os.Stderr, "user %q is an editor account and cannot be promoted\n", uid)
		os.Exit(2)
	}
	if existing.PartnerId != nil && *existing.PartnerId != partnerId {
		fmt.Fprintf(os.Stderr, "user %q belongs to another partner\n", uid)
		os.Exit(2)
	}
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", uid).Updates(map[string]any{
		"email":      email,
		"role":       models.UserRoleAdmin,
		"partner_id": partnerId,
		"status":     models.UserStatusActive,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	_ = existing.RemoveInstanceRedis(ctx)
	fmt.Printf("Promoted %q to admin in partner %q\n", uid, partnerId)
}
