package models

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/photoflow/studio_backend/utils"
	"go.opentelemetry.io/otel"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/photoflow/studio_backend/models")

func newId() string {
	return uuid.NewString()
}

// callerPartnerId returns the tenant of the authenticated caller.
func callerPartnerId(ctx context.Context) (string, error) {
	partnerId, ok := utils.GetPartnerIdFromContext(ctx)
	if !ok || partnerId == "" {
		return "", utils.Forbidden("partner id is required")
	}
	return partnerId, nil
}

func callerUserId(ctx context.Context) (string, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return "", utils.Unauthorized("user id is required")
	}
	return userId, nil
}

func callerRole(ctx context.Context) UserRole {
	role, _ := utils.GetUserRoleFromContext(ctx)
	return UserRole(role)
}

// requireManager rejects callers that cannot run partner-side actions.
func requireManager(ctx context.Context) (string, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return "", err
	}
	if !callerRole(ctx).CanManageTenant() {
		return "", utils.Forbidden("partner or admin role required")
	}
	return partnerId, nil
}

// crossTenant disables the tenant guard for lookups that legitimately span
// tenants (editor partnership checks, user directory, background jobs).
func crossTenant(ctx context.Context) context.Context {
	return utils.SetSkipTenantScopeInContext(ctx, true)
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// enqueueEvent implements the transactional outbox: the row is written in the
// caller's transaction; publishing happens after commit in the dispatcher.
func enqueueEvent(ctx context.Context, tx *gorm.DB, partnerId, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := OutboxEvent{
		ID:            newId(),
		PartnerId:     partnerId,
		EventType:     eventType,
		Payload:       datatypes.JSON(data),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.WithContext(ctx).Create(&event).Error
}

func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
