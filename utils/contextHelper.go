package utils

import (
	"context"

	"github.com/photoflow/studio_backend/appctx"
)

// Alias the shared context key type so callers don't need appctx directly.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyPartnerId     = appctx.ContextKeyPartnerId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserEmail     = appctx.ContextKeyUserEmail
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyClientIP      = appctx.ContextKeyClientIP
	ContextKeyUserAgent     = appctx.ContextKeyUserAgent

	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetPartnerIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyPartnerId)
}

func GetUserIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserId)
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserEmail)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetClientIPFromContext(ctx context.Context) string {
	v, _ := appctx.GetString(ctx, ContextKeyClientIP)
	return v
}

func GetUserAgentFromContext(ctx context.Context) string {
	v, _ := appctx.GetString(ctx, ContextKeyUserAgent)
	return v
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetPartnerIdInContext(ctx context.Context, partnerId string) context.Context {
	return appctx.Set(ctx, ContextKeyPartnerId, partnerId)
}

func SetUserIdInContext(ctx context.Context, userId string) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserEmailInContext(ctx context.Context, email string) context.Context {
	return appctx.Set(ctx, ContextKeyUserEmail, email)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetRequestMetaInContext(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = appctx.Set(ctx, ContextKeyClientIP, clientIP)
	return appctx.Set(ctx, ContextKeyUserAgent, userAgent)
}

func SetSkipTenantScopeInContext(ctx context.Context, skip bool) context.Context {
	return appctx.Set(ctx, ContextKeySkipTenantScope, skip)
}
