package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// IsProduction reports GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// BaseURL is the public origin used in emails and OAuth redirect URIs.
func BaseURL() string {
	v := strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_URL")), "/")
	if v == "" {
		return "http://localhost:8080"
	}
	return v
}

// ReservationTTL is how long a reserved order number stays claimable.
//
// Set via env:
// - RESERVATION_TTL_MINUTES (default 30)
func ReservationTTL() time.Duration {
	return time.Duration(intFromEnv("RESERVATION_TTL_MINUTES", 30)) * time.Minute
}

// InviteTTL applies to team and partnership invites.
//
// Set via env:
// - INVITE_TTL_HOURS (default 168)
func InviteTTL() time.Duration {
	return time.Duration(intFromEnv("INVITE_TTL_HOURS", 168)) * time.Hour
}

// OrderFileRetention is how long partner source files are kept.
func OrderFileRetention() time.Duration {
	return time.Duration(intFromEnv("ORDER_FILE_RETENTION_DAYS", 14)) * 24 * time.Hour
}

// EditorUploadRetention is how long editor deliverables are kept.
func EditorUploadRetention() time.Duration {
	return time.Duration(intFromEnv("EDITOR_UPLOAD_RETENTION_DAYS", 30)) * 24 * time.Hour
}

func DefaultMaxRevisionRounds() int {
	return intFromEnv("DEFAULT_MAX_REVISION_ROUNDS", 2)
}

func OrderNumberPrefix() string {
	return strings.TrimSpace(os.Getenv("ORDER_NUMBER_PREFIX"))
}

// CleanupInterval is the period of the retention cleanup worker.
func CleanupInterval() time.Duration {
	return time.Duration(intFromEnv("CLEANUP_INTERVAL_HOURS", 24)) * time.Hour
}

// OutboxRetry is the dispatcher's retry policy.
// Env: OUTBOX_MAX_ATTEMPTS, OUTBOX_BASE_BACKOFF_SECONDS, OUTBOX_MAX_BACKOFF_SECONDS.
type OutboxRetry struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func OutboxRetryConfig() OutboxRetry {
	cfg := OutboxRetry{
		MaxAttempts: intFromEnv("OUTBOX_MAX_ATTEMPTS", 10),
		BaseBackoff: time.Duration(intFromEnv("OUTBOX_BASE_BACKOFF_SECONDS", 5)) * time.Second,
		MaxBackoff:  time.Duration(intFromEnv("OUTBOX_MAX_BACKOFF_SECONDS", 600)) * time.Second,
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 5 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return cfg
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
