// file-cleanup runs one retention sweep and exits. Schedule it (Cloud
// Scheduler, cron) when the API runs with DISABLE_FILE_CLEANUP=true.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... GCS_BUCKET=... go run ./cmd/file-cleanup
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"github.com/photoflow/studio_backend/workflow"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	cleanup := workflow.NewFileCleanup(utils.GCSObjectStore{}, logger)
	report, err := cleanup.RunOnce(ctx, time.Now())
	if err != nil {
		config.LogError(logger, "file-cleanup", "main", "RunOnce", nil, err)
		os.Exit(1)
	}
	if report.FilesFailed > 0 {
		os.Exit(3)
	}
}
