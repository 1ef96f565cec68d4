package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/sirupsen/logrus"
)

// ObjectDeleter removes stored objects. A missing object is not an error.
type ObjectDeleter interface {
	Delete(ctx context.Context, objectKey string) error
}

type CleanupReport struct {
	FilesDeleted       int   `json:"filesDeleted"`
	FilesFailed        int   `json:"filesFailed"`
	ReservationsPurged int64 `json:"reservationsPurged"`
	InvitesExpired     int64 `json:"invitesExpired"`
	OAuthStatesPurged  int64 `json:"oauthStatesPurged"`
}

// FileCleanup enforces retention on order files and editor deliverables and
// clears expired reservations, invites and OAuth states.
type FileCleanup struct {
	Store     ObjectDeleter
	Logger    *logrus.Logger
	BatchSize int
	Interval  time.Duration
	// Locker, when set, keeps concurrent instances from sweeping together.
	Locker *redislock.Client
}

func NewFileCleanup(store ObjectDeleter, logger *logrus.Logger) *FileCleanup {
	return &FileCleanup{
		Store:     store,
		Logger:    logger,
		BatchSize: 500,
		Interval:  config.CleanupInterval(),
		Locker:    config.GetRedisLock(),
	}
}

// RunOnce processes everything expired at now. Per-file failures are logged
// and left for the next run.
func (c *FileCleanup) RunOnce(ctx context.Context, now time.Time) (CleanupReport, error) {
	var report CleanupReport
	for {
		files, err := models.FindExpiredFiles(ctx, now, c.BatchSize)
		if err != nil {
			return report, err
		}
		if len(files) == 0 {
			break
		}
		progressed := false
		for _, f := range files {
			if err := c.removeFile(ctx, f); err != nil {
				report.FilesFailed++
				c.Logger.WithFields(logrus.Fields{
					"field":      "FileCleanup",
					"partner_id": f.PartnerId,
					"object_key": f.ObjectKey,
					"kind":       f.Kind,
				}).Error("file cleanup failed: " + err.Error())
				continue
			}
			report.FilesDeleted++
			progressed = true
		}
		// Everything left in this batch failed; stop rather than spin.
		if !progressed || len(files) < c.BatchSize {
			break
		}
	}

	var err error
	if report.ReservationsPurged, err = models.PurgeExpiredReservations(ctx, now); err != nil {
		return report, err
	}
	if report.InvitesExpired, err = models.ExpireStaleInvites(ctx, now); err != nil {
		return report, err
	}
	if report.OAuthStatesPurged, err = models.PurgeExpiredOAuthStates(ctx, now); err != nil {
		return report, err
	}

	c.Logger.WithFields(logrus.Fields{
		"field":               "FileCleanup",
		"files_deleted":       report.FilesDeleted,
		"files_failed":        report.FilesFailed,
		"reservations_purged": report.ReservationsPurged,
		"invites_expired":     report.InvitesExpired,
		"oauth_states_purged": report.OAuthStatesPurged,
	}).Info("retention cleanup finished")
	return report, nil
}

func (c *FileCleanup) removeFile(ctx context.Context, f models.ExpiredFile) error {
	if err := c.Store.Delete(ctx, f.ObjectKey); err != nil {
		return err
	}
	if f.ThumbnailKey != "" {
		if err := c.Store.Delete(ctx, f.ThumbnailKey); err != nil {
			return err
		}
	}
	return models.RemoveExpiredFile(ctx, f)
}

const cleanupLockKey = "lock:file-cleanup"

// Run repeats RunOnce every Interval until ctx is done.
func (c *FileCleanup) Run(ctx context.Context) {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()
	for {
		c.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *FileCleanup) sweep(ctx context.Context) {
	if c.Locker != nil {
		lock, err := c.Locker.Obtain(ctx, cleanupLockKey, c.Interval, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			c.Logger.WithFields(logrus.Fields{"field": "FileCleanup"}).Debug("another instance holds the cleanup lock")
			return
		}
		if err != nil {
			c.Logger.WithFields(logrus.Fields{"field": "FileCleanup"}).Warn("cleanup lock unavailable; sweeping anyway: " + err.Error())
		} else {
			defer func() { _ = lock.Release(context.Background()) }()
		}
	}
	if _, err := c.RunOnce(ctx, time.Now()); err != nil {
		config.LogError(c.Logger, "FileCleanup", "Run", "retention cleanup", nil, err)
	}
}
