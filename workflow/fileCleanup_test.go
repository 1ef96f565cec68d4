package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/testutil"
	"github.com/sirupsen/logrus/hooks/test"
)

type fakeStore struct {
	mu      sync.Mutex
	deleted []string
	failOn  map[string]bool
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[key] {
		return errors.New("storage unavailable")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func TestFileCleanup_RunOnce(t *testing.T) {
	db := testutil.OpenDB(t, models.AllModels()...)
	logger, _ := test.NewNullLogger()
	now := time.Now()
	past, later := now.Add(-time.Hour), now.Add(24*time.Hour)
	thumb := "p1/jobs/j1/thumbnails/b.jpg"

	seed := []interface{}{
		&models.OrderFile{ID: "f1", OrderId: "o1", PartnerId: "p1", UploadedBy: "u1", FileName: "a.jpg", ObjectKey: "p1/jobs/j1/a.jpg", ExpiresAt: past},
		&models.OrderFile{ID: "f2", OrderId: "o1", PartnerId: "p1", UploadedBy: "u1", FileName: "keep.jpg", ObjectKey: "p1/jobs/j1/keep.jpg", ExpiresAt: later},
		&models.OrderFile{ID: "f3", OrderId: "o1", PartnerId: "p1", UploadedBy: "u1", FileName: "stuck.jpg", ObjectKey: "p1/jobs/j1/stuck.jpg", ExpiresAt: past},
		&models.EditorUpload{ID: "u1", OrderId: "o1", JobId: "j1", PartnerId: "p1", EditorId: "e1", FileName: "b.jpg", ObjectKey: "p1/jobs/j1/b.jpg", ThumbnailKey: &thumb, FolderPath: "folders/final", ExpiresAt: past},
		&models.UploadFolder{ID: "d1", PartnerId: "p1", JobId: "j1", FolderPath: "folders/final", FileCount: 1},
		&models.OrderReservation{OrderNumber: "00001", PartnerId: "p1", UserId: "u1", JobId: "j1", Status: models.ReservationStatusReserved, ExpiresAt: past},
		&models.OAuthState{State: "s1", PartnerId: "p1", UserId: "u1", Provider: models.IntegrationProviderXero, ExpiresAt: past},
	}
	for _, v := range seed {
		if err := db.Create(v).Error; err != nil {
			t.Fatalf("seed %T: %v", v, err)
		}
	}

	store := &fakeStore{failOn: map[string]bool{"p1/jobs/j1/stuck.jpg": true}}
	cleanup := NewFileCleanup(store, logger)
	report, err := cleanup.RunOnce(context.Background(), now)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.FilesDeleted != 2 || report.FilesFailed != 1 {
		t.Fatalf("unexpected file counts: %+v", report)
	}
	if report.ReservationsPurged != 1 || report.OAuthStatesPurged != 1 {
		t.Fatalf("unexpected purge counts: %+v", report)
	}

	deleted := map[string]bool{}
	for _, k := range store.deleted {
		deleted[k] = true
	}
	for _, k := range []string{"p1/jobs/j1/a.jpg", "p1/jobs/j1/b.jpg", thumb} {
		if !deleted[k] {
			t.Fatalf("expected %s to be deleted, got %v", k, store.deleted)
		}
	}
	if deleted["p1/jobs/j1/keep.jpg"] {
		t.Fatalf("unexpired file deleted")
	}

	var remaining []string
	db.Model(&models.OrderFile{}).Order("id").Pluck("id", &remaining)
	if len(remaining) != 2 || remaining[0] != "f2" || remaining[1] != "f3" {
		t.Fatalf("unexpected remaining order files: %v", remaining)
	}
	var folder models.UploadFolder
	if err := db.Where("id = ?", "d1").First(&folder).Error; err != nil {
		t.Fatalf("load folder: %v", err)
	}
	if folder.FileCount != 0 {
		t.Fatalf("expected folder count 0, got %d", folder.FileCount)
	}
}

func TestFileCleanup_SweepLogsOnce(t *testing.T) {
	testutil.OpenDB(t, models.AllModels()...)
	logger, hook := test.NewNullLogger()

	cleanup := NewFileCleanup(&fakeStore{}, logger)
	cleanup.Locker = nil
	cleanup.sweep(context.Background())

	finished := 0
	for _, e := range hook.AllEntries() {
		if e.Message == "retention cleanup finished" {
			finished++
		}
	}
	if finished != 1 {
		t.Fatalf("expected one completion entry, got %d of %d entries", finished, len(hook.AllEntries()))
	}
}
