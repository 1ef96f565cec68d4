package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/datatypes"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []config.PubSubMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg config.PubSubMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.msgs = append(p.msgs, msg)
	return "msg-" + msg.EventId, nil
}

func newTestDispatcher(t *testing.T) (*OutboxDispatcher, *fakePublisher, *test.Hook) {
	t.Helper()
	db := testutil.OpenDB(t, models.AllModels()...)
	logger, hook := test.NewNullLogger()
	d := NewOutboxDispatcher(db, logger)
	pub := &fakePublisher{}
	d.Publisher = pub
	return d, pub, hook
}

func seedEvent(t *testing.T, d *OutboxDispatcher, eventType string) *models.OutboxEvent {
	t.Helper()
	ev := &models.OutboxEvent{
		ID:            eventType + "-" + time.Now().Format("150405.000000000"),
		PartnerId:     "p1",
		EventType:     eventType,
		Payload:       datatypes.JSON(`{"orderId":"o1"}`),
		PublishStatus: models.OutboxPublishStatusPending,
		CorrelationId: "corr-1",
	}
	if err := d.DB.Create(ev).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return ev
}

func loadEvent(t *testing.T, d *OutboxDispatcher, id string) models.OutboxEvent {
	t.Helper()
	var ev models.OutboxEvent
	if err := d.DB.Where("id = ?", id).First(&ev).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	return ev
}

func TestDispatchOnce_PublishesAndRunsHandlers(t *testing.T) {
	d, pub, _ := newTestDispatcher(t)
	var handled []string
	d.Handle("record", func(_ context.Context, ev models.OutboxEvent) error {
		handled = append(handled, ev.ID)
		return nil
	}, models.EventOrderCreated)
	ev := seedEvent(t, d, models.EventOrderCreated)

	if n := d.dispatchOnce(context.Background()); n != 1 {
		t.Fatalf("expected 1 delivered, got %d", n)
	}
	if len(handled) != 1 || handled[0] != ev.ID {
		t.Fatalf("handler not run: %v", handled)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].EventType != models.EventOrderCreated || pub.msgs[0].CorrelationId != "corr-1" {
		t.Fatalf("unexpected published messages: %+v", pub.msgs)
	}

	got := loadEvent(t, d, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusSent || got.PublishedAt == nil || got.LockedBy != nil {
		t.Fatalf("unexpected row: %+v", got)
	}
	if got.PubSubMessageId == nil || *got.PubSubMessageId != "msg-"+ev.ID {
		t.Fatalf("unexpected message id: %v", got.PubSubMessageId)
	}

	// Sent events are not picked up again.
	if n := d.dispatchOnce(context.Background()); n != 0 {
		t.Fatalf("expected nothing to deliver, got %d", n)
	}
}

func TestDispatchOnce_FailureSchedulesRetry(t *testing.T) {
	d, _, hook := newTestDispatcher(t)
	d.Handle("smtp", func(context.Context, models.OutboxEvent) error {
		return errors.New("smtp down")
	}, models.EventQCPassed)
	ev := seedEvent(t, d, models.EventQCPassed)

	before := time.Now().UTC()
	if n := d.dispatchOnce(context.Background()); n != 0 {
		t.Fatalf("expected no deliveries, got %d", n)
	}
	got := loadEvent(t, d, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusFailed || got.PublishAttempts != 1 {
		t.Fatalf("unexpected row: status=%s attempts=%d", got.PublishStatus, got.PublishAttempts)
	}
	if got.LastError == nil || !strings.Contains(*got.LastError, "smtp down") {
		t.Fatalf("unexpected last error: %v", got.LastError)
	}
	if got.NextAttemptAt == nil || got.NextAttemptAt.Before(before.Add(d.InitialBackoff-time.Second)) {
		t.Fatalf("next attempt not pushed back: %v", got.NextAttemptAt)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.ErrorLevel {
		t.Fatalf("expected an error log entry")
	}

	// Not due yet.
	if n := d.dispatchOnce(context.Background()); n != 0 {
		t.Fatalf("retry ran before its backoff")
	}
}

func TestDispatchOnce_MovesToDeadAfterMaxAttempts(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	d.MaxAttempts = 2
	d.Handle("xero", func(context.Context, models.OutboxEvent) error {
		return errors.New("xero rejected invoice")
	}, models.EventXeroInvoiceSync)
	ev := seedEvent(t, d, models.EventXeroInvoiceSync)

	d.dispatchOnce(context.Background())
	if err := d.DB.Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).Update("next_attempt_at", time.Now().UTC().Add(-time.Second)).Error; err != nil {
		t.Fatalf("make due: %v", err)
	}
	d.dispatchOnce(context.Background())

	got := loadEvent(t, d, ev.ID)
	if got.PublishStatus != models.OutboxPublishStatusDead || got.PublishAttempts != 2 {
		t.Fatalf("expected DEAD after 2 attempts, got %s/%d", got.PublishStatus, got.PublishAttempts)
	}
	if n := d.dispatchOnce(context.Background()); n != 0 {
		t.Fatalf("dead events must not be retried")
	}
}

func TestDispatchOnce_ReclaimsStaleLocks(t *testing.T) {
	d, pub, _ := newTestDispatcher(t)
	ev := seedEvent(t, d, models.EventOrderAssigned)
	stale := time.Now().UTC().Add(-2 * d.LockTimeout)
	owner := "dead-dispatcher"
	if err := d.DB.Model(&models.OutboxEvent{}).Where("id = ?", ev.ID).Updates(map[string]interface{}{
		"publish_status": models.OutboxPublishStatusProcessing,
		"locked_at":      stale,
		"locked_by":      owner,
	}).Error; err != nil {
		t.Fatalf("seed lock: %v", err)
	}

	if n := d.dispatchOnce(context.Background()); n != 1 {
		t.Fatalf("expected stale event to be delivered, got %d", n)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.msgs))
	}
}

func TestDispatchOnce_PublishFailureSkipsHandlers(t *testing.T) {
	d, pub, _ := newTestDispatcher(t)
	pub.err = errors.New("pubsub unavailable")
	called := false
	d.Handle("record", func(context.Context, models.OutboxEvent) error {
		called = true
		return nil
	}, models.EventOrderCreated)
	ev := seedEvent(t, d, models.EventOrderCreated)

	d.dispatchOnce(context.Background())
	if called {
		t.Fatalf("handlers ran although publishing failed")
	}
	if got := loadEvent(t, d, ev.ID); got.PublishStatus != models.OutboxPublishStatusFailed {
		t.Fatalf("expected FAILED, got %s", got.PublishStatus)
	}
}

func TestBackoff(t *testing.T) {
	d := &OutboxDispatcher{InitialBackoff: 5 * time.Second}
	cases := map[int]time.Duration{
		1:  5 * time.Second,
		2:  10 * time.Second,
		4:  40 * time.Second,
		20: 10 * time.Minute,
	}
	for attempt, want := range cases {
		if got := d.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestBackoff_ConfiguredCeiling(t *testing.T) {
	t.Setenv("OUTBOX_BASE_BACKOFF_SECONDS", "2")
	t.Setenv("OUTBOX_MAX_BACKOFF_SECONDS", "10")
	retry := config.OutboxRetryConfig()
	d := &OutboxDispatcher{InitialBackoff: retry.BaseBackoff, MaxBackoff: retry.MaxBackoff}
	if got := d.Backoff(1); got != 2*time.Second {
		t.Fatalf("Backoff(1) = %s", got)
	}
	if got := d.Backoff(5); got != 10*time.Second {
		t.Fatalf("Backoff(5) = %s, want ceiling", got)
	}
}

func TestDispatchOnce_RetrySkipsCompletedHandlers(t *testing.T) {
	d, _, _ := newTestDispatcher(t)
	d.InitialBackoff = 0
	mailed := 0
	d.Handle("email", func(context.Context, models.OutboxEvent) error {
		mailed++
		return nil
	}, models.EventQCPassed)
	failCalendar := true
	d.Handle("calendar", func(context.Context, models.OutboxEvent) error {
		if failCalendar {
			return errors.New("calendar unavailable")
		}
		return nil
	}, models.EventQCPassed)
	ev := seedEvent(t, d, models.EventQCPassed)

	d.dispatchOnce(context.Background())
	if got := loadEvent(t, d, ev.ID); got.PublishStatus != models.OutboxPublishStatusFailed {
		t.Fatalf("expected FAILED after calendar error, got %s", got.PublishStatus)
	}

	failCalendar = false
	if n := d.dispatchOnce(context.Background()); n != 1 {
		t.Fatalf("expected retry to deliver, got %d", n)
	}
	if mailed != 1 {
		t.Fatalf("email handler ran %d times", mailed)
	}
	var receipts int64
	d.DB.Model(&models.DeliveryReceipt{}).Where("event_id = ?", ev.ID).Count(&receipts)
	if receipts != 2 {
		t.Fatalf("expected 2 receipts, got %d", receipts)
	}
}
