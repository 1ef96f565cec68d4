package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventHandler delivers one outbox event to an external system. Handlers
// must tolerate redelivery: a failed event is retried as a whole.
type EventHandler func(ctx context.Context, event models.OutboxEvent) error

// Publisher sends the event envelope to the notifications topic.
type Publisher interface {
	Publish(ctx context.Context, msg config.PubSubMessage) (string, error)
}

type pubSubPublisher struct{}

func (pubSubPublisher) Publish(ctx context.Context, msg config.PubSubMessage) (string, error) {
	return config.PublishEvent(ctx, msg)
}

// DefaultPublisher publishes through Pub/Sub when NOTIFICATIONS_TOPIC is set
// and is nil otherwise.
func DefaultPublisher() Publisher {
	if !config.PubSubEnabled() {
		return nil
	}
	return pubSubPublisher{}
}

type namedHandler struct {
	name string
	fn   EventHandler
}

type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string
	Publisher    Publisher
	Handlers     map[string][]namedHandler

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	retry := config.OutboxRetryConfig()
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		Publisher:      DefaultPublisher(),
		Handlers:       map[string][]namedHandler{},
		BatchSize:      50,
		PollInterval:   time.Second,
		LockTimeout:    60 * time.Second,
		MaxAttempts:    retry.MaxAttempts,
		InitialBackoff: retry.BaseBackoff,
		MaxBackoff:     retry.MaxBackoff,
	}
}

// Handle registers h under name for the given event types. The name keys
// delivery receipts, so it must stay stable across deploys.
func (d *OutboxDispatcher) Handle(name string, h EventHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		d.Handlers[t] = append(d.Handlers[t], namedHandler{name: name, fn: h})
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// claim locks a batch of deliverable events and marks them PROCESSING.
// Events past MaxAttempts go DEAD instead.
func (d *OutboxDispatcher) claim(ctx context.Context, now time.Time) ([]models.OutboxEvent, error) {
	staleBefore := now.Add(-d.LockTimeout)
	var claimed []models.OutboxEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING with a stale lock (dispatcher died mid-batch)
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("created_at ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.OutboxEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":  models.OutboxPublishStatusDead,
					"last_error":      &msg,
					"next_attempt_at": nil,
					"locked_at":       nil,
					"locked_by":       nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].LockedAt = &now
			claimed[i].LockedBy = &d.DispatcherID
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.OutboxEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":   claimed[i].PublishStatus,
				"locked_at":        claimed[i].LockedAt,
				"locked_by":        claimed[i].LockedBy,
				"publish_attempts": gorm.Expr("publish_attempts + 1"),
				"last_error":       nil,
				"next_attempt_at":  nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return claimed, err
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) int {
	if d.DB == nil {
		return 0
	}
	now := time.Now().UTC()
	claimed, err := d.claim(ctx, now)
	if err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "dispatchOnce", "claim batch", nil, err)
		return 0
	}

	delivered := 0
	for _, ev := range claimed {
		if ev.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		pubID, err := d.deliver(ctx, ev)
		if err != nil {
			d.markFailed(ctx, ev, err)
			continue
		}
		d.markSent(ctx, ev.ID, pubID, now)
		delivered++
	}
	return delivered
}

// deliver publishes the envelope then runs the registered handlers.
func (d *OutboxDispatcher) deliver(ctx context.Context, ev models.OutboxEvent) (string, error) {
	var pubID string
	if d.Publisher != nil {
		id, err := d.Publisher.Publish(ctx, config.PubSubMessage{
			EventId:       ev.ID,
			PartnerId:     ev.PartnerId,
			EventType:     ev.EventType,
			OccurredAt:    ev.CreatedAt,
			Payload:       []byte(ev.Payload),
			CorrelationId: ev.CorrelationId,
		})
		if err != nil {
			return "", fmt.Errorf("publish: %w", err)
		}
		pubID = id
	}
	for _, h := range d.Handlers[ev.EventType] {
		done, err := handlerDone(ctx, d.DB, ev, h.name)
		if err != nil {
			return pubID, fmt.Errorf("%s receipt: %w", h.name, err)
		}
		if done {
			continue
		}
		if err := h.fn(ctx, ev); err != nil {
			return pubID, fmt.Errorf("%s handler: %w", h.name, err)
		}
		if err := markHandlerDone(ctx, d.DB, ev, h.name); err != nil {
			return pubID, fmt.Errorf("%s receipt: %w", h.name, err)
		}
	}
	return pubID, nil
}

func (d *OutboxDispatcher) markSent(ctx context.Context, id, pubsubMsgID string, now time.Time) {
	updates := map[string]interface{}{
		"publish_status":  models.OutboxPublishStatusSent,
		"published_at":    &now,
		"locked_at":       nil,
		"locked_by":       nil,
		"next_attempt_at": nil,
	}
	if pubsubMsgID != "" {
		updates["pub_sub_message_id"] = &pubsubMsgID
	}
	if err := d.DB.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markSent", "update outbox row", id, err)
	}
}

// Backoff doubles from InitialBackoff per attempt, capped at MaxBackoff
// (ten minutes when unset).
func (d *OutboxDispatcher) Backoff(attempt int) time.Duration {
	ceiling := d.MaxBackoff
	if ceiling <= 0 {
		ceiling = 10 * time.Minute
	}
	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > ceiling {
			return ceiling
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markFailed(ctx context.Context, ev models.OutboxEvent, err error) {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	attempt := ev.PublishAttempts

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.OutboxEvent{}).
			Where("id = ?", ev.ID).
			Updates(map[string]interface{}{
				"publish_status":  models.OutboxPublishStatusDead,
				"last_error":      &msg,
				"next_attempt_at": nil,
				"locked_at":       nil,
				"locked_by":       nil,
			}).Error

		d.Logger.WithFields(logrus.Fields{
			"field":      "OutboxDispatcher",
			"partner_id": ev.PartnerId,
			"event_id":   ev.ID,
			"event_type": ev.EventType,
			"attempt":    attempt,
		}).Error("outbox event moved to DEAD after max attempts: " + msg)
		return
	}

	next := time.Now().UTC().Add(d.Backoff(attempt))
	_ = db.Model(&models.OutboxEvent{}).
		Where("id = ?", ev.ID).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusFailed,
			"last_error":      &msg,
			"next_attempt_at": &next,
			"locked_at":       nil,
			"locked_by":       nil,
		}).Error

	d.Logger.WithFields(logrus.Fields{
		"field":           "OutboxDispatcher",
		"partner_id":      ev.PartnerId,
		"event_id":        ev.ID,
		"event_type":      ev.EventType,
		"attempt":         attempt,
		"next_attempt_at": next.Format(time.RFC3339Nano),
	}).Error("outbox delivery failed: " + msg)
}
