package models

import (
	"net/http"
	"testing"
)

func seedOutboxEvent(t *testing.T, partnerId, status string, attempts int) *OutboxEvent {
	t.Helper()
	ev := &OutboxEvent{ID: newId(), PartnerId: partnerId, EventType: "order.submitted", Payload: toJSON(map[string]string{"orderId": "o1"}), PublishStatus: status, PublishAttempts: attempts}
	mustCreate(t, ev)
	return ev
}

func TestReplayOutboxEvent(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	dead := seedOutboxEvent(t, "p1", OutboxPublishStatusDead, 10)
	sent := seedOutboxEvent(t, "p1", OutboxPublishStatusSent, 1)
	ctx := partnerCtx("p1", uid)

	ev, err := ReplayOutboxEvent(ctx, dead.ID)
	if err != nil {
		t.Fatalf("ReplayOutboxEvent: %v", err)
	}
	if ev.PublishStatus != OutboxPublishStatusFailed || ev.PublishAttempts != 0 || ev.NextAttemptAt == nil {
		t.Fatalf("event not reset: %+v", ev)
	}
	if n := countRows(t, &OutboxEvent{}, "id = ? AND publish_status = ? AND publish_attempts = 0", dead.ID, OutboxPublishStatusFailed); n != 1 {
		t.Fatalf("replay not persisted")
	}

	_, err = ReplayOutboxEvent(ctx, sent.ID)
	expectStatus(t, err, http.StatusConflict)
}

func TestReplayOutboxEvent_TenantScoped(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	seedTenant(t, "p2")
	other := seedOutboxEvent(t, "p2", OutboxPublishStatusDead, 10)

	_, err := ReplayOutboxEvent(partnerCtx("p1", uid), other.ID)
	expectStatus(t, err, http.StatusForbidden)

	_, err = ReplayOutboxEvent(photographerCtx("p2", "owner-p2"), other.ID)
	expectStatus(t, err, http.StatusForbidden)
}

func TestGetOutboxEvents_FiltersByStatus(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	seedOutboxEvent(t, "p1", OutboxPublishStatusDead, 10)
	seedOutboxEvent(t, "p1", OutboxPublishStatusSent, 1)
	seedOutboxEvent(t, "p2", OutboxPublishStatusDead, 10)

	rows, _, err := GetOutboxEvents(partnerCtx("p1", uid), OutboxFilter{Status: OutboxPublishStatusDead})
	if err != nil {
		t.Fatalf("GetOutboxEvents: %v", err)
	}
	if len(rows) != 1 || rows[0].PartnerId != "p1" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
