package models

import (
	"encoding/json"
	"net/http"
	"testing"
)

// assignedOrder returns an order assigned to e1 and in processing.
func assignedOrder(t *testing.T) (string, *Order) {
	t.Helper()
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	order := newPendingOrder(t, "p1", uid, job)
	assigned, err := AssignOrderToEditor(partnerCtx("p1", uid), order.ID, "e1")
	if err != nil {
		t.Fatalf("AssignOrderToEditor: %v", err)
	}
	return uid, assigned
}

func TestRequestRevision_RequiresNotes(t *testing.T) {
	setupTestDB(t)
	uid, order := assignedOrder(t)

	_, _, err := RequestRevision(partnerCtx("p1", uid), order.ID, "   ")
	expectStatus(t, err, http.StatusBadRequest)
	if got := reloadOrder(t, order.ID); got.Status != OrderStatusProcessing || got.UsedRevisionRounds != 0 {
		t.Fatalf("order changed: %+v", got)
	}
}

func TestRequestRevision_IncrementsRoundsOnce(t *testing.T) {
	setupTestDB(t)
	uid, order := assignedOrder(t)
	ctx := partnerCtx("p1", uid)

	updated, warning, err := RequestRevision(ctx, order.ID, "Brighten the kitchen")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	got := reloadOrder(t, order.ID)
	if got.Status != OrderStatusInRevision || got.UsedRevisionRounds != 1 || updated.UsedRevisionRounds != 1 {
		t.Fatalf("unexpected order: status=%s rounds=%d", got.Status, got.UsedRevisionRounds)
	}
	if got.RevisionNotes == nil || *got.RevisionNotes != "Brighten the kitchen" {
		t.Fatalf("unexpected notes: %v", got.RevisionNotes)
	}

	var ev OutboxEvent
	if err := testDB().Where("event_type = ?", EventRevisionRequested).First(&ev).Error; err != nil {
		t.Fatalf("revision event: %v", err)
	}
	var payload QCEmailPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.RecipientEmail != "e1@example.test" || payload.Notes != "Brighten the kitchen" || payload.UsedRounds != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	// A revision cannot be requested twice without the editor resubmitting.
	_, _, err = RequestRevision(ctx, order.ID, "Again")
	expectStatus(t, err, http.StatusConflict)
	if got := reloadOrder(t, order.ID); got.UsedRevisionRounds != 1 {
		t.Fatalf("rounds changed on rejected request: %d", got.UsedRevisionRounds)
	}
}

func TestRequestRevision_SoftCapWarns(t *testing.T) {
	setupTestDB(t)
	uid, order := assignedOrder(t)
	ctx := partnerCtx("p1", uid)
	if err := testDB().Model(&Order{}).Where("id = ?", order.ID).Update("max_revision_rounds", 0).Error; err != nil {
		t.Fatalf("seed cap: %v", err)
	}

	updated, warning, err := RequestRevision(ctx, order.ID, "Fix the sky")
	if err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if warning == "" {
		t.Fatalf("expected a warning past the revision limit")
	}
	if updated.Status != OrderStatusInRevision || updated.UsedRevisionRounds != 1 {
		t.Fatalf("unexpected order: %+v", updated)
	}
}

func TestPassQC(t *testing.T) {
	setupTestDB(t)
	uid, order := assignedOrder(t)
	ctx := partnerCtx("p1", uid)
	if _, _, err := RequestRevision(ctx, order.ID, "Straighten verticals"); err != nil {
		t.Fatalf("RequestRevision: %v", err)
	}
	if _, err := StartOrder(editorCtx("e1"), order.ID); err != nil {
		t.Fatalf("StartOrder: %v", err)
	}
	if _, err := SubmitForQC(editorCtx("e1"), order.ID); err != nil {
		t.Fatalf("SubmitForQC: %v", err)
	}

	passed, err := PassQC(ctx, order.ID)
	if err != nil {
		t.Fatalf("PassQC: %v", err)
	}
	got := reloadOrder(t, order.ID)
	if got.Status != OrderStatusCompleted || got.RevisionNotes != nil || got.CompletedAt == nil || passed.CompletedAt == nil {
		t.Fatalf("unexpected order: %+v", got)
	}
	if n := countRows(t, &Notification{}, "order_id = ? AND recipient_id = ? AND type = ?", order.ID, "e1", NotificationTypeQCPassed); n != 1 {
		t.Fatalf("expected qc_passed notification, got %d", n)
	}
	// No Xero connection: no invoice sync.
	if n := countRows(t, &OutboxEvent{}, "event_type = ?", EventXeroInvoiceSync); n != 0 {
		t.Fatalf("unexpected xero sync event")
	}

	_, err = PassQC(ctx, order.ID)
	expectStatus(t, err, http.StatusConflict)
}

func TestPassQC_QueuesXeroSyncWhenConnected(t *testing.T) {
	setupTestDB(t)
	uid, order := assignedOrder(t)
	mustCreate(t, &IntegrationConnection{ID: newId(), PartnerId: "p1", Provider: IntegrationProviderXero, AccessToken: "a", ConnectedBy: uid})

	if _, err := PassQC(partnerCtx("p1", uid), order.ID); err != nil {
		t.Fatalf("PassQC: %v", err)
	}
	if n := countRows(t, &OutboxEvent{}, "event_type = ? AND partner_id = ?", EventXeroInvoiceSync, "p1"); n != 1 {
		t.Fatalf("expected xero sync event, got %d", n)
	}
}

func TestPassQC_NeverFromCancelled(t *testing.T) {
	setupTestDB(t)
	uid, order := assignedOrder(t)
	ctx := partnerCtx("p1", uid)
	if _, err := CancelOrder(ctx, order.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}

	_, err := PassQC(ctx, order.ID)
	expectStatus(t, err, http.StatusConflict)
	_, _, err = RequestRevision(ctx, order.ID, "notes")
	expectStatus(t, err, http.StatusConflict)
	if got := reloadOrder(t, order.ID); got.Status != OrderStatusCancelled {
		t.Fatalf("cancelled order moved to %s", got.Status)
	}
}

func TestPassQC_FromPendingRejected(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	order := newPendingOrder(t, "p1", uid, job)

	_, err := PassQC(partnerCtx("p1", uid), order.ID)
	expectStatus(t, err, http.StatusConflict)
}

func TestEditorFlow_RequiresAssignment(t *testing.T) {
	setupTestDB(t)
	_, order := assignedOrder(t)
	seedEditor(t, "e2", "p1")

	_, err := StartOrder(editorCtx("e2"), order.ID)
	expectStatus(t, err, http.StatusForbidden)

	// Ending the partnership cuts the assignee off.
	if err := testDB().Model(&Partnership{}).Where("editor_id = ?", "e1").Update("is_active", false).Error; err != nil {
		t.Fatalf("end partnership: %v", err)
	}
	_, err = StartOrder(editorCtx("e1"), order.ID)
	expectStatus(t, err, http.StatusForbidden)
}

func TestGetEditorOrders_SpansPartners(t *testing.T) {
	setupTestDB(t)
	uid1, job1 := seedTenant(t, "p1")
	uid2, job2 := seedTenant(t, "p2")
	seedEditor(t, "e1", "p1", "p2")
	for _, c := range []struct {
		partner, uid string
		job          *Job
	}{{"p1", uid1, job1}, {"p2", uid2, job2}} {
		order := newPendingOrder(t, c.partner, c.uid, c.job)
		if _, err := AssignOrderToEditor(partnerCtx(c.partner, c.uid), order.ID, "e1"); err != nil {
			t.Fatalf("AssignOrderToEditor: %v", err)
		}
	}

	orders, _, err := GetEditorOrders(editorCtx("e1"), EditorOrderFilter{})
	if err != nil {
		t.Fatalf("GetEditorOrders: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected orders from both partners, got %d", len(orders))
	}
	orders, _, err = GetEditorOrders(editorCtx("e1"), EditorOrderFilter{PartnerId: "p2"})
	if err != nil {
		t.Fatalf("GetEditorOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].PartnerId != "p2" {
		t.Fatalf("expected one p2 order, got %d", len(orders))
	}
}
