package models

import (
	"context"
	"net/http"
	"sync"
	"testing"
)

func newPendingOrder(t *testing.T, partnerId, uid string, job *Job) *Order {
	t.Helper()
	order, _, err := SubmitOrder(partnerCtx(partnerId, uid), &NewOrder{JobId: job.ID})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	return order
}

func TestAssignOrderToEditor_RequiresPartnership(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e-other", "p2")
	order := newPendingOrder(t, "p1", uid, job)

	_, err := AssignOrderToEditor(partnerCtx("p1", uid), order.ID, "e-other")
	expectStatus(t, err, http.StatusForbidden)
	if got := reloadOrder(t, order.ID); got.AssignedTo != nil || got.Status != OrderStatusPending {
		t.Fatalf("order changed after rejected assignment: %+v", got)
	}
}

func TestAssignOrderToEditor(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	seedEditor(t, "e2", "p1")
	order := newPendingOrder(t, "p1", uid, job)
	ctx := partnerCtx("p1", uid)

	assigned, err := AssignOrderToEditor(ctx, order.ID, "e1")
	if err != nil {
		t.Fatalf("AssignOrderToEditor: %v", err)
	}
	if assigned.Status != OrderStatusProcessing || assigned.AssigneeId() != "e1" {
		t.Fatalf("unexpected order: %+v", assigned)
	}
	if n := countRows(t, &Notification{}, "order_id = ? AND recipient_id = ? AND type = ?", order.ID, "e1", NotificationTypeOrderAssigned); n != 1 {
		t.Fatalf("expected assignment notification, got %d", n)
	}

	_, err = AssignOrderToEditor(ctx, order.ID, "e2")
	expectStatus(t, err, http.StatusConflict)
	if got := reloadOrder(t, order.ID); got.AssigneeId() != "e1" {
		t.Fatalf("assignee overwritten: %s", got.AssigneeId())
	}
}

// Runs serialized on sqlite; TestConcurrency_MySQL repeats it with the Redis
// lock and MySQL row locks in play.
func TestAssignOrderToEditor_ConcurrentOnlyOneWins(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	editors := []string{"e1", "e2", "e3", "e4"}
	for _, e := range editors {
		seedEditor(t, e, "p1")
	}
	order := newPendingOrder(t, "p1", uid, job)
	assignConcurrently(t, partnerCtx("p1", uid), order.ID, editors)
}

// assignConcurrently races every editor for one order and expects exactly one
// winner and one assignment notification.
func assignConcurrently(t *testing.T, ctx context.Context, orderId string, editors []string) {
	t.Helper()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0
	for _, e := range editors {
		wg.Add(1)
		go func(editorId string) {
			defer wg.Done()
			_, err := AssignOrderToEditor(ctx, orderId, editorId)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if isStatus(err, http.StatusConflict) {
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(e)
	}
	wg.Wait()
	if wins != 1 || conflicts != len(editors)-1 {
		t.Fatalf("expected 1 win and %d conflicts, got %d/%d", len(editors)-1, wins, conflicts)
	}
	if n := countRows(t, &Notification{}, "order_id = ? AND type = ?", orderId, NotificationTypeOrderAssigned); n != 1 {
		t.Fatalf("expected a single assignment notification, got %d", n)
	}
}

func TestAssignOrderToEditor_PhotographerForbidden(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	order := newPendingOrder(t, "p1", uid, job)

	_, err := AssignOrderToEditor(photographerCtx("p1", "ph1"), order.ID, "e1")
	expectStatus(t, err, http.StatusForbidden)
}

func TestReassignOrder(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	seedEditor(t, "e2", "p1")
	order := newPendingOrder(t, "p1", uid, job)
	ctx := partnerCtx("p1", uid)
	if _, err := AssignOrderToEditor(ctx, order.ID, "e1"); err != nil {
		t.Fatalf("AssignOrderToEditor: %v", err)
	}

	moved, err := ReassignOrder(ctx, order.ID, "e2")
	if err != nil {
		t.Fatalf("ReassignOrder: %v", err)
	}
	if moved.AssigneeId() != "e2" || moved.Status != OrderStatusProcessing {
		t.Fatalf("unexpected order: %+v", moved)
	}

	if _, err := CancelOrder(ctx, order.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	_, err = ReassignOrder(ctx, order.ID, "e1")
	expectStatus(t, err, http.StatusConflict)
}

func TestCandidateEditors_FallsBackToAllPartnered(t *testing.T) {
	setupTestDB(t)
	seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	seedEditor(t, "e2", "p1")
	mustCreate(t, &Partnership{ID: newId(), PartnerId: "p1", EditorId: "e-ended", IsActive: false})

	ids, err := CandidateEditors(partnerCtx("p1", "owner-p1"), "p1", []string{"nobody-offers-this"})
	if err != nil {
		t.Fatalf("CandidateEditors: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both active editors, got %v", ids)
	}
}
