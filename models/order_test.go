package models

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSubmitOrder_AllocatesNumberAndNotifiesEditors(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	seedEditor(t, "e2", "p1")

	order, created, err := SubmitOrder(partnerCtx("p1", uid), &NewOrder{JobId: job.JobId})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if !created || order.OrderNumber != FormatOrderNumber(1) {
		t.Fatalf("unexpected order: created=%v number=%s", created, order.OrderNumber)
	}
	if order.Status != OrderStatusPending || order.JobId != job.ID {
		t.Fatalf("unexpected order: %+v", order)
	}
	// No services requested: every partnered editor hears about it.
	if n := countRows(t, &Notification{}, "order_id = ? AND type = ?", order.ID, NotificationTypeOrderCreated); n != 2 {
		t.Fatalf("expected 2 notifications, got %d", n)
	}
	if n := countRows(t, &OutboxEvent{}, "event_type = ?", EventOrderCreated); n != 1 {
		t.Fatalf("expected 1 outbox event, got %d", n)
	}
	if n := countRows(t, &Activity{}, "order_id = ? AND action = ?", order.ID, "order_created"); n != 1 {
		t.Fatalf("expected 1 activity, got %d", n)
	}
}

func TestSubmitOrder_NotifiesOnlyEditorsOfferingTheService(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedProduct(t, "p1", "s1", "HDR Editing")
	seedProduct(t, "p1", "s2", "Virtual Staging")
	seedEditor(t, "e1", "p1")
	seedEditor(t, "e2", "p1")
	mustCreate(t, &EditorService{EditorId: "e1", ServiceId: "s1"})
	mustCreate(t, &EditorService{EditorId: "e2", ServiceId: "s2"})

	order, _, err := SubmitOrder(partnerCtx("p1", uid), &NewOrder{
		JobId:    job.ID,
		Services: []NewOrderService{{ServiceId: "s1", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if n := countRows(t, &Notification{}, "order_id = ? AND recipient_id = ?", order.ID, "e1"); n != 1 {
		t.Fatalf("expected e1 to be notified, got %d", n)
	}
	if n := countRows(t, &Notification{}, "order_id = ? AND recipient_id = ?", order.ID, "e2"); n != 0 {
		t.Fatalf("expected e2 not to be notified, got %d", n)
	}
	if len(order.Services) != 1 || order.Services[0].Quantity != 2 {
		t.Fatalf("unexpected services: %+v", order.Services)
	}

	candidates, err := GetCandidatesForOrder(partnerCtx("p1", uid), order.ID)
	if err != nil {
		t.Fatalf("GetCandidatesForOrder: %v", err)
	}
	if len(candidates) != 2 || candidates[0].EditorId != "e1" || !candidates[0].OffersServices || candidates[1].OffersServices {
		t.Fatalf("unexpected candidates: %+v %+v", candidates[0], candidates[1])
	}
}

func TestSubmitOrder_ReservedNumberIsIdempotent(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	ctx := partnerCtx("p1", uid)

	res, err := ReserveOrderNumber(ctx, job.ID)
	if err != nil {
		t.Fatalf("ReserveOrderNumber: %v", err)
	}
	first, created, err := SubmitOrder(ctx, &NewOrder{JobId: job.ID, OrderNumber: res.OrderNumber})
	if err != nil || !created {
		t.Fatalf("first submit: created=%v err=%v", created, err)
	}
	second, created, err := SubmitOrder(ctx, &NewOrder{JobId: job.ID, OrderNumber: res.OrderNumber})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected the existing order back, got created=%v id=%s", created, second.ID)
	}
	if n := countRows(t, &Order{}, "partner_id = ?", "p1"); n != 1 {
		t.Fatalf("expected exactly one order, got %d", n)
	}
	reservation, err := GetReservation(ctx, res.OrderNumber)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if reservation.Status != ReservationStatusConfirmed {
		t.Fatalf("expected reservation confirmed, got %s", reservation.Status)
	}
}

func TestSubmitOrder_ReplayChecksCallerAndJob(t *testing.T) {
	setupTestDB(t)
	uid, jobA := seedTenant(t, "p1")
	jobB := &Job{ID: newId(), JobId: "J-p1-b", PartnerId: "p1", Address: "9 Wharf Rd", Status: JobStatusBooked, CreatedBy: uid}
	mustCreate(t, jobB)
	ctx := partnerCtx("p1", uid)

	res, err := ReserveOrderNumber(ctx, jobA.ID)
	if err != nil {
		t.Fatalf("ReserveOrderNumber: %v", err)
	}
	if _, created, err := SubmitOrder(ctx, &NewOrder{JobId: jobA.ID, OrderNumber: res.OrderNumber}); err != nil || !created {
		t.Fatalf("first submit: created=%v err=%v", created, err)
	}

	_, _, err = SubmitOrder(partnerCtx("p1", "coworker"), &NewOrder{JobId: jobB.ID, OrderNumber: res.OrderNumber})
	expectStatus(t, err, http.StatusBadRequest)

	_, _, err = SubmitOrder(partnerCtx("p1", "coworker"), &NewOrder{JobId: jobA.ID, OrderNumber: res.OrderNumber})
	expectStatus(t, err, http.StatusBadRequest)

	_, _, err = SubmitOrder(ctx, &NewOrder{JobId: jobB.ID, OrderNumber: res.OrderNumber})
	expectStatus(t, err, http.StatusBadRequest)

	if n := countRows(t, &Order{}, "partner_id = ?", "p1"); n != 1 {
		t.Fatalf("expected exactly one order, got %d", n)
	}
}

func TestSubmitOrder_RejectsForeignReservation(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	mustCreate(t, &OrderReservation{OrderNumber: "X1", PartnerId: "p1", UserId: "someone-else", JobId: job.ID, Status: ReservationStatusReserved, ExpiresAt: future()})

	_, _, err := SubmitOrder(partnerCtx("p1", uid), &NewOrder{JobId: job.ID, OrderNumber: "X1"})
	expectStatus(t, err, http.StatusBadRequest)

	_, _, err = SubmitOrder(partnerCtx("p1", uid), &NewOrder{JobId: job.ID, OrderNumber: "never-reserved"})
	expectStatus(t, err, http.StatusBadRequest)
}

func TestSubmitOrder_Validation(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedTenant(t, "p2")
	seedProduct(t, "p2", "foreign", "Other tenant service")
	ctx := partnerCtx("p1", uid)

	_, _, err := SubmitOrder(ctx, &NewOrder{JobId: job.ID, Services: []NewOrderService{{ServiceId: "foreign"}}})
	expectStatus(t, err, http.StatusBadRequest)

	_, _, err = SubmitOrder(ctx, &NewOrder{JobId: job.ID, Files: []NewOrderFile{{FileName: "a.jpg", ObjectKey: "p2/jobs/x/a.jpg"}}})
	expectStatus(t, err, http.StatusBadRequest)

	_, _, err = SubmitOrder(ctx, &NewOrder{JobId: job.ID, AssignedTo: strPtr("stranger")})
	expectStatus(t, err, http.StatusForbidden)
}

func TestSubmitOrder_WithAssigneeStartsProcessing(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	seedEditor(t, "e1", "p1")
	seedEditor(t, "e2", "p1")

	order, _, err := SubmitOrder(partnerCtx("p1", uid), &NewOrder{JobId: job.ID, AssignedTo: strPtr("e1")})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if order.Status != OrderStatusProcessing || order.AssigneeId() != "e1" {
		t.Fatalf("unexpected order: status=%s assignee=%s", order.Status, order.AssigneeId())
	}
	if n := countRows(t, &Notification{}, "order_id = ? AND recipient_id = ?", order.ID, "e2"); n != 0 {
		t.Fatalf("only the assignee should be notified")
	}
}

func TestGetOrder_OtherTenantForbidden(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	uid2, _ := seedTenant(t, "p2")
	order, _, err := SubmitOrder(partnerCtx("p1", uid), &NewOrder{JobId: job.ID})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	_, err = GetOrder(partnerCtx("p2", uid2), order.ID)
	expectStatus(t, err, http.StatusForbidden)

	orders, _, err := GetOrders(partnerCtx("p2", uid2), OrderFilter{})
	if err != nil {
		t.Fatalf("GetOrders: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders for p2, got %d", len(orders))
	}
}

func TestUpdateOrder_IgnoresPartnerIdInBody(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	ctx := partnerCtx("p1", uid)
	order, _, err := SubmitOrder(ctx, &NewOrder{JobId: job.ID})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	var input UpdateOrderInput
	if err := json.Unmarshal([]byte(`{"partnerId":"p2","estimatedTotal":"125.50"}`), &input); err != nil {
		t.Fatalf("decode: %v", err)
	}
	updated, _, err := UpdateOrder(ctx, order.ID, &input)
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.PartnerId != "p1" {
		t.Fatalf("partnerId changed to %s", updated.PartnerId)
	}
	if !updated.EstimatedTotal.Equal(decimal.RequireFromString("125.5")) {
		t.Fatalf("unexpected total %s", updated.EstimatedTotal)
	}
}

func TestUpdateOrder_StatusFollowsTransitions(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	ctx := partnerCtx("p1", uid)
	order, _, err := SubmitOrder(ctx, &NewOrder{JobId: job.ID})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	processing := OrderStatusProcessing
	_, _, err = UpdateOrder(ctx, order.ID, &UpdateOrderInput{Status: &processing})
	expectStatus(t, err, http.StatusConflict)

	humanCheck := OrderStatusHumanCheck
	_, _, err = UpdateOrder(ctx, order.ID, &UpdateOrderInput{Status: &humanCheck})
	expectStatus(t, err, http.StatusConflict)

	_, _, err = UpdateOrder(photographerCtx("p1", "ph1"), order.ID, &UpdateOrderInput{Status: &processing})
	expectStatus(t, err, http.StatusForbidden)
}

func TestUpdateOrder_RejectedTransitionWritesNothing(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	ctx := partnerCtx("p1", uid)
	order, _, err := SubmitOrder(ctx, &NewOrder{JobId: job.ID})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	before := reloadOrder(t, order.ID)

	rounds := before.MaxRevisionRounds + 3
	total := decimal.NewFromInt(900)
	completed := OrderStatusCompleted
	_, _, err = UpdateOrder(ctx, order.ID, &UpdateOrderInput{MaxRevisionRounds: &rounds, EstimatedTotal: &total, Status: &completed})
	expectStatus(t, err, http.StatusConflict)

	inRevision := OrderStatusInRevision
	_, _, err = UpdateOrder(ctx, order.ID, &UpdateOrderInput{MaxRevisionRounds: &rounds, Status: &inRevision, RevisionNotes: strPtr("  ")})
	expectStatus(t, err, http.StatusBadRequest)

	after := reloadOrder(t, order.ID)
	if after.MaxRevisionRounds != before.MaxRevisionRounds || !after.EstimatedTotal.Equal(before.EstimatedTotal) {
		t.Fatalf("expected no field changes, got rounds=%d total=%s", after.MaxRevisionRounds, after.EstimatedTotal)
	}
	if n := countRows(t, &Activity{}, "order_id = ? AND action = ?", order.ID, "order_status_changed"); n != 0 {
		t.Fatalf("expected no status activity, got %d", n)
	}

	cancelled := OrderStatusCancelled
	updated, _, err := UpdateOrder(ctx, order.ID, &UpdateOrderInput{MaxRevisionRounds: &rounds, Status: &cancelled})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if updated.Status != OrderStatusCancelled || updated.MaxRevisionRounds != rounds {
		t.Fatalf("expected cancelled with %d rounds, got %s/%d", rounds, updated.Status, updated.MaxRevisionRounds)
	}
}

func TestSubmitOrder_KeepsZeroRevisionRounds(t *testing.T) {
	setupTestDB(t)
	uid, job := seedTenant(t, "p1")
	zero := 0
	order, _, err := SubmitOrder(partnerCtx("p1", uid), &NewOrder{JobId: job.ID, MaxRevisionRounds: &zero})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if got := reloadOrder(t, order.ID).MaxRevisionRounds; got != 0 {
		t.Fatalf("expected 0 revision rounds, got %d", got)
	}
}

func strPtr(s string) *string { return &s }
