package models

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/photoflow/studio_backend/utils"
)

func signedInCtx(uid, email string) context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), uid)
	return utils.SetUserEmailInContext(ctx, email)
}

func TestTeamInvite_AcceptOnce(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	ctx := partnerCtx("p1", uid)

	created, err := CreateTeamInvite(ctx, &NewTeamInvite{Email: "Shooter@Example.test", Role: UserRolePhotographer})
	if err != nil {
		t.Fatalf("CreateTeamInvite: %v", err)
	}
	if created.Email != "shooter@example.test" || created.InviteToken == "" {
		t.Fatalf("unexpected invite: %+v", created)
	}
	if n := countRows(t, &OutboxEvent{}, "event_type = ?", EventTeamInvite); n != 1 {
		t.Fatalf("expected invite email event, got %d", n)
	}

	_, err = CreateTeamInvite(ctx, &NewTeamInvite{Email: "shooter@example.test", Role: UserRolePhotographer})
	expectStatus(t, err, http.StatusConflict)

	_, err = AcceptTeamInvite(signedInCtx("u-wrong", "someone@example.test"), created.InviteToken)
	expectStatus(t, err, http.StatusForbidden)

	user, err := AcceptTeamInvite(signedInCtx("u-shooter", "shooter@example.test"), created.InviteToken)
	if err != nil {
		t.Fatalf("AcceptTeamInvite: %v", err)
	}
	if user.Role != UserRolePhotographer || user.GetPartnerId() != "p1" {
		t.Fatalf("unexpected user: %+v", user)
	}

	_, err = AcceptTeamInvite(signedInCtx("u-other", "shooter@example.test"), created.InviteToken)
	expectStatus(t, err, http.StatusBadRequest)
}

func TestTeamInvite_RejectsEditorRole(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	_, err := CreateTeamInvite(partnerCtx("p1", uid), &NewTeamInvite{Email: "ed@example.test", Role: UserRoleEditor})
	expectStatus(t, err, http.StatusBadRequest)
}

func TestPartnershipInvite_AcceptReactivates(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	mustCreate(t, &User{ID: "e1", Email: "e1@example.test", Role: UserRoleEditor, Status: UserStatusActive})
	mustCreate(t, &Partnership{ID: "ended-row", PartnerId: "p1", EditorId: "e1", IsActive: false})

	invite, err := CreatePartnershipInvite(partnerCtx("p1", uid), &NewPartnershipInvite{EditorEmail: "e1@example.test"})
	if err != nil {
		t.Fatalf("CreatePartnershipInvite: %v", err)
	}
	p, err := AcceptPartnershipInvite(editorCtx("e1"), invite.InviteToken)
	if err != nil {
		t.Fatalf("AcceptPartnershipInvite: %v", err)
	}
	if !p.IsActive || p.PartnerId != "p1" || p.ID != "ended-row" {
		t.Fatalf("unexpected partnership: %+v", p)
	}
	if n := countRows(t, &Partnership{}, "partner_id = ? AND editor_id = ?", "p1", "e1"); n != 1 {
		t.Fatalf("expected a single partnership row, got %d", n)
	}
	if n := countRows(t, &Partnership{}, "id = ? AND is_active = ?", "ended-row", true); n != 1 {
		t.Fatal("ended partnership was not reactivated")
	}
	if n := countRows(t, &PartnershipInvite{}, "id = ? AND status = ?", invite.ID, InviteStatusAccepted); n != 1 {
		t.Fatal("invite was not marked accepted")
	}

	_, err = CreatePartnershipInvite(partnerCtx("p1", uid), &NewPartnershipInvite{EditorEmail: "e1@example.test"})
	expectStatus(t, err, http.StatusConflict)
}

func TestPartnershipInvite_AcceptCreatesNewPartnership(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	mustCreate(t, &User{ID: "e2", Email: "e2@example.test", Role: UserRoleEditor, Status: UserStatusActive})

	invite, err := CreatePartnershipInvite(partnerCtx("p1", uid), &NewPartnershipInvite{EditorEmail: "e2@example.test"})
	if err != nil {
		t.Fatalf("CreatePartnershipInvite: %v", err)
	}
	p, err := AcceptPartnershipInvite(editorCtx("e2"), invite.InviteToken)
	if err != nil {
		t.Fatalf("AcceptPartnershipInvite: %v", err)
	}
	if p.ID == "" || !p.IsActive || p.EditorId != "e2" {
		t.Fatalf("unexpected partnership: %+v", p)
	}
	if n := countRows(t, &Partnership{}, "id = ? AND is_active = ?", p.ID, true); n != 1 {
		t.Fatal("partnership row not stored")
	}
}

func TestExpireStaleInvites(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	past := time.Now().Add(-time.Hour)
	mustCreate(t, &PendingInvite{ID: newId(), PartnerId: "p1", Email: "a@example.test", Role: UserRoleAdmin, InvitedBy: uid, Status: InviteStatusPending, InviteToken: "t1", ExpiresAt: past})
	mustCreate(t, &PartnershipInvite{ID: newId(), PartnerId: "p1", EditorEmail: "b@example.test", InvitedBy: uid, Status: InviteStatusPending, InviteToken: "t2", ExpiresAt: past})
	mustCreate(t, &PendingInvite{ID: newId(), PartnerId: "p1", Email: "c@example.test", Role: UserRoleAdmin, InvitedBy: uid, Status: InviteStatusPending, InviteToken: "t3", ExpiresAt: future()})

	n, err := ExpireStaleInvites(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("ExpireStaleInvites: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}
}
