package models

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestOAuthState_SingleUse(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")

	state, err := CreateOAuthState(partnerCtx("p1", uid), IntegrationProviderXero)
	if err != nil {
		t.Fatalf("CreateOAuthState: %v", err)
	}

	// The callback arrives without a session.
	_, err = ConsumeOAuthState(context.Background(), state.State, IntegrationProviderGoogleCalendar)
	expectStatus(t, err, http.StatusBadRequest)

	got, err := ConsumeOAuthState(context.Background(), state.State, IntegrationProviderXero)
	if err != nil {
		t.Fatalf("ConsumeOAuthState: %v", err)
	}
	if got.PartnerId != "p1" || got.UserId != uid {
		t.Fatalf("unexpected state: %+v", got)
	}

	_, err = ConsumeOAuthState(context.Background(), state.State, IntegrationProviderXero)
	expectStatus(t, err, http.StatusBadRequest)
}

func TestOAuthState_Expired(t *testing.T) {
	setupTestDB(t)
	mustCreate(t, &OAuthState{State: "old", PartnerId: "p1", UserId: "u1", Provider: IntegrationProviderXero, ExpiresAt: time.Now().Add(-time.Minute)})

	_, err := ConsumeOAuthState(context.Background(), "old", IntegrationProviderXero)
	expectStatus(t, err, http.StatusBadRequest)
}

func TestCreateOAuthState_RequiresManager(t *testing.T) {
	setupTestDB(t)
	_, err := CreateOAuthState(photographerCtx("p1", "ph1"), IntegrationProviderXero)
	expectStatus(t, err, http.StatusForbidden)

	_, err = CreateOAuthState(partnerCtx("p1", "owner-p1"), IntegrationProvider("dropbox"))
	expectStatus(t, err, http.StatusNotFound)
}

func TestSaveIntegrationConnection_Upserts(t *testing.T) {
	setupTestDB(t)
	uid, _ := seedTenant(t, "p1")
	ctx := partnerCtx("p1", uid)

	first := &IntegrationConnection{PartnerId: "p1", Provider: IntegrationProviderGoogleCalendar, AccessToken: "a1", RefreshToken: "r1", ConnectedBy: uid}
	if err := SaveIntegrationConnection(ctx, first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := &IntegrationConnection{PartnerId: "p1", Provider: IntegrationProviderGoogleCalendar, AccessToken: "a2", RefreshToken: "r2", ConnectedBy: uid}
	if err := SaveIntegrationConnection(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	conns, err := GetIntegrations(ctx)
	if err != nil {
		t.Fatalf("GetIntegrations: %v", err)
	}
	if len(conns) != 1 || conns[0].AccessToken != "a2" {
		t.Fatalf("expected one updated connection, got %+v", conns)
	}
	if !HasIntegration(ctx, "p1", IntegrationProviderGoogleCalendar) || HasIntegration(ctx, "p1", IntegrationProviderXero) {
		t.Fatalf("unexpected HasIntegration results")
	}

	if err := DeleteIntegration(ctx, IntegrationProviderGoogleCalendar); err != nil {
		t.Fatalf("DeleteIntegration: %v", err)
	}
	expectStatus(t, DeleteIntegration(ctx, IntegrationProviderGoogleCalendar), http.StatusNotFound)
}
