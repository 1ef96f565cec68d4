package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/testutil"
	"github.com/photoflow/studio_backend/utils"
)

type staticVerifier map[string]Identity

func (v staticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &id, nil
}

type seen struct {
	uid, partnerId, role, email, correlationId string
}

func newTestRouter(t *testing.T, extra ...gin.HandlerFunc) (*gin.Engine, *seen) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.OpenDB(t, models.AllModels()...)
	pid := "p1"
	users := []*models.User{
		{ID: "owner", Email: "owner@example.test", Role: models.UserRolePartner, PartnerId: &pid, Status: models.UserStatusActive},
		{ID: "gone", Email: "gone@example.test", Role: models.UserRolePhotographer, PartnerId: &pid, Status: models.UserStatusSuspended},
	}
	for _, u := range users {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	verifier := staticVerifier{
		"t-owner": {Uid: "owner", Email: "Owner@Example.test"},
		"t-new":   {Uid: "newcomer", Email: "new@example.test"},
		"t-gone":  {Uid: "gone", Email: "gone@example.test"},
	}
	got := &seen{}
	r := gin.New()
	r.Use(SessionMiddleware(), AuthMiddleware(verifier))
	handlers := append(extra, func(c *gin.Context) {
		ctx := c.Request.Context()
		got.uid, _ = utils.GetUserIdFromContext(ctx)
		got.partnerId, _ = utils.GetPartnerIdFromContext(ctx)
		got.role, _ = utils.GetUserRoleFromContext(ctx)
		got.email, _ = utils.GetUserEmailFromContext(ctx)
		got.correlationId, _ = utils.GetCorrelationIdFromContext(ctx)
		c.Status(http.StatusNoContent)
	})
	r.GET("/probe", handlers...)
	return r, got
}

func probe(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_LoadsRegisteredUser(t *testing.T) {
	r, got := newTestRouter(t)
	w := probe(r, "t-owner")
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	if got.uid != "owner" || got.partnerId != "p1" || got.role != string(models.UserRolePartner) {
		t.Fatalf("unexpected context: %+v", got)
	}
	if got.email != "owner@example.test" {
		t.Fatalf("email not normalized: %q", got.email)
	}
	if got.correlationId == "" || w.Header().Get("x-correlation-id") != got.correlationId {
		t.Fatalf("correlation id not propagated")
	}
}

func TestAuthMiddleware_UnregisteredCaller(t *testing.T) {
	r, got := newTestRouter(t)
	if w := probe(r, "t-new"); w.Code != http.StatusNoContent {
		t.Fatalf("unexpected status %d", w.Code)
	}
	if got.uid != "newcomer" || got.role != "" || got.partnerId != "" {
		t.Fatalf("unexpected context: %+v", got)
	}

	t.Run("registered routes", func(t *testing.T) {
		r, _ := newTestRouter(t, RequireUser())
		if w := probe(r, "t-new"); w.Code != http.StatusForbidden {
			t.Fatalf("expected 403 for unregistered caller, got %d", w.Code)
		}
	})
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	r, _ := newTestRouter(t, RequireIdentity())
	cases := map[string]int{
		"":       http.StatusUnauthorized,
		"forged": http.StatusUnauthorized,
		"t-gone": http.StatusForbidden,
	}
	for token, want := range cases {
		if w := probe(r, token); w.Code != want {
			t.Fatalf("token %q: expected %d, got %d", token, want, w.Code)
		}
	}
}

func TestRequireRoles(t *testing.T) {
	r, _ := newTestRouter(t, RequireUser(), RequireRoles(models.UserRoleEditor))
	if w := probe(r, "t-owner"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for partner on editor route, got %d", w.Code)
	}
}
