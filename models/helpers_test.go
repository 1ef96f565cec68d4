package models

import (
	"context"
	"testing"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/testutil"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	testutil.OpenDB(t, AllModels()...)
}

func partnerCtx(partnerId, uid string) context.Context {
	ctx := utils.SetPartnerIdInContext(context.Background(), partnerId)
	ctx = utils.SetUserIdInContext(ctx, uid)
	return utils.SetUserRoleInContext(ctx, string(UserRolePartner))
}

func photographerCtx(partnerId, uid string) context.Context {
	ctx := partnerCtx(partnerId, uid)
	return utils.SetUserRoleInContext(ctx, string(UserRolePhotographer))
}

func editorCtx(uid string) context.Context {
	ctx := utils.SetUserIdInContext(context.Background(), uid)
	return utils.SetUserRoleInContext(ctx, string(UserRoleEditor))
}

func mustCreate(t *testing.T, v interface{}) {
	t.Helper()
	if err := config.GetDB().Create(v).Error; err != nil {
		t.Fatalf("seed %T: %v", v, err)
	}
}

// seedTenant creates a partner user and one job for partnerId.
func seedTenant(t *testing.T, partnerId string) (string, *Job) {
	t.Helper()
	uid := "owner-" + partnerId
	mustCreate(t, &User{ID: uid, Email: uid + "@example.test", Name: "Owner " + partnerId, Role: UserRolePartner, PartnerId: &partnerId, Status: UserStatusActive})
	job := &Job{ID: newId(), JobId: "J-" + partnerId, PartnerId: partnerId, Address: "1 Harbour St", Status: JobStatusBooked, CreatedBy: uid}
	mustCreate(t, job)
	return uid, job
}

// seedEditor creates an editor partnered with each of partnerIds.
func seedEditor(t *testing.T, uid string, partnerIds ...string) {
	t.Helper()
	mustCreate(t, &User{ID: uid, Email: uid + "@example.test", Name: "Editor " + uid, Role: UserRoleEditor, Status: UserStatusActive})
	for _, p := range partnerIds {
		mustCreate(t, &Partnership{ID: newId(), PartnerId: p, EditorId: uid, IsActive: true})
	}
}

func seedProduct(t *testing.T, partnerId, id, name string) {
	t.Helper()
	mustCreate(t, &Product{ID: id, PartnerId: partnerId, Name: name, IsActive: true})
}

func expectStatus(t *testing.T, err error, status int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	if got := utils.AsAppError(err).Status; got != status {
		t.Fatalf("expected status %d, got %d (%v)", status, got, err)
	}
}

func countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func reloadOrder(t *testing.T, id string) *Order {
	t.Helper()
	var o Order
	if err := config.GetDB().Where("id = ?", id).First(&o).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return &o
}

func future() time.Time { return time.Now().Add(time.Hour) }

func isStatus(err error, status int) bool {
	return err != nil && utils.AsAppError(err).Status == status
}

func testDB() *gorm.DB { return config.GetDB() }
