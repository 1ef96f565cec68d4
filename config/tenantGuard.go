package config

import (
	"context"
	"strings"

	"github.com/photoflow/studio_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const partnerColumn = "partner_id"

// TenantGuardPlugin adds `partner_id = <caller's partner>` to reads, updates
// and deletes on partner-owned tables. Models still compare the loaded row's
// PartnerId with the caller (404 vs 403); the guard is the second fence.
//
// Two callers run unscoped:
//   - Editors carry no partnerId. They may work for several partners, so the
//     models check HasActivePartnership and then query with SkipTenantScope.
//   - Background work (outbox dispatch, retention, OAuth callbacks) sets
//     SkipTenantScope and filters by partner_id itself.
//
// Raw SQL is never rewritten; it must filter partner_id by hand.
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		name     string
		register func() error
	}{
		{"query", func() error { return cb.Query().Before("gorm:query").Register("tenant_guard:query", scopeToPartner) }},
		{"row", func() error { return cb.Row().Before("gorm:row").Register("tenant_guard:row", scopeToPartner) }},
		{"update", func() error { return cb.Update().Before("gorm:update").Register("tenant_guard:update", scopeToPartner) }},
		{"delete", func() error { return cb.Delete().Before("gorm:delete").Register("tenant_guard:delete", scopeToPartner) }},
	}
	for _, s := range steps {
		if err := s.register(); err != nil {
			return err
		}
	}
	return nil
}

func scopeToPartner(db *gorm.DB) {
	stmt := db.Statement
	if stmt == nil || stmt.Context == nil || stmt.Schema == nil {
		return
	}
	partnerId, scoped := tenantScope(stmt.Context)
	if !scoped {
		return
	}
	if stmt.Schema.LookUpField(partnerColumn) == nil {
		return
	}
	if where, ok := stmt.Clauses["WHERE"].Expression.(clause.Where); ok && filtersPartner(where.Exprs...) {
		return
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: stmt.Table, Name: partnerColumn}, Value: partnerId},
	}})
}

// tenantScope reports the partner a statement must be limited to. Callers
// without a partner (editors, system jobs) and explicit bypasses are unscoped.
func tenantScope(ctx context.Context) (string, bool) {
	if skip, _ := ctx.Value(appctx.ContextKeySkipTenantScope).(bool); skip {
		return "", false
	}
	partnerId, _ := ctx.Value(appctx.ContextKeyPartnerId).(string)
	return partnerId, partnerId != ""
}

// filtersPartner reports whether the existing conditions already name
// partner_id, so an explicit filter is not duplicated.
func filtersPartner(exprs ...clause.Expression) bool {
	for _, e := range exprs {
		var col any
		switch v := e.(type) {
		case clause.Eq:
			col = v.Column
		case clause.Neq:
			col = v.Column
		case clause.Gt:
			col = v.Column
		case clause.Gte:
			col = v.Column
		case clause.Lt:
			col = v.Column
		case clause.Lte:
			col = v.Column
		case clause.IN:
			col = v.Column
		case clause.AndConditions:
			if filtersPartner(v.Exprs...) {
				return true
			}
			continue
		case clause.OrConditions:
			if filtersPartner(v.Exprs...) {
				return true
			}
			continue
		case clause.Expr:
			if strings.Contains(strings.ToLower(v.SQL), partnerColumn) {
				return true
			}
			continue
		case clause.NamedExpr:
			if strings.Contains(strings.ToLower(v.SQL), partnerColumn) {
				return true
			}
			continue
		default:
			continue
		}
		if isPartnerColumn(col) {
			return true
		}
	}
	return false
}

func isPartnerColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, partnerColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, partnerColumn)
	}
	return false
}
