package xerosync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/photoflow/studio_backend/models"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

func TestBuildInvoice_ServiceLines(t *testing.T) {
	completed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	order := &models.Order{
		OrderNumber: "PF00007",
		CompletedAt: &completed,
		Services: []models.OrderService{
			{ServiceId: "s1", Quantity: 2},
			{ServiceId: "missing", Quantity: 1},
		},
	}
	products := map[string]models.Product{
		"s1": {ID: "s1", Name: "HDR Editing", BasePrice: decimal.RequireFromString("12.505")},
	}
	inv := BuildInvoice(order, nil, &models.Customer{Name: "Acme", Email: "a@acme.test"}, products)

	if inv.Type != "ACCREC" || inv.Status != "DRAFT" || inv.Reference != "PF00007" || inv.Date != "2026-05-01" {
		t.Fatalf("unexpected header: %+v", inv)
	}
	if len(inv.LineItems) != 1 {
		t.Fatalf("expected 1 line, got %d", len(inv.LineItems))
	}
	line := inv.LineItems[0]
	if line.Description != "HDR Editing" || line.Quantity != 2 || line.UnitAmount != 12.51 {
		t.Fatalf("unexpected line: %+v", line)
	}
}

func TestBuildInvoice_FallsBackToEstimate(t *testing.T) {
	order := &models.Order{OrderNumber: "PF00008", EstimatedTotal: decimal.NewFromInt(250)}
	inv := BuildInvoice(order, &models.Job{Address: "9 Bay St"}, nil, nil)
	if inv.Contact.Name == "" || len(inv.LineItems) != 1 || inv.LineItems[0].UnitAmount != 250 {
		t.Fatalf("unexpected invoice: %+v", inv)
	}
	if inv.LineItems[0].Description != "Order PF00008 - 9 Bay St" {
		t.Fatalf("unexpected description: %s", inv.LineItems[0].Description)
	}
}

func TestCreateDraftInvoice(t *testing.T) {
	var gotTenant, gotAuth string
	var got invoicesEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api.xro/2.0/Invoices" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotTenant = r.Header.Get("Xero-tenant-id")
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Invoices":[{"InvoiceID":"inv-123","Type":"ACCREC","Status":"DRAFT"}]}`))
	}))
	defer srv.Close()
	t.Setenv("XERO_API_BASE_URL", srv.URL)

	tenant := "tenant-1"
	conn := &models.IntegrationConnection{AccessToken: "access", ExternalTenantId: &tenant}
	inv := Invoice{Type: "ACCREC", Status: "DRAFT", Reference: "PF00009", LineItems: []LineItem{{Description: "x", Quantity: 1, UnitAmount: 10}}}

	id, err := CreateDraftInvoice(context.Background(), &oauth2.Config{Endpoint: Endpoint}, conn, inv)
	if err != nil {
		t.Fatalf("CreateDraftInvoice: %v", err)
	}
	if id != "inv-123" {
		t.Fatalf("expected inv-123, got %s", id)
	}
	if gotTenant != "tenant-1" || gotAuth != "Bearer access" {
		t.Fatalf("unexpected headers tenant=%q auth=%q", gotTenant, gotAuth)
	}
	if len(got.Invoices) != 1 || got.Invoices[0].Reference != "PF00009" {
		t.Fatalf("unexpected request body: %+v", got)
	}
}

func TestCreateDraftInvoice_NoTenant(t *testing.T) {
	_, err := CreateDraftInvoice(context.Background(), &oauth2.Config{}, &models.IntegrationConnection{}, Invoice{})
	if err != ErrNoTenant {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}
}
