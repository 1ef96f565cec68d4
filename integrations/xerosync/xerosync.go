package xerosync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

const httpTimeout = 30 * time.Second

var (
	ErrNotConfigured = errors.New("xerosync: XERO_CLIENT_ID/XERO_CLIENT_SECRET not set")
	ErrNoTenant      = errors.New("xerosync: no Xero organisation authorised")
)

var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://login.xero.com/identity/connect/authorize",
	TokenURL: "https://identity.xero.com/connect/token",
}

func apiBaseURL() string {
	if v := strings.TrimRight(strings.TrimSpace(os.Getenv("XERO_API_BASE_URL")), "/"); v != "" {
		return v
	}
	return "https://api.xero.com"
}

func salesAccountCode() string {
	if v := strings.TrimSpace(os.Getenv("XERO_SALES_ACCOUNT_CODE")); v != "" {
		return v
	}
	return "200"
}

func OAuthConfig() (*oauth2.Config, error) {
	clientID := strings.TrimSpace(os.Getenv("XERO_CLIENT_ID"))
	secret := strings.TrimSpace(os.Getenv("XERO_CLIENT_SECRET"))
	if clientID == "" || secret == "" {
		return nil, ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		Endpoint:     Endpoint,
		RedirectURL:  config.BaseURL() + "/api/integrations/" + string(models.IntegrationProviderXero) + "/callback",
		Scopes:       []string{"openid", "profile", "email", "offline_access", "accounting.transactions", "accounting.contacts"},
	}, nil
}

func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state)
}

func withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: httpTimeout})
}

type xeroConnection struct {
	TenantId   string `json:"tenantId"`
	TenantType string `json:"tenantType"`
	TenantName string `json:"tenantName"`
}

// Exchange trades the code for tokens, picks the first authorised
// organisation and stores the connection.
func Exchange(ctx context.Context, cfg *oauth2.Config, state *models.OAuthState, code string) (*models.IntegrationConnection, error) {
	ctx = withHTTPClient(ctx)
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	client := cfg.Client(ctx, tok)
	var conns []xeroConnection
	if err := doJSON(ctx, client, http.MethodGet, apiBaseURL()+"/connections", "", nil, &conns); err != nil {
		return nil, err
	}
	tenantId := ""
	for _, c := range conns {
		if c.TenantType == "" || c.TenantType == "ORGANISATION" {
			tenantId = c.TenantId
			break
		}
	}
	if tenantId == "" {
		return nil, ErrNoTenant
	}
	conn := &models.IntegrationConnection{
		PartnerId:        state.PartnerId,
		Provider:         models.IntegrationProviderXero,
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		ExternalTenantId: &tenantId,
		ConnectedBy:      state.UserId,
	}
	if !tok.Expiry.IsZero() {
		conn.TokenExpiry = &tok.Expiry
	}
	if err := models.SaveIntegrationConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

type Contact struct {
	Name         string `json:"Name"`
	EmailAddress string `json:"EmailAddress,omitempty"`
}

type LineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode"`
}

type Invoice struct {
	InvoiceID string     `json:"InvoiceID,omitempty"`
	Type      string     `json:"Type"`
	Status    string     `json:"Status"`
	Contact   Contact    `json:"Contact"`
	Reference string     `json:"Reference"`
	Date      string     `json:"Date"`
	LineItems []LineItem `json:"LineItems"`
}

type invoicesEnvelope struct {
	Invoices []Invoice `json:"Invoices"`
}

// BuildInvoice maps a completed order to a draft sales invoice. Lines come
// from the order's services at catalog price; an order without services is
// billed as one line at its estimated total.
func BuildInvoice(order *models.Order, job *models.Job, customer *models.Customer, products map[string]models.Product) Invoice {
	contact := Contact{Name: "Walk-in customer"}
	if customer != nil {
		contact = Contact{Name: customer.Name, EmailAddress: customer.Email}
	}
	date := time.Now()
	if order.CompletedAt != nil {
		date = *order.CompletedAt
	}
	inv := Invoice{
		Type:      "ACCREC",
		Status:    "DRAFT",
		Contact:   contact,
		Reference: order.OrderNumber,
		Date:      date.Format("2006-01-02"),
	}
	code := salesAccountCode()
	for _, s := range order.Services {
		p, ok := products[s.ServiceId]
		if !ok {
			continue
		}
		inv.LineItems = append(inv.LineItems, LineItem{
			Description: p.Name,
			Quantity:    float64(s.Quantity),
			UnitAmount:  p.BasePrice.Round(2).InexactFloat64(),
			AccountCode: code,
		})
	}
	if len(inv.LineItems) == 0 {
		desc := "Order " + order.OrderNumber
		if job != nil {
			desc += " - " + job.Address
		}
		inv.LineItems = []LineItem{{
			Description: desc,
			Quantity:    1,
			UnitAmount:  decimal.Max(order.EstimatedTotal, decimal.Zero).Round(2).InexactFloat64(),
			AccountCode: code,
		}}
	}
	return inv
}

// CreateDraftInvoice posts the invoice and returns Xero's InvoiceID.
func CreateDraftInvoice(ctx context.Context, cfg *oauth2.Config, conn *models.IntegrationConnection, inv Invoice) (string, error) {
	if conn.ExternalTenantId == nil || *conn.ExternalTenantId == "" {
		return "", ErrNoTenant
	}
	ctx = withHTTPClient(ctx)
	tok := &oauth2.Token{AccessToken: conn.AccessToken, RefreshToken: conn.RefreshToken, TokenType: "Bearer"}
	if conn.TokenExpiry != nil {
		tok.Expiry = *conn.TokenExpiry
	}
	ts := cfg.TokenSource(ctx, tok)
	client := oauth2.NewClient(ctx, ts)

	var out invoicesEnvelope
	err := doJSON(ctx, client, http.MethodPost, apiBaseURL()+"/api.xro/2.0/Invoices", *conn.ExternalTenantId,
		invoicesEnvelope{Invoices: []Invoice{inv}}, &out)
	if t, terr := ts.Token(); terr == nil && t.AccessToken != conn.AccessToken {
		if uerr := models.UpdateIntegrationTokens(ctx, conn.ID, t.AccessToken, t.RefreshToken, t.Expiry); uerr != nil {
			config.LogError(config.GetLogger(), "xerosync", "CreateDraftInvoice", "persist refreshed token", conn.PartnerId, uerr)
		}
	}
	if err != nil {
		return "", err
	}
	if len(out.Invoices) == 0 || out.Invoices[0].InvoiceID == "" {
		return "", errors.New("xerosync: empty invoice response")
	}
	return out.Invoices[0].InvoiceID, nil
}

func doJSON(ctx context.Context, client *http.Client, method, url, tenantId string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantId != "" {
		req.Header.Set("Xero-tenant-id", tenantId)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("xero %s %s: status %d: %s", method, url, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
