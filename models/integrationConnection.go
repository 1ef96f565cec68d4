package models

import (
	"context"
	"errors"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const oauthStateTTL = 10 * time.Minute

// OAuthState ties an OAuth redirect back to the partner that started it.
// Rows are single use.
type OAuthState struct {
	State     string              `gorm:"primaryKey;size:64" json:"state"`
	PartnerId string              `gorm:"size:64;not null" json:"partnerId"`
	UserId    string              `gorm:"size:128;not null" json:"userId"`
	Provider  IntegrationProvider `gorm:"size:32;not null" json:"provider"`
	ExpiresAt time.Time           `gorm:"not null;index" json:"expiresAt"`
	CreatedAt time.Time           `gorm:"autoCreateTime" json:"createdAt"`
}

// IntegrationConnection holds one partner's OAuth tokens for a provider.
type IntegrationConnection struct {
	ID               string              `gorm:"primaryKey;size:36" json:"id"`
	PartnerId        string              `gorm:"size:64;not null;uniqueIndex:idx_integration_partner_provider,priority:1" json:"partnerId"`
	Provider         IntegrationProvider `gorm:"size:32;not null;uniqueIndex:idx_integration_partner_provider,priority:2" json:"provider"`
	AccessToken      string              `gorm:"type:text" json:"-"`
	RefreshToken     string              `gorm:"type:text" json:"-"`
	TokenExpiry      *time.Time          `json:"tokenExpiry"`
	ExternalTenantId *string             `gorm:"size:128" json:"externalTenantId"`
	CalendarId       *string             `gorm:"size:255" json:"calendarId"`
	ConnectedBy      string              `gorm:"size:128" json:"connectedBy"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c IntegrationConnection) GetPartnerId() string {
	return c.PartnerId
}

// CreateOAuthState starts an authorize flow for the caller's tenant.
func CreateOAuthState(ctx context.Context, provider IntegrationProvider) (*OAuthState, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	if !provider.IsValid() {
		return nil, utils.NotFound("unknown integration provider")
	}
	uid, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	token, err := utils.RandomToken(24)
	if err != nil {
		return nil, err
	}
	state := OAuthState{
		State:     token,
		PartnerId: partnerId,
		UserId:    uid,
		Provider:  provider,
		ExpiresAt: time.Now().Add(oauthStateTTL),
	}
	if err := config.GetDB().WithContext(ctx).Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// ConsumeOAuthState validates and deletes a state in one step. Unknown,
// expired and already used states all fail with 400.
func ConsumeOAuthState(ctx context.Context, state string, provider IntegrationProvider) (*OAuthState, error) {
	invalid := utils.BadRequest("invalid or expired oauth state")
	if state == "" {
		return nil, invalid
	}
	db := config.GetDB().WithContext(crossTenant(ctx))
	var row OAuthState
	if err := db.Where("state = ? AND provider = ?", state, provider).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	res := db.Where("state = ? AND expires_at > ?", state, time.Now()).Delete(&OAuthState{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, invalid
	}
	return &row, nil
}

func PurgeExpiredOAuthStates(ctx context.Context, now time.Time) (int64, error) {
	res := config.GetDB().WithContext(crossTenant(ctx)).Where("expires_at <= ?", now).Delete(&OAuthState{})
	return res.RowsAffected, res.Error
}

// SaveIntegrationConnection upserts the tenant's connection for a provider.
func SaveIntegrationConnection(ctx context.Context, conn *IntegrationConnection) error {
	if conn.ID == "" {
		conn.ID = newId()
	}
	return config.GetDB().WithContext(crossTenant(ctx)).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "partner_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_expiry", "external_tenant_id",
			"calendar_id", "connected_by", "updated_at",
		}),
	}).Create(conn).Error
}

func GetIntegrationConnection(ctx context.Context, partnerId string, provider IntegrationProvider) (*IntegrationConnection, error) {
	var conn IntegrationConnection
	err := config.GetDB().WithContext(crossTenant(ctx)).
		Where("partner_id = ? AND provider = ?", partnerId, provider).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound(string(provider) + " is not connected")
		}
		return nil, err
	}
	return &conn, nil
}

// HasIntegration treats lookup errors as not connected.
func HasIntegration(ctx context.Context, partnerId string, provider IntegrationProvider) bool {
	_, err := GetIntegrationConnection(ctx, partnerId, provider)
	return err == nil
}

// UpdateIntegrationTokens persists refreshed tokens.
func UpdateIntegrationTokens(ctx context.Context, id, accessToken, refreshToken string, expiry time.Time) error {
	updates := map[string]interface{}{"access_token": accessToken, "token_expiry": expiry}
	if refreshToken != "" {
		updates["refresh_token"] = refreshToken
	}
	return config.GetDB().WithContext(crossTenant(ctx)).Model(&IntegrationConnection{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func GetIntegrations(ctx context.Context) ([]*IntegrationConnection, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	var conns []*IntegrationConnection
	err = config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId).Order("provider").Find(&conns).Error
	return conns, err
}

func DeleteIntegration(ctx context.Context, provider IntegrationProvider) error {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return err
	}
	res := config.GetDB().WithContext(ctx).
		Where("partner_id = ? AND provider = ?", partnerId, provider).
		Delete(&IntegrationConnection{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.NotFound(string(provider) + " is not connected")
	}
	return RecordActivity(ctx, ActivityInput{
		PartnerId: partnerId,
		Action:    "integration_disconnected",
		Category:  ActivityCategoryIntegration,
		Title:     string(provider) + " disconnected",
	})
}

// SetOrderXeroInvoice records the invoice created for a completed order.
func SetOrderXeroInvoice(ctx context.Context, orderId, invoiceId string) error {
	return config.GetDB().WithContext(crossTenant(ctx)).Model(&Order{}).
		Where("id = ?", orderId).
		Update("xero_invoice_id", invoiceId).Error
}

// LoadOrderForSync is the background read used by integration handlers.
func LoadOrderForSync(ctx context.Context, orderId string) (*Order, error) {
	return loadById[Order](crossTenant(ctx), orderId, "Services")
}

// LoadJobForSync mirrors LoadOrderForSync for jobs.
func LoadJobForSync(ctx context.Context, jobId string) (*Job, error) {
	return loadById[Job](crossTenant(ctx), jobId)
}

func LoadCustomerForSync(ctx context.Context, customerId string) (*Customer, error) {
	return loadById[Customer](crossTenant(ctx), customerId)
}

// ProductNames maps product ids to names for invoice line items.
func ProductNames(ctx context.Context, ids []string) (map[string]Product, error) {
	var products []Product
	if err := config.GetDB().WithContext(crossTenant(ctx)).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	out := make(map[string]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}
