package models

import (
	"context"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a service a partner sells (HDR photos, floor plan, drone, ...).
type Product struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	PartnerId   string          `gorm:"size:64;not null;index" json:"partnerId"`
	Name        string          `gorm:"size:255;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"basePrice"`
	IsActive    bool            `gorm:"not null" json:"isActive"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (p Product) GetPartnerId() string {
	return p.PartnerId
}

type NewProduct struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	IsActive    *bool           `json:"isActive"`
}

func (input *NewProduct) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.BadRequest("name is required", map[string]string{"name": "required"})
	}
	if input.BasePrice.IsNegative() {
		return utils.BadRequest("basePrice cannot be negative", map[string]string{"basePrice": "gte"})
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {
	partnerId, err := requireManager(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	product := Product{
		ID:          newId(),
		PartnerId:   partnerId,
		Name:        input.Name,
		Description: input.Description,
		BasePrice:   input.BasePrice,
		IsActive:    utils.DereferencePtr(input.IsActive, true),
	}
	if err := config.GetDB().WithContext(ctx).Create(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func UpdateProduct(ctx context.Context, id string, input *NewProduct) (*Product, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	product, err := GetResource[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(product).Updates(map[string]interface{}{
		"name":        input.Name,
		"description": input.Description,
		"base_price":  input.BasePrice,
		"is_active":   utils.DereferencePtr(input.IsActive, product.IsActive),
	}).Error
	if err != nil {
		return nil, err
	}
	return loadById[Product](ctx, id)
}

// DeleteProduct deactivates products referenced by orders and removes unused ones.
func DeleteProduct(ctx context.Context, id string) (*Product, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	product, err := GetResource[Product](ctx, id)
	if err != nil {
		return nil, err
	}
	var used int64
	if err := config.GetDB().WithContext(ctx).Model(&OrderService{}).Where("service_id = ?", id).Count(&used).Error; err != nil {
		return nil, err
	}
	if used > 0 {
		if err := config.GetDB().WithContext(ctx).Model(product).Update("is_active", false).Error; err != nil {
			return nil, err
		}
		product.IsActive = false
		return product, nil
	}
	return DeleteResource[Product](ctx, id)
}

func GetProducts(ctx context.Context, activeOnly bool) ([]*Product, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if activeOnly {
		dbCtx = dbCtx.Where("is_active = ?", true)
	}
	var results []*Product
	err = dbCtx.Order("name").Find(&results).Error
	return results, err
}

// EditorService records which services an editor offers.
type EditorService struct {
	EditorId  string    `gorm:"primaryKey;size:128" json:"editorId"`
	ServiceId string    `gorm:"primaryKey;size:36" json:"serviceId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

type SetEditorServicesInput struct {
	ServiceIds []string `json:"serviceIds"`
}

// SetEditorServices replaces the caller's offerings.
func SetEditorServices(ctx context.Context, input *SetEditorServicesInput) ([]*EditorService, error) {
	editorId, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	if callerRole(ctx) != UserRoleEditor {
		return nil, utils.Forbidden("editor role required")
	}
	serviceIds := utils.UniqueSlice(input.ServiceIds)
	rows := make([]*EditorService, 0, len(serviceIds))
	for _, sid := range serviceIds {
		if strings.TrimSpace(sid) == "" {
			continue
		}
		rows = append(rows, &EditorService{EditorId: editorId, ServiceId: sid})
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("editor_id = ?", editorId).Delete(&EditorService{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func GetEditorServices(ctx context.Context, editorId string) ([]string, error) {
	var ids []string
	err := config.GetDB().WithContext(ctx).Model(&EditorService{}).Where("editor_id = ?", editorId).Pluck("service_id", &ids).Error
	return ids, err
}
