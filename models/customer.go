package models

import (
	"context"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
)

type Customer struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	PartnerId string    `gorm:"size:64;not null;index" json:"partnerId"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;index" json:"email"`
	Phone     string    `gorm:"size:32" json:"phone"`
	Company   string    `gorm:"size:255" json:"company"`
	Notes     string    `gorm:"type:text" json:"notes"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c Customer) GetPartnerId() string {
	return c.PartnerId
}

type NewCustomer struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Notes   string `json:"notes"`
	Country string `json:"country"`
}

// validate normalizes input for both create & update.
func (input *NewCustomer) validate() error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.BadRequest("name is required", map[string]string{"name": "required"})
	}
	if input.Email != "" {
		input.Email = utils.NormalizeEmail(input.Email)
		if !utils.IsValidEmail(input.Email) {
			return utils.BadRequest("invalid email", map[string]string{"email": "email"})
		}
	}
	if strings.TrimSpace(input.Phone) != "" {
		phone, err := utils.NormalizePhoneNumber(input.Phone, strings.ToUpper(input.Country))
		if err != nil {
			return utils.BadRequest("invalid phone number", map[string]string{"phone": "e164"})
		}
		input.Phone = phone
	}
	return nil
}

func CreateCustomer(ctx context.Context, input *NewCustomer) (*Customer, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	customer := Customer{
		ID:        newId(),
		PartnerId: partnerId,
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Company:   input.Company,
		Notes:     input.Notes,
	}
	if err := config.GetDB().WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func UpdateCustomer(ctx context.Context, id string, input *NewCustomer) (*Customer, error) {
	customer, err := GetResource[Customer](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Model(customer).Updates(map[string]interface{}{
		"name":    input.Name,
		"email":   input.Email,
		"phone":   input.Phone,
		"company": input.Company,
		"notes":   input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}
	return loadById[Customer](ctx, id)
}

func DeleteCustomer(ctx context.Context, id string) (*Customer, error) {
	var inUse int64
	if err := config.GetDB().WithContext(ctx).Model(&Job{}).Where("customer_id = ?", id).Count(&inUse).Error; err != nil {
		return nil, err
	}
	if inUse > 0 {
		return nil, utils.Conflict("customer has jobs")
	}
	return DeleteResource[Customer](ctx, id)
}

func GetCustomer(ctx context.Context, id string) (*Customer, error) {
	return GetResource[Customer](ctx, id)
}

func GetCustomers(ctx context.Context, name string) ([]*Customer, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if name = strings.TrimSpace(name); name != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+name+"%")
	}
	var results []*Customer
	err = dbCtx.Order("name").Find(&results).Error
	return results, err
}

// GetCustomersByIds is the batch function behind the customer dataloader.
func GetCustomersByIds(ctx context.Context, ids []string) (map[string]*Customer, error) {
	var customers []*Customer
	if err := config.GetDB().WithContext(ctx).Where("id IN ?", ids).Find(&customers).Error; err != nil {
		return nil, err
	}
	out := make(map[string]*Customer, len(customers))
	for _, c := range customers {
		out[c.ID] = c
	}
	return out, nil
}
