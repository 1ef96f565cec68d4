package models

import (
	"context"
	"errors"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
)

type Resource interface {
	GetPartnerId() string
}

// GetResource reloads a tenant-owned row by id and checks ownership against
// the caller: missing rows are 404, rows of another partner are 403.
func GetResource[T Resource](ctx context.Context, id string, associations ...string) (*T, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	result, err := loadById[T](crossTenant(ctx), id, associations...)
	if err != nil {
		return nil, err
	}
	if (*result).GetPartnerId() != partnerId {
		return nil, utils.Forbidden("cannot access resource owned by other partner")
	}
	return result, nil
}

func loadById[T any](ctx context.Context, id string, associations ...string) (*T, error) {
	result, err := utils.FetchSingleModel[T](ctx, id, associations...)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, utils.NotFound("not found")
	}
	return result, err
}

// DeleteResource removes a tenant-owned row after the ownership check.
func DeleteResource[T Resource](ctx context.Context, id string) (*T, error) {
	result, err := GetResource[T](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Where("id = ?", id).Delete(result).Error; err != nil {
		return nil, err
	}
	return result, nil
}
