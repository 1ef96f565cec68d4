package utils

import (
	"context"
	"errors"

	"github.com/photoflow/studio_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db by primary key
// (may return RecordNotFound)
func FetchSingleModel[T any](ctx context.Context, id string, associations ...string) (*T, error) {
	dbCtx := config.GetDB().WithContext(ctx)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// count records, using WHERE partner_id = ? AND $condition
// partnerId can be blank for admin user
func ResourceCountWhere[T any](ctx context.Context, partnerId string, condition string, value ...interface{}) (int64, error) {
	var model T
	dbCtx := config.GetDB().WithContext(ctx).Model(&model)
	if partnerId != "" {
		dbCtx = dbCtx.Where("partner_id = ?", partnerId)
	}
	var count int64
	if err := dbCtx.Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// check if ALL ids exist for the partner
func ValidateResourcesId[M any](ctx context.Context, partnerId string, ids []string) error {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil
	}
	count, err := ResourceCountWhere[M](ctx, partnerId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return ErrorRecordNotFound
	}
	return nil
}
