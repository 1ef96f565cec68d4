package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/photoflow/studio_backend/models"
)

func getCustomers(ctx context.Context, ids []string) []*dataloader.Result[*models.Customer] {
	resultMap, err := models.GetCustomersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.Customer](len(ids), err)
	}
	return generateLoaderResults(resultMap, ids)
}

func GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	loaders := For(ctx)
	if loaders == nil {
		loaders = NewLoaders()
	}
	return loaders.customerLoader.Load(ctx, id)()
}

func GetCustomers(ctx context.Context, ids []string) ([]*models.Customer, []error) {
	loaders := For(ctx)
	if loaders == nil {
		loaders = NewLoaders()
	}
	return loaders.customerLoader.LoadMany(ctx, ids)()
}
