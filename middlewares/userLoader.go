package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/photoflow/studio_backend/models"
)

// getUsers resolves uids across tenants; a missing uid yields a nil user
// rather than an error so one deleted account does not fail a whole list.
func getUsers(ctx context.Context, ids []string) []*dataloader.Result[*models.User] {
	resultMap, err := models.GetUsersByIds(ctx, ids)
	if err != nil {
		return handleError[*models.User](len(ids), err)
	}
	return generateLoaderResults(resultMap, ids)
}

func GetUsers(ctx context.Context, ids []string) ([]*models.User, []error) {
	loaders := For(ctx)
	if loaders == nil {
		loaders = NewLoaders()
	}
	return loaders.userLoader.LoadMany(ctx, ids)()
}
