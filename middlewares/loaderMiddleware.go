package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/photoflow/studio_backend/models"
)

type loadersString string

const loadersKey = loadersString("dataloaders")

// Loaders batch the per-row lookups list endpoints make (assignee names,
// customer names) into one IN query per request.
type Loaders struct {
	userLoader     *dataloader.Loader[string, *models.User]
	customerLoader *dataloader.Loader[string, *models.Customer]
}

func NewLoaders() *Loaders {
	wait := dataloader.WithWait[string, *models.User](2 * time.Millisecond)
	return &Loaders{
		userLoader:     dataloader.NewBatchedLoader(getUsers, wait),
		customerLoader: dataloader.NewBatchedLoader(getCustomers, dataloader.WithWait[string, *models.Customer](2*time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), loadersKey, NewLoaders())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// generateLoaderResults orders batch results to match the requested keys.
func generateLoaderResults[T any](resultMap map[string]*T, ids []string) []*dataloader.Result[*T] {
	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}
