package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/photoflow/studio_backend/utils"
)

// SessionMiddleware attaches the correlation id and the request metadata that
// activity rows record.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)

		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx = utils.SetRequestMetaInContext(ctx, c.ClientIP(), c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
