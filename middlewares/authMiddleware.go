package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
)

// Identity is what a verified bearer token tells us about the caller.
type Identity struct {
	Uid   string
	Email string
}

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type firebaseVerifier struct{}

func (firebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	client, err := config.GetFirebaseAuth(ctx)
	if err != nil {
		return nil, err
	}
	verified, err := client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, err
	}
	email, _ := verified.Claims["email"].(string)
	return &Identity{Uid: verified.UID, Email: email}, nil
}

type jwtVerifier struct{}

func (jwtVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	claims, err := utils.JwtValidate(token)
	if err != nil {
		return nil, err
	}
	return &Identity{Uid: claims.Subject, Email: claims.Email}, nil
}

// NewTokenVerifier picks the verifier for AUTH_MODE.
func NewTokenVerifier() TokenVerifier {
	if config.AuthMode() == "jwt" {
		return jwtVerifier{}
	}
	return firebaseVerifier{}
}

// AuthMiddleware verifies the bearer token and loads the caller's user row.
// Requests without a token pass through anonymously; RequireUser decides.
// A verified but unregistered caller only gets uid + email in the context so
// that registration and invite acceptance can run.
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Request.Header.Get("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, utils.Unauthorized("malformed authorization header"))
			return
		}

		ctx := c.Request.Context()
		identity, err := verifier.Verify(ctx, strings.TrimSpace(token))
		if err != nil || identity.Uid == "" {
			abortWithError(c, utils.Unauthorized("invalid token"))
			return
		}
		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUserIdInContext(ctx, identity.Uid)
		ctx = utils.SetUserEmailInContext(ctx, utils.NormalizeEmail(identity.Email))

		user, err := models.GetUserByUid(ctx, identity.Uid)
		switch {
		case err == nil:
			if !user.IsActive() {
				abortWithError(c, utils.Forbidden("user is suspended"))
				return
			}
			ctx = utils.SetUserRoleInContext(ctx, string(user.Role))
			if partnerId := user.GetPartnerId(); partnerId != "" {
				ctx = utils.SetPartnerIdInContext(ctx, partnerId)
			}
		case errors.Is(err, utils.ErrorRecordNotFound):
		default:
			config.LogError(config.GetLogger(), "AuthMiddleware", "AuthMiddleware", "load user", identity.Uid, err)
			abortWithError(c, utils.Internal("failed to load user", err))
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok || uid == "" {
			abortWithError(c, utils.Unauthorized("unauthorized"))
			return
		}
		c.Next()
	}
}

// RequireUser rejects anonymous and unregistered callers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if uid, ok := utils.GetUserIdFromContext(ctx); !ok || uid == "" {
			abortWithError(c, utils.Unauthorized("unauthorized"))
			return
		}
		if role, ok := utils.GetUserRoleFromContext(ctx); !ok || role == "" {
			abortWithError(c, utils.Forbidden("user is not registered"))
			return
		}
		c.Next()
	}
}

// RequireRoles restricts a route group to the given roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c.Request.Context())
		for _, r := range roles {
			if models.UserRole(role) == r {
				c.Next()
				return
			}
		}
		abortWithError(c, utils.Forbidden("role not allowed"))
	}
}

func abortWithError(c *gin.Context, appErr *utils.AppError) {
	status := appErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": appErr.Message})
}
