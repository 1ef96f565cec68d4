package main

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/integrations/calendarsync"
	"github.com/photoflow/studio_backend/integrations/xerosync"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

// oauthProvider is the authorize/callback pair of one integration.
type oauthProvider struct {
	config   func() (*oauth2.Config, error)
	authURL  func(cfg *oauth2.Config, state string) string
	exchange func(ctx context.Context, cfg *oauth2.Config, state *models.OAuthState, code string) (*models.IntegrationConnection, error)
}

var oauthProviders = map[models.IntegrationProvider]oauthProvider{
	models.IntegrationProviderGoogleCalendar: {
		config:   calendarsync.OAuthConfig,
		authURL:  calendarsync.AuthCodeURL,
		exchange: calendarsync.Exchange,
	},
	models.IntegrationProviderXero: {
		config:   xerosync.OAuthConfig,
		authURL:  xerosync.AuthCodeURL,
		exchange: xerosync.Exchange,
	},
}

func lookupProvider(c *gin.Context) (models.IntegrationProvider, oauthProvider, bool) {
	provider := models.IntegrationProvider(c.Param("provider"))
	p, ok := oauthProviders[provider]
	if !ok {
		respondError(c, utils.NotFound("unknown integration provider"))
		return provider, p, false
	}
	return provider, p, true
}

func listIntegrationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conns, err := models.GetIntegrations(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, conns, nil)
	}
}

// integrationAuthorizeHandler returns the consent URL; the SPA navigates to it.
func integrationAuthorizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, p, ok := lookupProvider(c)
		if !ok {
			return
		}
		cfg, err := p.config()
		if err != nil {
			respondError(c, utils.BadRequest(err.Error()))
			return
		}
		state, err := models.CreateOAuthState(c.Request.Context(), provider)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": p.authURL(cfg, state.State), "expiresAt": state.ExpiresAt})
	}
}

// integrationCallbackHandler is hit by the provider's redirect, so it has no
// session. The single-use state row names the partner and user.
func integrationCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		provider, p, ok := lookupProvider(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		if providerErr := c.Query("error"); providerErr != "" {
			redirectToSettings(c, provider, providerErr)
			return
		}
		code := c.Query("code")
		if code == "" {
			respondError(c, utils.BadRequest("code is required"))
			return
		}
		state, err := models.ConsumeOAuthState(ctx, c.Query("state"), provider)
		if err != nil {
			respondError(c, err)
			return
		}
		cfg, err := p.config()
		if err != nil {
			respondError(c, utils.BadRequest(err.Error()))
			return
		}
		ctx = utils.SetPartnerIdInContext(ctx, state.PartnerId)
		ctx = utils.SetUserIdInContext(ctx, state.UserId)
		if _, err := p.exchange(ctx, cfg, state, code); err != nil {
			config.GetLogger().WithFields(logrus.Fields{
				"field":      "integrationCallbackHandler",
				"provider":   provider,
				"partner_id": state.PartnerId,
			}).Error("oauth exchange failed: " + err.Error())
			redirectToSettings(c, provider, "exchange_failed")
			return
		}
		redirectToSettings(c, provider, "")
	}
}

func redirectToSettings(c *gin.Context, provider models.IntegrationProvider, errCode string) {
	q := url.Values{}
	q.Set("provider", string(provider))
	if errCode != "" {
		q.Set("error", errCode)
	} else {
		q.Set("connected", "true")
	}
	c.Redirect(http.StatusFound, config.BaseURL()+"/settings/integrations?"+q.Encode())
}

func deleteIntegrationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		provider := models.IntegrationProvider(c.Param("provider"))
		if err := models.DeleteIntegration(c.Request.Context(), provider); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
