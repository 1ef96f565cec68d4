package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/models"
)

// registerHandler creates the caller's user row after their first Firebase
// sign-in. Invited users go through /api/invites/accept instead.
func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewRegistration
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.RegisterUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func meHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := models.CurrentUser(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}
