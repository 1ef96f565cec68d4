package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/models"
)

func passQCHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		order, err := models.PassQC(ctx, c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOrder(ctx, order))
	}
}

type revisionRequest struct {
	RevisionNotes string `json:"revisionNotes"`
}

// requestRevisionHandler leaves the empty-notes check to the model so the
// message is the same for every caller.
func requestRevisionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req revisionRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		order, warning, err := models.RequestRevision(ctx, c.Param("orderId"), req.RevisionNotes)
		if err != nil {
			respondError(c, err)
			return
		}
		body := gin.H{"order": viewOrder(ctx, order)}
		if warning != "" {
			body["warning"] = warning
		}
		c.JSON(http.StatusOK, body)
	}
}
