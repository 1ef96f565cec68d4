package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"github.com/sirupsen/logrus"
)

func listOutboxEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.OutboxFilter
		if !bindQuery(c, &filter) {
			return
		}
		events, pageInfo, err := models.GetOutboxEvents(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, events, pageInfo)
	}
}

// replayOutboxEventHandler puts a FAILED or DEAD event back in the dispatch
// queue. The dispatcher picks it up on its next poll.
func replayOutboxEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		ev, err := models.ReplayOutboxEvent(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		userId, _ := utils.GetUserIdFromContext(ctx)
		config.GetLogger().WithFields(logrus.Fields{
			"field":      "OutboxReplay",
			"event_id":   ev.ID,
			"event_type": ev.EventType,
			"partner_id": ev.PartnerId,
			"user_id":    userId,
		}).Info("outbox event requeued")
		c.JSON(http.StatusOK, ev)
	}
}
