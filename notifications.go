package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/middlewares"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
)

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.NotificationFilter
		if !bindQuery(c, &filter) {
			return
		}
		notifications, pageInfo, err := models.GetNotifications(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, notifications, pageInfo)
	}
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		notification, err := models.MarkNotificationRead(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, notification)
	}
}

func markAllNotificationsReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := models.MarkAllNotificationsRead(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": n})
	}
}

type activityView struct {
	*models.Activity
	UserName string `json:"userName,omitempty"`
}

func listActivitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.ActivityFilter
		if !bindQuery(c, &filter) {
			return
		}
		ctx := c.Request.Context()
		activities, pageInfo, err := models.GetActivities(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}

		userIds := make([]string, 0, len(activities))
		for _, a := range activities {
			if a.UserId != "" {
				userIds = append(userIds, a.UserId)
			}
		}
		names := map[string]string{}
		if len(userIds) > 0 {
			users, _ := middlewares.GetUsers(ctx, utils.UniqueSlice(userIds))
			for _, u := range users {
				if u != nil {
					names[u.ID] = u.Name
				}
			}
		}
		views := make([]*activityView, len(activities))
		for i, a := range activities {
			views[i] = &activityView{Activity: a, UserName: names[a.UserId]}
		}
		respondList(c, views, pageInfo)
	}
}
