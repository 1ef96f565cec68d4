package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/models"
)

func listPartnershipsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partnerships, err := models.GetPartnerships(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, partnerships, nil)
	}
}

func endPartnershipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		partnership, err := models.EndPartnership(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, partnership)
	}
}

func createPartnershipInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPartnershipInvite
		if !bindJSON(c, &input) {
			return
		}
		invite, err := models.CreatePartnershipInvite(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invite)
	}
}

func acceptPartnershipInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inviteTokenRequest
		if !bindJSON(c, &req) {
			return
		}
		partnership, err := models.AcceptPartnershipInvite(c.Request.Context(), req.Token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, partnership)
	}
}

func declinePartnershipInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inviteTokenRequest
		if !bindJSON(c, &req) {
			return
		}
		invite, err := models.DeclinePartnershipInvite(c.Request.Context(), req.Token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invite)
	}
}
