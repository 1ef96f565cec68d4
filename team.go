package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/models"
)

func assignOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.AssignOrderInput
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		order, err := models.AssignOrderToEditor(ctx, input.OrderId, input.EditorId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOrder(ctx, order))
	}
}

func reassignOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.AssignOrderInput
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		order, err := models.ReassignOrder(ctx, input.OrderId, input.EditorId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOrder(ctx, order))
	}
}

func candidatesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		candidates, err := models.GetCandidatesForOrder(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, candidates, nil)
	}
}

func listTeamUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := models.GetTeamUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, users, nil)
	}
}

func updateTeamUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateTeamUserInput
		if !bindJSON(c, &input) {
			return
		}
		user, err := models.UpdateTeamUser(c.Request.Context(), c.Param("uid"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func createTeamInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewTeamInvite
		if !bindJSON(c, &input) {
			return
		}
		invite, err := models.CreateTeamInvite(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invite)
	}
}

func listTeamInvitesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invites, err := models.GetTeamInvites(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, invites, nil)
	}
}

func revokeTeamInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invite, err := models.RevokeTeamInvite(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invite)
	}
}

type inviteTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// acceptTeamInviteHandler runs for signed-in callers without a user row yet.
func acceptTeamInviteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req inviteTokenRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := models.AcceptTeamInvite(c.Request.Context(), req.Token)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
