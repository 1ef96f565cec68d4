package main

import (
	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/middlewares"
	"github.com/photoflow/studio_backend/models"
)

var managers = []models.UserRole{models.UserRolePartner, models.UserRoleAdmin}

// registerRoutes mounts the REST API. Auth and tenant checks run per route
// group; the models re-check tenant ownership on every row they load.
func registerRoutes(r *gin.Engine, verifier middlewares.TokenVerifier) {
	r.GET("/health", healthHandler)
	r.GET("/healthz", healthHandler)

	api := r.Group("/api", middlewares.AuthMiddleware(verifier), middlewares.LoaderMiddleware())

	// OAuth providers redirect here without our bearer token; the state row
	// identifies the partner.
	api.GET("/integrations/:provider/callback", integrationCallbackHandler())

	identified := api.Group("", middlewares.RequireIdentity())
	identified.POST("/auth/register", registerHandler())
	identified.POST("/invites/accept", acceptTeamInviteHandler())

	authed := api.Group("", middlewares.RequireUser())
	authed.GET("/me", meHandler())

	orders := authed.Group("/orders")
	orders.POST("/reserve", reserveOrderHandler())
	orders.POST("/confirm-reservation", confirmReservationHandler())
	orders.GET("/reservations/:orderNumber", getReservationHandler())
	orders.POST("/submit", submitOrderHandler())
	orders.GET("", listOrdersHandler())
	orders.GET("/export", exportOrdersHandler())
	orders.GET("/:id", getOrderHandler())
	orders.PATCH("/:id", updateOrderHandler())
	orders.POST("/:id/cancel", cancelOrderHandler())

	jobs := authed.Group("/jobs")
	jobs.POST("", createJobHandler())
	jobs.GET("", listJobsHandler())
	jobs.GET("/:id", getJobHandler())
	jobs.PATCH("/:id", updateJobHandler())
	jobs.GET("/:id/folders", listFoldersHandler("id"))
	jobs.GET("/:id/uploads", listUploadsHandler("id"))
	jobs.GET("/:id/download", signDownloadHandler())

	team := authed.Group("/team", middlewares.RequireRoles(managers...))
	team.POST("/assign-order", assignOrderHandler())
	team.POST("/reassign-order", reassignOrderHandler())
	team.GET("/candidates/:orderId", candidatesHandler())
	team.GET("/users", listTeamUsersHandler())
	team.PATCH("/users/:uid", updateTeamUserHandler())
	team.POST("/invites", createTeamInviteHandler())
	team.GET("/invites", listTeamInvitesHandler())
	team.DELETE("/invites/:id", revokeTeamInviteHandler())

	partnerships := authed.Group("/partnerships")
	partnerships.GET("", listPartnershipsHandler())
	partnerships.DELETE("/:id", endPartnershipHandler())
	partnerships.POST("/invites", middlewares.RequireRoles(managers...), createPartnershipInviteHandler())
	partnerships.POST("/invites/accept", acceptPartnershipInviteHandler())
	partnerships.POST("/invites/decline", declinePartnershipInviteHandler())

	// QC is a partner action on an order delivered by an editor.
	qc := authed.Group("/editor/orders/:orderId/qc", middlewares.RequireRoles(managers...))
	qc.POST("/pass", passQCHandler())
	qc.POST("/revision", requestRevisionHandler())

	editor := authed.Group("/editor")
	editor.GET("/orders", middlewares.RequireRoles(models.UserRoleEditor), listEditorOrdersHandler())
	editor.POST("/orders/:orderId/start", middlewares.RequireRoles(models.UserRoleEditor), startOrderHandler())
	editor.POST("/orders/:orderId/submit", middlewares.RequireRoles(models.UserRoleEditor), submitForQCHandler())
	editor.POST("/jobs/:jobId/uploads", middlewares.RequireRoles(models.UserRoleEditor), registerUploadsHandler())
	editor.POST("/jobs/:jobId/folders", createFolderHandler())
	editor.GET("/jobs/:jobId/folders", listFoldersHandler("jobId"))
	editor.GET("/jobs/:jobId/uploads", listUploadsHandler("jobId"))
	editor.POST("/uploads/sign", signUploadHandler())
	editor.GET("/services", getEditorServicesHandler())
	editor.PUT("/services", middlewares.RequireRoles(models.UserRoleEditor), setEditorServicesHandler())

	authed.GET("/notifications", listNotificationsHandler())
	authed.PATCH("/notifications/:id/read", markNotificationReadHandler())
	authed.POST("/notifications/read-all", markAllNotificationsReadHandler())
	authed.GET("/activities", listActivitiesHandler())

	customers := authed.Group("/customers")
	customers.GET("", listCustomersHandler())
	customers.GET("/:id", getCustomerHandler())
	customers.POST("", createCustomerHandler())
	customers.PATCH("/:id", updateCustomerHandler())
	customers.DELETE("/:id", deleteCustomerHandler())

	products := authed.Group("/products")
	products.GET("", listProductsHandler())
	products.POST("", createProductHandler())
	products.PATCH("/:id", updateProductHandler())
	products.DELETE("/:id", deleteProductHandler())

	integrations := authed.Group("/integrations", middlewares.RequireRoles(managers...))
	integrations.GET("", listIntegrationsHandler())
	integrations.GET("/:provider/authorize", integrationAuthorizeHandler())
	integrations.DELETE("/:provider", deleteIntegrationHandler())

	ops := authed.Group("/ops", middlewares.RequireRoles(managers...))
	ops.GET("/outbox", listOutboxEventsHandler())
	ops.POST("/outbox/:id/replay", replayOutboxEventHandler())

	r.NoRoute(customNotFoundHandler)
}
