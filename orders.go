package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/photoflow/studio_backend/middlewares"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
)

// orderView adds display names resolved through the request dataloaders.
type orderView struct {
	*models.Order
	AssigneeName string `json:"assigneeName,omitempty"`
	CustomerName string `json:"customerName,omitempty"`
}

func viewOrders(ctx context.Context, orders []*models.Order) []*orderView {
	var userIds, customerIds []string
	for _, o := range orders {
		if id := o.AssigneeId(); id != "" {
			userIds = append(userIds, id)
		}
		if o.CustomerId != nil && *o.CustomerId != "" {
			customerIds = append(customerIds, *o.CustomerId)
		}
	}
	userNames := map[string]string{}
	if len(userIds) > 0 {
		users, _ := middlewares.GetUsers(ctx, utils.UniqueSlice(userIds))
		for _, u := range users {
			if u != nil {
				userNames[u.ID] = u.Name
			}
		}
	}
	customerNames := map[string]string{}
	if len(customerIds) > 0 {
		customers, _ := middlewares.GetCustomers(ctx, utils.UniqueSlice(customerIds))
		for _, cu := range customers {
			if cu != nil {
				customerNames[cu.ID] = cu.Name
			}
		}
	}

	views := make([]*orderView, len(orders))
	for i, o := range orders {
		views[i] = &orderView{Order: o, AssigneeName: userNames[o.AssigneeId()]}
		if o.CustomerId != nil {
			views[i].CustomerName = customerNames[*o.CustomerId]
		}
	}
	return views
}

func viewOrder(ctx context.Context, order *models.Order) *orderView {
	return viewOrders(ctx, []*models.Order{order})[0]
}

func reserveOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.ReserveOrderInput
		if !bindJSON(c, &input) {
			return
		}
		result, err := models.ReserveOrderNumber(c.Request.Context(), input.JobId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

type confirmReservationRequest struct {
	OrderNumber string `json:"orderNumber" binding:"required"`
}

func confirmReservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req confirmReservationRequest
		if !bindJSON(c, &req) {
			return
		}
		reservation, err := models.ConfirmReservation(c.Request.Context(), req.OrderNumber)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

func getReservationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reservation, err := models.GetReservation(c.Request.Context(), c.Param("orderNumber"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, reservation)
	}
}

func submitOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		order, created, err := models.SubmitOrder(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusCreated
		if !created {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{"order": viewOrder(ctx, order), "created": created})
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.OrderFilter
		if !bindQuery(c, &filter) {
			return
		}
		ctx := c.Request.Context()
		orders, pageInfo, err := models.GetOrders(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondList(c, viewOrders(ctx, orders), pageInfo)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		order, err := models.GetOrder(ctx, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, viewOrder(ctx, order))
	}
}

func updateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateOrderInput
		if !bindJSON(c, &input) {
			return
		}
		ctx := c.Request.Context()
		order, warning, err := models.UpdateOrder(ctx, c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": viewOrder(ctx, order), "warning": warning})
	}
}

func cancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := models.CancelOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
