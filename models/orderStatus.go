package models

import (
	"context"
	"time"

	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

// orderTransitions is the single source of truth for order status changes;
// QC actions, editor actions and PATCH all validate against it.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusInProgress, OrderStatusInRevision, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusHumanCheck, OrderStatusInRevision, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusInRevision: {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusHumanCheck: {OrderStatusInRevision, OrderStatusCompleted, OrderStatusCancelled},
}

func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transitionOrder moves order to status `to` with a conditional update on the
// current status. A concurrent change makes it fail with 409.
func transitionOrder(ctx context.Context, tx *gorm.DB, order *Order, to OrderStatus, extra map[string]interface{}) error {
	if !CanTransition(order.Status, to) {
		return utils.Conflict("cannot move order from " + string(order.Status) + " to " + string(to))
	}
	updates := map[string]interface{}{"status": to, "updated_at": time.Now()}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND partner_id = ? AND status = ?", order.ID, order.PartnerId, order.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.Conflict("order status changed concurrently")
	}
	from := order.Status
	order.Status = to
	return recordActivity(ctx, tx, ActivityInput{
		PartnerId: order.PartnerId,
		JobId:     &order.JobId,
		OrderId:   &order.ID,
		Action:    "order_status_changed",
		Category:  ActivityCategoryOrder,
		Title:     "Order " + order.OrderNumber + " " + string(to),
		Metadata:  map[string]string{"from": string(from), "to": string(to)},
	})
}
