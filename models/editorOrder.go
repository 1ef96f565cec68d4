package models

import (
	"context"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"gorm.io/gorm"
)

type EditorOrderFilter struct {
	Status    string `form:"status"`
	PartnerId string `form:"partnerId"`
	PageRequest
}

func requireEditor(ctx context.Context) (string, error) {
	uid, err := callerUserId(ctx)
	if err != nil {
		return "", err
	}
	if callerRole(ctx) != UserRoleEditor {
		return "", utils.Forbidden("editor role required")
	}
	return uid, nil
}

// loadEditorOrder loads an order for its assignee. The editor must still be
// partnered with the order's tenant.
func loadEditorOrder(ctx context.Context, orderId string) (*Order, string, error) {
	uid, err := requireEditor(ctx)
	if err != nil {
		return nil, "", err
	}
	order, err := loadById[Order](crossTenant(ctx), orderId)
	if err != nil {
		return nil, "", err
	}
	if order.AssigneeId() != uid {
		return nil, "", utils.Forbidden("order is not assigned to you")
	}
	if err := requirePartnership(ctx, nil, order.PartnerId, uid); err != nil {
		return nil, "", err
	}
	return order, uid, nil
}

// GetEditorOrders lists orders assigned to the calling editor across all
// partners they work with.
func GetEditorOrders(ctx context.Context, filter EditorOrderFilter) ([]*Order, PageInfo, error) {
	uid, err := requireEditor(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}
	dbCtx := config.GetDB().WithContext(crossTenant(ctx)).
		Where("assigned_to = ?", uid).
		Where("partner_id IN (?)", config.GetDB().Model(&Partnership{}).
			Select("partner_id").
			Where("editor_id = ? AND is_active = ?", uid, true))
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.PartnerId != "" {
		dbCtx = dbCtx.Where("partner_id = ?", filter.PartnerId)
	}
	var orders []*Order
	if err := paginate(dbCtx, filter.PageRequest).Preload("Services").Preload("Files").Find(&orders).Error; err != nil {
		return nil, PageInfo{}, err
	}
	orders, info := pageOf(orders, filter.PageRequest, func(o *Order) string { return EncodeCompositeCursor(o.CreatedAt, o.ID) })
	return orders, info, nil
}

// StartOrder is the editor picking up work: processing or in_revision move
// to in_progress.
func StartOrder(ctx context.Context, orderId string) (*Order, error) {
	order, _, err := loadEditorOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	if order.Status == OrderStatusInProgress {
		return order, nil
	}
	if order.Status != OrderStatusProcessing && order.Status != OrderStatusInRevision {
		return nil, utils.Conflict("cannot start an order that is " + string(order.Status))
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionOrder(ctx, tx, order, OrderStatusInProgress, nil); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, order.PartnerId, EventOrderStatusChanged, OrderEventPayload{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			JobId:       order.JobId,
			Status:      string(order.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SubmitForQC hands finished work back to the partner for review.
func SubmitForQC(ctx context.Context, orderId string) (*Order, error) {
	order, _, err := loadEditorOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := transitionOrder(ctx, tx, order, OrderStatusHumanCheck, nil); err != nil {
			return err
		}
		if err := notify(tx, order.PartnerId, []string{order.CreatedBy}, notificationMessage{
			Type:    NotificationTypeSubmittedForQC,
			Title:   "Order " + order.OrderNumber + " ready for review",
			OrderId: &order.ID,
			JobId:   &order.JobId,
		}); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, order.PartnerId, EventOrderStatusChanged, OrderEventPayload{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			JobId:       order.JobId,
			Status:      string(order.Status),
			Recipients:  []string{order.CreatedBy},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
