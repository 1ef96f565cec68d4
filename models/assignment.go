package models

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type AssignOrderInput struct {
	OrderId  string `json:"orderId" binding:"required"`
	EditorId string `json:"editorId" binding:"required"`
}

// Candidate is an editor the partner could assign an order to.
type Candidate struct {
	EditorId       string `json:"editorId"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	OffersServices bool   `json:"offersServices"`
}

const assignLockTTL = 15 * time.Second

// obtainAssignLock is best-effort: without Redis, or when the lock is held,
// the conditional update still decides the winner.
func obtainAssignLock(ctx context.Context, orderId string) *redislock.Lock {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		logger.WithFields(logrus.Fields{
			"field":    "AssignOrderToEditor",
			"order_id": orderId,
		}).Debug("redis lock not ready; proceeding without redis lock")
		return nil
	}
	lock, err := locker.Obtain(ctx, "assign:order:"+orderId, assignLockTTL, nil)
	if err != nil {
		msg := "error obtaining redis lock; proceeding without redis lock: " + err.Error()
		if errors.Is(err, redislock.ErrNotObtained) {
			msg = "could not obtain redis lock; proceeding without redis lock"
		}
		logger.WithFields(logrus.Fields{
			"field":    "AssignOrderToEditor",
			"order_id": orderId,
		}).Warn(msg)
		return nil
	}
	return lock
}

func releaseAssignLock(ctx context.Context, lock *redislock.Lock, orderId string) {
	if lock == nil {
		return
	}
	if err := lock.Release(ctx); err != nil {
		config.GetLogger().WithFields(logrus.Fields{
			"field":    "AssignOrderToEditor",
			"order_id": orderId,
		}).Warn("failed to release redis lock: " + err.Error())
	}
}

func requirePartnership(ctx context.Context, tx *gorm.DB, partnerId, editorId string) error {
	ok, err := HasActivePartnership(ctx, tx, partnerId, editorId)
	if err != nil {
		return err
	}
	if !ok {
		return utils.Forbidden("editor has no active partnership with this partner")
	}
	return nil
}

// AssignOrderToEditor assigns a pending order. Only one of several
// concurrent assignments can succeed; the others get 409.
func AssignOrderToEditor(ctx context.Context, orderId, editorId string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "models.AssignOrderToEditor")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderId), attribute.String("editor.id", editorId))

	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	order, err := GetResource[Order](ctx, orderId)
	if err != nil {
		return nil, err
	}
	if err := requirePartnership(ctx, nil, order.PartnerId, editorId); err != nil {
		return nil, err
	}

	lock := obtainAssignLock(ctx, order.ID)
	defer releaseAssignLock(ctx, lock, order.ID)

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePartnership(ctx, tx, order.PartnerId, editorId); err != nil {
			return err
		}
		res := tx.Model(&Order{}).
			Where("id = ? AND partner_id = ? AND (assigned_to IS NULL OR assigned_to = '') AND status = ?",
				order.ID, order.PartnerId, OrderStatusPending).
			Updates(map[string]interface{}{
				"assigned_to": editorId,
				"status":      OrderStatusProcessing,
				"updated_at":  time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("order already assigned or no longer assignable")
		}
		order.AssignedTo = &editorId
		order.Status = OrderStatusProcessing
		return afterAssignment(ctx, tx, order, "order_assigned", "Order "+order.OrderNumber+" assigned")
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ReassignOrder moves a non-terminal order to another editor. A pending order
// also moves to processing.
func ReassignOrder(ctx context.Context, orderId, editorId string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "models.ReassignOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderId), attribute.String("editor.id", editorId))

	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	order, err := GetResource[Order](ctx, orderId)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, utils.Conflict("order is already " + string(order.Status))
	}
	if order.AssigneeId() == editorId {
		return order, nil
	}
	if err := requirePartnership(ctx, nil, order.PartnerId, editorId); err != nil {
		return nil, err
	}

	lock := obtainAssignLock(ctx, order.ID)
	defer releaseAssignLock(ctx, lock, order.ID)

	previous := order.AssigneeId()
	status := order.Status
	if status == OrderStatusPending {
		status = OrderStatusProcessing
	}
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requirePartnership(ctx, tx, order.PartnerId, editorId); err != nil {
			return err
		}
		q := tx.Model(&Order{}).Where("id = ? AND partner_id = ? AND status = ?", order.ID, order.PartnerId, order.Status)
		if previous == "" {
			q = q.Where("(assigned_to IS NULL OR assigned_to = '')")
		} else {
			q = q.Where("assigned_to = ?", previous)
		}
		res := q.Updates(map[string]interface{}{
			"assigned_to": editorId,
			"status":      status,
			"updated_at":  time.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.Conflict("order changed concurrently")
		}
		order.AssignedTo = &editorId
		order.Status = status
		return afterAssignment(ctx, tx, order, "order_reassigned", "Order "+order.OrderNumber+" reassigned")
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func afterAssignment(ctx context.Context, tx *gorm.DB, order *Order, action, title string) error {
	editorId := order.AssigneeId()
	if err := notify(tx, order.PartnerId, []string{editorId}, notificationMessage{
		Type:    NotificationTypeOrderAssigned,
		Title:   "Order assigned to you",
		Body:    "Order " + order.OrderNumber,
		OrderId: &order.ID,
		JobId:   &order.JobId,
	}); err != nil {
		return err
	}
	if err := enqueueEvent(ctx, tx, order.PartnerId, EventOrderAssigned, OrderEventPayload{
		OrderId:     order.ID,
		OrderNumber: order.OrderNumber,
		JobId:       order.JobId,
		Status:      string(order.Status),
		Recipients:  []string{editorId},
	}); err != nil {
		return err
	}
	return recordActivity(ctx, tx, ActivityInput{
		PartnerId: order.PartnerId,
		JobId:     &order.JobId,
		OrderId:   &order.ID,
		Action:    action,
		Category:  ActivityCategoryOrder,
		Title:     title,
		Metadata:  map[string]string{"editorId": editorId},
	})
}

// matchingEditors returns the subset of editorIds offering any of serviceIds.
func matchingEditors(ctx context.Context, editorIds, serviceIds []string) (map[string]bool, error) {
	matched := map[string]bool{}
	if len(editorIds) == 0 || len(serviceIds) == 0 {
		return matched, nil
	}
	var ids []string
	err := config.GetDB().WithContext(ctx).Model(&EditorService{}).
		Where("editor_id IN ? AND service_id IN ?", editorIds, utils.UniqueSlice(serviceIds)).
		Distinct().
		Pluck("editor_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		matched[id] = true
	}
	return matched, nil
}

// CandidateEditors picks editors to notify about a new order: partnered
// editors offering one of the requested services, or every partnered editor
// when none match.
func CandidateEditors(ctx context.Context, partnerId string, serviceIds []string) ([]string, error) {
	editors, err := ActivePartnerEditorIds(ctx, partnerId)
	if err != nil {
		return nil, err
	}
	matched, err := matchingEditors(ctx, editors, serviceIds)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return editors, nil
	}
	result := make([]string, 0, len(matched))
	for _, id := range editors {
		if matched[id] {
			result = append(result, id)
		}
	}
	return result, nil
}

// GetCandidatesForOrder lists partnered editors, flagging those whose
// offerings overlap the order's services. Matching editors come first.
func GetCandidatesForOrder(ctx context.Context, orderId string) ([]*Candidate, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	order, err := GetResource[Order](ctx, orderId, "Services")
	if err != nil {
		return nil, err
	}
	editors, err := ActivePartnerEditorIds(ctx, order.PartnerId)
	if err != nil {
		return nil, err
	}
	serviceIds := make([]string, 0, len(order.Services))
	for _, s := range order.Services {
		serviceIds = append(serviceIds, s.ServiceId)
	}
	matched, err := matchingEditors(ctx, editors, serviceIds)
	if err != nil {
		return nil, err
	}
	users, err := GetUsersByIds(ctx, editors)
	if err != nil {
		return nil, err
	}

	var first, rest []*Candidate
	for _, id := range editors {
		c := &Candidate{EditorId: id, OffersServices: matched[id]}
		if u, ok := users[id]; ok {
			c.Name = u.Name
			c.Email = u.Email
		}
		if c.OffersServices {
			first = append(first, c)
		} else {
			rest = append(rest, c)
		}
	}
	return append(first, rest...), nil
}
