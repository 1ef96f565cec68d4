package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// QCEmailPayload is the outbox payload behind QC emails to the editor.
type QCEmailPayload struct {
	OrderId        string   `json:"orderId"`
	OrderNumber    string   `json:"orderNumber"`
	JobId          string   `json:"jobId"`
	Status         string   `json:"status"`
	RecipientId    string   `json:"recipientId,omitempty"`
	RecipientEmail string   `json:"recipientEmail,omitempty"`
	RecipientName  string   `json:"recipientName,omitempty"`
	CustomerName   string   `json:"customerName,omitempty"`
	Address        string   `json:"address,omitempty"`
	Services       []string `json:"services,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	UsedRounds     int      `json:"usedRounds"`
	MaxRounds      int      `json:"maxRounds"`
}

// loadManagedOrder runs the partner-side checks shared by QC actions.
func loadManagedOrder(ctx context.Context, orderId string) (*Order, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, err
	}
	return GetResource[Order](ctx, orderId)
}

// buildQCEmail gathers what the editor email needs. Missing pieces are left
// blank rather than failing the QC action.
func buildQCEmail(ctx context.Context, order *Order) QCEmailPayload {
	payload := QCEmailPayload{
		OrderId:     order.ID,
		OrderNumber: order.OrderNumber,
		JobId:       order.JobId,
		Status:      string(order.Status),
		RecipientId: order.AssigneeId(),
		UsedRounds:  order.UsedRevisionRounds,
		MaxRounds:   order.MaxRevisionRounds,
	}
	db := config.GetDB().WithContext(ctx)
	if assignee := order.AssigneeId(); assignee != "" {
		if u, err := GetUserByUid(ctx, assignee); err == nil {
			payload.RecipientEmail = u.Email
			payload.RecipientName = u.Name
		}
	}
	var job Job
	if err := db.Where("id = ?", order.JobId).First(&job).Error; err == nil {
		payload.Address = job.Address
	}
	if order.CustomerId != nil {
		var customer Customer
		if err := db.Where("id = ?", *order.CustomerId).First(&customer).Error; err == nil {
			payload.CustomerName = customer.Name
		}
	}
	var names []string
	db.Model(&Product{}).
		Joins("JOIN order_services ON order_services.service_id = products.id").
		Where("order_services.order_id = ?", order.ID).
		Order("products.name").
		Pluck("products.name", &names)
	payload.Services = names
	return payload
}

// orderStep is the write half of an order action, run inside the caller's
// transaction after every precondition has been checked.
type orderStep func(tx *gorm.DB) error

func runOrderStep(ctx context.Context, step orderStep) error {
	return config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return step(tx)
	})
}

func checkTransition(order *Order, to OrderStatus) error {
	if order.Status.IsTerminal() {
		return utils.Conflict("order is already " + string(order.Status))
	}
	if !CanTransition(order.Status, to) {
		return utils.Conflict("cannot move order from " + string(order.Status) + " to " + string(to))
	}
	return nil
}

// PassQC completes an order from processing, in_progress or human_check.
func PassQC(ctx context.Context, orderId string) (*Order, error) {
	ctx, span := tracer.Start(ctx, "models.PassQC")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderId))

	order, err := loadManagedOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	step, err := planPassQC(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := runOrderStep(ctx, step); err != nil {
		return nil, err
	}
	return order, nil
}

func planPassQC(ctx context.Context, order *Order) (orderStep, error) {
	if err := checkTransition(order, OrderStatusCompleted); err != nil {
		return nil, err
	}
	email := buildQCEmail(ctx, order)
	xeroConnected := HasIntegration(ctx, order.PartnerId, IntegrationProviderXero)

	return func(tx *gorm.DB) error {
		now := time.Now()
		if err := transitionOrder(ctx, tx, order, OrderStatusCompleted, map[string]interface{}{
			"revision_notes": nil,
			"completed_at":   now,
		}); err != nil {
			return err
		}
		order.RevisionNotes = nil
		order.CompletedAt = &now
		email.Status = string(order.Status)
		if err := notify(tx, order.PartnerId, []string{order.AssigneeId()}, notificationMessage{
			Type:    NotificationTypeQCPassed,
			Title:   "Order " + order.OrderNumber + " approved",
			Body:    "Quality check passed. Nice work.",
			OrderId: &order.ID,
			JobId:   &order.JobId,
		}); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, order.PartnerId, EventQCPassed, email); err != nil {
			return err
		}
		if xeroConnected {
			if err := enqueueEvent(ctx, tx, order.PartnerId, EventXeroInvoiceSync, OrderEventPayload{
				OrderId:     order.ID,
				OrderNumber: order.OrderNumber,
				JobId:       order.JobId,
				Status:      string(order.Status),
			}); err != nil {
				return err
			}
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId: order.PartnerId,
			JobId:     &order.JobId,
			OrderId:   &order.ID,
			Action:    "qc_passed",
			Category:  ActivityCategoryQC,
			Title:     "QC passed for order " + order.OrderNumber,
		})
	}, nil
}

// RequestRevision sends an order back to the editor. The revision cap is
// soft: exceeding it still transitions and returns a warning.
func RequestRevision(ctx context.Context, orderId, notes string) (*Order, string, error) {
	ctx, span := tracer.Start(ctx, "models.RequestRevision")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderId))

	if strings.TrimSpace(notes) == "" {
		return nil, "", revisionNotesRequired()
	}
	order, err := loadManagedOrder(ctx, orderId)
	if err != nil {
		return nil, "", err
	}
	step, warning, err := planRevision(ctx, order, notes)
	if err != nil {
		return nil, "", err
	}
	if err := runOrderStep(ctx, step); err != nil {
		return nil, "", err
	}
	return order, warning, nil
}

func revisionNotesRequired() error {
	return utils.BadRequest("revisionNotes is required", map[string]string{"revisionNotes": "required"})
}

func planRevision(ctx context.Context, order *Order, notes string) (orderStep, string, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, "", revisionNotesRequired()
	}
	if err := checkTransition(order, OrderStatusInRevision); err != nil {
		return nil, "", err
	}
	email := buildQCEmail(ctx, order)
	newRounds := order.UsedRevisionRounds + 1
	var warning string
	if newRounds > order.MaxRevisionRounds {
		warning = fmt.Sprintf("revision round %d exceeds the limit of %d", newRounds, order.MaxRevisionRounds)
	}

	return func(tx *gorm.DB) error {
		if err := transitionOrder(ctx, tx, order, OrderStatusInRevision, map[string]interface{}{
			"revision_notes":       notes,
			"used_revision_rounds": gorm.Expr("used_revision_rounds + 1"),
		}); err != nil {
			return err
		}
		order.UsedRevisionRounds = newRounds
		order.RevisionNotes = &notes
		email.Status = string(order.Status)
		email.Notes = notes
		email.UsedRounds = newRounds
		if err := notify(tx, order.PartnerId, []string{order.AssigneeId()}, notificationMessage{
			Type:    NotificationTypeRevisionRequested,
			Title:   "Revision requested for order " + order.OrderNumber,
			Body:    notes,
			OrderId: &order.ID,
			JobId:   &order.JobId,
		}); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, order.PartnerId, EventRevisionRequested, email); err != nil {
			return err
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   order.PartnerId,
			JobId:       &order.JobId,
			OrderId:     &order.ID,
			Action:      "revision_requested",
			Category:    ActivityCategoryQC,
			Title:       "Revision requested for order " + order.OrderNumber,
			Description: notes,
			Metadata:    map[string]int{"round": newRounds, "max": order.MaxRevisionRounds},
		})
	}, warning, nil
}

// CancelOrder moves any non-terminal order to cancelled.
func CancelOrder(ctx context.Context, orderId string) (*Order, error) {
	order, err := loadManagedOrder(ctx, orderId)
	if err != nil {
		return nil, err
	}
	step, err := planCancel(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := runOrderStep(ctx, step); err != nil {
		return nil, err
	}
	return order, nil
}

func planCancel(ctx context.Context, order *Order) (orderStep, error) {
	if err := checkTransition(order, OrderStatusCancelled); err != nil {
		return nil, err
	}
	return func(tx *gorm.DB) error {
		if err := transitionOrder(ctx, tx, order, OrderStatusCancelled, nil); err != nil {
			return err
		}
		if err := notify(tx, order.PartnerId, []string{order.AssigneeId()}, notificationMessage{
			Type:    NotificationTypeOrderCancelled,
			Title:   "Order " + order.OrderNumber + " cancelled",
			OrderId: &order.ID,
			JobId:   &order.JobId,
		}); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, order.PartnerId, EventOrderCancelled, OrderEventPayload{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			JobId:       order.JobId,
			Status:      string(order.Status),
		})
	}, nil
}
