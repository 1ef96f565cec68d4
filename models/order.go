package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Order struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	OrderNumber        string          `gorm:"size:32;not null;uniqueIndex:idx_order_partner_number,priority:2" json:"orderNumber"`
	PartnerId          string          `gorm:"size:64;not null;uniqueIndex:idx_order_partner_number,priority:1;index:idx_order_partner_status,priority:1" json:"partnerId"`
	JobId              string          `gorm:"size:36;not null;index" json:"jobId"`
	CustomerId         *string         `gorm:"size:36;index" json:"customerId"`
	CreatedBy          string          `gorm:"size:128;not null" json:"createdBy"`
	Status             OrderStatus     `gorm:"size:20;not null;index:idx_order_partner_status,priority:2" json:"status"`
	AssignedTo         *string         `gorm:"size:128;index" json:"assignedTo"`
	EstimatedTotal     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"estimatedTotal"`
	UsedRevisionRounds int             `gorm:"not null;default:0" json:"usedRevisionRounds"`
	MaxRevisionRounds  int             `gorm:"not null" json:"maxRevisionRounds"`
	RevisionNotes      *string         `gorm:"type:text" json:"revisionNotes"`
	FilesExpiryDate    time.Time       `json:"filesExpiryDate"`
	CompletedAt        *time.Time      `json:"completedAt"`
	XeroInvoiceId      *string         `gorm:"size:64" json:"xeroInvoiceId"`
	Services           []OrderService  `gorm:"foreignKey:OrderId" json:"services,omitempty"`
	Files              []OrderFile     `gorm:"foreignKey:OrderId" json:"files,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (o Order) GetPartnerId() string {
	return o.PartnerId
}

func (o Order) AssigneeId() string {
	return utils.DereferencePtr(o.AssignedTo)
}

// OrderService is one requested service line of an order.
type OrderService struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	OrderId      string         `gorm:"size:36;not null;index" json:"orderId"`
	PartnerId    string         `gorm:"size:64;not null;index" json:"partnerId"`
	ServiceId    string         `gorm:"size:36;not null;index" json:"serviceId"`
	Quantity     int            `gorm:"not null;default:1" json:"quantity"`
	Instructions datatypes.JSON `json:"instructions"`
	ExportTypes  datatypes.JSON `json:"exportTypes"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// OrderFile is a partner-provided source file (raw shots) kept for
// ORDER_FILE_RETENTION_DAYS.
type OrderFile struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	OrderId     string    `gorm:"size:36;not null;index" json:"orderId"`
	PartnerId   string    `gorm:"size:64;not null;index" json:"partnerId"`
	UploadedBy  string    `gorm:"size:128;not null" json:"uploadedBy"`
	FileName    string    `gorm:"size:500;not null" json:"fileName"`
	ObjectKey   string    `gorm:"size:1024;not null" json:"objectKey"`
	ContentType string    `gorm:"size:128" json:"contentType"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expiresAt"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

type NewOrderService struct {
	ServiceId    string `json:"serviceId" binding:"required"`
	Quantity     int    `json:"quantity"`
	Instructions any    `json:"instructions"`
	ExportTypes  any    `json:"exportTypes"`
}

type NewOrderFile struct {
	FileName    string `json:"fileName" binding:"required"`
	ObjectKey   string `json:"objectKey" binding:"required"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type NewOrder struct {
	JobId             string            `json:"jobId" binding:"required"`
	OrderNumber       string            `json:"orderNumber"`
	CustomerId        *string           `json:"customerId"`
	AssignedTo        *string           `json:"assignedTo"`
	EstimatedTotal    *decimal.Decimal  `json:"estimatedTotal"`
	MaxRevisionRounds *int              `json:"maxRevisionRounds"`
	Services          []NewOrderService `json:"services"`
	Files             []NewOrderFile    `json:"files"`
}

// UpdateOrderInput has no partner field: an order's tenant is fixed at creation.
type UpdateOrderInput struct {
	Status            *OrderStatus     `json:"status"`
	RevisionNotes     *string          `json:"revisionNotes"`
	CustomerId        *string          `json:"customerId"`
	EstimatedTotal    *decimal.Decimal `json:"estimatedTotal"`
	MaxRevisionRounds *int             `json:"maxRevisionRounds"`
}

type OrderFilter struct {
	Status     string `form:"status"`
	JobId      string `form:"jobId"`
	AssignedTo string `form:"assignedTo"`
	PageRequest
}

type OrderEventPayload struct {
	OrderId     string   `json:"orderId"`
	OrderNumber string   `json:"orderNumber"`
	JobId       string   `json:"jobId"`
	Status      string   `json:"status"`
	Recipients  []string `json:"recipients,omitempty"`
}

func (input *NewOrder) validate(ctx context.Context, partnerId string, job *Job) error {
	details := map[string]string{}
	serviceIds := make([]string, 0, len(input.Services))
	for i := range input.Services {
		s := &input.Services[i]
		if strings.TrimSpace(s.ServiceId) == "" {
			details["services.serviceId"] = "required"
		}
		if s.Quantity == 0 {
			s.Quantity = 1
		}
		if s.Quantity < 0 {
			details["services.quantity"] = "gte"
		}
		serviceIds = append(serviceIds, s.ServiceId)
	}
	prefix := utils.JobObjectPrefix(partnerId, job.ID)
	for _, f := range input.Files {
		if !utils.ObjectKeyInPrefix(f.ObjectKey, prefix) {
			details["files.objectKey"] = "prefix"
		}
	}
	if input.MaxRevisionRounds != nil && *input.MaxRevisionRounds < 0 {
		details["maxRevisionRounds"] = "gte"
	}
	if input.EstimatedTotal != nil && input.EstimatedTotal.IsNegative() {
		details["estimatedTotal"] = "gte"
	}
	if len(details) > 0 {
		return utils.BadRequest("invalid order", details)
	}
	if err := utils.ValidateResourcesId[Product](ctx, partnerId, serviceIds); err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return utils.BadRequest("unknown service", map[string]string{"services.serviceId": "exists"})
		}
		return err
	}
	return validateCustomerRef(ctx, partnerId, input.CustomerId)
}

func findOrderByNumber(ctx context.Context, partnerId, orderNumber string) (*Order, error) {
	var order Order
	err := config.GetDB().WithContext(ctx).
		Preload("Services").Preload("Files").
		Where("partner_id = ? AND order_number = ?", partnerId, orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// replayedOrder answers a resubmission of an already used number. Only the
// caller who submitted it, for the same job, gets the order back.
func replayedOrder(existing *Order, userId, jobId string) (*Order, bool, error) {
	if existing.CreatedBy != userId {
		return nil, false, utils.BadRequest("reservation belongs to another user")
	}
	if existing.JobId != jobId {
		return nil, false, utils.BadRequest("reservation is for a different job")
	}
	return existing, false, nil
}

// SubmitOrder creates an order with its services and files. With an
// orderNumber it is idempotent: resubmitting a number that already produced
// an order returns that order and created=false.
func SubmitOrder(ctx context.Context, input *NewOrder) (*Order, bool, error) {
	ctx, span := tracer.Start(ctx, "models.SubmitOrder")
	defer span.End()

	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, false, err
	}
	userId, err := callerUserId(ctx)
	if err != nil {
		return nil, false, err
	}
	job, err := GetJob(ctx, input.JobId)
	if err != nil {
		return nil, false, err
	}
	input.OrderNumber = strings.TrimSpace(input.OrderNumber)
	if input.OrderNumber != "" {
		existing, err := findOrderByNumber(ctx, partnerId, input.OrderNumber)
		if err == nil {
			return replayedOrder(existing, userId, job.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}
	if err := input.validate(ctx, partnerId, job); err != nil {
		return nil, false, err
	}

	assignee := strings.TrimSpace(utils.DereferencePtr(input.AssignedTo))
	if assignee != "" {
		ok, err := HasActivePartnership(ctx, nil, partnerId, assignee)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, utils.Forbidden("editor has no active partnership with this partner")
		}
	}

	serviceIds := make([]string, 0, len(input.Services))
	for _, s := range input.Services {
		serviceIds = append(serviceIds, s.ServiceId)
	}
	var recipients []string
	if assignee != "" {
		recipients = []string{assignee}
	} else {
		recipients, err = CandidateEditors(ctx, partnerId, serviceIds)
		if err != nil {
			return nil, false, err
		}
	}

	now := time.Now()
	customerId := input.CustomerId
	if customerId == nil || *customerId == "" {
		customerId = job.CustomerId
	}
	order := Order{
		ID:                newId(),
		PartnerId:         partnerId,
		JobId:             job.ID,
		CustomerId:        customerId,
		CreatedBy:         userId,
		Status:            OrderStatusPending,
		EstimatedTotal:    utils.DereferencePtr(input.EstimatedTotal, decimal.Zero),
		MaxRevisionRounds: utils.DereferencePtr(input.MaxRevisionRounds, config.DefaultMaxRevisionRounds()),
		FilesExpiryDate:   now.Add(config.OrderFileRetention()),
	}
	if assignee != "" {
		order.AssignedTo = &assignee
		order.Status = OrderStatusProcessing
	}
	for _, s := range input.Services {
		order.Services = append(order.Services, OrderService{
			ID:           newId(),
			OrderId:      order.ID,
			PartnerId:    partnerId,
			ServiceId:    s.ServiceId,
			Quantity:     s.Quantity,
			Instructions: toJSON(s.Instructions),
			ExportTypes:  toJSON(s.ExportTypes),
		})
	}
	for _, f := range input.Files {
		order.Files = append(order.Files, OrderFile{
			ID:          newId(),
			OrderId:     order.ID,
			PartnerId:   partnerId,
			UploadedBy:  userId,
			FileName:    f.FileName,
			ObjectKey:   f.ObjectKey,
			ContentType: f.ContentType,
			Size:        f.Size,
			ExpiresAt:   order.FilesExpiryDate,
		})
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.OrderNumber != "" {
			if err := claimReservation(ctx, tx, partnerId, userId, job.ID, input.OrderNumber); err != nil {
				return err
			}
			order.OrderNumber = input.OrderNumber
		} else {
			number, err := nextOrderNumber(ctx, tx, partnerId)
			if err != nil {
				return err
			}
			order.OrderNumber = number
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		notifType, eventType, title := NotificationTypeOrderCreated, EventOrderCreated, "New order available"
		if assignee != "" {
			notifType, eventType, title = NotificationTypeOrderAssigned, EventOrderAssigned, "Order assigned to you"
		}
		if err := notify(tx, partnerId, recipients, notificationMessage{
			Type:    notifType,
			Title:   title,
			Body:    "Order " + order.OrderNumber + " at " + job.Address,
			OrderId: &order.ID,
			JobId:   &job.ID,
		}); err != nil {
			return err
		}
		if err := enqueueEvent(ctx, tx, partnerId, eventType, OrderEventPayload{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			JobId:       job.ID,
			Status:      string(order.Status),
			Recipients:  recipients,
		}); err != nil {
			return err
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   partnerId,
			JobId:       &job.ID,
			OrderId:     &order.ID,
			Action:      "order_created",
			Category:    ActivityCategoryOrder,
			Title:       "Order " + order.OrderNumber + " created",
			Description: job.Address,
			Metadata:    map[string]any{"services": len(order.Services), "files": len(order.Files)},
		})
	})
	if err != nil {
		// A concurrent submit with the same reserved number may have won.
		if input.OrderNumber != "" {
			if existing, ferr := findOrderByNumber(ctx, partnerId, input.OrderNumber); ferr == nil {
				return replayedOrder(existing, userId, job.ID)
			}
		}
		return nil, false, err
	}
	return &order, true, nil
}

func GetOrder(ctx context.Context, id string) (*Order, error) {
	return GetResource[Order](ctx, id, "Services", "Files")
}

func GetOrders(ctx context.Context, filter OrderFilter) ([]*Order, PageInfo, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.JobId != "" {
		job, err := GetJob(ctx, filter.JobId)
		if err != nil {
			return nil, PageInfo{}, err
		}
		dbCtx = dbCtx.Where("job_id = ?", job.ID)
	}
	if filter.AssignedTo != "" {
		dbCtx = dbCtx.Where("assigned_to = ?", filter.AssignedTo)
	}
	var orders []*Order
	if err := paginate(dbCtx, filter.PageRequest).Preload("Services").Find(&orders).Error; err != nil {
		return nil, PageInfo{}, err
	}
	orders, info := pageOf(orders, filter.PageRequest, func(o *Order) string { return EncodeCompositeCursor(o.CreatedAt, o.ID) })
	return orders, info, nil
}

// UpdateOrder applies partner edits. Status changes go through the same
// transition table as the QC endpoints. Every check runs before anything is
// written; field edits and the transition commit together.
func UpdateOrder(ctx context.Context, id string, input *UpdateOrderInput) (*Order, string, error) {
	if _, err := requireManager(ctx); err != nil {
		return nil, "", err
	}
	order, err := GetResource[Order](ctx, id)
	if err != nil {
		return nil, "", err
	}

	updates := map[string]interface{}{}
	if input.CustomerId != nil {
		if err := validateCustomerRef(ctx, order.PartnerId, input.CustomerId); err != nil {
			return nil, "", err
		}
		order.CustomerId = utils.NilIfEmpty(*input.CustomerId)
		updates["customer_id"] = order.CustomerId
	}
	if input.EstimatedTotal != nil {
		if input.EstimatedTotal.IsNegative() {
			return nil, "", utils.BadRequest("estimatedTotal cannot be negative")
		}
		order.EstimatedTotal = *input.EstimatedTotal
		updates["estimated_total"] = *input.EstimatedTotal
	}
	if input.MaxRevisionRounds != nil {
		if *input.MaxRevisionRounds < 0 {
			return nil, "", utils.BadRequest("maxRevisionRounds cannot be negative")
		}
		order.MaxRevisionRounds = *input.MaxRevisionRounds
		updates["max_revision_rounds"] = *input.MaxRevisionRounds
	}

	var step orderStep
	var warning string
	if input.Status != nil && *input.Status != order.Status {
		step, warning, err = planStatusChange(ctx, order, *input.Status, utils.DereferencePtr(input.RevisionNotes))
		if err != nil {
			return nil, "", err
		}
	}

	if len(updates) > 0 || step != nil {
		err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if len(updates) > 0 {
				if err := tx.Model(&Order{}).
					Where("id = ? AND partner_id = ?", order.ID, order.PartnerId).
					Updates(updates).Error; err != nil {
					return err
				}
			}
			if step != nil {
				return step(tx)
			}
			return nil
		})
		if err != nil {
			return nil, "", err
		}
	}
	updated, err := loadById[Order](ctx, order.ID, "Services", "Files")
	return updated, warning, err
}

// planStatusChange picks the action behind a PATCHed status.
func planStatusChange(ctx context.Context, order *Order, to OrderStatus, notes string) (orderStep, string, error) {
	if !to.IsValid() {
		return nil, "", utils.BadRequest("invalid status")
	}
	switch to {
	case OrderStatusCompleted:
		step, err := planPassQC(ctx, order)
		return step, "", err
	case OrderStatusInRevision:
		return planRevision(ctx, order, notes)
	case OrderStatusCancelled:
		step, err := planCancel(ctx, order)
		return step, "", err
	case OrderStatusPending:
		return nil, "", utils.Conflict("orders cannot return to pending")
	}
	if to == OrderStatusProcessing && order.AssigneeId() == "" {
		return nil, "", utils.Conflict("assign an editor before processing")
	}
	if err := checkTransition(order, to); err != nil {
		return nil, "", err
	}
	return func(tx *gorm.DB) error {
		if err := transitionOrder(ctx, tx, order, to, nil); err != nil {
			return err
		}
		return enqueueEvent(ctx, tx, order.PartnerId, EventOrderStatusChanged, OrderEventPayload{
			OrderId:     order.ID,
			OrderNumber: order.OrderNumber,
			JobId:       order.JobId,
			Status:      string(order.Status),
		})
	}, "", nil
}
