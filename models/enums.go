package models

type UserRole string

const (
	UserRolePartner      UserRole = "partner"
	UserRoleAdmin        UserRole = "admin"
	UserRolePhotographer UserRole = "photographer"
	UserRoleEditor       UserRole = "editor"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRolePartner, UserRoleAdmin, UserRolePhotographer, UserRoleEditor:
		return true
	}
	return false
}

// CanManageTenant is true for roles allowed to run partner-side actions
// (assignment, QC, invites, catalog).
func (r UserRole) CanManageTenant() bool {
	return r == UserRolePartner || r == UserRoleAdmin
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
	InviteStatusRevoked  InviteStatus = "revoked"
	InviteStatusDeclined InviteStatus = "declined"
)

type JobStatus string

const (
	JobStatusBooked     JobStatus = "booked"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusDelivered  JobStatus = "delivered"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusBooked, JobStatusInProgress, JobStatusDelivered, JobStatusCancelled:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusInRevision OrderStatus = "in_revision"
	OrderStatusHumanCheck OrderStatus = "human_check"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusInProgress, OrderStatusInRevision,
		OrderStatusHumanCheck, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
)

type NotificationType string

const (
	NotificationTypeOrderCreated       NotificationType = "order_created"
	NotificationTypeOrderAssigned      NotificationType = "order_assigned"
	NotificationTypeRevisionRequested  NotificationType = "revision_requested"
	NotificationTypeQCPassed           NotificationType = "qc_passed"
	NotificationTypeOrderCancelled     NotificationType = "order_cancelled"
	NotificationTypeDeliverablesUpload NotificationType = "deliverables_uploaded"
	NotificationTypeSubmittedForQC     NotificationType = "submitted_for_qc"
)

type ActivityCategory string

const (
	ActivityCategoryOrder       ActivityCategory = "order"
	ActivityCategoryJob         ActivityCategory = "job"
	ActivityCategoryQC          ActivityCategory = "qc"
	ActivityCategoryUpload      ActivityCategory = "upload"
	ActivityCategoryTeam        ActivityCategory = "team"
	ActivityCategoryIntegration ActivityCategory = "integration"
)

// Outbox event types. Consumers key on these strings.
const (
	EventOrderCreated       = "order.created"
	EventOrderAssigned      = "order.assigned"
	EventOrderStatusChanged = "order.status_changed"
	EventRevisionRequested  = "order.revision_requested"
	EventQCPassed           = "order.qc_passed"
	EventOrderCancelled     = "order.cancelled"
	EventDeliverablesUpload = "order.deliverables_uploaded"
	EventTeamInvite         = "team.invite_created"
	EventPartnershipInvite  = "partnership.invite_created"
	EventXeroInvoiceSync    = "xero.invoice_sync"
	EventCalendarEventSync  = "calendar.event_sync"
)

// Outbox publish statuses. Keep these as strings (DB values).
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type IntegrationProvider string

const (
	IntegrationProviderGoogleCalendar IntegrationProvider = "google_calendar"
	IntegrationProviderXero           IntegrationProvider = "xero"
)

func (p IntegrationProvider) IsValid() bool {
	return p == IntegrationProviderGoogleCalendar || p == IntegrationProviderXero
}
