package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Job is a property shoot. It is addressable by its internal ID and by the
// public JobId shown to customers; storage always references the internal ID.
type Job struct {
	ID              string          `gorm:"primaryKey;size:36" json:"id"`
	JobId           string          `gorm:"size:20;not null;uniqueIndex" json:"jobId"`
	PartnerId       string          `gorm:"size:64;not null;index" json:"partnerId"`
	Address         string          `gorm:"size:500;not null" json:"address"`
	CustomerId      *string         `gorm:"size:36;index" json:"customerId"`
	Status          JobStatus       `gorm:"size:20;not null;index" json:"status"`
	TotalValue      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"totalValue"`
	AppointmentDate *time.Time      `json:"appointmentDate"`
	CalendarEventId *string         `gorm:"size:255" json:"calendarEventId"`
	Notes           string          `gorm:"type:text" json:"notes"`
	CreatedBy       string          `gorm:"size:128" json:"createdBy"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (j Job) GetPartnerId() string {
	return j.PartnerId
}

type NewJob struct {
	Address         string           `json:"address" binding:"required"`
	CustomerId      *string          `json:"customerId"`
	TotalValue      *decimal.Decimal `json:"totalValue"`
	AppointmentDate *time.Time       `json:"appointmentDate"`
	Notes           string           `json:"notes"`
}

type UpdateJobInput struct {
	Address         *string          `json:"address"`
	CustomerId      *string          `json:"customerId"`
	Status          *JobStatus       `json:"status"`
	TotalValue      *decimal.Decimal `json:"totalValue"`
	AppointmentDate *time.Time       `json:"appointmentDate"`
	Notes           *string          `json:"notes"`
}

type JobFilter struct {
	Status string `form:"status"`
	PageRequest
}

type CalendarEventPayload struct {
	JobId string `json:"jobId"`
}

// ResolveJob accepts either the internal id or the public jobId. It does not
// check ownership; use GetJob for tenant callers.
func ResolveJob(ctx context.Context, ref string) (*Job, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, utils.BadRequest("job id is required")
	}
	var job Job
	err := config.GetDB().WithContext(crossTenant(ctx)).
		Where("id = ? OR job_id = ?", ref, ref).
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("job not found")
		}
		return nil, err
	}
	return &job, nil
}

// GetJob resolves a job reference and enforces tenant ownership.
func GetJob(ctx context.Context, ref string) (*Job, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	job, err := ResolveJob(ctx, ref)
	if err != nil {
		return nil, err
	}
	if job.PartnerId != partnerId {
		return nil, utils.Forbidden("cannot access resource owned by other partner")
	}
	return job, nil
}

func validateCustomerRef(ctx context.Context, partnerId string, customerId *string) error {
	if customerId == nil || *customerId == "" {
		return nil
	}
	if err := utils.ValidateResourcesId[Customer](ctx, partnerId, []string{*customerId}); err != nil {
		return utils.BadRequest("customer not found", map[string]string{"customerId": "exists"})
	}
	return nil
}

func CreateJob(ctx context.Context, input *NewJob) (*Job, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, err
	}
	userId, err := callerUserId(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Address) == "" {
		return nil, utils.BadRequest("address is required")
	}
	if err := validateCustomerRef(ctx, partnerId, input.CustomerId); err != nil {
		return nil, err
	}
	publicId, err := utils.NewPublicId()
	if err != nil {
		return nil, err
	}

	job := Job{
		ID:              newId(),
		JobId:           publicId,
		PartnerId:       partnerId,
		Address:         strings.TrimSpace(input.Address),
		CustomerId:      utils.NilIfEmpty(utils.DereferencePtr(input.CustomerId)),
		Status:          JobStatusBooked,
		TotalValue:      utils.DereferencePtr(input.TotalValue, decimal.Zero),
		AppointmentDate: input.AppointmentDate,
		Notes:           input.Notes,
		CreatedBy:       userId,
	}

	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		if job.AppointmentDate != nil {
			if err := enqueueEvent(ctx, tx, partnerId, EventCalendarEventSync, CalendarEventPayload{JobId: job.ID}); err != nil {
				return err
			}
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId:   partnerId,
			JobId:       &job.ID,
			Action:      "job_created",
			Category:    ActivityCategoryJob,
			Title:       "Job created",
			Description: job.Address,
		})
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func GetJobs(ctx context.Context, filter JobFilter) ([]*Job, PageInfo, error) {
	partnerId, err := callerPartnerId(ctx)
	if err != nil {
		return nil, PageInfo{}, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Where("partner_id = ?", partnerId)
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	var jobs []*Job
	if err := paginate(dbCtx, filter.PageRequest).Find(&jobs).Error; err != nil {
		return nil, PageInfo{}, err
	}
	jobs, info := pageOf(jobs, filter.PageRequest, func(j *Job) string { return EncodeCompositeCursor(j.CreatedAt, j.ID) })
	return jobs, info, nil
}

func UpdateJob(ctx context.Context, ref string, input *UpdateJobInput) (*Job, error) {
	job, err := GetJob(ctx, ref)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if input.Address != nil {
		if strings.TrimSpace(*input.Address) == "" {
			return nil, utils.BadRequest("address cannot be empty")
		}
		updates["address"] = strings.TrimSpace(*input.Address)
	}
	if input.CustomerId != nil {
		if err := validateCustomerRef(ctx, job.PartnerId, input.CustomerId); err != nil {
			return nil, err
		}
		updates["customer_id"] = utils.NilIfEmpty(*input.CustomerId)
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, utils.BadRequest("invalid status")
		}
		updates["status"] = *input.Status
	}
	if input.TotalValue != nil {
		updates["total_value"] = *input.TotalValue
	}
	if input.AppointmentDate != nil {
		updates["appointment_date"] = *input.AppointmentDate
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if len(updates) == 0 {
		return job, nil
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Job{}).Where("id = ? AND partner_id = ?", job.ID, job.PartnerId).Updates(updates).Error; err != nil {
			return err
		}
		if input.AppointmentDate != nil {
			if err := enqueueEvent(ctx, tx, job.PartnerId, EventCalendarEventSync, CalendarEventPayload{JobId: job.ID}); err != nil {
				return err
			}
		}
		return recordActivity(ctx, tx, ActivityInput{
			PartnerId: job.PartnerId,
			JobId:     &job.ID,
			Action:    "job_updated",
			Category:  ActivityCategoryJob,
			Title:     "Job updated",
			Metadata:  updates,
		})
	})
	if err != nil {
		return nil, err
	}
	return loadById[Job](ctx, job.ID)
}

// SetJobCalendarEvent stores the external event id after a calendar sync.
func SetJobCalendarEvent(ctx context.Context, jobId, eventId string) error {
	return config.GetDB().WithContext(crossTenant(ctx)).Model(&Job{}).
		Where("id = ?", jobId).
		Update("calendar_event_id", eventId).Error
}
