package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/integrations/calendarsync"
	"github.com/photoflow/studio_backend/integrations/mailer"
	"github.com/photoflow/studio_backend/integrations/xerosync"
	"github.com/photoflow/studio_backend/models"
	"github.com/photoflow/studio_backend/utils"
	"github.com/sirupsen/logrus"
)

// EmailEventTypes are the outbox events that send mail.
var EmailEventTypes = []string{
	models.EventTeamInvite,
	models.EventPartnershipInvite,
	models.EventOrderCreated,
	models.EventOrderAssigned,
	models.EventRevisionRequested,
	models.EventQCPassed,
}

// RegisterDefaultHandlers wires mail, calendar and Xero delivery.
func RegisterDefaultHandlers(d *OutboxDispatcher, sender mailer.Sender) {
	d.Handle("email", EmailHandler(sender), EmailEventTypes...)
	d.Handle("calendar", CalendarHandler(d.Logger), models.EventCalendarEventSync)
	d.Handle("xero", XeroHandler(d.Logger), models.EventXeroInvoiceSync)
}

func isNotFound(err error) bool {
	return utils.AsAppError(err).Status == http.StatusNotFound
}

// BuildEmails turns an outbox event into the messages it should send.
func BuildEmails(ctx context.Context, ev models.OutboxEvent) ([]mailer.Message, error) {
	switch ev.EventType {
	case models.EventTeamInvite, models.EventPartnershipInvite:
		var p models.InviteEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		msg, err := mailer.InviteEmail(p, ev.EventType == models.EventPartnershipInvite)
		if err != nil {
			return nil, err
		}
		return []mailer.Message{msg}, nil

	case models.EventRevisionRequested, models.EventQCPassed:
		var p models.QCEmailPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		if p.RecipientEmail == "" {
			return nil, nil
		}
		build := mailer.QCPassedEmail
		if ev.EventType == models.EventRevisionRequested {
			build = mailer.RevisionEmail
		}
		msg, err := build(p)
		if err != nil {
			return nil, err
		}
		return []mailer.Message{msg}, nil

	case models.EventOrderCreated, models.EventOrderAssigned:
		var p models.OrderEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil, err
		}
		if len(p.Recipients) == 0 {
			return nil, nil
		}
		users, err := models.GetUsersByIds(ctx, p.Recipients)
		if err != nil {
			return nil, err
		}
		var out []mailer.Message
		for _, uid := range p.Recipients {
			u, ok := users[uid]
			if !ok || u.Email == "" {
				continue
			}
			msg, err := mailer.OrderEmail(u, p, ev.EventType == models.EventOrderAssigned)
			if err != nil {
				return nil, err
			}
			out = append(out, msg)
		}
		return out, nil
	}
	return nil, nil
}

func EmailHandler(sender mailer.Sender) EventHandler {
	return func(ctx context.Context, ev models.OutboxEvent) error {
		msgs, err := BuildEmails(ctx, ev)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			if err := sender.Send(ctx, m); err != nil {
				return err
			}
		}
		return nil
	}
}

// CalendarHandler pushes a job's appointment into the partner's Google
// Calendar. Partners without a connection are skipped.
func CalendarHandler(logger *logrus.Logger) EventHandler {
	return func(ctx context.Context, ev models.OutboxEvent) error {
		var p models.CalendarEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		conn, err := models.GetIntegrationConnection(ctx, ev.PartnerId, models.IntegrationProviderGoogleCalendar)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		cfg, err := calendarsync.OAuthConfig()
		if errors.Is(err, calendarsync.ErrNotConfigured) {
			logger.WithFields(logrus.Fields{"field": "CalendarHandler", "partner_id": ev.PartnerId}).Warn(err.Error())
			return nil
		}
		if err != nil {
			return err
		}
		job, err := models.LoadJobForSync(ctx, p.JobId)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		var customer *models.Customer
		if job.CustomerId != nil {
			if c, err := models.LoadCustomerForSync(ctx, *job.CustomerId); err == nil {
				customer = c
			}
		}
		eventId, err := calendarsync.SyncJob(ctx, cfg, conn, job, customer)
		if err != nil || eventId == "" {
			return err
		}
		return models.SetJobCalendarEvent(ctx, job.ID, eventId)
	}
}

// XeroHandler creates a draft invoice for a completed order once.
func XeroHandler(logger *logrus.Logger) EventHandler {
	return func(ctx context.Context, ev models.OutboxEvent) error {
		var p models.OrderEventPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}
		order, err := models.LoadOrderForSync(ctx, p.OrderId)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if order.XeroInvoiceId != nil && *order.XeroInvoiceId != "" {
			return nil
		}
		conn, err := models.GetIntegrationConnection(ctx, order.PartnerId, models.IntegrationProviderXero)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		cfg, err := xerosync.OAuthConfig()
		if errors.Is(err, xerosync.ErrNotConfigured) {
			logger.WithFields(logrus.Fields{"field": "XeroHandler", "partner_id": order.PartnerId}).Warn(err.Error())
			return nil
		}
		if err != nil {
			return err
		}

		serviceIds := make([]string, 0, len(order.Services))
		for _, s := range order.Services {
			serviceIds = append(serviceIds, s.ServiceId)
		}
		products, err := models.ProductNames(ctx, serviceIds)
		if err != nil {
			return err
		}
		job, _ := models.LoadJobForSync(ctx, order.JobId)
		var customer *models.Customer
		if order.CustomerId != nil {
			customer, _ = models.LoadCustomerForSync(ctx, *order.CustomerId)
		}

		invoiceId, err := xerosync.CreateDraftInvoice(ctx, cfg, conn, xerosync.BuildInvoice(order, job, customer, products))
		if err != nil {
			return err
		}
		if err := models.SetOrderXeroInvoice(ctx, order.ID, invoiceId); err != nil {
			config.LogError(logger, "XeroHandler", "SetOrderXeroInvoice", "store invoice id", invoiceId, err)
			return err
		}
		return nil
	}
}
