package calendarsync

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	defaultCalendarId = "primary"
	eventDuration     = time.Hour
	httpTimeout       = 30 * time.Second
)

var ErrNotConfigured = errors.New("calendarsync: GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set")

// OAuthConfig builds the Google OAuth client for the authorize/callback pair.
func OAuthConfig() (*oauth2.Config, error) {
	clientID := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID"))
	secret := strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_SECRET"))
	if clientID == "" || secret == "" {
		return nil, ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: secret,
		Endpoint:     google.Endpoint,
		RedirectURL:  config.BaseURL() + "/api/integrations/" + string(models.IntegrationProviderGoogleCalendar) + "/callback",
		Scopes:       []string{calendar.CalendarEventsScope},
	}, nil
}

// AuthCodeURL asks for offline access so a refresh token comes back.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the callback code for tokens and stores the connection.
func Exchange(ctx context.Context, cfg *oauth2.Config, state *models.OAuthState, code string) (*models.IntegrationConnection, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: httpTimeout})
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	calendarId := defaultCalendarId
	conn := &models.IntegrationConnection{
		PartnerId:    state.PartnerId,
		Provider:     models.IntegrationProviderGoogleCalendar,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		CalendarId:   &calendarId,
		ConnectedBy:  state.UserId,
	}
	if !tok.Expiry.IsZero() {
		conn.TokenExpiry = &tok.Expiry
	}
	if err := models.SaveIntegrationConnection(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func tokenOf(conn *models.IntegrationConnection) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		TokenType:    "Bearer",
	}
	if conn.TokenExpiry != nil {
		tok.Expiry = *conn.TokenExpiry
	}
	return tok
}

// BuildEvent maps a job to a one-hour calendar event at its appointment.
func BuildEvent(job *models.Job, customer *models.Customer) *calendar.Event {
	start := job.AppointmentDate.UTC()
	description := "Job " + job.JobId
	if job.Notes != "" {
		description += "\n\n" + job.Notes
	}
	ev := &calendar.Event{
		Summary:     "Shoot: " + job.Address,
		Location:    job.Address,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: start.Add(eventDuration).Format(time.RFC3339)},
	}
	if customer != nil && customer.Email != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: customer.Email, DisplayName: customer.Name}}
	}
	return ev
}

// SyncJob inserts or updates the job's event in the partner's calendar and
// returns the event id. Refreshed tokens are written back.
func SyncJob(ctx context.Context, cfg *oauth2.Config, conn *models.IntegrationConnection, job *models.Job, customer *models.Customer) (string, error) {
	if job.AppointmentDate == nil {
		return "", nil
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: httpTimeout})
	ts := cfg.TokenSource(ctx, tokenOf(conn))
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return "", err
	}
	calendarId := defaultCalendarId
	if conn.CalendarId != nil && *conn.CalendarId != "" {
		calendarId = *conn.CalendarId
	}

	ev := BuildEvent(job, customer)
	var saved *calendar.Event
	if job.CalendarEventId != nil && *job.CalendarEventId != "" {
		saved, err = svc.Events.Update(calendarId, *job.CalendarEventId, ev).Context(ctx).Do()
	} else {
		saved, err = svc.Events.Insert(calendarId, ev).Context(ctx).Do()
	}
	if err != nil {
		return "", err
	}

	if tok, terr := ts.Token(); terr == nil && tok.AccessToken != conn.AccessToken {
		if err := models.UpdateIntegrationTokens(ctx, conn.ID, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
			config.LogError(config.GetLogger(), "calendarsync", "SyncJob", "persist refreshed token", conn.PartnerId, err)
		}
	}
	return saved.Id, nil
}
