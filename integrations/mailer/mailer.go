package mailer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/photoflow/studio_backend/config"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid sender when SENDGRID_API_KEY is set, otherwise a
// sender that only logs.
func New() Sender {
	key := strings.TrimSpace(os.Getenv("SENDGRID_API_KEY"))
	if key == "" {
		return LogSender{Logger: config.GetLogger()}
	}
	from := strings.TrimSpace(os.Getenv("MAIL_FROM"))
	if from == "" {
		from = "no-reply@photoflow.studio"
	}
	name := strings.TrimSpace(os.Getenv("MAIL_FROM_NAME"))
	if name == "" {
		name = "Photoflow Studio"
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(key),
		from:   mail.NewEmail(name, from),
	}
}

type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("mailer: empty recipient")
	}
	m := mail.NewSingleEmail(s.from, msg.Subject, mail.NewEmail(msg.ToName, msg.To), msg.Text, msg.HTML)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

type LogSender struct {
	Logger *logrus.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.WithFields(logrus.Fields{
		"field":   "mailer",
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("SENDGRID_API_KEY not set; email not sent")
	return nil
}
