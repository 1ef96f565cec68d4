package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/photoflow/studio_backend/models"
	"github.com/sirupsen/logrus"
)

func TestRevisionEmail(t *testing.T) {
	msg, err := RevisionEmail(models.QCEmailPayload{
		OrderId:        "o1",
		OrderNumber:    "PF00012",
		RecipientEmail: "editor@example.com",
		RecipientName:  "Eddie",
		CustomerName:   "Acme Realty",
		Address:        "1 Harbour St",
		Services:       []string{"HDR Editing", "Sky <Replacement>"},
		Notes:          "Brighten the kitchen",
		UsedRounds:     3,
		MaxRounds:      2,
	})
	if err != nil {
		t.Fatalf("RevisionEmail: %v", err)
	}
	if msg.To != "editor@example.com" || !strings.Contains(msg.Subject, "PF00012") {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	for _, want := range []string{"Acme Realty", "1 Harbour St", "HDR Editing", "Brighten the kitchen", "round 3 of 2"} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("text body missing %q:\n%s", want, msg.Text)
		}
	}
	if strings.Contains(msg.HTML, "<Replacement>") {
		t.Fatalf("html body not escaped:\n%s", msg.HTML)
	}
}

func TestInviteEmail_Partnership(t *testing.T) {
	msg, err := InviteEmail(models.InviteEventPayload{
		Email:     "ed@example.com",
		AcceptURL: "https://app.example.com/invites/accept?token=abc",
	}, true)
	if err != nil {
		t.Fatalf("InviteEmail: %v", err)
	}
	if !strings.Contains(msg.HTML, "token=abc") {
		t.Fatalf("accept link missing:\n%s", msg.HTML)
	}
}

func TestLogSender(t *testing.T) {
	logger := logrus.New()
	if err := (LogSender{Logger: logger}).Send(context.Background(), Message{To: "a@b.c", Subject: "s"}); err != nil {
		t.Fatalf("LogSender.Send: %v", err)
	}
}
