package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/photoflow/studio_backend/config"
	"github.com/photoflow/studio_backend/models"
)

var htmlLayout = template.Must(template.New("email").Parse(`<!doctype html>
<html><body style="font-family:Arial,sans-serif;color:#222">
<h2>{{.Heading}}</h2>
{{range .Lines}}<p>{{.}}</p>
{{end}}{{if .Items}}<ul>{{range .Items}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .Quote}}<blockquote style="border-left:3px solid #ccc;padding-left:8px">{{.Quote}}</blockquote>
{{end}}{{if .Link}}<p><a href="{{.Link}}">{{.LinkLabel}}</a></p>
{{end}}</body></html>`))

type emailBody struct {
	Heading   string
	Lines     []string
	Items     []string
	Quote     string
	Link      string
	LinkLabel string
}

func render(to, toName, subject string, body emailBody) (Message, error) {
	var buf bytes.Buffer
	if err := htmlLayout.Execute(&buf, body); err != nil {
		return Message{}, err
	}
	var text strings.Builder
	text.WriteString(body.Heading + "\n\n")
	for _, l := range body.Lines {
		text.WriteString(l + "\n")
	}
	for _, it := range body.Items {
		text.WriteString("- " + it + "\n")
	}
	if body.Quote != "" {
		text.WriteString("\n" + body.Quote + "\n")
	}
	if body.Link != "" {
		text.WriteString("\n" + body.LinkLabel + ": " + body.Link + "\n")
	}
	return Message{To: to, ToName: toName, Subject: subject, Text: text.String(), HTML: buf.String()}, nil
}

func orderLink(orderId string) string {
	return config.BaseURL() + "/orders/" + orderId
}

func InviteEmail(p models.InviteEventPayload, partnership bool) (Message, error) {
	subject := "You're invited to join a studio team"
	line := fmt.Sprintf("You have been invited to join as %s.", p.Role)
	if partnership {
		subject = "A studio wants to work with you"
		line = "A photography studio invited you to edit their orders."
	}
	return render(p.Email, "", subject, emailBody{
		Heading: subject,
		Lines: []string{
			line,
			"This invitation expires on " + p.ExpiresAt.Format(time.RFC1123) + ".",
		},
		Link:      p.AcceptURL,
		LinkLabel: "Accept invitation",
	})
}

// RevisionEmail summarizes what the editor has to redo.
func RevisionEmail(p models.QCEmailPayload) (Message, error) {
	subject := "Revision requested: order " + p.OrderNumber
	lines := []string{"Order: " + p.OrderNumber}
	if p.CustomerName != "" {
		lines = append(lines, "Customer: "+p.CustomerName)
	}
	if p.Address != "" {
		lines = append(lines, "Address: "+p.Address)
	}
	lines = append(lines, fmt.Sprintf("Revision round %d of %d", p.UsedRounds, p.MaxRounds))
	return render(p.RecipientEmail, p.RecipientName, subject, emailBody{
		Heading:   subject,
		Lines:     lines,
		Items:     p.Services,
		Quote:     p.Notes,
		Link:      orderLink(p.OrderId),
		LinkLabel: "Open order",
	})
}

func QCPassedEmail(p models.QCEmailPayload) (Message, error) {
	subject := "Order " + p.OrderNumber + " approved"
	lines := []string{"The studio approved your work on order " + p.OrderNumber + "."}
	if p.Address != "" {
		lines = append(lines, "Address: "+p.Address)
	}
	return render(p.RecipientEmail, p.RecipientName, subject, emailBody{
		Heading:   subject,
		Lines:     lines,
		Link:      orderLink(p.OrderId),
		LinkLabel: "Open order",
	})
}

// OrderEmail covers new and assigned order notices.
func OrderEmail(to *models.User, p models.OrderEventPayload, assigned bool) (Message, error) {
	subject := "New order available: " + p.OrderNumber
	line := "A partner posted a new order that matches your services."
	if assigned {
		subject = "Order " + p.OrderNumber + " assigned to you"
		line = "You have been assigned order " + p.OrderNumber + "."
	}
	return render(to.Email, to.Name, subject, emailBody{
		Heading:   subject,
		Lines:     []string{line},
		Link:      orderLink(p.OrderId),
		LinkLabel: "Open order",
	})
}
