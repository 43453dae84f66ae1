// Package mail delivers invitation emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/upb/esign-platform/config"
	"go.uber.org/zap"
)

// Drivers accepted by New.
const (
	DriverLog  = "log"
	DriverSMTP = "smtp"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Invitation holds what the invitation email shows.
type Invitation struct {
	Email            string
	Token            string
	OrganizationName string
	DocumentTitle    string
	InviterName      string
	ExpiresAt        time.Time
}

// InvitationLink builds the landing link for an invitation:
// {frontEndURL}/invite?email=..&token=..
func InvitationLink(frontEndURL, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return strings.TrimRight(frontEndURL, "/") + "/invite?" + q.Encode()
}

var invitationHTML = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif;">
  <p>Hello,</p>
  <p>{{if .InviterName}}{{.InviterName}}{{else}}A colleague{{end}} invited you to sign
  <strong>{{.DocumentTitle}}</strong> for {{.OrganizationName}}.</p>
  <p><a href="{{.Link}}">Review and sign</a></p>
  <p>This invitation expires on {{.ExpiresAt.Format "January 2, 2006"}}.</p>
</body>
</html>
`))

// RenderInvitation renders the invitation email for inv. The link points at
// frontEndURL.
func RenderInvitation(frontEndURL string, inv Invitation) (Message, error) {
	link := InvitationLink(frontEndURL, inv.Email, inv.Token)

	var html bytes.Buffer
	err := invitationHTML.Execute(&html, struct {
		Invitation
		Link string
	}{inv, link})
	if err != nil {
		return Message{}, fmt.Errorf("render invitation: %w", err)
	}

	inviter := inv.InviterName
	if inviter == "" {
		inviter = "A colleague"
	}
	text := fmt.Sprintf("%s invited you to sign %q for %s.\n\nReview and sign: %s\n\nThis invitation expires on %s.\n",
		inviter, inv.DocumentTitle, inv.OrganizationName, link, inv.ExpiresAt.Format("January 2, 2006"))

	return Message{
		To:      inv.Email,
		Subject: fmt.Sprintf("Signature requested: %s", inv.DocumentTitle),
		HTML:    html.String(),
		Text:    text,
	}, nil
}

// New returns the mailer selected by cfg.Driver.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Driver {
	case "", DriverLog:
		return NewLogMailer(logger), nil
	case DriverSMTP:
		return NewSMTPMailer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email not sent (log driver)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Text))
	return nil
}
