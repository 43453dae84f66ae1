package mail

import (
	"context"
	"errors"
	"net/smtp"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/esign-platform/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testInvitation() Invitation {
	return Invitation{
		Email:            "signer+1@example.com",
		Token:            "tok-123",
		OrganizationName: "Acme",
		DocumentTitle:    "NDA <2026>",
		InviterName:      "Ana",
		ExpiresAt:        time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
	}
}

func TestInvitationLink(t *testing.T) {
	link := InvitationLink("https://app.example.com/", "signer+1@example.com", "tok-123")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "/invite", u.Path)
	assert.Equal(t, "signer+1@example.com", u.Query().Get("email"))
	assert.Equal(t, "tok-123", u.Query().Get("token"))
}

func TestRenderInvitation(t *testing.T) {
	msg, err := RenderInvitation("https://app.example.com", testInvitation())
	require.NoError(t, err)

	assert.Equal(t, "signer+1@example.com", msg.To)
	assert.Equal(t, "Signature requested: NDA <2026>", msg.Subject)
	assert.Contains(t, msg.HTML, "NDA &lt;2026&gt;")
	assert.Contains(t, msg.HTML, "email=signer%2B1%40example.com")
	assert.Contains(t, msg.HTML, "March 9, 2026")
	assert.Contains(t, msg.Text, "Ana invited you")
	assert.Contains(t, msg.Text, "https://app.example.com/invite?email=signer%2B1%40example.com&token=tok-123")
}

func TestRenderInvitation_NoInviter(t *testing.T) {
	inv := testInvitation()
	inv.InviterName = ""

	msg, err := RenderInvitation("https://app.example.com", inv)
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "A colleague")
	assert.Contains(t, msg.Text, "A colleague invited you")
}

func TestNew(t *testing.T) {
	m, err := New(config.MailConfig{Driver: DriverLog}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	m, err = New(config.MailConfig{Driver: DriverSMTP, Host: "smtp.example.com", Port: 587}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	_, err = New(config.MailConfig{Driver: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewLogMailer(zap.New(core))

	require.NoError(t, m.Send(context.Background(), Message{To: "a@b.com", Subject: "Hi", Text: "body"}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a@b.com", fields["to"])
	assert.Equal(t, "Hi", fields["subject"])
}

func TestSMTPMailer_Send(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{
		Host:     "smtp.example.com",
		Port:     2525,
		Username: "user",
		Password: "pass",
		From:     "no-reply@esign.local",
	})
	m.now = func() time.Time { return time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC) }

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	msg, err := RenderInvitation("https://app.example.com", testInvitation())
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), msg))

	assert.Equal(t, "smtp.example.com:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "no-reply@esign.local", gotFrom)
	assert.Equal(t, []string{"signer+1@example.com"}, gotTo)

	raw := string(gotMsg)
	assert.Contains(t, raw, "To: signer+1@example.com\r\n")
	assert.Contains(t, raw, "Subject: Signature requested: NDA <2026>\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "Content-Type: text/plain")
	assert.Contains(t, raw, "Content-Type: text/html")
	assert.True(t, strings.HasSuffix(raw, "--\r\n"))
}

func TestSMTPMailer_Errors(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Port: 25, From: "x@y.z"})
	assert.Nil(t, m.auth)

	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}
	err := m.Send(context.Background(), Message{To: "a@b.com"})
	assert.ErrorContains(t, err, "connection refused")

	err = m.Send(context.Background(), Message{To: "a@b.com\r\nBcc: everyone@example.com"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Message{To: "a@b.com"}), context.Canceled)
}
