// Package mail delivers transactional email such as password reset links.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"stackit/internal/config"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer sends a message or returns why it could not.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer returns a SendGrid mailer when an API key is configured and a
// log-only mailer otherwise.
func NewMailer(cfg *config.Config, logger *slog.Logger) Mailer {
	if cfg.SendGridAPIKey == "" {
		return &LogMailer{Logger: logger}
	}
	return NewSendGridMailer(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
}

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	from   *sgmail.Email
	client *sendgrid.Client
}

func NewSendGridMailer(apiKey, fromAddress, fromName string) *SendGridMailer {
	return &SendGridMailer{
		from:   sgmail.NewEmail(fromName, fromAddress),
		client: sendgrid.NewSendClient(apiKey),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	email := sgmail.NewSingleEmail(m.from, msg.Subject, sgmail.NewEmail("", msg.To), msg.Text, msg.HTML)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them. It is used
// in development and tests.
type LogMailer struct {
	Logger *slog.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent, no provider configured",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("body", msg.Text),
	)
	return nil
}
