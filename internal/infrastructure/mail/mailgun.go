package mail

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"

	"github.com/roadbook/planner-api/internal/core/domain"
)

// mailgunClient is the part of mailgun.Mailgun used here.
type mailgunClient interface {
	NewMessage(from, subject, text string, to ...string) *mailgun.Message
	Send(ctx context.Context, m *mailgun.Message) (string, string, error)
}

// MailgunMailer delivers mail through the Mailgun API.
type MailgunMailer struct {
	client mailgunClient
	from   string
}

func NewMailgunMailer(mgDomain, apiKey, from string) *MailgunMailer {
	return &MailgunMailer{client: mailgun.NewMailgun(mgDomain, apiKey), from: from}
}

func (m *MailgunMailer) Send(ctx context.Context, msg domain.Mail) error {
	message := m.client.NewMessage(m.from, msg.Subject, msg.Text)
	if err := message.AddRecipient(msg.To); err != nil {
		return fmt.Errorf("mailgun recipient: %w", err)
	}
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}

	if _, _, err := m.client.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}
