// Package mail holds the outbound mail providers behind ports.Mailer.
package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

// Config selects and configures the provider.
type Config struct {
	Provider       string // log | sendgrid | mailgun
	From           string
	SendGridAPIKey string
	MailgunDomain  string
	MailgunAPIKey  string
}

// New builds the mailer named by cfg.Provider. Remote providers are wrapped
// in a circuit breaker.
func New(cfg Config, log zerolog.Logger) (ports.Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return NewLogMailer(log), nil
	case "sendgrid":
		return NewBreakerMailer("sendgrid", NewSendGridMailer(cfg.SendGridAPIKey, cfg.From), log), nil
	case "mailgun":
		return NewBreakerMailer("mailgun", NewMailgunMailer(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.From), log), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// LogMailer writes mails to the logger instead of delivering them. It is the
// development provider.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg domain.Mail) error {
	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Str("text", msg.Text).
		Msg("mail")
	return nil
}
