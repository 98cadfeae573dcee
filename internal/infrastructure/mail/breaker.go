package mail

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/roadbook/planner-api/internal/core/domain"
	"github.com/roadbook/planner-api/internal/core/ports"
)

// BreakerMailer stops calling a failing provider for a cool-down period.
// While open, Send fails fast with gobreaker.ErrOpenState.
type BreakerMailer struct {
	next ports.Mailer
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerMailer(name string, next ports.Mailer, log zerolog.Logger) *BreakerMailer {
	return newBreakerMailer(next, gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("mail circuit breaker state change")
		},
	})
}

func newBreakerMailer(next ports.Mailer, st gobreaker.Settings) *BreakerMailer {
	return &BreakerMailer{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (m *BreakerMailer) Send(ctx context.Context, msg domain.Mail) error {
	_, err := m.cb.Execute(func() (interface{}, error) {
		return nil, m.next.Send(ctx, msg)
	})
	return err
}
