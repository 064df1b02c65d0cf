package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// Transport wraps every outbound provider call with retry inside a circuit
// breaker. The breaker sits outside the retry loop: once open, calls fail
// fast with UnavailableError and no retry runs.
type Transport struct {
	provider string
	breaker  *gobreaker.CircuitBreaker
	retry    *Retryer
}

// NewTransport builds the retry+breaker stack for one provider.
func NewTransport(provider string) *Transport {
	settings := gobreaker.Settings{
		Name:    provider,
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[Provider] circuit breaker state change",
				"provider", name, "from", from.String(), "to", to.String())
		},
	}
	return &Transport{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		retry:    NewRetryer(provider),
	}
}

// Do executes fn through the breaker and retry stack.
func (t *Transport) Do(ctx context.Context, fn func() error) error {
	_, err := t.breaker.Execute(func() (interface{}, error) {
		return nil, t.retry.Do(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return NewUnavailableError(t.provider)
	}
	return err
}
