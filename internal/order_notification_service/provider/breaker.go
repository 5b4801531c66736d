package provider

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// CircuitBreaker guards calls to a backend.
type CircuitBreaker interface {
	Execute(fn func() error) error
}

type noopBreaker struct{}

func (noopBreaker) Execute(fn func() error) error { return fn() }

// NoopBreaker never trips.
func NoopBreaker() CircuitBreaker { return noopBreaker{} }

type gobreakerWrapper struct {
	cb *gobreaker.CircuitBreaker
}

func (g *gobreakerWrapper) Execute(fn func() error) error {
	_, err := g.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &Error{Reason: domain.ReasonTransportUnavailable, Message: "circuit open", Err: err}
	}
	return err
}

// BreakerConfig configures NewCircuitBreaker. A zero FailureThreshold disables the breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold int
	OpenTimeout      time.Duration
}

// NewCircuitBreaker trips after FailureThreshold consecutive transport failures.
// Per-message failures (recipient, rate limit) count as successes for the circuit.
func NewCircuitBreaker(cfg BreakerConfig) CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		return NoopBreaker()
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || ReasonOf(err) != domain.ReasonTransportUnavailable
		},
	}
	return &gobreakerWrapper{cb: gobreaker.NewCircuitBreaker(settings)}
}
