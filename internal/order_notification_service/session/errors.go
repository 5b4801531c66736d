package session

import (
	"context"
	"errors"
	"net"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/provider"
)

var (
	ErrInvalidTransition = errors.New("invalid provider session transition")
	ErrSessionFailed     = errors.New("provider session failed; re-initialize to continue")
	ErrClosed            = errors.New("provider session manager closed")
)

// Classify maps any error seen while talking to a backend onto the delivery
// failure taxonomy. Timeouts count as transport failures.
func Classify(err error) domain.FailureReason {
	if err == nil {
		return domain.ReasonNone
	}
	var pe *provider.Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTransportUnavailable
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return domain.ReasonTransportUnavailable
	}
	return domain.ReasonUnknown
}
