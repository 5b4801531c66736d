package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// Kind names a messaging backend implementation.
type Kind string

const (
	KindSessionBridge Kind = "session_bridge"
	KindCloudAPI      Kind = "cloud_api"
	KindManualLink    Kind = "manual_link"
	KindMock          Kind = "mock"
)

// Message is one outbound text. Recipient is already normalized (+<digits>).
type Message struct {
	Recipient string
	Body      string
	Reference string
}

// SendResult is what the backend reports for an accepted message.
type SendResult struct {
	ProviderMessageID string
}

// ConnectResult reports the outcome of starting a session. When Authenticated
// is false the caller waits for external confirmation, usually after a human
// scans Challenge.
type ConnectResult struct {
	Authenticated bool
	Challenge     string
}

// Status is a liveness/authentication probe result.
type Status struct {
	Authenticated bool
	Challenge     string
}

// Backend is the capability every messaging transport provides. The session
// manager is the only caller.
type Backend interface {
	Kind() Kind
	Connect(ctx context.Context) (ConnectResult, error)
	Status(ctx context.Context) (Status, error)
	Send(ctx context.Context, msg Message) (SendResult, error)
	Logout(ctx context.Context) error
}

// Error is a classified backend failure.
type Error struct {
	Reason     domain.FailureReason
	StatusCode int
	Code       int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%s, http %d): %s", e.Reason, e.StatusCode, msg)
	}
	return fmt.Sprintf("provider error (%s): %s", e.Reason, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// ReasonOf extracts the classification from a backend error; unclassified errors are unknown.
func ReasonOf(err error) domain.FailureReason {
	if err == nil {
		return domain.ReasonNone
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return domain.ReasonUnknown
}

// classifyHTTPStatus maps a non-2xx response to a failure reason.
func classifyHTTPStatus(status int) domain.FailureReason {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ReasonAuthenticationExpired
	case status == http.StatusTooManyRequests:
		return domain.ReasonRateLimited
	case status == http.StatusBadRequest || status == http.StatusNotFound || status == http.StatusUnprocessableEntity:
		return domain.ReasonRecipientInvalid
	case status == http.StatusRequestTimeout || status >= 500:
		return domain.ReasonTransportUnavailable
	default:
		return domain.ReasonUnknown
	}
}
