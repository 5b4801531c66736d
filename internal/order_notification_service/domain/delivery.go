package domain

import (
	"time"

	"github.com/google/uuid"
)

// Channel identifies a delivery sink.
type Channel string

const (
	ChannelLiveBell          Channel = "live_bell"
	ChannelMessagingProvider Channel = "messaging_provider"
)

// Outcome of one delivery attempt.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// FailureReason classifies a failed delivery.
type FailureReason string

const (
	ReasonNone                  FailureReason = ""
	ReasonAuthenticationExpired FailureReason = "authentication_expired"
	ReasonRateLimited           FailureReason = "rate_limited"
	ReasonRecipientInvalid      FailureReason = "recipient_invalid"
	ReasonTransportUnavailable  FailureReason = "transport_unavailable"
	ReasonUnknown               FailureReason = "unknown"
)

// AffectsSession reports whether the reason says something about the
// provider session rather than the single message.
func (r FailureReason) AffectsSession() bool {
	return r == ReasonAuthenticationExpired || r == ReasonTransportUnavailable
}

// DeliveryAttempt records one try of one channel for one event. FailureReason
// is set iff Outcome is OutcomeFailed; use the constructors.
type DeliveryAttempt struct {
	ID            uuid.UUID
	OrderID       string
	Channel       Channel
	Outcome       Outcome
	FailureReason FailureReason
	FallbackUsed  bool
	FallbackURL   string
	Detail        string
	StartedAt     time.Time
	Duration      time.Duration
}

func newAttempt(orderID string, ch Channel, outcome Outcome, started time.Time) DeliveryAttempt {
	return DeliveryAttempt{
		ID:        uuid.New(),
		OrderID:   orderID,
		Channel:   ch,
		Outcome:   outcome,
		StartedAt: started,
		Duration:  time.Since(started),
	}
}

// SentAttempt records a successful delivery.
func SentAttempt(orderID string, ch Channel, started time.Time) DeliveryAttempt {
	return newAttempt(orderID, ch, OutcomeSent, started)
}

// FallbackAttempt records a delivery made deliverable through a manual link.
func FallbackAttempt(orderID string, ch Channel, started time.Time, link, detail string) DeliveryAttempt {
	a := newAttempt(orderID, ch, OutcomeSent, started)
	a.FallbackUsed = true
	a.FallbackURL = link
	a.Detail = detail
	return a
}

// SkippedAttempt records a deliberate no-op.
func SkippedAttempt(orderID string, ch Channel, started time.Time, detail string) DeliveryAttempt {
	a := newAttempt(orderID, ch, OutcomeSkipped, started)
	a.Detail = detail
	return a
}

// FailedAttempt records a failure. An empty reason is recorded as unknown.
func FailedAttempt(orderID string, ch Channel, started time.Time, reason FailureReason, detail string) DeliveryAttempt {
	if reason == ReasonNone {
		reason = ReasonUnknown
	}
	a := newAttempt(orderID, ch, OutcomeFailed, started)
	a.FailureReason = reason
	a.Detail = detail
	return a
}
