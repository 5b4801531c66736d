package session

import "time"

// BackoffPolicy bounds automatic reconnection.
type BackoffPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultBackoff is used for zero-valued fields.
var DefaultBackoff = BackoffPolicy{
	InitialDelay: 2 * time.Second,
	MaxDelay:     time.Minute,
	MaxAttempts:  5,
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultBackoff.InitialDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultBackoff.MaxDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultBackoff.MaxAttempts
	}
	return p
}

// Delay returns the wait before the given 1-based attempt: InitialDelay
// doubled per attempt, capped at MaxDelay.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	shift := attempt - 1
	if shift > 20 {
		shift = 20
	}
	d := p.InitialDelay * time.Duration(1<<shift)
	if d <= 0 || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
