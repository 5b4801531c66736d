package domain

import "time"

// SessionState is the lifecycle state of the messaging provider session.
type SessionState int

const (
	SessionUninitialized SessionState = iota
	SessionAwaitingAuthentication
	SessionReady
	SessionDegraded
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionAwaitingAuthentication:
		return "awaiting_authentication"
	case SessionReady:
		return "ready"
	case SessionDegraded:
		return "degraded"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionSnapshot is a consistent, copyable view of the provider session.
type SessionSnapshot struct {
	State           SessionState `json:"-"`
	StateName       string       `json:"state"`
	ProviderKind    string       `json:"provider_kind"`
	LastHeartbeatAt time.Time    `json:"last_heartbeat_at,omitempty"`
	AuthChallenge   string       `json:"auth_challenge,omitempty"`
	LastError       string       `json:"last_error,omitempty"`
	ReconnectCount  int          `json:"reconnect_attempts"`
}
