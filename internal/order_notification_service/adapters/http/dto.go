package http

import (
	"time"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// OrderChangeResponse acknowledges a database webhook delivery.
type OrderChangeResponse struct {
	Status  string `json:"status,omitempty"`
	Ignored bool   `json:"ignored,omitempty"`
}

type AdminNotificationRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
}

// ProviderStatusResponse is what the dashboard polls to decide whether to
// show the "connect messaging provider" prompt.
type ProviderStatusResponse struct {
	State           string     `json:"state"`
	ProviderKind    string     `json:"provider_kind"`
	CanSend         bool       `json:"can_send"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat_at,omitempty"`
	AuthChallenge   string     `json:"auth_challenge,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	ReconnectCount  int        `json:"reconnect_attempts"`
}

func toProviderStatusResponse(s domain.SessionSnapshot) ProviderStatusResponse {
	resp := ProviderStatusResponse{
		State:          s.StateName,
		ProviderKind:   s.ProviderKind,
		CanSend:        s.State == domain.SessionReady,
		AuthChallenge:  s.AuthChallenge,
		LastError:      s.LastError,
		ReconnectCount: s.ReconnectCount,
	}
	if !s.LastHeartbeatAt.IsZero() {
		t := s.LastHeartbeatAt.UTC()
		resp.LastHeartbeatAt = &t
	}
	return resp
}
