package provider

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// SessionBridge talks to a companion process that holds a QR-authenticated
// WhatsApp Web session and exposes it over HTTP.
type SessionBridge struct {
	baseURL   string
	apiKey    string
	transport *httpTransport
	logger    *slog.Logger
}

// NewSessionBridge creates a bridge backend rooted at baseURL.
func NewSessionBridge(baseURL, apiKey string, cfg TransportConfig, logger *slog.Logger) *SessionBridge {
	log := logger.With("provider", string(KindSessionBridge))
	return &SessionBridge{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		transport: newHTTPTransport(KindSessionBridge, cfg, log),
		logger:    log,
	}
}

// bridgeSessionResponse is returned by /session/status and /session/start.
// Status is one of authenticated, ready, qr, starting, disconnected.
type bridgeSessionResponse struct {
	Status string `json:"status"`
	QR     string `json:"qr,omitempty"`
}

func (r bridgeSessionResponse) authenticated() bool {
	s := strings.ToLower(r.Status)
	return s == "authenticated" || s == "ready" || s == "connected"
}

type bridgeSendRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type bridgeSendResponse struct {
	ID string `json:"id"`
}

type bridgeErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (p *SessionBridge) Kind() Kind { return KindSessionBridge }

func (p *SessionBridge) headers() map[string]string {
	if p.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": p.apiKey}
}

func (p *SessionBridge) Connect(ctx context.Context) (ConnectResult, error) {
	var resp bridgeSessionResponse
	if err := p.transport.doJSON(ctx, http.MethodPost, p.baseURL+"/session/start", p.headers(), struct{}{}, &resp, decodeBridgeError); err != nil {
		return ConnectResult{}, err
	}
	p.logger.InfoContext(ctx, "Bridge session started", "status", resp.Status, "has_challenge", resp.QR != "")
	return ConnectResult{Authenticated: resp.authenticated(), Challenge: resp.QR}, nil
}

func (p *SessionBridge) Status(ctx context.Context) (Status, error) {
	var resp bridgeSessionResponse
	if err := p.transport.doJSON(ctx, http.MethodGet, p.baseURL+"/session/status", p.headers(), nil, &resp, decodeBridgeError); err != nil {
		return Status{}, err
	}
	if strings.EqualFold(resp.Status, "disconnected") {
		return Status{}, &Error{Reason: domain.ReasonTransportUnavailable, Message: "bridge reports disconnected session"}
	}
	return Status{Authenticated: resp.authenticated(), Challenge: resp.QR}, nil
}

// Send delivers to "<digits>@c.us", the chat id format of the bridge.
func (p *SessionBridge) Send(ctx context.Context, msg Message) (SendResult, error) {
	if err := p.transport.allowSend(); err != nil {
		return SendResult{}, err
	}
	req := bridgeSendRequest{
		ChatID:  strings.TrimPrefix(msg.Recipient, "+") + "@c.us",
		Message: msg.Body,
	}
	var resp bridgeSendResponse
	if err := p.transport.doJSON(ctx, http.MethodPost, p.baseURL+"/message/send", p.headers(), req, &resp, decodeBridgeError); err != nil {
		return SendResult{}, err
	}
	return SendResult{ProviderMessageID: resp.ID}, nil
}

func (p *SessionBridge) Logout(ctx context.Context) error {
	return p.transport.doJSON(ctx, http.MethodPost, p.baseURL+"/session/logout", p.headers(), struct{}{}, nil, decodeBridgeError)
}

// decodeBridgeError refines the status-based classification with the
// bridge's error codes when present.
func decodeBridgeError(status int, body []byte) *Error {
	var eb bridgeErrorResponse
	_ = json.Unmarshal(body, &eb)

	reason := classifyHTTPStatus(status)
	switch strings.ToUpper(eb.Code) {
	case "SESSION_EXPIRED", "NOT_AUTHENTICATED", "LOGGED_OUT":
		reason = domain.ReasonAuthenticationExpired
	case "RATE_LIMITED":
		reason = domain.ReasonRateLimited
	case "INVALID_NUMBER", "NOT_ON_WHATSAPP":
		reason = domain.ReasonRecipientInvalid
	case "NOT_CONNECTED", "BROWSER_CLOSED":
		reason = domain.ReasonTransportUnavailable
	}
	msg := eb.Error
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{Reason: reason, StatusCode: status, Message: msg}
}
