package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// CloudAPI sends through the WhatsApp Business Cloud API. Authentication is a
// long-lived access token, so Connect either succeeds outright or fails.
type CloudAPI struct {
	baseURL       string
	version       string
	phoneNumberID string
	accessToken   string
	transport     *httpTransport
	logger        *slog.Logger
}

// NewCloudAPI creates a Cloud API backend.
func NewCloudAPI(baseURL, version, phoneNumberID, accessToken string, cfg TransportConfig, logger *slog.Logger) *CloudAPI {
	log := logger.With("provider", string(KindCloudAPI))
	return &CloudAPI{
		baseURL:       strings.TrimRight(baseURL, "/"),
		version:       version,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		transport:     newHTTPTransport(KindCloudAPI, cfg, log),
		logger:        log,
	}
}

type cloudTextBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type cloudSendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             cloudTextBody `json:"text"`
}

type cloudSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type cloudErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		FBTraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}

func (p *CloudAPI) Kind() Kind { return KindCloudAPI }

func (p *CloudAPI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.accessToken}
}

func (p *CloudAPI) phoneURL() string {
	return fmt.Sprintf("%s/%s/%s", p.baseURL, p.version, p.phoneNumberID)
}

func (p *CloudAPI) Connect(ctx context.Context) (ConnectResult, error) {
	st, err := p.Status(ctx)
	if err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{Authenticated: st.Authenticated}, nil
}

// Status checks that the token can read the sender phone number.
func (p *CloudAPI) Status(ctx context.Context) (Status, error) {
	if p.accessToken == "" || p.phoneNumberID == "" {
		return Status{}, &Error{Reason: domain.ReasonAuthenticationExpired, Message: "cloud api credentials not configured"}
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := p.transport.doJSON(ctx, http.MethodGet, p.phoneURL()+"?fields=id", p.headers(), nil, &resp, decodeCloudError); err != nil {
		return Status{}, err
	}
	return Status{Authenticated: true}, nil
}

func (p *CloudAPI) Send(ctx context.Context, msg Message) (SendResult, error) {
	if err := p.transport.allowSend(); err != nil {
		return SendResult{}, err
	}
	req := cloudSendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(msg.Recipient, "+"),
		Type:             "text",
		Text:             cloudTextBody{Body: msg.Body},
	}
	var resp cloudSendResponse
	if err := p.transport.doJSON(ctx, http.MethodPost, p.phoneURL()+"/messages", p.headers(), req, &resp, decodeCloudError); err != nil {
		return SendResult{}, err
	}
	var id string
	if len(resp.Messages) > 0 {
		id = resp.Messages[0].ID
	}
	return SendResult{ProviderMessageID: id}, nil
}

// Logout is a no-op; tokens are revoked in the Meta business console.
func (p *CloudAPI) Logout(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Cloud API has no session to log out of")
	return nil
}

// decodeCloudError maps Graph API error codes onto failure reasons.
func decodeCloudError(status int, body []byte) *Error {
	var eb cloudErrorResponse
	if err := json.Unmarshal(body, &eb); err != nil || eb.Error.Code == 0 {
		return nil
	}

	reason := classifyHTTPStatus(status)
	switch eb.Error.Code {
	case 190:
		reason = domain.ReasonAuthenticationExpired
	case 4, 80007, 130429, 131048, 131056:
		reason = domain.ReasonRateLimited
	case 131026, 131047, 131051:
		reason = domain.ReasonRecipientInvalid
	case 131000, 131016:
		reason = domain.ReasonTransportUnavailable
	}
	return &Error{Reason: reason, StatusCode: status, Code: eb.Error.Code, Message: eb.Error.Message}
}
