package provider

import (
	"fmt"
	"log/slog"
	"strings"
)

// Settings carries everything any backend may need.
type Settings struct {
	Kind      string
	Transport TransportConfig

	SessionBridgeURL    string
	SessionBridgeAPIKey string

	CloudAPIBaseURL       string
	CloudAPIVersion       string
	CloudAPIPhoneNumberID string
	CloudAPIAccessToken   string
}

// New instantiates the backend named by s.Kind.
func New(s Settings, logger *slog.Logger) (Backend, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s.Kind))) {
	case KindSessionBridge:
		return NewSessionBridge(s.SessionBridgeURL, s.SessionBridgeAPIKey, s.Transport, logger), nil
	case KindCloudAPI:
		return NewCloudAPI(s.CloudAPIBaseURL, s.CloudAPIVersion, s.CloudAPIPhoneNumberID, s.CloudAPIAccessToken, s.Transport, logger), nil
	case KindManualLink, "":
		return NewManualLink(logger), nil
	case KindMock:
		return NewMock(logger, true), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", s.Kind)
	}
}
