package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// maxResponseBodySize bounds how much of a provider response is read.
const maxResponseBodySize = 1 << 20

// TransportConfig is shared by the HTTP backends.
type TransportConfig struct {
	HTTPClient        *http.Client
	Timeout           time.Duration
	SendRatePerMinute int
	SendRateBurst     int
	Breaker           BreakerConfig
}

// httpTransport performs JSON requests for HTTP backends, behind a circuit
// breaker, with a non-blocking send limiter.
type httpTransport struct {
	kind    Kind
	client  *http.Client
	breaker CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

func newHTTPTransport(kind Kind, cfg TransportConfig, logger *slog.Logger) *httpTransport {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.SendRatePerMinute > 0 {
		burst := cfg.SendRateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerMinute)/60, burst)
	}

	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = string(kind)
	}
	return &httpTransport{
		kind:    kind,
		client:  client,
		breaker: NewCircuitBreaker(cfg.Breaker),
		limiter: limiter,
		logger:  logger,
	}
}

// allowSend consumes a send token. It never waits.
func (t *httpTransport) allowSend() error {
	if t.limiter != nil && !t.limiter.Allow() {
		providerRateLimitedCounter.WithLabelValues(string(t.kind)).Inc()
		return &Error{Reason: domain.ReasonRateLimited, Message: "local send rate exceeded"}
	}
	return nil
}

// errorDecoder turns a non-2xx body into a classified error.
type errorDecoder func(status int, body []byte) *Error

// doJSON sends reqBody (if any) and decodes a 2xx response into respBody (if any).
func (t *httpTransport) doJSON(ctx context.Context, method, url string, headers map[string]string, reqBody, respBody any, decodeErr errorDecoder) error {
	timer := prometheus.NewTimer(providerRequestDurationHist.WithLabelValues(string(t.kind)))
	defer timer.ObserveDuration()

	return t.breaker.Execute(func() error {
		var body io.Reader
		if reqBody != nil {
			payload, err := json.Marshal(reqBody)
			if err != nil {
				return &Error{Reason: domain.ReasonUnknown, Message: "failed to marshal request", Err: err}
			}
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return &Error{Reason: domain.ReasonUnknown, Message: "failed to create request", Err: err}
		}
		req.Header.Set("Accept", "application/json")
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return &Error{Reason: domain.ReasonTransportUnavailable, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
		if err != nil {
			return &Error{Reason: domain.ReasonTransportUnavailable, StatusCode: resp.StatusCode, Message: "failed to read response", Err: err}
		}
		if len(raw) > maxResponseBodySize {
			return &Error{Reason: domain.ReasonUnknown, StatusCode: resp.StatusCode, Message: fmt.Sprintf("response body exceeds %d bytes", maxResponseBodySize)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			t.logger.DebugContext(ctx, "Provider returned error status", "method", method, "status_code", resp.StatusCode, "body", string(raw))
			if decodeErr != nil {
				if perr := decodeErr(resp.StatusCode, raw); perr != nil {
					return perr
				}
			}
			return &Error{
				Reason:     classifyHTTPStatus(resp.StatusCode),
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			}
		}

		if respBody != nil && len(raw) > 0 {
			if err := json.Unmarshal(raw, respBody); err != nil {
				return &Error{Reason: domain.ReasonUnknown, StatusCode: resp.StatusCode, Message: "failed to decode response", Err: err}
			}
		}
		return nil
	})
}
