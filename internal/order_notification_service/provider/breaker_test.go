package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

func TestCircuitBreaker_OpensOnTransportFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := TransportConfig{
		HTTPClient: server.Client(),
		Breaker:    BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute},
	}
	p := NewSessionBridge(server.URL, "", cfg, discardLogger())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := p.Send(ctx, Message{Recipient: "+251912345678", Body: "x"})
		require.Error(t, err)
	}

	_, err := p.Send(ctx, Message{Recipient: "+251912345678", Body: "x"})
	require.Error(t, err)
	assert.Equal(t, domain.ReasonTransportUnavailable, ReasonOf(err))
	assert.Equal(t, int32(2), calls.Load(), "open circuit must not reach the server")
}

func TestCircuitBreaker_IgnoresPerMessageFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})
	recipientErr := &Error{Reason: domain.ReasonRecipientInvalid}

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return recipientErr })
		assert.ErrorIs(t, err, recipientErr)
	}
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestNoopBreaker(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	boom := errors.New("boom")
	assert.ErrorIs(t, cb.Execute(func() error { return boom }), boom)
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, domain.ReasonNone, ReasonOf(nil))
	assert.Equal(t, domain.ReasonUnknown, ReasonOf(errors.New("plain")))
	wrapped := errors.Join(errors.New("ctx"), &Error{Reason: domain.ReasonRateLimited})
	assert.Equal(t, domain.ReasonRateLimited, ReasonOf(wrapped))
}
