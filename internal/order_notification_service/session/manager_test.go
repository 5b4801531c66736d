package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Backoff:           BackoffPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 20 * time.Millisecond, MaxAttempts: 3},
		HeartbeatInterval: time.Hour,
		SendTimeout:       time.Second,
	}
}

func newManager(t *testing.T, mock *provider.Mock, cfg Config) *Manager {
	t.Helper()
	m := NewManager(mock, cfg, discardLogger())
	t.Cleanup(m.Close)
	return m
}

func readyManager(t *testing.T, cfg Config) (*Manager, *provider.Mock) {
	t.Helper()
	mock := provider.NewMock(discardLogger(), true)
	m := newManager(t, mock, cfg)
	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, domain.SessionReady, m.State())
	return m, mock
}

var msg = provider.Message{Recipient: "+251911000000", Body: "New order"}

func TestTransitionTable(t *testing.T) {
	assert.False(t, canTransition(domain.SessionUninitialized, domain.SessionReady))
	assert.False(t, canTransition(domain.SessionUninitialized, domain.SessionDegraded))
	assert.False(t, canTransition(domain.SessionFailed, domain.SessionReady))
	assert.False(t, canTransition(domain.SessionFailed, domain.SessionAwaitingAuthentication))
	assert.False(t, canTransition(domain.SessionAwaitingAuthentication, domain.SessionDegraded))

	assert.True(t, canTransition(domain.SessionUninitialized, domain.SessionAwaitingAuthentication))
	assert.True(t, canTransition(domain.SessionAwaitingAuthentication, domain.SessionReady))
	assert.True(t, canTransition(domain.SessionReady, domain.SessionDegraded))
	assert.True(t, canTransition(domain.SessionDegraded, domain.SessionReady))
	assert.True(t, canTransition(domain.SessionDegraded, domain.SessionFailed))
	assert.True(t, canTransition(domain.SessionFailed, domain.SessionUninitialized))
}

func TestConfirmAuthentication_RequiresAwaiting(t *testing.T) {
	m := newManager(t, provider.NewMock(discardLogger(), false), testConfig())

	err := m.ConfirmAuthentication(context.Background())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.SessionUninitialized, m.State())
}

func TestConnect_QRFlow(t *testing.T) {
	mock := provider.NewMock(discardLogger(), false)
	m := newManager(t, mock, testConfig())
	ctx := context.Background()

	require.NoError(t, m.Connect(ctx))
	snap := m.Snapshot()
	assert.Equal(t, domain.SessionAwaitingAuthentication, snap.State)
	assert.Equal(t, "awaiting_authentication", snap.StateName)
	assert.NotEmpty(t, snap.AuthChallenge)
	assert.Equal(t, "mock", snap.ProviderKind)

	// a second connect while waiting is a no-op
	require.NoError(t, m.Connect(ctx))
	assert.Equal(t, 1, mock.ConnectCalls())

	require.NoError(t, m.ConfirmAuthentication(ctx))
	snap = m.Snapshot()
	assert.Equal(t, domain.SessionReady, snap.State)
	assert.Empty(t, snap.AuthChallenge)
	assert.False(t, snap.LastHeartbeatAt.IsZero())
}

func TestConnect_BackendErrorFails(t *testing.T) {
	mock := provider.NewMock(discardLogger(), false)
	mock.SetConnectError(&provider.Error{Reason: domain.ReasonTransportUnavailable, Message: "bridge down"})
	m := newManager(t, mock, testConfig())

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.SessionFailed, m.State())
	assert.Contains(t, m.Snapshot().LastError, "bridge down")

	require.ErrorIs(t, m.Connect(context.Background()), ErrSessionFailed)
}

func TestSend_NotReadyReturnsImmediately(t *testing.T) {
	mock := provider.NewMock(discardLogger(), false)
	mock.SetDelay(time.Second)
	m := newManager(t, mock, testConfig())

	start := time.Now()
	res := m.Send(context.Background(), msg)
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 50*time.Millisecond)
	assert.False(t, res.Sent)
	assert.True(t, res.FallbackEligible)
	assert.Equal(t, domain.SessionUninitialized, res.State)
	assert.Empty(t, mock.Sent())

	// the first send triggers a lazy connect in the background
	require.Eventually(t, func() bool {
		return m.State() == domain.SessionAwaitingAuthentication
	}, time.Second, 5*time.Millisecond)

	start = time.Now()
	res = m.Send(context.Background(), msg)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.True(t, res.FallbackEligible)
	assert.Equal(t, domain.SessionAwaitingAuthentication, res.State)
}

func TestSend_Ready(t *testing.T) {
	m, mock := readyManager(t, testConfig())

	res := m.Send(context.Background(), msg)
	assert.True(t, res.Sent)
	assert.NotEmpty(t, res.ProviderMessageID)
	assert.False(t, res.FallbackEligible)
	require.Len(t, mock.Sent(), 1)
	assert.Equal(t, "New order", mock.Sent()[0].Body)
}

func TestSend_PerMessageErrorsKeepState(t *testing.T) {
	for _, reason := range []domain.FailureReason{domain.ReasonRateLimited, domain.ReasonRecipientInvalid, domain.ReasonUnknown} {
		t.Run(string(reason), func(t *testing.T) {
			m, mock := readyManager(t, testConfig())
			mock.SetSendError(&provider.Error{Reason: reason})

			res := m.Send(context.Background(), msg)
			assert.False(t, res.Sent)
			assert.False(t, res.FallbackEligible)
			assert.Equal(t, reason, res.Reason)
			assert.Equal(t, domain.SessionReady, m.State())
		})
	}
}

func TestSend_AuthenticationExpiredFails(t *testing.T) {
	m, mock := readyManager(t, testConfig())
	mock.SetSendError(&provider.Error{Reason: domain.ReasonAuthenticationExpired, Message: "logged out on phone"})
	ctx := context.Background()

	res := m.Send(ctx, msg)
	assert.True(t, res.FallbackEligible)
	assert.Equal(t, domain.ReasonAuthenticationExpired, res.Reason)
	assert.Equal(t, domain.SessionFailed, m.State())

	// Failed is sticky until re-initialization
	res = m.Send(ctx, msg)
	assert.True(t, res.FallbackEligible)
	assert.Equal(t, domain.SessionFailed, m.State())
	assert.Equal(t, 1, mock.ConnectCalls())

	require.NoError(t, m.Reinitialize(ctx))
	assert.Equal(t, domain.SessionUninitialized, m.State())
	assert.Empty(t, m.Snapshot().LastError)
}

func TestSend_TransportErrorDegradesAndRecovers(t *testing.T) {
	m, mock := readyManager(t, testConfig())
	mock.SetSendError(&provider.Error{Reason: domain.ReasonTransportUnavailable})

	res := m.Send(context.Background(), msg)
	assert.True(t, res.FallbackEligible)
	assert.Equal(t, domain.SessionDegraded, res.State)

	mock.SetSendError(nil)
	require.Eventually(t, func() bool {
		return m.State() == domain.SessionReady
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, m.Snapshot().ReconnectCount)
}

func TestSend_TimeoutCountsAsTransport(t *testing.T) {
	cfg := testConfig()
	cfg.SendTimeout = 20 * time.Millisecond
	m, mock := readyManager(t, cfg)
	mock.SetDelay(time.Second)

	start := time.Now()
	res := m.Send(context.Background(), msg)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, domain.ReasonTransportUnavailable, res.Reason)
	assert.True(t, res.FallbackEligible)
}

func TestReconnect_ExhaustedMovesToFailed(t *testing.T) {
	m, mock := readyManager(t, testConfig())
	mock.SetSendError(&provider.Error{Reason: domain.ReasonTransportUnavailable})
	mock.SetStatusError(&provider.Error{Reason: domain.ReasonTransportUnavailable, Message: "still down"})

	m.Send(context.Background(), msg)

	require.Eventually(t, func() bool {
		return m.State() == domain.SessionFailed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, mock.StatusCalls())
	assert.Equal(t, 3, m.Snapshot().ReconnectCount)
}

func TestReconnect_AuthLostMovesToFailed(t *testing.T) {
	m, mock := readyManager(t, testConfig())
	mock.SetSendError(&provider.Error{Reason: domain.ReasonTransportUnavailable})
	mock.SetAuthenticated(false)

	m.Send(context.Background(), msg)

	require.Eventually(t, func() bool {
		return m.State() == domain.SessionFailed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, mock.StatusCalls())
}

func TestSend_ConcurrentFailuresStartOneReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff = BackoffPolicy{InitialDelay: 30 * time.Millisecond, MaxDelay: 30 * time.Millisecond, MaxAttempts: 1}
	m, mock := readyManager(t, cfg)
	mock.SetSendError(&provider.Error{Reason: domain.ReasonTransportUnavailable})
	mock.SetStatusError(&provider.Error{Reason: domain.ReasonTransportUnavailable})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := m.Send(context.Background(), msg)
			assert.True(t, res.FallbackEligible)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return m.State() == domain.SessionFailed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, mock.StatusCalls())
}

func TestHeartbeat(t *testing.T) {
	t.Run("awaiting picks up authentication", func(t *testing.T) {
		mock := provider.NewMock(discardLogger(), false)
		m := newManager(t, mock, testConfig())
		require.NoError(t, m.Connect(context.Background()))

		m.Heartbeat(context.Background())
		assert.Equal(t, domain.SessionAwaitingAuthentication, m.State())

		mock.SetAuthenticated(true)
		m.Heartbeat(context.Background())
		assert.Equal(t, domain.SessionReady, m.State())
	})

	t.Run("ready refreshes heartbeat", func(t *testing.T) {
		m, _ := readyManager(t, testConfig())
		before := m.Snapshot().LastHeartbeatAt
		time.Sleep(2 * time.Millisecond)
		m.Heartbeat(context.Background())
		assert.True(t, m.Snapshot().LastHeartbeatAt.After(before))
	})

	t.Run("ready degrades on transport error", func(t *testing.T) {
		m, mock := readyManager(t, testConfig())
		mock.SetStatusError(&provider.Error{Reason: domain.ReasonTransportUnavailable})
		m.Heartbeat(context.Background())
		assert.Equal(t, domain.SessionDegraded, m.State())
	})

	t.Run("ready fails when unauthenticated", func(t *testing.T) {
		m, mock := readyManager(t, testConfig())
		mock.SetAuthenticated(false)
		m.Heartbeat(context.Background())
		assert.Equal(t, domain.SessionFailed, m.State())
	})
}

func TestLogout(t *testing.T) {
	m, mock := readyManager(t, testConfig())
	ctx := context.Background()

	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, domain.SessionFailed, m.State())
	assert.Equal(t, 1, mock.LogoutCalls())

	// logging out twice is harmless
	require.NoError(t, m.Logout(ctx))
	assert.Equal(t, 1, mock.LogoutCalls())

	require.NoError(t, m.Reinitialize(ctx))
	assert.Equal(t, domain.SessionUninitialized, m.State())
	assert.NoError(t, m.Reinitialize(ctx))
}

func TestReinitialize_OnlyFromFailed(t *testing.T) {
	m, _ := readyManager(t, testConfig())
	require.ErrorIs(t, m.Reinitialize(context.Background()), ErrInvalidTransition)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.HeartbeatInterval = 5 * time.Millisecond
	m, mock := readyManager(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return mock.StatusCalls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClose_StopsReconnect(t *testing.T) {
	cfg := testConfig()
	cfg.Backoff = BackoffPolicy{InitialDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 1}
	mock := provider.NewMock(discardLogger(), true)
	m := NewManager(mock, cfg, discardLogger())
	require.NoError(t, m.Connect(context.Background()))
	mock.SetSendError(&provider.Error{Reason: domain.ReasonTransportUnavailable})
	m.Send(context.Background(), msg)

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close blocked on reconnect loop")
	}

	require.ErrorIs(t, m.Connect(context.Background()), ErrClosed)
}
