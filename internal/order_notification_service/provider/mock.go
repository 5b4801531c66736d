package provider

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mock is an in-memory backend for development and tests. All fields may be
// changed while it is in use through the setters.
type Mock struct {
	mu            sync.Mutex
	logger        *slog.Logger
	authenticated bool
	challenge     string
	connectErr    error
	statusErr     error
	sendErr       error
	delay         time.Duration
	sent          []Message
	connectCalls  int
	statusCalls   int
	logoutCalls   int
}

// NewMock creates a mock backend. When autoAuth is true Connect authenticates
// immediately; otherwise it hands out a fake QR challenge.
func NewMock(logger *slog.Logger, autoAuth bool) *Mock {
	return &Mock{
		logger:        logger.With("provider", string(KindMock)),
		authenticated: autoAuth,
		challenge:     "mock-qr-" + uuid.NewString(),
	}
}

func (m *Mock) Kind() Kind { return KindMock }

func (m *Mock) Connect(ctx context.Context) (ConnectResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectErr != nil {
		return ConnectResult{}, m.connectErr
	}
	if m.authenticated {
		return ConnectResult{Authenticated: true}, nil
	}
	return ConnectResult{Challenge: m.challenge}, nil
}

func (m *Mock) Status(context.Context) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if m.statusErr != nil {
		return Status{}, m.statusErr
	}
	if m.authenticated {
		return Status{Authenticated: true}, nil
	}
	return Status{Challenge: m.challenge}, nil
}

func (m *Mock) Send(ctx context.Context, msg Message) (SendResult, error) {
	m.mu.Lock()
	delay, sendErr := m.delay, m.sendErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return SendResult{}, ctx.Err()
		}
	}
	if sendErr != nil {
		m.logger.WarnContext(ctx, "Mock provider simulated send failure", "error", sendErr)
		return SendResult{}, sendErr
	}

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return SendResult{ProviderMessageID: "mock-" + uuid.NewString()}, nil
}

func (m *Mock) Logout(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	m.authenticated = false
	return nil
}

func (m *Mock) SetAuthenticated(v bool) {
	m.mu.Lock()
	m.authenticated = v
	m.mu.Unlock()
}

func (m *Mock) SetConnectError(err error) {
	m.mu.Lock()
	m.connectErr = err
	m.mu.Unlock()
}

func (m *Mock) SetStatusError(err error) {
	m.mu.Lock()
	m.statusErr = err
	m.mu.Unlock()
}

func (m *Mock) SetSendError(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

func (m *Mock) SetDelay(d time.Duration) {
	m.mu.Lock()
	m.delay = d
	m.mu.Unlock()
}

// Sent returns a copy of the delivered messages.
func (m *Mock) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Mock) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *Mock) LogoutCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutCalls
}

func (m *Mock) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}
