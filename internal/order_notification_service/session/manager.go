package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/provider"
	"github.com/bettyorganic/golang_services/internal/platform/logger"
)

// allowedTransitions is the provider session state machine. Self-loops that
// only refresh data (heartbeat, new challenge) are not transitions.
var allowedTransitions = map[domain.SessionState][]domain.SessionState{
	domain.SessionUninitialized:          {domain.SessionAwaitingAuthentication},
	domain.SessionAwaitingAuthentication: {domain.SessionReady, domain.SessionFailed},
	domain.SessionReady:                  {domain.SessionDegraded, domain.SessionFailed},
	domain.SessionDegraded:               {domain.SessionReady, domain.SessionFailed},
	domain.SessionFailed:                 {domain.SessionUninitialized},
}

func canTransition(from, to domain.SessionState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Config tunes the Manager.
type Config struct {
	Backoff           BackoffPolicy
	HeartbeatInterval time.Duration
	// SendTimeout bounds each backend call.
	SendTimeout time.Duration
}

// SendResult is the outcome of Manager.Send. It is never an error value:
// session problems are reported through FallbackEligible and Reason.
type SendResult struct {
	Sent              bool
	ProviderMessageID string
	// FallbackEligible is set when the message was not sent because of the
	// session (not ready, auth expired, transport down) rather than the message.
	FallbackEligible bool
	Reason           domain.FailureReason
	State            domain.SessionState
	Err              error
}

// Manager owns the lifecycle of one messaging backend session and is the
// single source of truth for whether sending is currently possible.
// All methods are safe for concurrent use. No lock is held across backend I/O.
type Manager struct {
	backend provider.Backend
	cfg     Config
	logger  *slog.Logger

	mu                sync.Mutex
	state             domain.SessionState
	lastHeartbeatAt   time.Time
	challenge         string
	lastErr           string
	connecting        bool
	reconnecting      bool
	reconnectAttempts int
	closed            bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager in the Uninitialized state.
func NewManager(backend provider.Backend, cfg Config, log *slog.Logger) *Manager {
	cfg.Backoff = cfg.Backoff.withDefaults()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		backend: backend,
		cfg:     cfg,
		logger:  log.With("component", "provider_session", "provider_kind", string(backend.Kind())),
		state:   domain.SessionUninitialized,
		ctx:     ctx,
		cancel:  cancel,
	}
	providerStateGauge.WithLabelValues(string(backend.Kind())).Set(float64(domain.SessionUninitialized))
	return m
}

// State returns the current state without blocking on I/O.
func (m *Manager) State() domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a consistent copy of the session. The challenge is only
// present while awaiting authentication.
func (m *Manager) Snapshot() domain.SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := domain.SessionSnapshot{
		State:           m.state,
		StateName:       m.state.String(),
		ProviderKind:    string(m.backend.Kind()),
		LastHeartbeatAt: m.lastHeartbeatAt,
		LastError:       m.lastErr,
		ReconnectCount:  m.reconnectAttempts,
	}
	if m.state == domain.SessionAwaitingAuthentication {
		snap.AuthChallenge = m.challenge
	}
	return snap
}

// transitionLocked moves to `to` if allowed. Caller holds m.mu.
func (m *Manager) transitionLocked(to domain.SessionState, why string) error {
	from := m.state
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.state = to
	if to != domain.SessionAwaitingAuthentication {
		m.challenge = ""
	}
	if to == domain.SessionReady {
		m.lastHeartbeatAt = time.Now()
		m.lastErr = ""
		m.reconnectAttempts = 0
	}

	kind := string(m.backend.Kind())
	providerStateGauge.WithLabelValues(kind).Set(float64(to))
	providerTransitionsCounter.WithLabelValues(kind, from.String(), to.String()).Inc()
	m.logger.Info("Provider session transition", "from", from.String(), "to", to.String(), "reason", why)
	return nil
}

// Connect starts a session from Uninitialized. It is a no-op when a session
// already exists and fails with ErrSessionFailed in the Failed state.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return ErrClosed
	case m.state == domain.SessionFailed:
		m.mu.Unlock()
		return ErrSessionFailed
	case m.state != domain.SessionUninitialized || m.connecting:
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	err := m.transitionLocked(domain.SessionAwaitingAuthentication, "connect requested")
	m.mu.Unlock()
	if err != nil {
		m.finishConnecting()
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	res, connErr := m.backend.Connect(callCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connecting = false

	if m.state != domain.SessionAwaitingAuthentication {
		// logged out or re-initialized meanwhile
		return nil
	}
	if connErr != nil {
		m.lastErr = connErr.Error()
		m.logger.WarnContext(ctx, "Provider connect failed", "error", connErr, "reason", Classify(connErr))
		_ = m.transitionLocked(domain.SessionFailed, "connect failed")
		return fmt.Errorf("provider connect: %w", connErr)
	}
	if res.Authenticated {
		return m.transitionLocked(domain.SessionReady, "backend authenticated on connect")
	}
	m.challenge = res.Challenge
	m.logger.InfoContext(ctx, "Provider awaiting authentication", "has_challenge", res.Challenge != "")
	return nil
}

func (m *Manager) finishConnecting() {
	m.mu.Lock()
	m.connecting = false
	m.mu.Unlock()
}

// ConfirmAuthentication records external confirmation (e.g. the QR was
// scanned) and moves AwaitingAuthentication to Ready.
func (m *Manager) ConfirmAuthentication(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.SessionReady {
		return nil
	}
	if m.state != domain.SessionAwaitingAuthentication {
		return fmt.Errorf("%w: confirmation received in state %s", ErrInvalidTransition, m.state)
	}
	m.logger.InfoContext(ctx, "Provider authentication confirmed")
	return m.transitionLocked(domain.SessionReady, "authentication confirmed")
}

// Logout ends the session at the backend and moves to Failed. Backend errors
// are logged, the local state changes regardless.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st == domain.SessionUninitialized || st == domain.SessionFailed {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	if err := m.backend.Logout(callCtx); err != nil {
		m.logger.WarnContext(ctx, "Backend logout failed", "error", err)
	}
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.SessionFailed {
		return nil
	}
	m.lastErr = "logged out"
	return m.transitionLocked(domain.SessionFailed, "explicit logout")
}

// Reinitialize is the only way out of Failed.
func (m *Manager) Reinitialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.SessionUninitialized {
		return nil
	}
	if m.state != domain.SessionFailed {
		return fmt.Errorf("%w: re-initialize requires failed state, have %s", ErrInvalidTransition, m.state)
	}
	m.lastErr = ""
	m.reconnectAttempts = 0
	m.logger.InfoContext(ctx, "Provider session re-initialized")
	return m.transitionLocked(domain.SessionUninitialized, "re-initialized")
}

// Send delivers msg when the session is Ready. In any other state it returns
// immediately with FallbackEligible set; from Uninitialized it also starts a
// connect in the background.
func (m *Manager) Send(ctx context.Context, msg provider.Message) SendResult {
	m.mu.Lock()
	st := m.state
	if st != domain.SessionReady {
		if st == domain.SessionUninitialized && !m.connecting && !m.closed {
			m.startBackground(func(ctx context.Context) {
				if err := m.Connect(ctx); err != nil {
					m.logger.Warn("Lazy provider connect failed", "error", err)
				}
			})
		}
		m.mu.Unlock()
		return SendResult{FallbackEligible: true, State: st}
	}
	m.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	res, err := m.backend.Send(callCtx, msg)
	cancel()

	if err == nil {
		m.mu.Lock()
		if m.state == domain.SessionReady {
			m.lastHeartbeatAt = time.Now()
		}
		st = m.state
		m.mu.Unlock()
		return SendResult{Sent: true, ProviderMessageID: res.ProviderMessageID, State: st}
	}

	reason := Classify(err)
	m.logger.WarnContext(ctx, "Provider send failed", "recipient", maskedRecipient(msg), "reason", string(reason), "error", err)
	st = m.recordFailure(reason, err)
	return SendResult{
		FallbackEligible: reason.AffectsSession(),
		Reason:           reason,
		State:            st,
		Err:              err,
	}
}

// recordFailure applies a classified backend error to the state machine and
// returns the resulting state. Per-message reasons leave the state alone.
func (m *Manager) recordFailure(reason domain.FailureReason, err error) domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch reason {
	case domain.ReasonAuthenticationExpired:
		if m.state == domain.SessionReady || m.state == domain.SessionDegraded {
			m.lastErr = err.Error()
			_ = m.transitionLocked(domain.SessionFailed, "authentication expired")
		}
	case domain.ReasonTransportUnavailable:
		if m.state == domain.SessionReady {
			m.lastErr = err.Error()
			_ = m.transitionLocked(domain.SessionDegraded, "transport unavailable")
		}
		m.startReconnectLocked()
	}
	return m.state
}

// startReconnectLocked launches the reconnect loop unless one is running.
// Caller holds m.mu.
func (m *Manager) startReconnectLocked() {
	if m.state != domain.SessionDegraded || m.reconnecting || m.closed {
		return
	}
	m.reconnecting = true
	m.startBackground(m.reconnectLoop)
}

// startBackground runs fn on the manager's own context. Caller holds m.mu.
func (m *Manager) startBackground(fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		fn(m.ctx)
	}()
}

// reconnectLoop probes the backend with bounded backoff until the session is
// Ready again, authentication is lost, or attempts run out.
func (m *Manager) reconnectLoop(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	kind := string(m.backend.Kind())
	policy := m.cfg.Backoff
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		m.mu.Lock()
		if m.state != domain.SessionDegraded {
			m.mu.Unlock()
			return
		}
		m.reconnectAttempts = attempt
		m.mu.Unlock()

		callCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
		st, err := m.backend.Status(callCtx)
		cancel()

		m.mu.Lock()
		if m.state != domain.SessionDegraded {
			m.mu.Unlock()
			return
		}
		switch {
		case err == nil && st.Authenticated:
			providerReconnectAttemptsCounter.WithLabelValues(kind, "recovered").Inc()
			_ = m.transitionLocked(domain.SessionReady, fmt.Sprintf("reconnected after %d attempt(s)", attempt))
			m.mu.Unlock()
			return
		case err == nil, Classify(err) == domain.ReasonAuthenticationExpired:
			providerReconnectAttemptsCounter.WithLabelValues(kind, "unauthenticated").Inc()
			if err != nil {
				m.lastErr = err.Error()
			} else {
				m.lastErr = "backend no longer authenticated"
			}
			_ = m.transitionLocked(domain.SessionFailed, "authentication lost during reconnect")
			m.mu.Unlock()
			return
		default:
			providerReconnectAttemptsCounter.WithLabelValues(kind, "failed").Inc()
			m.lastErr = err.Error()
			m.logger.Warn("Provider reconnect attempt failed", "attempt", attempt, "max_attempts", policy.MaxAttempts, "error", err)
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	if m.state == domain.SessionDegraded {
		_ = m.transitionLocked(domain.SessionFailed, "reconnect attempts exhausted")
	}
	m.mu.Unlock()
}

// Run polls the backend every HeartbeatInterval until ctx is done. It picks
// up out-of-band authentication while awaiting it and detects lost sessions
// while Ready.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Heartbeat(ctx)
		}
	}
}

// Heartbeat performs one status poll.
func (m *Manager) Heartbeat(ctx context.Context) {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()
	if st != domain.SessionReady && st != domain.SessionAwaitingAuthentication {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	status, err := m.backend.Status(callCtx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != st {
		return
	}

	switch st {
	case domain.SessionAwaitingAuthentication:
		if err != nil {
			m.logger.DebugContext(ctx, "Status poll failed while awaiting authentication", "error", err)
			if Classify(err) == domain.ReasonAuthenticationExpired {
				m.lastErr = err.Error()
				_ = m.transitionLocked(domain.SessionFailed, "authentication rejected")
			}
			return
		}
		if status.Authenticated {
			_ = m.transitionLocked(domain.SessionReady, "authentication observed by heartbeat")
			return
		}
		if status.Challenge != "" && status.Challenge != m.challenge {
			m.challenge = status.Challenge
			m.logger.InfoContext(ctx, "Provider issued a new authentication challenge")
		}
	case domain.SessionReady:
		if err == nil && status.Authenticated {
			m.lastHeartbeatAt = time.Now()
			return
		}
		if err == nil || Classify(err) == domain.ReasonAuthenticationExpired {
			if err != nil {
				m.lastErr = err.Error()
			} else {
				m.lastErr = "backend no longer authenticated"
			}
			_ = m.transitionLocked(domain.SessionFailed, "heartbeat found session unauthenticated")
			return
		}
		m.lastErr = err.Error()
		m.logger.WarnContext(ctx, "Provider heartbeat failed", "error", err, "last_heartbeat_at", m.lastHeartbeatAt)
		_ = m.transitionLocked(domain.SessionDegraded, "heartbeat failed")
		m.startReconnectLocked()
	}
}

// Close stops background work and waits for it to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
	m.wg.Wait()
}

// maskedRecipient is used when logging messages routed through the session.
func maskedRecipient(msg provider.Message) string {
	return logger.MaskPhone(msg.Recipient)
}
