package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// ConnAcquirer is the part of pgxpool.Pool the listener uses.
type ConnAcquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PgListener holds one pooled connection in LISTEN mode on channel and feeds
// every notification payload through the Feed. Notifications on a single
// connection arrive in commit order.
type PgListener struct {
	pool    ConnAcquirer
	channel string
	feed    *Feed
	logger  *slog.Logger

	initialDelay time.Duration
	maxDelay     time.Duration
}

func NewPgListener(pool ConnAcquirer, channel string, feed *Feed, logger *slog.Logger) *PgListener {
	return &PgListener{
		pool:         pool,
		channel:      channel,
		feed:         feed,
		logger:       logger.With("component", "pg_listener", "channel", channel),
		initialDelay: time.Second,
		maxDelay:     30 * time.Second,
	}
}

// Run listens until ctx is done, re-establishing the connection with capped
// exponential backoff after failures.
func (l *PgListener) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Change feed listener stopped")
			return ctx.Err()
		}
		attempt++
		delay := l.reconnectDelay(attempt)
		l.logger.Warn("Change feed listener interrupted, reconnecting", "error", err, "attempt", attempt, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		listenerReconnectsCounter.Inc()
	}
}

func (l *PgListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen on %s: %w", l.channel, err)
	}
	l.logger.InfoContext(ctx, "Listening for order changes")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// fresh context: the listening one is already cancelled
				unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				_, _ = conn.Exec(unlistenCtx, "UNLISTEN *")
				cancel()
				return ctx.Err()
			}
			// the connection state is unknown; make sure the pool discards it
			_ = conn.Conn().Close(context.Background())
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.HandlePayload(ctx, n.Payload)
	}
}

// HandlePayload decodes one NOTIFY payload and ingests it.
func (l *PgListener) HandlePayload(ctx context.Context, payload string) bool {
	var n domain.ChangeNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		changeNotificationsCounter.WithLabelValues("malformed").Inc()
		l.logger.WarnContext(ctx, "Dropping undecodable notification payload", "error", err, "payload_len", len(payload))
		return false
	}
	n.Canonicalize()
	return l.feed.Ingest(ctx, n)
}

func (l *PgListener) reconnectDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return l.initialDelay
	}
	shift := attempt - 1
	if shift > 6 {
		shift = 6
	}
	d := l.initialDelay * time.Duration(1<<shift)
	if d > l.maxDelay {
		return l.maxDelay
	}
	return d
}

