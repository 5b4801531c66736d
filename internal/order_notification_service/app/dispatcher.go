package app

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/platform/cache"
)

// ErrDispatcherStopped is returned by Submit after Stop.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// DeliveryChannel is one independent sink for order events. Deliver reports
// its outcome as a DeliveryAttempt and must not panic; the dispatcher recovers
// if it does anyway.
type DeliveryChannel interface {
	Name() domain.Channel
	Deliver(ctx context.Context, ev domain.OrderEvent) domain.DeliveryAttempt
}

// DispatcherConfig tunes the Dispatcher.
type DispatcherConfig struct {
	// Workers is the number of shards; events for one order always use the same shard.
	Workers   int
	QueueSize int
	// ChannelTimeout caps a single channel delivery.
	ChannelTimeout time.Duration
	// DedupWindow suppresses a repeat delivery of the same order to the same
	// channel within the window. Zero disables it.
	DedupWindow time.Duration
}

// Dispatcher fans every OrderEvent out to all channels concurrently. A failing
// or hanging channel never affects the others and nothing is returned to the
// caller of Submit except queueing errors.
type Dispatcher struct {
	channels []DeliveryChannel
	cfg      DispatcherConfig
	dedup    cache.Cache[string, struct{}]
	logger   *slog.Logger

	mu         sync.RWMutex
	shards     []chan domain.OrderEvent
	started    bool
	stopped    bool
	done       chan struct{} // closed by Stop; unblocks waiting submitters
	quit       chan struct{} // closed once no submitter is active; workers drain and exit
	submitters sync.WaitGroup
	wg         sync.WaitGroup
}

// NewDispatcher creates a dispatcher for channels.
func NewDispatcher(channels []DeliveryChannel, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = 15 * time.Second
	}

	var dedup cache.Cache[string, struct{}] = cache.NoopCache[string, struct{}]{}
	if cfg.DedupWindow > 0 {
		dedup = cache.NewTTLCache[string, struct{}]()
	}

	shards := make([]chan domain.OrderEvent, cfg.Workers)
	for i := range shards {
		shards[i] = make(chan domain.OrderEvent, cfg.QueueSize)
	}

	return &Dispatcher{
		channels: channels,
		cfg:      cfg,
		dedup:    dedup,
		logger:   logger.With("component", "dispatcher"),
		shards:   shards,
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
	}
}

// Start launches one worker per shard.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	for i, shard := range d.shards {
		d.wg.Add(1)
		go d.worker(i, shard)
	}
	d.logger.Info("Dispatcher started", "workers", len(d.shards), "channels", len(d.channels))
}

func (d *Dispatcher) worker(id int, events <-chan domain.OrderEvent) {
	defer d.wg.Done()
	depth := dispatchQueueDepthGauge.WithLabelValues(fmt.Sprint(id))
	for {
		select {
		case ev := <-events:
			depth.Set(float64(len(events)))
			d.Dispatch(context.Background(), ev)
		case <-d.quit:
			for {
				select {
				case ev := <-events:
					d.Dispatch(context.Background(), ev)
				default:
					depth.Set(0)
					return
				}
			}
		}
	}
}

// Submit queues ev. It blocks while the shard queue is full, until ctx is done
// or the dispatcher is stopped. The lock is not held while blocking.
func (d *Dispatcher) Submit(ctx context.Context, ev domain.OrderEvent) error {
	d.mu.RLock()
	if d.stopped {
		d.mu.RUnlock()
		return ErrDispatcherStopped
	}
	d.submitters.Add(1)
	shard := d.shards[shardFor(ev.OrderID(), len(d.shards))]
	d.mu.RUnlock()
	defer d.submitters.Done()

	select {
	case shard <- ev:
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return fmt.Errorf("queue order event %s: %w", ev.OrderID(), ctx.Err())
	}
}

// Stop rejects new events, drains the queues and waits for the workers.
// Shard channels are never closed.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.done)
	started := d.started
	d.mu.Unlock()

	d.submitters.Wait()
	close(d.quit)
	if started {
		d.wg.Wait()
	}
	d.logger.Info("Dispatcher stopped")
}

// Run starts the workers and stops them when ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.Start()
	<-ctx.Done()
	d.Stop()
	return ctx.Err()
}

// Dispatch delivers ev to every channel concurrently and returns one attempt
// per channel, in channel order.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.OrderEvent) []domain.DeliveryAttempt {
	attempts := make([]domain.DeliveryAttempt, len(d.channels))

	var g errgroup.Group
	for i, ch := range d.channels {
		i, ch := i, ch
		g.Go(func() error {
			attempts[i] = d.deliverOne(ctx, ch, ev)
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range attempts {
		d.record(ctx, a)
	}
	return attempts
}

func (d *Dispatcher) deliverOne(ctx context.Context, ch DeliveryChannel, ev domain.OrderEvent) domain.DeliveryAttempt {
	key := ev.OrderID() + "|" + string(ch.Name())
	if _, seen := d.dedup.Get(key); seen {
		return domain.SkippedAttempt(ev.OrderID(), ch.Name(), time.Now(), "duplicate within dedup window")
	}

	attempt := d.runChannel(ctx, ch, ev)
	if attempt.Outcome == domain.OutcomeSent {
		d.dedup.Set(key, struct{}{}, d.cfg.DedupWindow)
	}
	return attempt
}

// runChannel bounds ch.Deliver by ChannelTimeout and turns a panic into a
// failed attempt.
func (d *Dispatcher) runChannel(ctx context.Context, ch DeliveryChannel, ev domain.OrderEvent) domain.DeliveryAttempt {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ChannelTimeout)
	defer cancel()

	done := make(chan domain.DeliveryAttempt, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- domain.FailedAttempt(ev.OrderID(), ch.Name(), started, domain.ReasonUnknown, fmt.Sprintf("channel panicked: %v", r))
			}
		}()
		done <- ch.Deliver(ctx, ev)
	}()

	select {
	case a := <-done:
		return a
	case <-ctx.Done():
		return domain.FailedAttempt(ev.OrderID(), ch.Name(), started, domain.ReasonTransportUnavailable, "channel timed out")
	}
}

func (d *Dispatcher) record(ctx context.Context, a domain.DeliveryAttempt) {
	reason := string(a.FailureReason)
	deliveryAttemptsCounter.WithLabelValues(string(a.Channel), string(a.Outcome), reason, fmt.Sprint(a.FallbackUsed)).Inc()
	deliveryDurationHist.WithLabelValues(string(a.Channel)).Observe(a.Duration.Seconds())

	attrs := []any{
		"attempt_id", a.ID.String(),
		"order_id", a.OrderID,
		"channel", string(a.Channel),
		"outcome", string(a.Outcome),
		"fallback_used", a.FallbackUsed,
		"duration_ms", a.Duration.Milliseconds(),
	}
	if a.Detail != "" {
		attrs = append(attrs, "detail", a.Detail)
	}
	if a.Outcome == domain.OutcomeFailed {
		d.logger.WarnContext(ctx, "Delivery attempt failed", append(attrs, "failure_reason", reason)...)
		return
	}
	d.logger.InfoContext(ctx, "Delivery attempt recorded", attrs...)
}

func shardFor(orderID string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderID))
	return int(h.Sum32() % uint32(n))
}
