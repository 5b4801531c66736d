package changefeed

import (
	"context"
	"log/slog"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// EventSink accepts normalized events for delivery.
type EventSink interface {
	Submit(ctx context.Context, ev domain.OrderEvent) error
}

// Feed connects change sources to the dispatcher through the adapter. Every
// source (LISTEN/NOTIFY, database webhook) goes through Ingest.
type Feed struct {
	adapter *Adapter
	sink    EventSink
	logger  *slog.Logger
}

func NewFeed(adapter *Adapter, sink EventSink, logger *slog.Logger) *Feed {
	return &Feed{adapter: adapter, sink: sink, logger: logger.With("component", "change_feed")}
}

// Ingest adapts n and hands the event to the sink. It reports whether an
// event was emitted. Sink errors are logged, never returned.
func (f *Feed) Ingest(ctx context.Context, n domain.ChangeNotification) bool {
	ev, ok := f.adapter.Adapt(ctx, n)
	if !ok {
		return false
	}
	if err := f.sink.Submit(ctx, ev); err != nil {
		f.logger.ErrorContext(ctx, "Failed to submit order event", "order_id", ev.OrderID(), "error", err)
	}
	return true
}
