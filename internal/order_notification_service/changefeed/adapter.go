package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// Adapter turns raw change notifications into OrderEvents. Normalize is pure;
// Adapt adds logging and metrics and never fails.
type Adapter struct {
	ordersTable string
	filter      domain.StatusFilter
	logger      *slog.Logger
	now         func() time.Time
}

// NewAdapter creates an adapter for ordersTable using filter as the
// awaiting-attention predicate.
func NewAdapter(ordersTable string, filter domain.StatusFilter, logger *slog.Logger) *Adapter {
	return &Adapter{
		ordersTable: ordersTable,
		filter:      filter,
		logger:      logger.With("component", "change_feed_adapter"),
		now:         time.Now,
	}
}

// Adapt returns the event for n, or false when n is dropped.
func (a *Adapter) Adapt(ctx context.Context, n domain.ChangeNotification) (domain.OrderEvent, bool) {
	ev, err := a.Normalize(n)
	switch {
	case err == nil:
		changeNotificationsCounter.WithLabelValues("emitted").Inc()
		a.logger.DebugContext(ctx, "Order event emitted", "order_id", ev.OrderID(), "change_kind", string(ev.ChangeKind()), "status", ev.Status())
		return ev, true
	case errors.Is(err, domain.ErrIgnoredTable):
		changeNotificationsCounter.WithLabelValues("ignored_table").Inc()
		a.logger.DebugContext(ctx, "Change on unrelated table ignored", "table", n.Table)
	case errors.Is(err, domain.ErrNotNotifiable):
		changeNotificationsCounter.WithLabelValues("not_notifiable").Inc()
		a.logger.DebugContext(ctx, "Change does not need a notification", "type", n.Type, "reason", err.Error())
	default:
		changeNotificationsCounter.WithLabelValues("malformed").Inc()
		a.logger.WarnContext(ctx, "Dropping malformed change notification", "table", n.Table, "type", n.Type, "error", err)
	}
	return domain.OrderEvent{}, false
}

// Normalize applies the filtering rules:
//   - only the orders table is considered
//   - INSERT always produces a Created event
//   - UPDATE produces an Updated event only when the new status is awaiting attention
//   - DELETE never produces an event
//
// A record without id or status is malformed.
func (a *Adapter) Normalize(n domain.ChangeNotification) (domain.OrderEvent, error) {
	if !strings.EqualFold(strings.TrimSpace(n.Table), a.ordersTable) {
		return domain.OrderEvent{}, domain.ErrIgnoredTable
	}

	var kind domain.ChangeKind
	switch strings.ToUpper(strings.TrimSpace(n.Type)) {
	case "INSERT":
		kind = domain.ChangeCreated
	case "UPDATE":
		kind = domain.ChangeUpdated
	case "DELETE":
		return domain.OrderEvent{}, fmt.Errorf("%w: delete", domain.ErrNotNotifiable)
	default:
		return domain.OrderEvent{}, fmt.Errorf("%w: unknown operation %q", domain.ErrMalformedChange, n.Type)
	}

	rec := n.Record
	if rec == nil {
		return domain.OrderEvent{}, fmt.Errorf("%w: missing record", domain.ErrMalformedChange)
	}
	id := stringField(rec, "id")
	if id == "" {
		return domain.OrderEvent{}, fmt.Errorf("%w: missing id", domain.ErrMalformedChange)
	}
	status, ok := rec["status"].(string)
	if !ok {
		return domain.OrderEvent{}, fmt.Errorf("%w: missing status for order %s", domain.ErrMalformedChange, id)
	}

	if kind == domain.ChangeUpdated && !a.filter.Matches(status) {
		return domain.OrderEvent{}, fmt.Errorf("%w: status %q is not awaiting attention", domain.ErrNotNotifiable, status)
	}

	occurredAt := a.occurredAt(kind, rec, n.CommitTimestamp)
	return domain.NewOrderEvent(id, kind, status, occurredAt, snapshotFrom(rec)), nil
}

func (a *Adapter) occurredAt(kind domain.ChangeKind, rec map[string]any, commitTS string) time.Time {
	keys := []string{"created_at"}
	if kind == domain.ChangeUpdated {
		keys = []string{"updated_at", "created_at"}
	}
	for _, k := range keys {
		if t, ok := timeField(rec, k); ok {
			return t
		}
	}
	if t, ok := parseTime(commitTS); ok {
		return t
	}
	return a.now().UTC()
}

func snapshotFrom(rec map[string]any) domain.OrderSnapshot {
	createdAt, _ := timeField(rec, "created_at")
	return domain.OrderSnapshot{
		DisplayID:     stringField(rec, "display_id", "order_number"),
		TotalAmount:   floatField(rec, "total_amount", "total"),
		CustomerName:  stringField(rec, "customer_name"),
		CustomerPhone: stringField(rec, "customer_phone", "phone"),
		ProfileID:     stringField(rec, "profile_id", "customer_profile_id"),
		CreatedAt:     createdAt,
		Items:         itemsField(rec, "items"),
	}
}

func stringField(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func floatField(rec map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := rec[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func itemsField(rec map[string]any, key string) []domain.LineItem {
	raw, ok := rec[key].([]any)
	if !ok {
		return nil
	}
	items := make([]domain.LineItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(m, "name", "product_name")
		if name == "" {
			continue
		}
		items = append(items, domain.LineItem{
			Name:     name,
			Quantity: floatField(m, "quantity"),
			Price:    floatField(m, "price"),
		})
	}
	return items
}

func timeField(rec map[string]any, key string) (time.Time, bool) {
	s, _ := rec[key].(string)
	return parseTime(s)
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
