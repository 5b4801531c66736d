package app

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

const DefaultPendingPageSize = 50

// PendingResult is the in-band result of the catch-up query. Records is never
// nil.
type PendingResult struct {
	Success bool                        `json:"success"`
	Records []domain.PendingOrderRecord `json:"records"`
	Count   int                         `json:"count"`
	Error   string                      `json:"error,omitempty"`
}

// PendingNotificationService rebuilds the set of orders awaiting attention for
// clients that missed live broadcasts.
type PendingNotificationService struct {
	orders   domain.OrderReader
	filter   domain.StatusFilter
	pageSize int
	logger   *slog.Logger
}

func NewPendingNotificationService(orders domain.OrderReader, filter domain.StatusFilter, pageSize int, logger *slog.Logger) *PendingNotificationService {
	if pageSize <= 0 {
		pageSize = DefaultPendingPageSize
	}
	return &PendingNotificationService{
		orders:   orders,
		filter:   filter,
		pageSize: pageSize,
		logger:   logger.With("component", "pending_query"),
	}
}

// FetchPendingNotifications returns the newest orders whose status matches the
// awaiting-attention filter, at most one page. An empty scopeID is the global
// view. Storage errors are reported in the result, never returned.
func (s *PendingNotificationService) FetchPendingNotifications(ctx context.Context, scopeID string) PendingResult {
	terms := s.filter.Terms()
	if len(terms) == 0 {
		pendingQueriesCounter.WithLabelValues("success").Inc()
		return PendingResult{Success: true, Records: []domain.PendingOrderRecord{}}
	}

	rows, err := s.orders.ListAwaitingOrders(ctx, scopeID, terms, s.pageSize)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to fetch awaiting orders", "scope_id", scopeID, "error", err)
		pendingQueriesCounter.WithLabelValues("error").Inc()
		return PendingResult{
			Records: []domain.PendingOrderRecord{},
			Error:   "failed to load pending orders",
		}
	}

	records := make([]domain.PendingOrderRecord, 0, len(rows))
	for _, r := range rows {
		if s.filter.Matches(r.Status) {
			records = append(records, r)
		}
	}
	if dropped := len(rows) - len(records); dropped > 0 {
		s.logger.WarnContext(ctx, "Storage returned orders outside the status filter", "scope_id", scopeID, "dropped", dropped)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if len(records) > s.pageSize {
		records = records[:s.pageSize]
	}

	pendingQueriesCounter.WithLabelValues("success").Inc()
	s.logger.DebugContext(ctx, "Pending orders fetched", "scope_id", scopeID, "count", len(records))
	return PendingResult{Success: true, Records: records, Count: len(records)}
}
