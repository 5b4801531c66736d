package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// Querier is the subset of *pgxpool.Pool the repository uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgOrderRepository reads orders and their line items. It never writes.
type PgOrderRepository struct {
	db          Querier
	ordersTable string
	logger      *slog.Logger
}

func NewPgOrderRepository(db Querier, ordersTable string, logger *slog.Logger) *PgOrderRepository {
	if ordersTable == "" {
		ordersTable = "orders"
	}
	return &PgOrderRepository{
		db:          db,
		ordersTable: pgx.Identifier{ordersTable}.Sanitize(),
		logger:      logger.With("component", "order_repository_pg"),
	}
}

var _ domain.OrderReader = (*PgOrderRepository)(nil)

// normalizedStatus mirrors domain.NormalizeStatus: lower-cased, separator
// runs collapsed to one space, trimmed.
const normalizedStatus = `btrim(regexp_replace(lower(COALESCE(status, '')), '[\s_-]+', ' ', 'g'))`

func (r *PgOrderRepository) awaitingOrdersQuery(scoped bool) string {
	scope := ""
	limitArg := "$2"
	if scoped {
		scope = "AND profile_id::text = $2 "
		limitArg = "$3"
	}
	return fmt.Sprintf(`SELECT id::text, COALESCE(display_id, ''), COALESCE(status, ''), created_at,
       COALESCE(total_amount, 0)::float8, COALESCE(profile_id::text, '')
FROM %s
WHERE %s LIKE ANY($1) %sORDER BY created_at DESC LIMIT %s`, r.ordersTable, normalizedStatus, scope, limitArg)
}

// likePatterns turns status terms into containment patterns, escaping LIKE
// metacharacters.
func likePatterns(terms []string) []string {
	esc := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		out = append(out, "%"+esc.Replace(t)+"%")
	}
	return out
}

// ListAwaitingOrders returns up to limit orders matching statusTerms, newest
// first. A non-empty scopeID restricts the result to that customer profile.
// The status predicate is applied before the limit.
func (r *PgOrderRepository) ListAwaitingOrders(ctx context.Context, scopeID string, statusTerms []string, limit int) ([]domain.PendingOrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if len(statusTerms) == 0 {
		return []domain.PendingOrderRecord{}, nil
	}
	patterns := likePatterns(statusTerms)

	var (
		rows pgx.Rows
		err  error
	)
	if scopeID == "" {
		rows, err = r.db.Query(ctx, r.awaitingOrdersQuery(false), patterns, limit)
	} else {
		rows, err = r.db.Query(ctx, r.awaitingOrdersQuery(true), patterns, scopeID, limit)
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying awaiting orders", "scope_id", scopeID, "error", err)
		return nil, fmt.Errorf("querying awaiting orders: %w", err)
	}
	defer rows.Close()

	records := make([]domain.PendingOrderRecord, 0, limit)
	for rows.Next() {
		var (
			rec       domain.PendingOrderRecord
			createdAt time.Time
		)
		if err := rows.Scan(&rec.ID, &rec.DisplayID, &rec.Status, &createdAt, &rec.TotalAmount, &rec.ProfileID); err != nil {
			return nil, fmt.Errorf("scanning order row: %w", err)
		}
		rec.CreatedAt = createdAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order rows: %w", err)
	}
	return records, nil
}

const orderItemsQuery = `SELECT COALESCE(p.name, 'Item'), COALESCE(oi.quantity, 0)::float8, COALESCE(oi.price, 0)::float8
FROM order_items oi
LEFT JOIN products p ON p.id = oi.product_id
WHERE oi.order_id::text = $1
ORDER BY oi.created_at, oi.id`

// ListOrderItems returns the line items of orderID; an unknown order has none.
func (r *PgOrderRepository) ListOrderItems(ctx context.Context, orderID string) ([]domain.LineItem, error) {
	rows, err := r.db.Query(ctx, orderItemsQuery, orderID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error querying order items", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("querying order items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var it domain.LineItem
		if err := rows.Scan(&it.Name, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scanning order item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order item rows: %w", err)
	}
	return items, nil
}
