package domain

import (
	"context"
	"time"
)

// PendingOrderRecord is the catch-up projection of an order. It is always
// recomputed from the orders table.
type PendingOrderRecord struct {
	ID          string    `json:"id"`
	DisplayID   string    `json:"display_id,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	TotalAmount float64   `json:"total_amount"`
	ProfileID   string    `json:"profile_id,omitempty"`
}

// OrderReader is the read-only access the pipeline has to the orders table.
type OrderReader interface {
	// ListAwaitingOrders returns up to limit orders whose normalized status
	// contains one of statusTerms, newest first, optionally restricted to one
	// owning profile. The match is the same one StatusFilter.Matches makes.
	ListAwaitingOrders(ctx context.Context, scopeID string, statusTerms []string, limit int) ([]PendingOrderRecord, error)
	// ListOrderItems returns the line items of one order.
	ListOrderItems(ctx context.Context, orderID string) ([]LineItem, error)
}
