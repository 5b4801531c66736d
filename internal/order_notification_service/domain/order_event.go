package domain

import (
	"time"
)

// ChangeKind is the row-level operation behind an OrderEvent.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// LineItem is one ordered product as shown in an admin message.
type LineItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderSnapshot is the read-only projection of an order carried by an event.
type OrderSnapshot struct {
	DisplayID     string
	TotalAmount   float64
	CustomerName  string
	CustomerPhone string
	ProfileID     string
	CreatedAt     time.Time
	Items         []LineItem
}

// OrderEvent is the canonical fact produced by the change feed. It has no
// setters; accessors hand out copies.
type OrderEvent struct {
	orderID    string
	changeKind ChangeKind
	status     string
	occurredAt time.Time
	snapshot   OrderSnapshot
}

// NewOrderEvent builds an immutable event. The snapshot's item slice is copied.
func NewOrderEvent(orderID string, kind ChangeKind, status string, occurredAt time.Time, snapshot OrderSnapshot) OrderEvent {
	snapshot.Items = cloneItems(snapshot.Items)
	return OrderEvent{
		orderID:    orderID,
		changeKind: kind,
		status:     NormalizeStatus(status),
		occurredAt: occurredAt,
		snapshot:   snapshot,
	}
}

func (e OrderEvent) OrderID() string        { return e.orderID }
func (e OrderEvent) ChangeKind() ChangeKind { return e.changeKind }
func (e OrderEvent) Status() string         { return e.status }
func (e OrderEvent) OccurredAt() time.Time  { return e.occurredAt }

// Snapshot returns a copy of the order projection.
func (e OrderEvent) Snapshot() OrderSnapshot {
	s := e.snapshot
	s.Items = cloneItems(s.Items)
	return s
}

// Reference is the human-facing order reference: display id when present,
// otherwise the first eight characters of the order id.
func (e OrderEvent) Reference() string {
	if e.snapshot.DisplayID != "" {
		return e.snapshot.DisplayID
	}
	if len(e.orderID) > 8 {
		return e.orderID[:8]
	}
	return e.orderID
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}
