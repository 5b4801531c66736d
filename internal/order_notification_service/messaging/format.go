package messaging

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
)

// FormatOptions controls store-specific parts of the admin message.
type FormatOptions struct {
	StoreName    string
	Currency     string
	DashboardURL string
}

// FormatOrderMessage renders the admin notification for an order event.
// items overrides the snapshot's line items when non-empty.
func FormatOrderMessage(ev domain.OrderEvent, items []domain.LineItem, opts FormatOptions) string {
	snap := ev.Snapshot()
	if len(items) == 0 {
		items = snap.Items
	}

	var b strings.Builder
	store := opts.StoreName
	if store == "" {
		store = "the store"
	}
	if ev.ChangeKind() == domain.ChangeCreated {
		fmt.Fprintf(&b, "New order at %s\n", store)
	} else {
		fmt.Fprintf(&b, "Order awaiting attention at %s\n", store)
	}
	fmt.Fprintf(&b, "Order: #%s\n", ev.Reference())
	if ev.Status() != "" {
		fmt.Fprintf(&b, "Status: %s\n", ev.Status())
	}

	switch {
	case snap.CustomerName != "" && snap.CustomerPhone != "":
		fmt.Fprintf(&b, "Customer: %s (%s)\n", snap.CustomerName, snap.CustomerPhone)
	case snap.CustomerName != "":
		fmt.Fprintf(&b, "Customer: %s\n", snap.CustomerName)
	case snap.CustomerPhone != "":
		fmt.Fprintf(&b, "Customer: %s\n", snap.CustomerPhone)
	}

	if len(items) > 0 {
		b.WriteString("\nItems:\n")
		for _, it := range items {
			fmt.Fprintf(&b, "- %s x %s: %s\n", formatQuantity(it.Quantity), it.Name, FormatMoney(it.Price*it.Quantity, opts.Currency))
		}
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", FormatMoney(snap.TotalAmount, opts.Currency))

	if opts.DashboardURL != "" {
		fmt.Fprintf(&b, "View: %s/orders/%s\n", strings.TrimRight(opts.DashboardURL, "/"), ev.OrderID())
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatMoney renders an amount with two decimals and an optional currency prefix.
func FormatMoney(amount float64, currency string) string {
	if currency == "" {
		return strconv.FormatFloat(amount, 'f', 2, 64)
	}
	return currency + " " + strconv.FormatFloat(amount, 'f', 2, 64)
}

func formatQuantity(q float64) string {
	if q == float64(int64(q)) {
		return strconv.FormatInt(int64(q), 10)
	}
	return strconv.FormatFloat(q, 'f', -1, 64)
}
