package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bettyorganic/golang_services/internal/order_notification_service/changefeed"
	"github.com/bettyorganic/golang_services/internal/order_notification_service/domain"
	"github.com/bettyorganic/golang_services/internal/platform/database"
)

const storeSchema = `
CREATE TABLE products (
    id   uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    name text NOT NULL
);
CREATE TABLE orders (
    id            uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    display_id    text,
    status        text NOT NULL DEFAULT 'pending',
    total_amount  numeric(12,2) NOT NULL DEFAULT 0,
    customer_name text,
    profile_id    uuid,
    created_at    timestamptz NOT NULL DEFAULT now(),
    updated_at    timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE order_items (
    id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
    order_id   uuid NOT NULL REFERENCES orders(id),
    product_id uuid REFERENCES products(id),
    quantity   integer NOT NULL,
    price      numeric(12,2) NOT NULL,
    created_at timestamptz NOT NULL DEFAULT now()
);`

type channelSink chan domain.OrderEvent

func (s channelSink) Submit(_ context.Context, ev domain.OrderEvent) error {
	s <- ev
	return nil
}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run against a postgres container")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("betty_test"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.NewDBPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, storeSchema)
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dsn, "up", discardLogger()))
	return pool
}

func TestIntegration_OrderRepositoryAndChangeFeed(t *testing.T) {
	pool := setupPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sink := make(channelSink, 4)
	filter := domain.NewStatusFilter([]string{"pending", "new", "processing"})
	feed := changefeed.NewFeed(changefeed.NewAdapter("orders", filter, discardLogger()), sink, discardLogger())
	listener := changefeed.NewPgListener(pool, "order_changes", feed, discardLogger())

	listenCtx, stopListening := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- listener.Run(listenCtx) }()
	defer func() {
		stopListening()
		<-done
	}()
	// give LISTEN a moment before the first insert
	time.Sleep(500 * time.Millisecond)

	var orderID, productID string
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO products (name) VALUES ('Teff flour') RETURNING id::text`).Scan(&productID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO orders (display_id, status, total_amount, customer_name) VALUES ('BO-1001', 'Pending', 160, 'Sara') RETURNING id::text`,
	).Scan(&orderID))
	_, err := pool.Exec(ctx, `INSERT INTO order_items (order_id, product_id, quantity, price) VALUES ($1, $2, 2, 80)`, orderID, productID)
	require.NoError(t, err)

	select {
	case ev := <-sink:
		assert.Equal(t, orderID, ev.OrderID())
		assert.Equal(t, domain.ChangeCreated, ev.ChangeKind())
		assert.Equal(t, "BO-1001", ev.Reference())
	case <-ctx.Done():
		t.Fatal("no order event received from LISTEN/NOTIFY")
	}

	// pending -> confirmed is not notifiable
	_, err = pool.Exec(ctx, `UPDATE orders SET status = 'confirmed' WHERE id = $1`, orderID)
	require.NoError(t, err)
	select {
	case ev := <-sink:
		t.Fatalf("unexpected event for status %q", ev.Status())
	case <-time.After(500 * time.Millisecond):
	}

	repo := NewPgOrderRepository(pool, "orders", discardLogger())
	records, err := repo.ListAwaitingOrders(ctx, "", filter.Terms(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)

	items, err := repo.ListOrderItems(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, []domain.LineItem{{Name: "Teff flour", Quantity: 2, Price: 80}}, items)
}

func TestIntegration_ListAwaitingOrdersMatchesStatusFilter(t *testing.T) {
	pool := setupPostgres(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	profileID := "5d1c8a6e-7a43-4b8e-9a57-2b0f4c1d9e01"
	_, err := pool.Exec(ctx, `INSERT INTO orders (display_id, status, total_amount, profile_id, created_at) VALUES
		('BO-OLD', 'Pending-Payment', 95.50, $1, now() - interval '30 days'),
		('BO-SUS', 'suspending', 10, NULL, now() - interval '20 days'),
		('BO-PRC', '  PROCESSING ', 20, NULL, now() - interval '10 days'),
		('BO-NEWX', 'new_order', 30, NULL, now() - interval '5 days')`, profileID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO orders (status, created_at)
		SELECT 'confirmed', now() - make_interval(mins => g) FROM generate_series(1, 600) AS g`)
	require.NoError(t, err)

	filter := domain.NewStatusFilter([]string{"pending", "new", "processing"})
	repo := NewPgOrderRepository(pool, "orders", discardLogger())

	records, err := repo.ListAwaitingOrders(ctx, "", filter.Terms(), 50)
	require.NoError(t, err)
	ids := make([]string, 0, len(records))
	for _, r := range records {
		assert.True(t, filter.Matches(r.Status), "status %q", r.Status)
		ids = append(ids, r.DisplayID)
	}
	// newest first; the loose containment match includes "suspending"
	assert.Equal(t, []string{"BO-NEWX", "BO-PRC", "BO-SUS", "BO-OLD"}, ids)

	limited, err := repo.ListAwaitingOrders(ctx, "", filter.Terms(), 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "BO-NEWX", limited[0].DisplayID)

	scoped, err := repo.ListAwaitingOrders(ctx, profileID, filter.Terms(), 50)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "BO-OLD", scoped[0].DisplayID)
	assert.Equal(t, 95.5, scoped[0].TotalAmount)
}
