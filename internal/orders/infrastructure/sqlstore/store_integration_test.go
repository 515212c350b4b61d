package sqlstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orders "order-totals/internal/orders/domain"
)

func TestStore_PostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	ctx := context.Background()
	db, err := Open(ctx, Postgres, dsn)
	require.NoError(t, err)
	defer db.Close()

	ordersTable := "it_orders"
	totalsTable := "it_customer_totals"
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS " + ordersTable,
		"DROP TABLE IF EXISTS " + totalsTable,
		"CREATE TABLE " + ordersTable + " (order_id BIGINT PRIMARY KEY, customer_id BIGINT, order_date DATE, order_amount NUMERIC(12,2))",
		"CREATE TABLE " + totalsTable + " (customer_id BIGINT PRIMARY KEY, total_amount NUMERIC(14,2) NOT NULL)",
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, "prepare schema")
	}

	day := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		id       int64
		customer any
		amount   any
	}{
		{3, 100, "150"},
		{1, 100, "250"},
		{2, 101, "100"},
		{4, 102, nil},
	}
	for _, row := range seed {
		_, err := db.ExecContext(ctx,
			"INSERT INTO "+ordersTable+" (order_id, customer_id, order_date, order_amount) VALUES ($1, $2, $3, $4)",
			row.id, row.customer, day, row.amount)
		require.NoError(t, err, "seed order %d", row.id)
	}
	_, err = db.ExecContext(ctx, "INSERT INTO "+totalsTable+" (customer_id, total_amount) VALUES (999, 1)")
	require.NoError(t, err, "seed stale total")

	store := NewStore(db, Postgres, WithOrdersTable(ordersTable), WithTotalsTable(totalsTable))
	records, err := store.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, int64(1), records[0].OrderID)
	assert.Equal(t, int64(4), records[3].OrderID)
	assert.False(t, records[3].Amount.Valid, "expected null amount for order 4")

	result, err := orders.NewAggregator().Aggregate(records)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceTotals(ctx, result.Totals))

	rows, err := db.QueryContext(ctx, "SELECT customer_id, total_amount::text FROM "+totalsTable+" ORDER BY customer_id")
	require.NoError(t, err)
	defer rows.Close()

	got := make(orders.CustomerTotals)
	for rows.Next() {
		var id int64
		var raw string
		require.NoError(t, rows.Scan(&id, &raw))
		got[id] = decimal.RequireFromString(raw)
	}
	want := orders.CustomerTotals{
		100: decimal.NewFromInt(400),
		101: decimal.NewFromInt(100),
		102: decimal.Zero,
	}
	assert.True(t, got.Equal(want), "totals mismatch: got=%v want=%v", got, want)
}
