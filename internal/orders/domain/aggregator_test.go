package orders

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var orderDay = time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

func rec(orderID, customerID int64, amount int64) OrderRecord {
	return NewOrderRecord(orderID, customerID, orderDay, decimal.NewFromInt(amount))
}

func totalsOf(pairs map[int64]int64) CustomerTotals {
	out := make(CustomerTotals, len(pairs))
	for id, amount := range pairs {
		out[id] = decimal.NewFromInt(amount)
	}
	return out
}

func TestAggregate_SentinelExample(t *testing.T) {
	records := []OrderRecord{
		rec(1, 100, 250),
		rec(2, 101, 100),
		rec(3, 100, 150),
		rec(4, 102, 75),
		rec(5, 103, -1),
	}

	result, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)

	assert.True(t, result.Aborted)
	require.NotNil(t, result.AbortOrderID)
	assert.Equal(t, int64(5), *result.AbortOrderID)
	assert.Equal(t, 4, result.Processed)
	assert.True(t, result.Totals.Equal(totalsOf(map[int64]int64{100: 400, 101: 100, 102: 75})), "totals: %v", result.Totals)
	_, seen := result.Totals[103]
	assert.False(t, seen, "sentinel customer must not appear")
}

func TestAggregate_EmptyInput(t *testing.T) {
	for name, records := range map[string][]OrderRecord{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			result, err := NewAggregator().Aggregate(records)
			require.NoError(t, err)
			assert.Empty(t, result.Totals)
			assert.NotNil(t, result.Totals)
			assert.False(t, result.Aborted)
			assert.Nil(t, result.AbortOrderID)
		})
	}
}

func TestAggregate_OrderIndependentWithoutSentinel(t *testing.T) {
	records := []OrderRecord{
		rec(1, 7, 10),
		rec(2, 8, -3),
		rec(3, 7, 5),
		rec(4, 9, 0),
		rec(5, 8, 20),
		rec(6, 7, -2),
	}
	want := totalsOf(map[int64]int64{7: 13, 8: 17, 9: 0})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]OrderRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		result, err := NewAggregator().Aggregate(shuffled)
		require.NoError(t, err)
		assert.False(t, result.Aborted)
		assert.True(t, result.Totals.Equal(want), "iteration %d: %v", i, result.Totals)
	}
}

func TestAggregate_TruncatesAtSentinelPosition(t *testing.T) {
	records := []OrderRecord{
		rec(10, 1, 5),
		rec(11, 2, 6),
		rec(12, 3, -1),
		rec(13, 4, 8),
		rec(14, 1, 9),
	}

	result, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Equal(t, int64(12), *result.AbortOrderID)
	assert.True(t, result.Totals.Equal(totalsOf(map[int64]int64{1: 5, 2: 6})))
}

func TestAggregate_SentinelKeepsPriorTotalsOfSameCustomer(t *testing.T) {
	records := []OrderRecord{
		rec(1, 100, 40),
		rec(2, 100, -1),
	}

	result, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)
	assert.True(t, result.Totals.Equal(totalsOf(map[int64]int64{100: 40})))
}

func TestAggregate_SentinelFirstRecord(t *testing.T) {
	result, err := NewAggregator().Aggregate([]OrderRecord{rec(1, 100, -1), rec(2, 100, 3)})
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Empty(t, result.Totals)
	assert.Zero(t, result.Processed)
}

func TestAggregate_CustomSentinel(t *testing.T) {
	records := []OrderRecord{
		rec(1, 1, -1),
		rec(2, 1, 999),
		rec(3, 2, 4),
	}

	result, err := Aggregate(records, decimal.NewFromInt(999))
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	assert.Equal(t, int64(2), *result.AbortOrderID)
	assert.True(t, result.Totals.Equal(totalsOf(map[int64]int64{1: -1})))
}

func TestAggregate_SentinelMatchesByValueNotScale(t *testing.T) {
	amount, err := decimal.NewFromString("-1.00")
	require.NoError(t, err)

	records := []OrderRecord{
		rec(1, 1, 2),
		NewOrderRecord(2, 1, orderDay, amount),
	}
	result, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
}

func TestAggregate_MissingAmountCountsAsZero(t *testing.T) {
	customer := int64(55)
	records := []OrderRecord{
		rec(1, 55, 12),
		{OrderID: 2, CustomerID: &customer, OrderDate: orderDay},
		{OrderID: 3, CustomerID: func() *int64 { id := int64(56); return &id }()},
	}

	result, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)
	assert.False(t, result.Aborted)
	assert.Equal(t, 3, result.Processed)
	assert.True(t, result.Totals.Equal(totalsOf(map[int64]int64{55: 12, 56: 0})))
}

func TestAggregate_MissingCustomerFailsWholeRun(t *testing.T) {
	records := []OrderRecord{
		rec(1, 1, 10),
		{OrderID: 2, Amount: decimal.NewNullDecimal(decimal.NewFromInt(3))},
		rec(3, 1, -1),
	}

	result, err := NewAggregator().Aggregate(records)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, int64(2), verr.OrderID)
	assert.Equal(t, "customer_id", verr.Field)
	assert.Nil(t, result.Totals)
}

func TestAggregate_SentinelWithoutCustomerStillAborts(t *testing.T) {
	records := []OrderRecord{
		rec(1, 1, 10),
		{OrderID: 2, Amount: decimal.NewNullDecimal(decimal.NewFromInt(-1))},
		{OrderID: 3, Amount: decimal.NewNullDecimal(decimal.NewFromInt(4))},
	}

	result, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
	require.NotNil(t, result.AbortOrderID)
	assert.Equal(t, int64(2), *result.AbortOrderID)
	assert.True(t, result.Totals.Equal(totalsOf(map[int64]int64{1: 10})))
}

func TestAggregate_Deterministic(t *testing.T) {
	records := []OrderRecord{
		rec(1, 3, 1),
		rec(2, 4, 2),
		rec(3, 3, 3),
		rec(4, 5, -1),
	}
	agg := NewAggregator()

	first, err := agg.Aggregate(records)
	require.NoError(t, err)
	second, err := agg.Aggregate(records)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	records := []OrderRecord{rec(1, 3, 1), rec(2, 3, 2)}
	snapshot := append([]OrderRecord(nil), records...)

	_, err := NewAggregator().Aggregate(records)
	require.NoError(t, err)
	assert.Equal(t, snapshot, records)
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount(1, " 12.50 ")
	require.NoError(t, err)
	assert.True(t, amount.Valid)
	assert.True(t, amount.Decimal.Equal(decimal.RequireFromString("12.5")))

	missing, err := ParseAmount(2, "")
	require.NoError(t, err)
	assert.False(t, missing.Valid)

	missing, err = ParseAmount(3, "NULL")
	require.NoError(t, err)
	assert.False(t, missing.Valid)

	_, err = ParseAmount(4, "twelve")
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, int64(4), verr.OrderID)
	assert.Equal(t, "amount", verr.Field)
	assert.Contains(t, err.Error(), `"twelve"`)
}

func TestCustomerTotalsRows(t *testing.T) {
	totals := totalsOf(map[int64]int64{30: 1, 10: 2, 20: 3})

	rows := totals.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{rows[0].CustomerID, rows[1].CustomerID, rows[2].CustomerID})
	assert.True(t, totals.Sum().Equal(decimal.NewFromInt(6)))
}
