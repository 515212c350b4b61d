package orders

import "context"

// OrderSource supplies a batch ordered by order id ascending.
type OrderSource interface {
	ListOrders(ctx context.Context) ([]OrderRecord, error)
}

// TotalsSink stores customer totals, replacing whatever it held before.
type TotalsSink interface {
	ReplaceTotals(ctx context.Context, totals CustomerTotals) error
}
