package orders

import "github.com/shopspring/decimal"

// DefaultSentinel is the amount that ends a batch early unless overridden.
var DefaultSentinel = decimal.NewFromInt(-1)

// AggregationResult is the terminal snapshot of a run.
type AggregationResult struct {
	Totals       CustomerTotals `json:"totals"`
	Aborted      bool           `json:"aborted"`
	AbortOrderID *int64         `json:"abort_order_id,omitempty"`
	Processed    int            `json:"processed"`
}

// Aggregator groups order amounts by customer.
type Aggregator struct {
	sentinel decimal.Decimal
}

// AggregatorOption configures the aggregator.
type AggregatorOption func(*Aggregator)

// WithSentinel overrides the abort amount.
func WithSentinel(sentinel decimal.Decimal) AggregatorOption {
	return func(a *Aggregator) {
		a.sentinel = sentinel
	}
}

// NewAggregator constructs an aggregator with the default sentinel of -1.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{sentinel: DefaultSentinel}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sentinel returns the configured abort amount.
func (a *Aggregator) Sentinel() decimal.Decimal { return a.sentinel }

// Aggregate folds records in the supplied order. A record whose amount equals the
// sentinel stops the pass and is itself excluded without being validated; totals
// gathered so far are kept.
// A nil slice is treated as an empty batch.
func (a *Aggregator) Aggregate(records []OrderRecord) (AggregationResult, error) {
	result := AggregationResult{Totals: make(CustomerTotals)}
	for _, record := range records {
		if record.Amount.Valid && record.Amount.Decimal.Equal(a.sentinel) {
			abortID := record.OrderID
			result.Aborted = true
			result.AbortOrderID = &abortID
			return result, nil
		}
		if err := record.Validate(); err != nil {
			return AggregationResult{}, err
		}
		result.Totals.Add(*record.CustomerID, record.AmountOrZero())
		result.Processed++
	}
	return result, nil
}

// Aggregate runs a one-off aggregation with the given sentinel.
func Aggregate(records []OrderRecord, sentinel decimal.Decimal) (AggregationResult, error) {
	return NewAggregator(WithSentinel(sentinel)).Aggregate(records)
}
