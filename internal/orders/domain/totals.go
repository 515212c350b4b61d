package orders

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CustomerTotals maps customer id to accumulated amount.
type CustomerTotals map[int64]decimal.Decimal

// Add folds amount into the customer's running total, starting at zero.
func (t CustomerTotals) Add(customerID int64, amount decimal.Decimal) {
	current, ok := t[customerID]
	if !ok {
		current = decimal.Zero
	}
	t[customerID] = current.Add(amount)
}

// CustomerIDs returns the keys in ascending order.
func (t CustomerTotals) CustomerIDs() []int64 {
	ids := make([]int64, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Sum returns the total across all customers.
func (t CustomerTotals) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, amount := range t {
		sum = sum.Add(amount)
	}
	return sum
}

// Clone returns a detached copy.
func (t CustomerTotals) Clone() CustomerTotals {
	if t == nil {
		return nil
	}
	copy := make(CustomerTotals, len(t))
	for id, amount := range t {
		copy[id] = amount
	}
	return copy
}

// Equal compares totals by value; decimal scale is ignored.
func (t CustomerTotals) Equal(other CustomerTotals) bool {
	if len(t) != len(other) {
		return false
	}
	for id, amount := range t {
		got, ok := other[id]
		if !ok || !got.Equal(amount) {
			return false
		}
	}
	return true
}

// CustomerTotal is a single row of a sorted totals listing.
type CustomerTotal struct {
	CustomerID  int64           `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// Rows returns the totals sorted by customer id.
func (t CustomerTotals) Rows() []CustomerTotal {
	ids := t.CustomerIDs()
	rows := make([]CustomerTotal, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, CustomerTotal{CustomerID: id, TotalAmount: t[id]})
	}
	return rows
}
