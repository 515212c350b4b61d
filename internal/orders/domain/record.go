package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRecord is a single order row supplied to the aggregator.
// CustomerID is nil when the source row had no customer. Amount is invalid when missing.
type OrderRecord struct {
	OrderID    int64
	CustomerID *int64
	OrderDate  time.Time
	Amount     decimal.NullDecimal
}

// NewOrderRecord builds a record with both customer and amount present.
func NewOrderRecord(orderID, customerID int64, orderDate time.Time, amount decimal.Decimal) OrderRecord {
	return OrderRecord{
		OrderID:    orderID,
		CustomerID: &customerID,
		OrderDate:  orderDate,
		Amount:     decimal.NewNullDecimal(amount),
	}
}

// Validate performs the shape checks required before a record is aggregated.
func (r OrderRecord) Validate() error {
	if r.CustomerID == nil {
		return &ValidationError{OrderID: r.OrderID, Field: "customer_id", Reason: ErrMissingCustomerID.Error()}
	}
	return nil
}

// AmountOrZero returns the amount, treating a missing value as zero.
func (r OrderRecord) AmountOrZero() decimal.Decimal {
	if !r.Amount.Valid {
		return decimal.Zero
	}
	return r.Amount.Decimal
}

// ParseAmount parses a textual amount. Blank input is a missing amount, not an error.
func ParseAmount(orderID int64, raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, &ValidationError{
			OrderID: orderID,
			Field:   "amount",
			Reason:  ErrNonNumericAmount.Error() + " " + quote(raw),
		}
	}
	return decimal.NewNullDecimal(value), nil
}

func quote(s string) string {
	return `"` + s + `"`
}
