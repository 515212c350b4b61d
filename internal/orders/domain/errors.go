package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord is matched by every ValidationError.
	ErrInvalidRecord = errors.New("orders: invalid record")
	// ErrMissingCustomerID is returned when a record has no customer id.
	ErrMissingCustomerID = errors.New("orders: missing customer id")
	// ErrNonNumericAmount is returned when an amount cannot be parsed.
	ErrNonNumericAmount = errors.New("orders: non-numeric amount")
	// ErrNilSource is returned when a batch is built without an order source.
	ErrNilSource = errors.New("orders: nil order source")
	// ErrNilTotals is returned when a sink receives nil totals.
	ErrNilTotals = errors.New("orders: nil totals")
)

// ValidationError identifies the record that failed shape checks.
type ValidationError struct {
	OrderID int64
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("orders: order %d: %s", e.OrderID, e.Reason)
	}
	return fmt.Sprintf("orders: order %d: %s: %s", e.OrderID, e.Field, e.Reason)
}

// Is reports ErrInvalidRecord so callers can match without a type assertion.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// SinkPersistenceError is returned by totals sinks when storing fails.
type SinkPersistenceError struct {
	Sink string
	Err  error
}

func (e *SinkPersistenceError) Error() string {
	return fmt.Sprintf("orders: persist totals to %s: %v", e.Sink, e.Err)
}

func (e *SinkPersistenceError) Unwrap() error { return e.Err }

// NewSinkPersistenceError wraps err for the named sink. A nil err yields nil.
func NewSinkPersistenceError(sink string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkPersistenceError{Sink: sink, Err: err}
}
