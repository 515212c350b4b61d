package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	orders "order-totals/internal/orders/domain"
)

const (
	defaultOrdersTable = "orders"
	defaultTotalsTable = "customer_totals"
)

// Store reads orders and replaces customer totals in a SQL database.
type Store struct {
	db          *sql.DB
	dialect     Dialect
	ordersTable string
	totalsTable string
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithOrdersTable overrides the orders table.
func WithOrdersTable(table string) StoreOption {
	return func(s *Store) {
		if table != "" {
			s.ordersTable = table
		}
	}
}

// WithTotalsTable overrides the totals table.
func WithTotalsTable(table string) StoreOption {
	return func(s *Store) {
		if table != "" {
			s.totalsTable = table
		}
	}
}

// NewStore constructs a store with defaults.
func NewStore(db *sql.DB, dialect Dialect, opts ...StoreOption) *Store {
	s := &Store{
		db:          db,
		dialect:     dialect,
		ordersTable: defaultOrdersTable,
		totalsTable: defaultTotalsTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the sink label.
func (s *Store) Name() string { return s.dialect.Name }

// ListOrders loads the whole batch ordered by order id.
func (s *Store) ListOrders(ctx context.Context) ([]orders.OrderRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("sqlstore: nil db")
	}
	query := fmt.Sprintf(`
SELECT order_id, customer_id, order_date, %s
FROM %s
ORDER BY order_id ASC`, s.dialect.amountText("order_amount"), s.ordersTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query orders: %w", err)
	}
	defer rows.Close()

	var result []orders.OrderRecord
	for rows.Next() {
		var orderID int64
		var customerID sql.NullInt64
		var orderDate sql.NullTime
		var rawAmount sql.NullString
		if err := rows.Scan(&orderID, &customerID, &orderDate, &rawAmount); err != nil {
			return nil, fmt.Errorf("sqlstore: scan order: %w", err)
		}
		record, err := buildRecord(orderID, customerID, orderDate, rawAmount)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterate orders: %w", err)
	}
	return result, nil
}

func buildRecord(orderID int64, customerID sql.NullInt64, orderDate sql.NullTime, rawAmount sql.NullString) (orders.OrderRecord, error) {
	record := orders.OrderRecord{OrderID: orderID}
	if customerID.Valid {
		id := customerID.Int64
		record.CustomerID = &id
	}
	if orderDate.Valid {
		record.OrderDate = orderDate.Time.UTC()
	}
	if rawAmount.Valid {
		amount, err := orders.ParseAmount(orderID, rawAmount.String)
		if err != nil {
			return orders.OrderRecord{}, err
		}
		record.Amount = amount
	}
	return record, nil
}

// ReplaceTotals deletes all stored totals and inserts the new set in one transaction.
func (s *Store) ReplaceTotals(ctx context.Context, totals orders.CustomerTotals) error {
	if totals == nil {
		return orders.ErrNilTotals
	}
	if s == nil {
		return orders.NewSinkPersistenceError("sql", errors.New("nil store"))
	}
	if s.db == nil {
		return orders.NewSinkPersistenceError(s.dialect.Name, errors.New("nil db"))
	}
	return orders.NewSinkPersistenceError(s.dialect.Name, s.replaceTotals(ctx, totals))
}

func (s *Store) replaceTotals(ctx context.Context, totals orders.CustomerTotals) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if err != nil && !committed {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.totalsTable)); err != nil {
		return err
	}

	insert := fmt.Sprintf("INSERT INTO %s (customer_id, total_amount) VALUES (%s, %s)",
		s.totalsTable, s.dialect.bind(1), s.dialect.bind(2))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range totals.Rows() {
		if _, err = stmt.ExecContext(ctx, row.CustomerID, row.TotalAmount.String()); err != nil {
			return err
		}
	}
	committed = true
	return tx.Commit()
}

// InsertOrders appends records to the orders table in one transaction.
// Missing customer ids, dates and amounts are stored as NULL.
func (s *Store) InsertOrders(ctx context.Context, records []orders.OrderRecord) (err error) {
	if s == nil || s.db == nil {
		return errors.New("sqlstore: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	committed := false
	defer func() {
		if err != nil && !committed {
			err = multierr.Append(err, tx.Rollback())
		}
	}()

	insert := fmt.Sprintf("INSERT INTO %s (order_id, customer_id, order_date, order_amount) VALUES (%s, %s, %s, %s)",
		s.ordersTable, s.dialect.bind(1), s.dialect.bind(2), s.dialect.bind(3), s.dialect.bind(4))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("sqlstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err = stmt.ExecContext(ctx, orderArgs(record)...); err != nil {
			return fmt.Errorf("sqlstore: insert order %d: %w", record.OrderID, err)
		}
	}
	committed = true
	return tx.Commit()
}

func orderArgs(record orders.OrderRecord) []any {
	var customerID, orderDate, amount any
	if record.CustomerID != nil {
		customerID = *record.CustomerID
	}
	if !record.OrderDate.IsZero() {
		orderDate = record.OrderDate
	}
	if record.Amount.Valid {
		amount = record.Amount.Decimal.String()
	}
	return []any{record.OrderID, customerID, orderDate, amount}
}
