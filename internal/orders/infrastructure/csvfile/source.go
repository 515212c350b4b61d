package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	orders "order-totals/internal/orders/domain"
)

// DateLayout is the order_date column format.
const DateLayout = "2006-01-02"

// Columns is the header written and expected by this package.
var Columns = []string{"order_id", "customer_id", "order_date", "order_amount"}

// Source reads an order batch from a CSV file with a header row.
type Source struct {
	path string
}

// NewSource constructs a file source.
func NewSource(path string) (*Source, error) {
	if path == "" {
		return nil, errors.New("csv source: empty path")
	}
	return &Source{path: path}, nil
}

// ListOrders reads the file and returns records ordered by order id.
func (s *Source) ListOrders(ctx context.Context) ([]orders.OrderRecord, error) {
	_ = ctx
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("csv source: open %s: %w", s.path, err)
	}
	defer file.Close()
	return Decode(file)
}

// Decode parses CSV order rows. Columns are matched by header name; "amount" is accepted
// for order_amount.
func Decode(r io.Reader) ([]orders.OrderRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []orders.OrderRecord{}, nil
		}
		return nil, fmt.Errorf("csv source: read header: %w", err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	result := []orders.OrderRecord{}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv source: read row: %w", err)
		}
		line, _ := reader.FieldPos(0)
		record, err := parseRow(row, index, line)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].OrderID < result[j].OrderID })
	return result, nil
}

type columns struct {
	orderID    int
	customerID int
	orderDate  int
	amount     int
}

func columnIndex(header []string) (columns, error) {
	idx := columns{orderID: -1, customerID: -1, orderDate: -1, amount: -1}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "order_id":
			idx.orderID = i
		case "customer_id":
			idx.customerID = i
		case "order_date":
			idx.orderDate = i
		case "order_amount", "amount":
			idx.amount = i
		}
	}
	if idx.orderID < 0 || idx.customerID < 0 || idx.amount < 0 {
		return idx, errors.New("csv source: header must contain order_id, customer_id and order_amount")
	}
	return idx, nil
}

func parseRow(row []string, idx columns, line int) (orders.OrderRecord, error) {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	orderID, err := strconv.ParseInt(field(idx.orderID), 10, 64)
	if err != nil {
		return orders.OrderRecord{}, &orders.ValidationError{
			Field:  "order_id",
			Reason: fmt.Sprintf("line %d: invalid order id %q", line, field(idx.orderID)),
		}
	}
	record := orders.OrderRecord{OrderID: orderID}

	if raw := field(idx.customerID); raw != "" {
		customerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return orders.OrderRecord{}, &orders.ValidationError{
				OrderID: orderID,
				Field:   "customer_id",
				Reason:  fmt.Sprintf("invalid customer id %q", raw),
			}
		}
		record.CustomerID = &customerID
	}

	if raw := field(idx.orderDate); raw != "" {
		orderDate, err := time.Parse(DateLayout, raw)
		if err != nil {
			return orders.OrderRecord{}, &orders.ValidationError{
				OrderID: orderID,
				Field:   "order_date",
				Reason:  fmt.Sprintf("invalid date %q", raw),
			}
		}
		record.OrderDate = orderDate
	}

	amount, err := orders.ParseAmount(orderID, field(idx.amount))
	if err != nil {
		return orders.OrderRecord{}, err
	}
	record.Amount = amount
	return record, nil
}

// Encode writes records in the Columns layout.
func Encode(w io.Writer, records []orders.OrderRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return err
	}
	for _, record := range records {
		row := []string{strconv.FormatInt(record.OrderID, 10), "", "", ""}
		if record.CustomerID != nil {
			row[1] = strconv.FormatInt(*record.CustomerID, 10)
		}
		if !record.OrderDate.IsZero() {
			row[2] = record.OrderDate.Format(DateLayout)
		}
		if record.Amount.Valid {
			row[3] = record.Amount.Decimal.String()
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
