package memory

import (
	"context"
	"sort"
	"sync"

	orders "order-totals/internal/orders/domain"
)

// OrderStore is an in-memory order source.
type OrderStore struct {
	mu      sync.RWMutex
	records map[int64]orders.OrderRecord
}

// NewOrderStore constructs a store seeded with records.
func NewOrderStore(records ...orders.OrderRecord) *OrderStore {
	store := &OrderStore{records: make(map[int64]orders.OrderRecord)}
	for _, record := range records {
		store.records[record.OrderID] = record
	}
	return store
}

// Put stores or overwrites a record by order id.
func (s *OrderStore) Put(record orders.OrderRecord) {
	s.mu.Lock()
	s.records[record.OrderID] = record
	s.mu.Unlock()
}

// ListOrders returns the records sorted by order id ascending.
func (s *OrderStore) ListOrders(ctx context.Context) ([]orders.OrderRecord, error) {
	_ = ctx
	s.mu.RLock()
	result := make([]orders.OrderRecord, 0, len(s.records))
	for _, record := range s.records {
		result = append(result, record)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].OrderID < result[j].OrderID })
	return result, nil
}

// TotalsStore is an in-memory totals sink.
type TotalsStore struct {
	mu       sync.RWMutex
	totals   orders.CustomerTotals
	replaced int
}

// NewTotalsStore constructs an empty sink.
func NewTotalsStore() *TotalsStore {
	return &TotalsStore{totals: make(orders.CustomerTotals)}
}

// ReplaceTotals overwrites all stored totals.
func (s *TotalsStore) ReplaceTotals(ctx context.Context, totals orders.CustomerTotals) error {
	_ = ctx
	if totals == nil {
		return orders.ErrNilTotals
	}
	snapshot := totals.Clone()
	s.mu.Lock()
	s.totals = snapshot
	s.replaced++
	s.mu.Unlock()
	return nil
}

// Totals returns a detached copy of the stored totals.
func (s *TotalsStore) Totals() orders.CustomerTotals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals.Clone()
}

// ReplaceCount reports how many times totals were replaced.
func (s *TotalsStore) ReplaceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replaced
}
