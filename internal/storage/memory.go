package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Ledger. It backs tests and DB-less runs of the
// simulation daemon.
type Memory struct {
	mu    sync.Mutex
	sales map[string]float64
	total float64
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{sales: make(map[string]float64)}
}

// Close is a no-op for the in-memory ledger.
func (m *Memory) Close() {}

// RecordSale books the payment, rejecting a second sale for the same customer.
func (m *Memory) RecordSale(_ context.Context, customerID string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sales[customerID]; ok {
		return fmt.Errorf("%w %s", ErrDuplicateSale, customerID)
	}
	m.sales[customerID] = amount
	m.total += amount
	return nil
}

// Balance returns the total of all recorded sales.
func (m *Memory) Balance(_ context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}
