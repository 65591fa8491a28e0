package store

import (
	"sync"

	"invoicescan/pkg/domain"
)

// MemoryStore keeps invoices in-process. Used in tests and local runs
// without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices []domain.Invoice
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveInvoice appends one invoice.
func (m *MemoryStore) SaveInvoice(inv domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices = append(m.invoices, inv)
	return nil
}

// ListInvoices returns saved invoices, newest first.
func (m *MemoryStore) ListInvoices(limit int) ([]domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Invoice, 0, len(m.invoices))
	for i := len(m.invoices) - 1; i >= 0; i-- {
		res = append(res, m.invoices[i])
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res, nil
}
