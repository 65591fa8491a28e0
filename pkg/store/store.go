package store

import "invoicescan/pkg/domain"

// Store persists approved invoices.
type Store interface {
	SaveInvoice(inv domain.Invoice) error
	ListInvoices(limit int) ([]domain.Invoice, error)
}
