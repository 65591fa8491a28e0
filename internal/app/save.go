package app

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"invoicescan/internal/util"
	"invoicescan/pkg/domain"
)

// InvoiceInput carries one reviewed record as submitted for saving. The
// review UI may send numeric totals as JSON numbers or strings; both are
// accepted and coerced.
type InvoiceInput struct {
	DistributorName string  `json:"distributor_name"`
	RetailerName    string  `json:"retailer_name"`
	RetailerAddress string  `json:"retailer_address"`
	RetailerState   string  `json:"retailer_state"`
	InvoiceTotal    any     `json:"invoice_total"`
	WaterTotal      any     `json:"water_total"`
	NetTotal        any     `json:"net_total"`
	InvoiceDate     *string `json:"invoice_date"`
}

// SaveInvoice validates and persists one approved invoice, returning the
// stored row. Distributor and retailer name must be non-blank; everything
// else defaults rather than rejects because the record already passed
// human review.
func (a *App) SaveInvoice(in InvoiceInput) (domain.Invoice, error) {
	if strings.TrimSpace(in.DistributorName) == "" || strings.TrimSpace(in.RetailerName) == "" {
		return domain.Invoice{}, ErrMissingRequiredNames
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("encode raw record: %w", err)
	}
	inv := domain.Invoice{
		ID:              util.NewID(),
		DistributorName: in.DistributorName,
		RetailerName:    in.RetailerName,
		RetailerAddress: in.RetailerAddress,
		RetailerState:   in.RetailerState,
		InvoiceTotal:    coerceNumber(in.InvoiceTotal),
		WaterTotal:      coerceNumber(in.WaterTotal),
		NetTotal:        coerceNumber(in.NetTotal),
		InvoiceDate:     in.InvoiceDate,
		Raw:             raw,
		CreatedAt:       time.Now().UTC(),
	}
	if err := a.store.SaveInvoice(inv); err != nil {
		return domain.Invoice{}, fmt.Errorf("save invoice: %w", err)
	}
	return inv, nil
}

// coerceNumber converts a JSON value to float64, defaulting to 0 on
// anything non-numeric.
func coerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
