package domain

import (
	"encoding/json"
	"time"
)

// Invoice is one approved invoice row. Fields mirror the columns the review
// UI submits; numeric totals are already coerced by the time an Invoice is
// constructed. Raw carries the record exactly as submitted, kept for audit.
type Invoice struct {
	ID              string          `json:"id"`
	DistributorName string          `json:"distributor_name"`
	RetailerName    string          `json:"retailer_name"`
	RetailerAddress string          `json:"retailer_address"`
	RetailerState   string          `json:"retailer_state"`
	InvoiceTotal    float64         `json:"invoice_total"`
	WaterTotal      float64         `json:"water_total"`
	NetTotal        float64         `json:"net_total"`
	InvoiceDate     *string         `json:"invoice_date"`
	Raw             json.RawMessage `json:"-"`
	CreatedAt       time.Time       `json:"created_at"`
}
