package store

import (
	"time"

	"gorm.io/datatypes"
)

// InvoiceModel is the GORM model backing the invoices table. Columns map
// to the snake_case field names the review UI submits.
type InvoiceModel struct {
	ID              string `gorm:"primaryKey"`
	DistributorName string `gorm:"not null"`
	RetailerName    string `gorm:"not null"`
	RetailerAddress string
	RetailerState   string
	InvoiceTotal    float64 `gorm:"not null"`
	WaterTotal      float64 `gorm:"not null"`
	NetTotal        float64 `gorm:"not null"`
	InvoiceDate     *string
	Raw             datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time      `gorm:"not null;index"`
}

// TableName keeps the table name stable regardless of model naming.
func (InvoiceModel) TableName() string { return "invoices" }
