package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"invoicescan/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&InvoiceModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveInvoice inserts one invoice row.
func (s *GormStore) SaveInvoice(inv domain.Invoice) error {
	model := toInvoiceModel(inv)
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// ListInvoices returns the most recently saved invoices, newest first.
func (s *GormStore) ListInvoices(limit int) ([]domain.Invoice, error) {
	var models []InvoiceModel
	q := s.db.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	invoices := make([]domain.Invoice, 0, len(models))
	for _, m := range models {
		invoices = append(invoices, toDomainInvoice(m))
	}
	return invoices, nil
}

func toInvoiceModel(inv domain.Invoice) InvoiceModel {
	var raw datatypes.JSON
	if len(inv.Raw) > 0 {
		raw = datatypes.JSON(inv.Raw)
	}
	return InvoiceModel{
		ID:              inv.ID,
		DistributorName: inv.DistributorName,
		RetailerName:    inv.RetailerName,
		RetailerAddress: inv.RetailerAddress,
		RetailerState:   inv.RetailerState,
		InvoiceTotal:    inv.InvoiceTotal,
		WaterTotal:      inv.WaterTotal,
		NetTotal:        inv.NetTotal,
		InvoiceDate:     inv.InvoiceDate,
		Raw:             raw,
		CreatedAt:       inv.CreatedAt,
	}
}

func toDomainInvoice(m InvoiceModel) domain.Invoice {
	return domain.Invoice{
		ID:              m.ID,
		DistributorName: m.DistributorName,
		RetailerName:    m.RetailerName,
		RetailerAddress: m.RetailerAddress,
		RetailerState:   m.RetailerState,
		InvoiceTotal:    m.InvoiceTotal,
		WaterTotal:      m.WaterTotal,
		NetTotal:        m.NetTotal,
		InvoiceDate:     m.InvoiceDate,
		Raw:             json.RawMessage(m.Raw),
		CreatedAt:       m.CreatedAt,
	}
}
