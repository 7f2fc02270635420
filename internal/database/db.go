package database

import (
	"fmt"
	"time"

	"commissionledger/internal/logger"
	"commissionledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		log := logger.WithComponent("database")
		log.Warn().Err(err).Msg("failed to auto-migrate models")
	}

	return db, nil
}

// Migrate creates or updates every ledger table.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.Payee{},
		&model.Commission{},
		&model.Invoice{},
		&model.InvoiceLineItem{},
		&model.AccountingEntry{},
		&model.DocumentSequence{},
		&model.PaymentWebhookEvent{},
		&model.OutboxEvent{},
		&model.JobLock{},
		&model.BatchRun{},
		&model.AuditLog{},
	)
	if err != nil {
		return err
	}

	// At most one live invoice per payee and period; cancelled invoices may be re-issued.
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_invoices_active_period
		ON invoices (payee_id, period_start) WHERE status <> 'CANCELLED'`).Error; err != nil {
		return fmt.Errorf("create active period index: %w", err)
	}
	return nil
}
