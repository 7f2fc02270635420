package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Entry source types
const (
	SourceInvoice = "INVOICE"
	SourcePayment = "PAYMENT"
	SourceStorno  = "STORNO"
)

const EntryPosted = "POSTED"

var (
	ErrEntryUnbalanced  = errors.New("entry amount must equal net plus vat")
	ErrEntrySelfLoop    = errors.New("debit and credit account must differ")
	ErrEntryNonPositive = errors.New("entry amount must be positive")
)

// AccountingEntry is one balanced double-entry booking. Both legs share one amount.
// Rows are append-only: corrections are new entries.
type AccountingEntry struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	EntryNumber     string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"entry_number"`
	BookingDate     time.Time       `gorm:"not null;index" json:"booking_date"`
	DocumentDate    time.Time       `gorm:"not null" json:"document_date"`
	DebitAccount    string          `gorm:"type:varchar(10);not null;index" json:"debit_account"`
	CreditAccount   string          `gorm:"type:varchar(10);not null;index" json:"credit_account"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"` // Gross
	NetAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_amount"`
	VATRate         decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	VATAmount       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"vat_amount"`
	Description     string          `gorm:"type:varchar(255);not null" json:"description"`
	DocumentNumber  string          `gorm:"type:varchar(50)" json:"document_number"`
	SourceType      string          `gorm:"type:varchar(20);not null;index:idx_entry_source" json:"source_type"`
	SourceID        string          `gorm:"type:varchar(100);not null;index:idx_entry_source" json:"source_id"`
	Status          string          `gorm:"type:varchar(20);not null;default:'POSTED'" json:"status"`
	InternalNote    string          `gorm:"type:text" json:"internal_note"`
	ReversesEntryID *uuid.UUID      `gorm:"type:uuid;index" json:"reverses_entry_id"`
	CreatedBy       string          `gorm:"type:varchar(100)" json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (e *AccountingEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return e.Validate()
}

// Validate checks the per-entry ledger invariants.
func (e *AccountingEntry) Validate() error {
	if e.DebitAccount == e.CreditAccount {
		return ErrEntrySelfLoop
	}
	if !e.Amount.IsPositive() {
		return ErrEntryNonPositive
	}
	if !e.Amount.Equal(e.NetAmount.Add(e.VATAmount)) {
		return ErrEntryUnbalanced
	}
	return nil
}
