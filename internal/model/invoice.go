package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus enum constants
const (
	InvoiceDraft     = "DRAFT"
	InvoiceSent      = "SENT"
	InvoicePaid      = "PAID"
	InvoiceCancelled = "CANCELLED"
)

// Invoice is the immutable monthly snapshot of one payee's commissions.
// Invoices are never deleted; cancellation is a status plus a storno entry.
type Invoice struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceNumber     string            `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_number"`
	PayeeID           uuid.UUID         `gorm:"type:uuid;not null;index" json:"payee_id"`
	Payee             *Payee            `gorm:"foreignKey:PayeeID" json:"payee,omitempty"`
	PeriodStart       time.Time         `gorm:"not null;index" json:"period_start"`
	PeriodEnd         time.Time         `gorm:"not null" json:"period_end"`
	Subtotal          decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"subtotal"`
	VATRate           decimal.Decimal   `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	VATAmount         decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"vat_amount"`
	TotalAmount       decimal.Decimal   `gorm:"type:decimal(18,2);not null" json:"total_amount"` // subtotal + vat_amount
	Status            string            `gorm:"type:varchar(20);not null;default:'DRAFT';index" json:"status"`
	AccountingEntryID *uuid.UUID        `gorm:"type:uuid" json:"accounting_entry_id"`
	ProviderPaymentID string            `gorm:"type:varchar(100);index" json:"provider_payment_id"`
	PaymentStatus     string            `gorm:"type:varchar(20)" json:"payment_status"`
	PaymentEntryID    *uuid.UUID        `gorm:"type:uuid" json:"payment_entry_id"`
	DueDate           time.Time         `json:"due_date"`
	Notes             string            `gorm:"type:text" json:"notes"`
	SentAt            *time.Time        `json:"sent_at"`
	PaidAt            *time.Time        `json:"paid_at"`
	CancelledAt       *time.Time        `json:"cancelled_at"`
	LineItems         []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoiceLineItem is one commission on an invoice; quantity is always 1 for commissions.
type InvoiceLineItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"invoice_id"`
	Position     int             `gorm:"not null" json:"position"`
	CommissionID *uuid.UUID      `gorm:"type:uuid;index" json:"commission_id"`
	ServiceDate  time.Time       `json:"service_date"`
	Description  string          `gorm:"type:varchar(255);not null" json:"description"`
	Quantity     int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	VATRate      decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	Total        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total"`
}

func (l *InvoiceLineItem) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
