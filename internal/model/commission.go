package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CommissionStatus enum constants. Transitions only move forward.
const (
	CommissionPending   = "PENDING"
	CommissionBilled    = "BILLED"
	CommissionCollected = "COLLECTED"
)

// Commission is the fee owed by a payee for one accepted booking
type Commission struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BookingID        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"booking_id"`
	PayeeID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"payee_id"`
	OrderTotal       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"order_total"`
	CommissionRate   decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"commission_amount"` // Net, before VAT
	NetAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"net_amount"`
	VATRate          decimal.Decimal `gorm:"type:decimal(6,4);not null" json:"vat_rate"`
	VATAmount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"vat_amount"`
	GrossAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"gross_amount"`
	ServiceDate      time.Time       `gorm:"not null;index" json:"service_date"`
	ServiceType      string          `gorm:"type:varchar(100)" json:"service_type"`
	Description      string          `gorm:"type:varchar(255)" json:"description"`
	BillingYear      int             `gorm:"not null;index:idx_commission_period" json:"billing_year"`
	BillingMonth     int             `gorm:"not null;index:idx_commission_period" json:"billing_month"`
	Status           string          `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	InvoiceID        *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id"`
	BilledAt         *time.Time      `json:"billed_at"`
	CollectedAt      *time.Time      `json:"collected_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (c *Commission) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
