package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Mandate status values as reported by the payment provider
const (
	MandateCreated   = "created"
	MandateSubmitted = "submitted"
	MandateActive    = "active"
	MandateCancelled = "cancelled"
	MandateFailed    = "failed"
	MandateExpired   = "expired"
)

var mandateRank = map[string]int{
	MandateCreated:   1,
	MandateSubmitted: 2,
	MandateActive:    3,
	MandateCancelled: 4,
	MandateFailed:    4,
	MandateExpired:   4,
}

// IsKnownMandateStatus reports whether s is one of the provider mandate states.
func IsKnownMandateStatus(s string) bool {
	_, ok := mandateRank[s]
	return ok
}

// CanAdvanceMandate reports whether a mandate may move from current to next.
// Terminal states never change; everything else only moves forward.
func CanAdvanceMandate(current, next string) bool {
	nextRank, ok := mandateRank[next]
	if !ok {
		return false
	}
	if current == "" {
		return true
	}
	currentRank := mandateRank[current]
	if currentRank == 4 {
		return false
	}
	return nextRank > currentRank
}

// IsMandateUsable is true once the mandate has been submitted to the bank and is not terminated.
func IsMandateUsable(status string) bool {
	return status == MandateSubmitted || status == MandateActive
}

// Payee is a service provider that owes commission to the platform
type Payee struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string              `gorm:"type:varchar(255);not null" json:"name"`
	CompanyName    string              `gorm:"type:varchar(255)" json:"company_name"`
	Email          string              `gorm:"type:varchar(255)" json:"email"` // Notification contact
	CustomerRef    string              `gorm:"type:varchar(100)" json:"customer_ref"`
	CommissionRate decimal.NullDecimal `gorm:"type:decimal(6,4)" json:"commission_rate"` // Overrides the platform default
	MandateID      string              `gorm:"type:varchar(100);index" json:"mandate_id"`
	MandateStatus  string              `gorm:"type:varchar(20)" json:"mandate_status"`
	IsActive       bool                `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (p *Payee) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
