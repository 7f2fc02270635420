package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionStornoInvoice      = "STORNO_INVOICE"
	ActionRunInvoiceBatch    = "RUN_INVOICE_BATCH"
	ActionLinkMandate        = "LINK_MANDATE"
	ActionCollectOutstanding = "COLLECT_OUTSTANDING"
)

// AuditLog tracks Who, What, and When for critical ledger changes
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    string    `gorm:"type:varchar(100);index" json:"actor_id"` // JWT subject, or "system" for jobs
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string    `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
