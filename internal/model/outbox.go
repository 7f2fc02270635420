package model

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outbox event types
const (
	EventInvoiceIssued           = "invoice.issued"
	EventInvoiceCancelled        = "invoice.cancelled"
	EventPaymentInitiated        = "payment.initiated"
	EventPaymentInitiationFailed = "payment.initiation_failed"
	EventPaymentFailed           = "payment.failed"
	EventPaymentCollected        = "payment.collected"
	EventPaymentForCancelled     = "payment.collected_for_cancelled"
	EventPaymentChargedBack      = "payment.charged_back"
	EventMandateUpdated          = "mandate.updated"
)

// OutboxEvent is a side effect recorded in the same transaction as the ledger change
// and relayed to the message transport after commit.
type OutboxEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	EventType   string            `gorm:"type:varchar(60);not null;index" json:"event_type"`
	AggregateID string            `gorm:"type:varchar(100);index" json:"aggregate_id"`
	Payload     datatypes.JSONMap `json:"payload"`
	DedupeKey   *string           `gorm:"type:varchar(150);uniqueIndex" json:"dedupe_key"`
	Published   bool              `gorm:"not null;default:false;index" json:"published"`
	Attempts    int               `gorm:"not null;default:0" json:"attempts"`
	LastError   string            `gorm:"type:text" json:"last_error,omitempty"`
	PublishedAt *time.Time        `json:"published_at"`
	CreatedAt   time.Time         `json:"created_at"`
}
