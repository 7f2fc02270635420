package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PaymentWebhookEvent journals every provider event received on the webhook endpoint
type PaymentWebhookEvent struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EventID         string         `gorm:"type:varchar(150);uniqueIndex;not null" json:"event_id"`
	ResourceType    string         `gorm:"type:varchar(30);not null" json:"resource_type"`
	Action          string         `gorm:"type:varchar(30);not null" json:"action"`
	ResourceID      string         `gorm:"type:varchar(100);index" json:"resource_id"`
	Payload         datatypes.JSON `json:"payload"`
	ProcessedAt     *time.Time     `json:"processed_at"`
	ProcessingError string         `gorm:"type:text" json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (e *PaymentWebhookEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
