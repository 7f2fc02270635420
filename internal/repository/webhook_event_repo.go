package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// Record inserts the event unless its event id is already journaled and returns the stored row.
	Record(ctx context.Context, event *model.PaymentWebhookEvent) (*model.PaymentWebhookEvent, error)
	MarkProcessed(ctx context.Context, eventID string) error
	// SaveFailure upserts the journal row with the processing error, outside any rolled back transaction.
	SaveFailure(ctx context.Context, event *model.PaymentWebhookEvent, procErr error) error
}

type webhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) Record(ctx context.Context, event *model.PaymentWebhookEvent) (*model.PaymentWebhookEvent, error) {
	db := GetDB(ctx, r.db)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(event).Error; err != nil {
		return nil, err
	}
	var stored model.PaymentWebhookEvent
	if err := forUpdate(db).First(&stored, "event_id = ?", event.EventID).Error; err != nil {
		return nil, translate(err)
	}
	return &stored, nil
}

func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string) error {
	now := time.Now().UTC()
	return GetDB(ctx, r.db).Model(&model.PaymentWebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{"processed_at": now, "processing_error": ""}).Error
}

func (r *webhookEventRepository) SaveFailure(ctx context.Context, event *model.PaymentWebhookEvent, procErr error) error {
	row := *event
	row.ProcessingError = procErr.Error()
	return GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"processing_error"}),
	}).Create(&row).Error
}
