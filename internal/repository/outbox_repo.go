package repository

import (
	"context"
	"strings"
	"time"

	"commissionledger/internal/model"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxMessage is a side effect to record alongside a ledger change.
type OutboxMessage struct {
	Type        string
	AggregateID string
	Payload     map[string]interface{}
	DedupeKey   string
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) error
	ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, id snowflake.ID) error
	MarkFailed(ctx context.Context, id snowflake.ID, publishErr error) error
}

type outboxRepository struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxRepository(db *gorm.DB, genID *snowflake.Node) OutboxRepository {
	return &outboxRepository{db: db, genID: genID}
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg OutboxMessage) error {
	payload := datatypes.JSONMap{}
	for key, value := range msg.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	event := model.OutboxEvent{
		ID:          r.genID.Generate(),
		EventType:   msg.Type,
		AggregateID: msg.AggregateID,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
	if dedupe := strings.TrimSpace(msg.DedupeKey); dedupe != "" {
		event.DedupeKey = &dedupe
	}

	return GetDB(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&event).Error
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := GetDB(ctx, r.db).
		Where("published = ?", false).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id snowflake.ID) error {
	now := time.Now().UTC()
	return GetDB(ctx, r.db).Model(&model.OutboxEvent{}).
		Where("id = ?", int64(id)).
		Updates(map[string]interface{}{"published": true, "published_at": now, "last_error": ""}).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id snowflake.ID, publishErr error) error {
	return GetDB(ctx, r.db).Model(&model.OutboxEvent{}).
		Where("id = ?", int64(id)).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": publishErr.Error(),
		}).Error
}
