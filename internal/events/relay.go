package events

import (
	"context"
	"time"

	"commissionledger/internal/metrics"
	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/rs/zerolog"
)

const defaultBatchSize = 100

// Relay moves committed outbox rows to the publisher. Delivery is at least once;
// consumers dedupe on Message.ID.
type Relay struct {
	outbox    repository.OutboxRepository
	publisher Publisher
	metrics   *metrics.LedgerMetrics
	log       zerolog.Logger
	batchSize int
}

func NewRelay(outbox repository.OutboxRepository, publisher Publisher, m *metrics.LedgerMetrics, log zerolog.Logger) *Relay {
	return &Relay{outbox: outbox, publisher: publisher, metrics: m, log: log, batchSize: defaultBatchSize}
}

// RunOnce publishes one batch of pending events and returns how many went out.
// A failed event is marked and left for the next pass.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.outbox.ListPending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	r.metrics.SetOutboxBacklog(len(pending))

	published := 0
	for _, ev := range pending {
		msg := toMessage(ev)
		if err := r.publisher.Publish(ctx, msg); err != nil {
			r.metrics.IncOutboxPublish("failed")
			r.log.Warn().Err(err).Str("event_id", msg.ID).Str("event_type", msg.Type).Int("attempts", ev.Attempts+1).Msg("outbox publish failed")
			if markErr := r.outbox.MarkFailed(ctx, ev.ID, err); markErr != nil {
				return published, markErr
			}
			continue
		}
		if err := r.outbox.MarkPublished(ctx, ev.ID); err != nil {
			return published, err
		}
		r.metrics.IncOutboxPublish("published")
		published++
	}
	return published, nil
}

// Start polls until ctx is cancelled.
func (r *Relay) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error().Err(err).Msg("outbox relay pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func toMessage(ev model.OutboxEvent) Message {
	return Message{
		ID:          ev.ID.String(),
		Type:        ev.EventType,
		AggregateID: ev.AggregateID,
		Payload:     map[string]interface{}(ev.Payload),
		OccurredAt:  ev.CreatedAt,
	}
}
