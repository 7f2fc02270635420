package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the structured log. Used when no broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, msg Message) error {
	p.log.Info().
		Str("event_id", msg.ID).
		Str("event_type", msg.Type).
		Str("aggregate_id", msg.AggregateID).
		Interface("payload", msg.Payload).
		Msg("event published")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
