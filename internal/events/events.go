// Package events delivers outbox records to message transports after the
// ledger transaction that produced them has committed.
package events

import (
	"context"
	"errors"
	"time"
)

// Message is the transport envelope of one outbox event.
type Message struct {
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	AggregateID string                 `json:"aggregate_id"`
	Payload     map[string]interface{} `json:"payload"`
	OccurredAt  time.Time              `json:"occurred_at"`
}

// Publisher is implemented by every transport.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type fanout struct {
	publishers []Publisher
}

// Fanout publishes to every transport and fails if any of them fails.
func Fanout(publishers ...Publisher) Publisher {
	return &fanout{publishers: publishers}
}

func (f *fanout) Publish(ctx context.Context, msg Message) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) Close() error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
