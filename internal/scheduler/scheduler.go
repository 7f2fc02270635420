// Package scheduler triggers the monthly invoice batch from inside the server.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commissionledger/internal/model"
	"commissionledger/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs the invoice batch on a cron spec in UTC. The batch lock makes a
// scheduled run and a concurrent HTTP trigger safe.
type Scheduler struct {
	cron      *cron.Cron
	generator service.InvoiceGenerator
	log       zerolog.Logger
	now       func() time.Time
}

func New(spec string, generator service.InvoiceGenerator, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		generator: generator,
		log:       log,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(spec, s.runBatch); err != nil {
		return nil, fmt.Errorf("invalid invoice schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info().Time("next_run", e.Next).Msg("invoice batch scheduled")
	}
}

// Stop prevents new runs; the returned context is done once a running batch finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runBatch() {
	summary, err := s.generator.Run(context.Background(), s.now(), model.TriggerSchedule, "scheduler")
	switch {
	case errors.Is(err, service.ErrBatchAlreadyRunning):
		s.log.Info().Msg("invoice batch already running elsewhere, skipping")
	case err != nil:
		s.log.Error().Err(err).Msg("scheduled invoice batch failed")
	default:
		s.log.Info().
			Str("period", summary.Period).
			Int("succeeded", summary.Succeeded).
			Int("failed", len(summary.Failed)).
			Msg("scheduled invoice batch completed")
	}
}
