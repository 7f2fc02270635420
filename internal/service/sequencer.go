package service

import (
	"context"
	"fmt"

	"commissionledger/internal/repository"
)

// Sequencer issues gap-free document numbers of the form PREFIX-YYYY-NNNNN.
type Sequencer interface {
	Next(ctx context.Context, prefix string, year int) (string, error)
}

type sequencer struct {
	repo      repository.SequenceRepository
	txManager repository.TransactionManager
}

func NewSequencer(repo repository.SequenceRepository, txManager repository.TransactionManager) Sequencer {
	return &sequencer{repo: repo, txManager: txManager}
}

// Next joins the caller's transaction when there is one, so the number is
// only consumed if the numbered document commits.
func (s *sequencer) Next(ctx context.Context, prefix string, year int) (string, error) {
	var number string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.repo.Increment(txCtx, prefix, year)
		if err != nil {
			return fmt.Errorf("failed to allocate %s number: %w", prefix, err)
		}
		number = FormatDocumentNumber(prefix, year, n)
		return nil
	})
	return number, err
}

func FormatDocumentNumber(prefix string, year int, n int64) string {
	return fmt.Sprintf("%s-%04d-%05d", prefix, year, n)
}
