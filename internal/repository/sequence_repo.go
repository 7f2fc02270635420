package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SequenceRepository interface {
	// Increment bumps the counter row for (prefix, year) and returns the new value.
	// It must run inside the transaction that persists the numbered document so a
	// rollback also returns the number.
	Increment(ctx context.Context, prefix string, year int) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Increment(ctx context.Context, prefix string, year int) (int64, error) {
	db := GetDB(ctx, r.db)

	seed := model.DocumentSequence{Prefix: prefix, Year: year}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	var seq model.DocumentSequence
	if err := forUpdate(db).First(&seq, "prefix = ? AND year = ?", prefix, year).Error; err != nil {
		return 0, translate(err)
	}

	next := seq.LastValue + 1
	res := db.Model(&model.DocumentSequence{}).
		Where("prefix = ? AND year = ? AND last_value = ?", prefix, year, seq.LastValue).
		Updates(map[string]interface{}{"last_value": next, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected != 1 {
		return 0, ErrSequenceContention
	}
	return next, nil
}
