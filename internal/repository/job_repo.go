package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRepository interface {
	// TryAcquire takes the named lease if it is free or expired.
	TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
	CreateRun(ctx context.Context, run *model.BatchRun) error
	FinishRun(ctx context.Context, run *model.BatchRun) error
	ListRuns(ctx context.Context, limit int) ([]model.BatchRun, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	db := GetDB(ctx, r.db)
	now := time.Now().UTC()

	seed := model.JobLock{Name: name, LockedUntil: time.Unix(0, 0).UTC()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return false, err
	}

	res := db.Model(&model.JobLock{}).
		Where("name = ? AND locked_until < ?", name, now).
		Updates(map[string]interface{}{"holder": holder, "locked_until": now.Add(ttl), "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *jobRepository) Release(ctx context.Context, name, holder string) error {
	return GetDB(ctx, r.db).Model(&model.JobLock{}).
		Where("name = ? AND holder = ?", name, holder).
		Updates(map[string]interface{}{"locked_until": time.Unix(0, 0).UTC(), "updated_at": time.Now().UTC()}).Error
}

func (r *jobRepository) CreateRun(ctx context.Context, run *model.BatchRun) error {
	return GetDB(ctx, r.db).Create(run).Error
}

func (r *jobRepository) FinishRun(ctx context.Context, run *model.BatchRun) error {
	return GetDB(ctx, r.db).Model(&model.BatchRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"total_payees": run.TotalPayees,
			"succeeded":    run.Succeeded,
			"skipped":      run.Skipped,
			"failed":       run.Failed,
			"summary":      run.Summary,
			"finished_at":  run.FinishedAt,
		}).Error
}

func (r *jobRepository) ListRuns(ctx context.Context, limit int) ([]model.BatchRun, error) {
	var runs []model.BatchRun
	if err := GetDB(ctx, r.db).Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
