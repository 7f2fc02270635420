package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntryFilter narrows ledger listings; zero values are ignored.
type EntryFilter struct {
	From       *time.Time
	Until      *time.Time
	SourceType string
	SourceID   string
	Account    string
	Page       int
	Limit      int
}

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	Create(ctx context.Context, entry *model.AccountingEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.AccountingEntry, error)
	FindReversalOf(ctx context.Context, entryID uuid.UUID) (*model.AccountingEntry, error)
	List(ctx context.Context, filter EntryFilter) ([]model.AccountingEntry, int64, error)
	// ListBetween returns every entry booked in [from, until) in booking order.
	ListBetween(ctx context.Context, from, until time.Time) ([]model.AccountingEntry, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, entry *model.AccountingEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *ledgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.AccountingEntry, error) {
	var entry model.AccountingEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *ledgerRepository) FindReversalOf(ctx context.Context, entryID uuid.UUID) (*model.AccountingEntry, error) {
	var entry model.AccountingEntry
	if err := GetDB(ctx, r.db).First(&entry, "reverses_entry_id = ?", entryID).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (r *ledgerRepository) List(ctx context.Context, filter EntryFilter) ([]model.AccountingEntry, int64, error) {
	var entries []model.AccountingEntry
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.From != nil {
			db = db.Where("booking_date >= ?", *filter.From)
		}
		if filter.Until != nil {
			db = db.Where("booking_date < ?", *filter.Until)
		}
		if filter.SourceType != "" {
			db = db.Where("source_type = ?", filter.SourceType)
		}
		if filter.SourceID != "" {
			db = db.Where("source_id = ?", filter.SourceID)
		}
		if filter.Account != "" {
			db = db.Where("debit_account = ? OR credit_account = ?", filter.Account, filter.Account)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.AccountingEntry{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Order("entry_number ASC").Offset(offset).Limit(filter.Limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *ledgerRepository) ListBetween(ctx context.Context, from, until time.Time) ([]model.AccountingEntry, error) {
	var entries []model.AccountingEntry
	err := GetDB(ctx, r.db).
		Where("booking_date >= ? AND booking_date < ?", from, until).
		Order("booking_date ASC, entry_number ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
