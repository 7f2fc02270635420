package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommissionFilter narrows commission listings; zero values are ignored.
type CommissionFilter struct {
	PayeeID *uuid.UUID
	Status  string
	Year    int
	Month   int
	Page    int
	Limit   int
}

type CommissionRepository interface {
	Create(ctx context.Context, commission *model.Commission) error
	FindByBookingID(ctx context.Context, bookingID string) (*model.Commission, error)
	List(ctx context.Context, filter CommissionFilter) ([]model.Commission, int64, error)
	// ListBillable returns PENDING commissions with service_date in [from, until), oldest first.
	ListBillable(ctx context.Context, payeeID uuid.UUID, from, until time.Time) ([]model.Commission, error)
	PayeeIDsWithPending(ctx context.Context, from, until time.Time) ([]uuid.UUID, error)
	FindByInvoiceIDs(ctx context.Context, invoiceIDs []uuid.UUID) ([]model.Commission, error)
	// TransitionStatus moves every id still in status from to status to and reports how many rows moved.
	TransitionStatus(ctx context.Context, ids []uuid.UUID, from, to string, updates map[string]interface{}) (int64, error)
}

type commissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepository{db: db}
}

func (r *commissionRepository) Create(ctx context.Context, commission *model.Commission) error {
	return translate(GetDB(ctx, r.db).Create(commission).Error)
}

func (r *commissionRepository) FindByBookingID(ctx context.Context, bookingID string) (*model.Commission, error) {
	var commission model.Commission
	if err := GetDB(ctx, r.db).First(&commission, "booking_id = ?", bookingID).Error; err != nil {
		return nil, translate(err)
	}
	return &commission, nil
}

func (r *commissionRepository) List(ctx context.Context, filter CommissionFilter) ([]model.Commission, int64, error) {
	var commissions []model.Commission
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.PayeeID != nil {
			db = db.Where("payee_id = ?", *filter.PayeeID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.Year > 0 {
			db = db.Where("billing_year = ?", filter.Year)
		}
		if filter.Month > 0 {
			db = db.Where("billing_month = ?", filter.Month)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Commission{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Order("service_date DESC").Offset(offset).Limit(filter.Limit).Find(&commissions).Error; err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}

func (r *commissionRepository) ListBillable(ctx context.Context, payeeID uuid.UUID, from, until time.Time) ([]model.Commission, error) {
	var commissions []model.Commission
	err := forUpdate(GetDB(ctx, r.db)).
		Where("payee_id = ? AND status = ? AND service_date >= ? AND service_date < ?",
			payeeID, model.CommissionPending, from, until).
		Order("service_date ASC, created_at ASC").
		Find(&commissions).Error
	if err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *commissionRepository) PayeeIDsWithPending(ctx context.Context, from, until time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := GetDB(ctx, r.db).Model(&model.Commission{}).
		Where("status = ? AND service_date >= ? AND service_date < ?", model.CommissionPending, from, until).
		Distinct("payee_id").
		Pluck("payee_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *commissionRepository) FindByInvoiceIDs(ctx context.Context, invoiceIDs []uuid.UUID) ([]model.Commission, error) {
	var commissions []model.Commission
	if len(invoiceIDs) == 0 {
		return commissions, nil
	}
	if err := GetDB(ctx, r.db).Where("invoice_id IN ?", invoiceIDs).Order("service_date ASC").Find(&commissions).Error; err != nil {
		return nil, err
	}
	return commissions, nil
}

func (r *commissionRepository) TransitionStatus(ctx context.Context, ids []uuid.UUID, from, to string, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	values := map[string]interface{}{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	res := GetDB(ctx, r.db).Model(&model.Commission{}).
		Where("id IN ? AND status = ?", ids, from).
		Updates(values)
	return res.RowsAffected, res.Error
}
