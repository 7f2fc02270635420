package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PayeeRepository interface {
	Create(ctx context.Context, payee *model.Payee) error
	Update(ctx context.Context, payee *model.Payee) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payee, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payee, error)
	FindByMandateIDForUpdate(ctx context.Context, mandateID string) (*model.Payee, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Payee, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Payee, int64, error)
	// AdvanceMandateStatus moves the mandate only if it still has the expected status.
	AdvanceMandateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
}

type payeeRepository struct {
	db *gorm.DB
}

func NewPayeeRepository(db *gorm.DB) PayeeRepository {
	return &payeeRepository{db: db}
}

func (r *payeeRepository) Create(ctx context.Context, payee *model.Payee) error {
	return GetDB(ctx, r.db).Create(payee).Error
}

func (r *payeeRepository) Update(ctx context.Context, payee *model.Payee) error {
	return GetDB(ctx, r.db).Save(payee).Error
}

func (r *payeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payee, error) {
	var payee model.Payee
	if err := GetDB(ctx, r.db).First(&payee, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &payee, nil
}

func (r *payeeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Payee, error) {
	var payee model.Payee
	if err := forUpdate(GetDB(ctx, r.db)).First(&payee, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &payee, nil
}

func (r *payeeRepository) FindByMandateIDForUpdate(ctx context.Context, mandateID string) (*model.Payee, error) {
	var payee model.Payee
	if err := forUpdate(GetDB(ctx, r.db)).First(&payee, "mandate_id = ?", mandateID).Error; err != nil {
		return nil, translate(err)
	}
	return &payee, nil
}

func (r *payeeRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Payee, error) {
	var payees []model.Payee
	if len(ids) == 0 {
		return payees, nil
	}
	if err := GetDB(ctx, r.db).Where("id IN ?", ids).Order("name").Find(&payees).Error; err != nil {
		return nil, err
	}
	return payees, nil
}

func (r *payeeRepository) List(ctx context.Context, search string, page, limit int) ([]model.Payee, int64, error) {
	var payees []model.Payee
	var total int64

	filter := func(db *gorm.DB) *gorm.DB {
		if search != "" {
			like := "%" + search + "%"
			db = db.Where("name LIKE ? OR company_name LIKE ? OR email LIKE ?", like, like, like)
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Payee{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Scopes(filter).Order("created_at DESC").Offset(offset).Limit(limit).Find(&payees).Error; err != nil {
		return nil, 0, err
	}

	return payees, total, nil
}

func (r *payeeRepository) AdvanceMandateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Payee{}).
		Where("id = ? AND mandate_status = ?", id, from).
		Updates(map[string]interface{}{"mandate_status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
