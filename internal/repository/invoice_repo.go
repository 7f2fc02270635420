package repository

import (
	"context"
	"time"

	"commissionledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InvoiceFilter narrows invoice listings; zero values are ignored.
type InvoiceFilter struct {
	PayeeID     *uuid.UUID
	Status      string
	PeriodStart *time.Time
	Number      string
	Page        int
	Limit       int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindActiveForPeriod(ctx context.Context, payeeID uuid.UUID, periodStart time.Time) (*model.Invoice, error)
	FindByProviderPaymentIDForUpdate(ctx context.Context, paymentID string) ([]model.Invoice, error)
	// ListCollectable returns SENT invoices of a payee without a payment that may still collect.
	ListCollectable(ctx context.Context, payeeID uuid.UUID) ([]model.Invoice, error)
	// ListForPeriods returns invoices whose billing period starts in [from, until).
	ListForPeriods(ctx context.Context, from, until time.Time) ([]model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	// UpdateGuarded applies updates to invoices whose status is still one of fromStatuses.
	UpdateGuarded(ctx context.Context, ids []uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error)
	// AdvancePaymentStatus moves every invoice of a provider payment still in status from.
	AdvancePaymentStatus(ctx context.Context, paymentID, from, to string) (int64, error)
	// AttachPayment links a provider payment to invoices that have no live payment yet.
	AttachPayment(ctx context.Context, ids []uuid.UUID, paymentID, status string) (int64, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return translate(GetDB(ctx, r.db).Create(invoice).Error)
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Preload("Payee").
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := forUpdate(GetDB(ctx, r.db)).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindActiveForPeriod(ctx context.Context, payeeID uuid.UUID, periodStart time.Time) (*model.Invoice, error) {
	var invoice model.Invoice
	err := GetDB(ctx, r.db).
		Where("payee_id = ? AND period_start = ? AND status <> ?", payeeID, periodStart, model.InvoiceCancelled).
		First(&invoice).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByProviderPaymentIDForUpdate(ctx context.Context, paymentID string) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := forUpdate(GetDB(ctx, r.db)).
		Where("provider_payment_id = ?", paymentID).
		Order("invoice_number ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) ListCollectable(ctx context.Context, payeeID uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := forUpdate(GetDB(ctx, r.db)).
		Where("payee_id = ? AND status = ?", payeeID, model.InvoiceSent).
		Where("(provider_payment_id = '' OR payment_status IN ?)",
			[]string{model.PaymentFailed, model.PaymentCancelled, model.PaymentChargedBack}).
		Order("invoice_number ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) ListForPeriods(ctx context.Context, from, until time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	err := GetDB(ctx, r.db).
		Where("period_start >= ? AND period_start < ?", from, until).
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		if filter.PayeeID != nil {
			db = db.Where("payee_id = ?", *filter.PayeeID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.PeriodStart != nil {
			db = db.Where("period_start = ?", *filter.PeriodStart)
		}
		if filter.Number != "" {
			db = db.Where("invoice_number LIKE ?", "%"+filter.Number+"%")
		}
		return db
	}

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Invoice{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := db.Scopes(scope).Preload("Payee").Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) UpdateGuarded(ctx context.Context, ids []uuid.UUID, fromStatuses []string, updates map[string]interface{}) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	values := map[string]interface{}{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id IN ? AND status IN ?", ids, fromStatuses).
		Updates(values)
	return res.RowsAffected, res.Error
}

func (r *invoiceRepository) AttachPayment(ctx context.Context, ids []uuid.UUID, paymentID, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id IN ? AND status = ?", ids, model.InvoiceSent).
		Where("(provider_payment_id = '' OR payment_status IN ?)",
			[]string{model.PaymentFailed, model.PaymentCancelled, model.PaymentChargedBack}).
		Updates(map[string]interface{}{
			"provider_payment_id": paymentID,
			"payment_status":      status,
			"updated_at":          time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *invoiceRepository) AdvancePaymentStatus(ctx context.Context, paymentID, from, to string) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("provider_payment_id = ? AND payment_status = ?", paymentID, from).
		Updates(map[string]interface{}{"payment_status": to, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
