package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type RecordCommissionRequest struct {
	BookingID      string `json:"booking_id" binding:"required"`
	PayeeID        string `json:"payee_id" binding:"required"`
	OrderTotal     string `json:"order_total" binding:"required"`
	CommissionRate string `json:"commission_rate"`                 // Optional, e.g. "0.049"; falls back to the payee's rate
	ServiceDate    string `json:"service_date" binding:"required"` // YYYY-MM-DD
	ServiceType    string `json:"service_type"`
	Description    string `json:"description"`
}

type CommissionResponse struct {
	ID               string  `json:"id"`
	BookingID        string  `json:"booking_id"`
	PayeeID          string  `json:"payee_id"`
	OrderTotal       string  `json:"order_total"`
	CommissionRate   string  `json:"commission_rate"`
	CommissionAmount string  `json:"commission_amount"`
	NetAmount        string  `json:"net_amount"`
	VATRate          string  `json:"vat_rate"`
	VATAmount        string  `json:"vat_amount"`
	GrossAmount      string  `json:"gross_amount"`
	ServiceDate      string  `json:"service_date"`
	ServiceType      string  `json:"service_type"`
	Description      string  `json:"description"`
	BillingYear      int     `json:"billing_year"`
	BillingMonth     int     `json:"billing_month"`
	Status           string  `json:"status"`
	InvoiceID        *string `json:"invoice_id"`
	CreatedAt        string  `json:"created_at"`
}

type CommissionListFilter struct {
	PayeeID string
	Status  string
	Year    int
	Month   int
	Page    int
	Limit   int
}

// --- Interface ---

// CommissionService owns the commission lifecycle PENDING -> BILLED -> COLLECTED.
type CommissionService interface {
	RecordCommission(ctx context.Context, req RecordCommissionRequest) (CommissionResponse, error)
	ListBillable(ctx context.Context, payeeID uuid.UUID, period Period) ([]model.Commission, error)
	MarkBilled(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error
	MarkCollected(ctx context.Context, ids []uuid.UUID) error
	ListCommissions(ctx context.Context, filter CommissionListFilter) ([]CommissionResponse, int64, error)
}

type commissionService struct {
	commissionRepo repository.CommissionRepository
	payeeRepo      repository.PayeeRepository
	txManager      repository.TransactionManager
	settings       Settings
}

func NewCommissionService(
	commissionRepo repository.CommissionRepository,
	payeeRepo repository.PayeeRepository,
	txManager repository.TransactionManager,
	settings Settings,
) CommissionService {
	return &commissionService{
		commissionRepo: commissionRepo,
		payeeRepo:      payeeRepo,
		txManager:      txManager,
		settings:       settings,
	}
}

// CalculateCommission derives the net commission, VAT and gross from an order total.
func CalculateCommission(orderTotal, rate, vatRate decimal.Decimal) (net, vat, gross decimal.Decimal) {
	net = roundMoney(orderTotal.Mul(rate))
	vat = roundMoney(net.Mul(vatRate))
	return net, vat, net.Add(vat)
}

func (s *commissionService) RecordCommission(ctx context.Context, req RecordCommissionRequest) (CommissionResponse, error) {
	bookingID := strings.TrimSpace(req.BookingID)
	if bookingID == "" {
		return CommissionResponse{}, fmt.Errorf("%w: booking_id is required", ErrInvalidInput)
	}
	payeeID, err := uuid.Parse(req.PayeeID)
	if err != nil {
		return CommissionResponse{}, fmt.Errorf("%w: payee_id", ErrInvalidID)
	}
	orderTotal, err := decimal.NewFromString(req.OrderTotal)
	if err != nil || !orderTotal.IsPositive() {
		return CommissionResponse{}, fmt.Errorf("%w: order_total must be a positive number", ErrInvalidAmount)
	}
	serviceDate, err := time.Parse("2006-01-02", req.ServiceDate)
	if err != nil {
		return CommissionResponse{}, fmt.Errorf("%w: service_date must be YYYY-MM-DD", ErrInvalidInput)
	}

	var commission *model.Commission
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		payee, err := s.payeeRepo.FindByID(txCtx, payeeID)
		if err != nil {
			return fmt.Errorf("payee %s: %w", payeeID, err)
		}

		rate, err := s.resolveRate(req.CommissionRate, payee)
		if err != nil {
			return err
		}

		if _, err := s.commissionRepo.FindByBookingID(txCtx, bookingID); err == nil {
			return ErrCommissionAlreadyRecorded
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		net, vat, gross := CalculateCommission(orderTotal, rate, s.settings.VATRate)
		commission = &model.Commission{
			BookingID:        bookingID,
			PayeeID:          payee.ID,
			OrderTotal:       roundMoney(orderTotal),
			CommissionRate:   rate,
			CommissionAmount: net,
			NetAmount:        net,
			VATRate:          s.settings.VATRate,
			VATAmount:        vat,
			GrossAmount:      gross,
			ServiceDate:      serviceDate.UTC(),
			ServiceType:      req.ServiceType,
			Description:      req.Description,
			BillingYear:      serviceDate.Year(),
			BillingMonth:     int(serviceDate.Month()),
			Status:           model.CommissionPending,
		}
		if err := s.commissionRepo.Create(txCtx, commission); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrCommissionAlreadyRecorded
			}
			return fmt.Errorf("failed to create commission: %w", err)
		}
		return nil
	})
	if err != nil {
		return CommissionResponse{}, err
	}

	return toCommissionResponse(*commission), nil
}

func (s *commissionService) resolveRate(raw string, payee *model.Payee) (decimal.Decimal, error) {
	rate := s.settings.DefaultCommissionRate
	switch {
	case strings.TrimSpace(raw) != "":
		parsed, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidRate, raw)
		}
		rate = parsed
	case payee.CommissionRate.Valid:
		rate = payee.CommissionRate.Decimal
	}
	if !validRate(rate) {
		return decimal.Zero, fmt.Errorf("%w: must be within (0,1) with at most %d decimal places", ErrInvalidRate, rateScale)
	}
	return rate, nil
}

// rateScale matches the decimal(6,4) rate columns.
const rateScale = 4

func validRate(rate decimal.Decimal) bool {
	return rate.IsPositive() &&
		rate.LessThan(decimal.NewFromInt(1)) &&
		rate.Equal(rate.Truncate(rateScale))
}

func (s *commissionService) ListBillable(ctx context.Context, payeeID uuid.UUID, period Period) ([]model.Commission, error) {
	return s.commissionRepo.ListBillable(ctx, payeeID, period.Start, period.End)
}

func (s *commissionService) MarkBilled(ctx context.Context, ids []uuid.UUID, invoiceID uuid.UUID) error {
	now := time.Now().UTC()
	return s.transition(ctx, ids, model.CommissionPending, model.CommissionBilled, map[string]interface{}{
		"invoice_id": invoiceID,
		"billed_at":  now,
	})
}

func (s *commissionService) MarkCollected(ctx context.Context, ids []uuid.UUID) error {
	now := time.Now().UTC()
	return s.transition(ctx, ids, model.CommissionBilled, model.CommissionCollected, map[string]interface{}{
		"collected_at": now,
	})
}

// transition moves all ids or none: a partial match rolls back the unit of work.
func (s *commissionService) transition(ctx context.Context, ids []uuid.UUID, from, to string, updates map[string]interface{}) error {
	if len(ids) == 0 {
		return nil
	}
	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		n, err := s.commissionRepo.TransitionStatus(txCtx, ids, from, to, updates)
		if err != nil {
			return fmt.Errorf("failed to mark commissions %s: %w", to, err)
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("%w: %d of %d commissions were %s", ErrCommissionStateConflict, n, len(ids), from)
		}
		return nil
	})
}

func (s *commissionService) ListCommissions(ctx context.Context, filter CommissionListFilter) ([]CommissionResponse, int64, error) {
	repoFilter := repository.CommissionFilter{
		Status: filter.Status,
		Year:   filter.Year,
		Month:  filter.Month,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.PayeeID != "" {
		id, err := uuid.Parse(filter.PayeeID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: payee_id", ErrInvalidID)
		}
		repoFilter.PayeeID = &id
	}

	commissions, total, err := s.commissionRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}
	res := make([]CommissionResponse, 0, len(commissions))
	for _, c := range commissions {
		res = append(res, toCommissionResponse(c))
	}
	return res, total, nil
}

func toCommissionResponse(c model.Commission) CommissionResponse {
	var invoiceID *string
	if c.InvoiceID != nil {
		id := c.InvoiceID.String()
		invoiceID = &id
	}
	return CommissionResponse{
		ID:               c.ID.String(),
		BookingID:        c.BookingID,
		PayeeID:          c.PayeeID.String(),
		OrderTotal:       c.OrderTotal.StringFixed(2),
		CommissionRate:   c.CommissionRate.String(),
		CommissionAmount: c.CommissionAmount.StringFixed(2),
		NetAmount:        c.NetAmount.StringFixed(2),
		VATRate:          c.VATRate.String(),
		VATAmount:        c.VATAmount.StringFixed(2),
		GrossAmount:      c.GrossAmount.StringFixed(2),
		ServiceDate:      c.ServiceDate.Format("2006-01-02"),
		ServiceType:      c.ServiceType,
		Description:      c.Description,
		BillingYear:      c.BillingYear,
		BillingMonth:     c.BillingMonth,
		Status:           c.Status,
		InvoiceID:        invoiceID,
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
	}
}
