package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreatePayeeRequest struct {
	Name           string `json:"name" binding:"required"`
	CompanyName    string `json:"company_name"`
	Email          string `json:"email"`
	CustomerRef    string `json:"customer_ref"`
	CommissionRate string `json:"commission_rate"`
}

type UpdatePayeeRequest struct {
	Name           *string `json:"name"`
	CompanyName    *string `json:"company_name"`
	Email          *string `json:"email"`
	CustomerRef    *string `json:"customer_ref"`
	CommissionRate *string `json:"commission_rate"` // "" clears the override
	IsActive       *bool   `json:"is_active"`
}

type LinkMandateRequest struct {
	MandateID     string `json:"mandate_id" binding:"required"`
	MandateStatus string `json:"mandate_status"`
}

type PayeeResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	CompanyName    string  `json:"company_name"`
	Email          string  `json:"email"`
	CustomerRef    string  `json:"customer_ref"`
	CommissionRate *string `json:"commission_rate"`
	MandateID      string  `json:"mandate_id"`
	MandateStatus  string  `json:"mandate_status"`
	MandateUsable  bool    `json:"mandate_usable"`
	IsActive       bool    `json:"is_active"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// --- Interface ---

type PayeeService interface {
	CreatePayee(ctx context.Context, req CreatePayeeRequest) (PayeeResponse, error)
	UpdatePayee(ctx context.Context, id string, req UpdatePayeeRequest) (PayeeResponse, error)
	GetPayee(ctx context.Context, id string) (PayeeResponse, error)
	ListPayees(ctx context.Context, search string, page, limit int) ([]PayeeResponse, int64, error)
	// LinkMandate attaches a new mandate. A new mandate restarts the lifecycle, so the
	// forward-only rule applies to webhook updates, not to relinking.
	LinkMandate(ctx context.Context, id string, req LinkMandateRequest, actor string) (PayeeResponse, error)
}

type payeeService struct {
	payeeRepo  repository.PayeeRepository
	outboxRepo repository.OutboxRepository
	audit      AuditService
	txManager  repository.TransactionManager
}

func NewPayeeService(
	payeeRepo repository.PayeeRepository,
	outboxRepo repository.OutboxRepository,
	audit AuditService,
	txManager repository.TransactionManager,
) PayeeService {
	return &payeeService{payeeRepo: payeeRepo, outboxRepo: outboxRepo, audit: audit, txManager: txManager}
}

func parseOptionalRate(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || !validRate(rate) {
		return decimal.NullDecimal{}, fmt.Errorf("%w: commission_rate must be within (0,1) with at most %d decimal places", ErrInvalidRate, rateScale)
	}
	return decimal.NewNullDecimal(rate), nil
}

func validateEmail(email string) error {
	if email == "" {
		return nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email format", ErrInvalidInput)
	}
	return nil
}

func (s *payeeService) CreatePayee(ctx context.Context, req CreatePayeeRequest) (PayeeResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return PayeeResponse{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateEmail(req.Email); err != nil {
		return PayeeResponse{}, err
	}
	rate, err := parseOptionalRate(req.CommissionRate)
	if err != nil {
		return PayeeResponse{}, err
	}

	payee := &model.Payee{
		Name:           strings.TrimSpace(req.Name),
		CompanyName:    req.CompanyName,
		Email:          req.Email,
		CustomerRef:    req.CustomerRef,
		CommissionRate: rate,
		IsActive:       true,
	}
	if err := s.payeeRepo.Create(ctx, payee); err != nil {
		return PayeeResponse{}, fmt.Errorf("failed to create payee: %w", err)
	}
	return toPayeeResponse(*payee), nil
}

func (s *payeeService) UpdatePayee(ctx context.Context, id string, req UpdatePayeeRequest) (PayeeResponse, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return PayeeResponse{}, err
	}

	var payee *model.Payee
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		payee, err = s.payeeRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return err
		}
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
			}
			payee.Name = strings.TrimSpace(*req.Name)
		}
		if req.Email != nil {
			if err := validateEmail(*req.Email); err != nil {
				return err
			}
			payee.Email = *req.Email
		}
		if req.CompanyName != nil {
			payee.CompanyName = *req.CompanyName
		}
		if req.CustomerRef != nil {
			payee.CustomerRef = *req.CustomerRef
		}
		if req.CommissionRate != nil {
			rate, err := parseOptionalRate(*req.CommissionRate)
			if err != nil {
				return err
			}
			payee.CommissionRate = rate
		}
		if req.IsActive != nil {
			payee.IsActive = *req.IsActive
		}
		return s.payeeRepo.Update(txCtx, payee)
	})
	if err != nil {
		return PayeeResponse{}, err
	}
	return toPayeeResponse(*payee), nil
}

func (s *payeeService) GetPayee(ctx context.Context, id string) (PayeeResponse, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return PayeeResponse{}, err
	}
	payee, err := s.payeeRepo.FindByID(ctx, uid)
	if err != nil {
		return PayeeResponse{}, err
	}
	return toPayeeResponse(*payee), nil
}

func (s *payeeService) ListPayees(ctx context.Context, search string, page, limit int) ([]PayeeResponse, int64, error) {
	payees, total, err := s.payeeRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, err
	}
	res := make([]PayeeResponse, 0, len(payees))
	for _, p := range payees {
		res = append(res, toPayeeResponse(p))
	}
	return res, total, nil
}

func (s *payeeService) LinkMandate(ctx context.Context, id string, req LinkMandateRequest, actor string) (PayeeResponse, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return PayeeResponse{}, err
	}
	mandateID := strings.TrimSpace(req.MandateID)
	if mandateID == "" {
		return PayeeResponse{}, fmt.Errorf("%w: mandate_id is required", ErrInvalidInput)
	}
	status := req.MandateStatus
	if status == "" {
		status = model.MandateCreated
	}
	if !model.IsKnownMandateStatus(status) {
		return PayeeResponse{}, fmt.Errorf("%w: %q", ErrUnknownMandateState, status)
	}

	var payee *model.Payee
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		payee, err = s.payeeRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return err
		}
		previous := map[string]string{"mandate_id": payee.MandateID, "mandate_status": payee.MandateStatus}

		payee.MandateID = mandateID
		payee.MandateStatus = status
		if err := s.payeeRepo.Update(txCtx, payee); err != nil {
			return fmt.Errorf("failed to link mandate: %w", err)
		}

		if err := s.audit.Record(txCtx, actor, model.ActionLinkMandate, payee.ID.String(), payee.Name, map[string]interface{}{
			"previous":       previous,
			"mandate_id":     mandateID,
			"mandate_status": status,
		}); err != nil {
			return err
		}
		return s.outboxRepo.Enqueue(txCtx, repository.OutboxMessage{
			Type:        model.EventMandateUpdated,
			AggregateID: payee.ID.String(),
			Payload: map[string]interface{}{
				"payee_id":       payee.ID.String(),
				"mandate_id":     mandateID,
				"mandate_status": status,
			},
		})
	})
	if err != nil {
		return PayeeResponse{}, err
	}
	return toPayeeResponse(*payee), nil
}

func toPayeeResponse(p model.Payee) PayeeResponse {
	var rate *string
	if p.CommissionRate.Valid {
		r := p.CommissionRate.Decimal.String()
		rate = &r
	}
	return PayeeResponse{
		ID:             p.ID.String(),
		Name:           p.Name,
		CompanyName:    p.CompanyName,
		Email:          p.Email,
		CustomerRef:    p.CustomerRef,
		CommissionRate: rate,
		MandateID:      p.MandateID,
		MandateStatus:  p.MandateStatus,
		MandateUsable:  p.MandateID != "" && model.IsMandateUsable(p.MandateStatus),
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}
