package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"commissionledger/internal/gocardless"
	"commissionledger/internal/metrics"
	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentProvider creates direct-debit payments. *gocardless.Client implements it.
type PaymentProvider interface {
	CreatePayment(ctx context.Context, req gocardless.CreatePaymentRequest) (*gocardless.Payment, error)
}

// InitiationResult reports a collection attempt. Attempted is false whenever the
// payee is expected to pay by bank transfer instead.
type InitiationResult struct {
	Attempted         bool   `json:"attempted"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	Status            string `json:"status,omitempty"`
	Reason            string `json:"reason,omitempty"`
}

type CollectionResponse struct {
	PayeeID           string   `json:"payee_id"`
	ProviderPaymentID string   `json:"provider_payment_id"`
	Status            string   `json:"status"`
	Amount            string   `json:"amount"`
	InvoiceNumbers    []string `json:"invoice_numbers"`
}

type PaymentService interface {
	// Initiate never returns an error: every failure becomes Attempted=false with a Reason.
	Initiate(ctx context.Context, payee *model.Payee, amount decimal.Decimal, reference string) InitiationResult
	InitiateForInvoice(ctx context.Context, invoiceID uuid.UUID) (InitiationResult, error)
	CollectOutstanding(ctx context.Context, payeeID string, actor string) (CollectionResponse, error)
}

type paymentService struct {
	provider    PaymentProvider
	invoiceRepo repository.InvoiceRepository
	payeeRepo   repository.PayeeRepository
	outboxRepo  repository.OutboxRepository
	audit       AuditService
	txManager   repository.TransactionManager
	settings    Settings
	metrics     *metrics.LedgerMetrics
	log         zerolog.Logger
}

// NewPaymentService accepts a nil provider; every initiation then falls back to bank transfer.
func NewPaymentService(
	provider PaymentProvider,
	invoiceRepo repository.InvoiceRepository,
	payeeRepo repository.PayeeRepository,
	outboxRepo repository.OutboxRepository,
	audit AuditService,
	txManager repository.TransactionManager,
	settings Settings,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) PaymentService {
	return &paymentService{
		provider:    provider,
		invoiceRepo: invoiceRepo,
		payeeRepo:   payeeRepo,
		outboxRepo:  outboxRepo,
		audit:       audit,
		txManager:   txManager,
		settings:    settings,
		metrics:     m,
		log:         log,
	}
}

func (s *paymentService) Initiate(ctx context.Context, payee *model.Payee, amount decimal.Decimal, reference string) InitiationResult {
	switch {
	case payee == nil || payee.MandateID == "":
		s.metrics.IncPaymentInitiation("skipped")
		return InitiationResult{Reason: "no mandate"}
	case !model.IsMandateUsable(payee.MandateStatus):
		s.metrics.IncPaymentInitiation("skipped")
		return InitiationResult{Reason: fmt.Sprintf("mandate %s is %s", payee.MandateID, payee.MandateStatus)}
	case s.provider == nil:
		s.metrics.IncPaymentInitiation("skipped")
		return InitiationResult{Reason: "payment provider not configured"}
	case !amount.IsPositive():
		s.metrics.IncPaymentInitiation("skipped")
		return InitiationResult{Reason: "nothing to collect"}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.PaymentTimeout)
	defer cancel()

	payment, err := s.provider.CreatePayment(callCtx, gocardless.CreatePaymentRequest{
		AmountCents: gocardless.ToCents(amount),
		Currency:    s.settings.Currency,
		MandateID:   payee.MandateID,
		Description: "Commission " + reference,
		// Two initiations for the same reference on one day collapse into one payment.
		IdempotencyKey: reference + "/" + time.Now().UTC().Format("20060102"),
		Metadata: map[string]string{
			"reference": reference,
			"payee_id":  payee.ID.String(),
		},
	})
	if err != nil {
		s.metrics.IncPaymentInitiation("failed")
		s.log.Warn().Err(err).
			Str("payee_id", payee.ID.String()).
			Str("reference", reference).
			Msg("direct debit initiation failed, falling back to bank transfer")
		return InitiationResult{Reason: err.Error()}
	}

	s.metrics.IncPaymentInitiation("created")
	status := gocardless.NormalizePaymentStatus(payment.Status)
	if !model.IsKnownPaymentStatus(status) {
		status = model.PaymentCreated
	}
	return InitiationResult{Attempted: true, ProviderPaymentID: payment.ID, Status: status}
}

// InitiateForInvoice collects one freshly issued invoice. Failures are recorded as an
// alert in the outbox; the invoice stays SENT and payable by bank transfer.
func (s *paymentService) InitiateForInvoice(ctx context.Context, invoiceID uuid.UUID) (InitiationResult, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return InitiationResult{}, err
	}
	if invoice.Status != model.InvoiceSent {
		return InitiationResult{Reason: "invoice is " + invoice.Status}, nil
	}
	if invoice.ProviderPaymentID != "" && model.IsPaymentLive(invoice.PaymentStatus) {
		return InitiationResult{Reason: "payment already in progress"}, nil
	}

	result := s.Initiate(ctx, invoice.Payee, invoice.TotalAmount, invoice.InvoiceNumber)
	if err := s.recordOutcome(ctx, invoice.Payee, []model.Invoice{*invoice}, invoice.TotalAmount, result); err != nil {
		return result, err
	}
	return result, nil
}

func (s *paymentService) recordOutcome(ctx context.Context, payee *model.Payee, invoices []model.Invoice, amount decimal.Decimal, result InitiationResult) error {
	ids := make([]uuid.UUID, 0, len(invoices))
	numbers := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
		numbers = append(numbers, inv.InvoiceNumber)
	}
	payeeID := ""
	if payee != nil {
		payeeID = payee.ID.String()
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if !result.Attempted {
			// A payee without a mandate pays by transfer as agreed; only a broken debit is alerted.
			if payee == nil || payee.MandateID == "" {
				return nil
			}
			return s.outboxRepo.Enqueue(txCtx, repository.OutboxMessage{
				Type:        model.EventPaymentInitiationFailed,
				AggregateID: payeeID,
				Payload: map[string]interface{}{
					"payee_id":        payeeID,
					"mandate_id":      payee.MandateID,
					"invoice_numbers": numbers,
					"amount":          amount.StringFixed(2),
					"reason":          result.Reason,
				},
			})
		}

		n, err := s.invoiceRepo.AttachPayment(txCtx, ids, result.ProviderPaymentID, result.Status)
		if err != nil {
			return fmt.Errorf("failed to attach payment %s: %w", result.ProviderPaymentID, err)
		}
		if n != int64(len(ids)) {
			s.log.Warn().
				Str("payment_id", result.ProviderPaymentID).
				Int64("attached", n).
				Int("expected", len(ids)).
				Msg("payment created but not every invoice could be linked")
		}
		return s.outboxRepo.Enqueue(txCtx, repository.OutboxMessage{
			Type:        model.EventPaymentInitiated,
			AggregateID: result.ProviderPaymentID,
			DedupeKey:   model.EventPaymentInitiated + ":" + result.ProviderPaymentID,
			Payload: map[string]interface{}{
				"payment_id":      result.ProviderPaymentID,
				"payee_id":        payeeID,
				"invoice_numbers": numbers,
				"amount":          amount.StringFixed(2),
				"status":          result.Status,
			},
		})
	})
}

// CollectOutstanding bundles every unpaid SENT invoice of the payee into one payment.
// The invoice rows stay locked for the bounded provider call.
func (s *paymentService) CollectOutstanding(ctx context.Context, payeeID string, actor string) (CollectionResponse, error) {
	uid, err := parseUUID(payeeID)
	if err != nil {
		return CollectionResponse{}, err
	}

	var res CollectionResponse
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		payee, err := s.payeeRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return err
		}
		if payee.MandateID == "" || !model.IsMandateUsable(payee.MandateStatus) {
			return fmt.Errorf("%w: mandate status %q", ErrMandateNotUsable, payee.MandateStatus)
		}

		invoices, err := s.invoiceRepo.ListCollectable(txCtx, payee.ID)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return ErrNothingToCollect
		}

		total := decimal.Zero
		numbers := make([]string, 0, len(invoices))
		for _, inv := range invoices {
			total = total.Add(inv.TotalAmount)
			numbers = append(numbers, inv.InvoiceNumber)
		}

		result := s.Initiate(txCtx, payee, total, strings.Join(numbers, ","))
		if !result.Attempted {
			return fmt.Errorf("%w: %s", ErrProviderUnavailable, result.Reason)
		}
		if err := s.recordOutcome(txCtx, payee, invoices, total, result); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, actor, model.ActionCollectOutstanding, payee.ID.String(), payee.Name, map[string]interface{}{
			"payment_id":      result.ProviderPaymentID,
			"invoice_numbers": numbers,
			"amount":          total.StringFixed(2),
		}); err != nil {
			return err
		}

		res = CollectionResponse{
			PayeeID:           payee.ID.String(),
			ProviderPaymentID: result.ProviderPaymentID,
			Status:            result.Status,
			Amount:            total.StringFixed(2),
			InvoiceNumbers:    numbers,
		}
		return nil
	})
	return res, err
}
