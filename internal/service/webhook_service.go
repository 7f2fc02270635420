package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commissionledger/internal/gocardless"
	"commissionledger/internal/metrics"
	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// WebhookResult counts what happened to the events of one delivery.
type WebhookResult struct {
	Received  int `json:"received"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

type WebhookService interface {
	// HandleDelivery verifies the signature over the raw body before reading any event.
	// Per-event failures are journaled and counted, not returned.
	HandleDelivery(ctx context.Context, body []byte, signature string) (WebhookResult, error)
}

var errEventIgnored = errors.New("event ignored")

type webhookService struct {
	secret         string
	webhookRepo    repository.WebhookEventRepository
	payeeRepo      repository.PayeeRepository
	invoiceRepo    repository.InvoiceRepository
	commissionRepo repository.CommissionRepository
	outboxRepo     repository.OutboxRepository
	commissions    CommissionService
	ledger         LedgerService
	txManager      repository.TransactionManager
	metrics        *metrics.LedgerMetrics
	log            zerolog.Logger
}

type WebhookServiceDeps struct {
	Secret         string
	WebhookRepo    repository.WebhookEventRepository
	PayeeRepo      repository.PayeeRepository
	InvoiceRepo    repository.InvoiceRepository
	CommissionRepo repository.CommissionRepository
	OutboxRepo     repository.OutboxRepository
	Commissions    CommissionService
	Ledger         LedgerService
	TxManager      repository.TransactionManager
	Metrics        *metrics.LedgerMetrics
	Log            zerolog.Logger
}

func NewWebhookService(d WebhookServiceDeps) WebhookService {
	return &webhookService{
		secret:         d.Secret,
		webhookRepo:    d.WebhookRepo,
		payeeRepo:      d.PayeeRepo,
		invoiceRepo:    d.InvoiceRepo,
		commissionRepo: d.CommissionRepo,
		outboxRepo:     d.OutboxRepo,
		commissions:    d.Commissions,
		ledger:         d.Ledger,
		txManager:      d.TxManager,
		metrics:        d.Metrics,
		log:            d.Log,
	}
}

func (s *webhookService) HandleDelivery(ctx context.Context, body []byte, signature string) (WebhookResult, error) {
	if !gocardless.VerifySignature(body, signature, s.secret) {
		return WebhookResult{}, ErrInvalidSignature
	}
	events, err := gocardless.ParseEvents(body)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	result := WebhookResult{Received: len(events)}
	for _, ev := range events {
		switch outcome := s.handleEvent(ctx, ev); outcome {
		case "processed", "ignored":
			result.Processed++
		case "duplicate":
			result.Skipped++
		default:
			result.Failed++
		}
	}
	return result, nil
}

// handleEvent runs one event in its own transaction together with its journal row.
func (s *webhookService) handleEvent(ctx context.Context, ev gocardless.Event) string {
	typed := ClassifyEvent(ev)
	key := ev.Key()
	log := s.log.With().
		Str("event_id", key).
		Str("resource_type", ev.ResourceType).
		Str("action", ev.Action).
		Str("resource_id", ev.ResourceID()).
		Logger()

	row := &model.PaymentWebhookEvent{
		EventID:      key,
		ResourceType: ev.ResourceType,
		Action:       ev.Action,
		ResourceID:   ev.ResourceID(),
		Payload:      datatypes.JSON(ev.Raw),
	}

	if ev.Malformed != "" {
		err := fmt.Errorf("%w: %s", ErrInvalidWebhook, ev.Malformed)
		log.Warn().Err(err).Msg("malformed webhook event")
		if saveErr := s.webhookRepo.SaveFailure(ctx, row, err); saveErr != nil {
			log.Error().Err(saveErr).Msg("failed to journal webhook failure")
		}
		s.metrics.IncWebhookEvent("unknown", "failed")
		return "failed"
	}

	outcome := "processed"
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.webhookRepo.Record(txCtx, row)
		if err != nil {
			return fmt.Errorf("failed to journal event: %w", err)
		}
		if stored.ProcessedAt != nil {
			outcome = "duplicate"
			return nil
		}

		if err := s.apply(txCtx, typed, log); err != nil {
			if !errors.Is(err, errEventIgnored) {
				return err
			}
			outcome = "ignored"
		}
		return s.webhookRepo.MarkProcessed(txCtx, key)
	})
	if err != nil {
		outcome = "failed"
		log.Error().Err(err).Msg("webhook event failed")
		if saveErr := s.webhookRepo.SaveFailure(context.WithoutCancel(ctx), row, err); saveErr != nil {
			log.Error().Err(saveErr).Msg("failed to journal webhook failure")
		}
	} else if outcome == "duplicate" {
		log.Debug().Msg("webhook event already processed")
	}

	s.metrics.IncWebhookEvent(typed.Resource(), outcome)
	return outcome
}

func (s *webhookService) apply(ctx context.Context, ev ProviderEvent, log zerolog.Logger) error {
	switch e := ev.(type) {
	case MandateEvent:
		return s.applyMandate(ctx, e, log)
	case PaymentEvent:
		return s.applyPayment(ctx, e, log)
	default:
		log.Info().Msg("unhandled webhook resource, ignoring")
		return errEventIgnored
	}
}

func (s *webhookService) applyMandate(ctx context.Context, e MandateEvent, log zerolog.Logger) error {
	if !model.IsKnownMandateStatus(e.Action) {
		log.Info().Msg("unknown mandate action, ignoring")
		return errEventIgnored
	}

	payee, err := s.payeeRepo.FindByMandateIDForUpdate(ctx, e.MandateID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Msg("mandate is not linked to any payee, ignoring")
		return errEventIgnored
	}
	if err != nil {
		return err
	}

	current := payee.MandateStatus
	if !model.CanAdvanceMandate(current, e.Action) {
		log.Info().Str("current", current).Msg("mandate already at or past this state")
		return nil
	}
	moved, err := s.payeeRepo.AdvanceMandateStatus(ctx, payee.ID, current, e.Action)
	if err != nil {
		return fmt.Errorf("failed to update mandate status: %w", err)
	}
	if !moved {
		return nil
	}

	log.Info().Str("payee_id", payee.ID.String()).Str("from", current).Str("to", e.Action).Msg("mandate status updated")
	return s.outboxRepo.Enqueue(ctx, repository.OutboxMessage{
		Type:        model.EventMandateUpdated,
		AggregateID: payee.ID.String(),
		DedupeKey:   model.EventMandateUpdated + ":" + e.ID,
		Payload: map[string]interface{}{
			"payee_id":        payee.ID.String(),
			"mandate_id":      e.MandateID,
			"mandate_status":  e.Action,
			"previous_status": current,
		},
	})
}

func (s *webhookService) applyPayment(ctx context.Context, e PaymentEvent, log zerolog.Logger) error {
	if !model.IsKnownPaymentStatus(e.Action) {
		log.Info().Msg("unknown payment action, ignoring")
		return errEventIgnored
	}

	invoices, err := s.invoiceRepo.FindByProviderPaymentIDForUpdate(ctx, e.PaymentID)
	if err != nil {
		return err
	}
	if len(invoices) == 0 {
		return fmt.Errorf("payment %s: %w", e.PaymentID, repository.ErrNotFound)
	}

	current := invoices[0].PaymentStatus
	if !model.CanAdvancePayment(current, e.Action) {
		log.Info().Str("current", current).Msg("payment already at or past this state")
		return nil
	}
	n, err := s.invoiceRepo.AdvancePaymentStatus(ctx, e.PaymentID, current, e.Action)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if n == 0 {
		return nil
	}

	switch {
	case model.IsPaymentCollected(e.Action):
		return s.settle(ctx, e, invoices, log)
	case e.Action == model.PaymentFailed || e.Action == model.PaymentCancelled:
		return s.enqueuePaymentEvent(ctx, model.EventPaymentFailed, e, invoices)
	case e.Action == model.PaymentChargedBack:
		// Collected commissions stay COLLECTED; a chargeback is handled by hand.
		log.Warn().Msg("payment charged back")
		return s.enqueuePaymentEvent(ctx, model.EventPaymentChargedBack, e, invoices)
	}
	return nil
}

// settle books one consolidated receipt for every invoice of the payment that
// has no receipt yet. Invoices cancelled while the collection was in flight are
// booked too, since the money reached the bank, and raise an alert. A second
// confirmation finds nothing unsettled and posts nothing.
func (s *webhookService) settle(ctx context.Context, e PaymentEvent, invoices []model.Invoice, log zerolog.Logger) error {
	var open, cancelled []model.Invoice
	for _, inv := range invoices {
		if inv.PaymentEntryID != nil {
			continue
		}
		switch inv.Status {
		case model.InvoiceSent:
			open = append(open, inv)
		case model.InvoiceCancelled:
			cancelled = append(cancelled, inv)
		}
	}
	if len(open) == 0 && len(cancelled) == 0 {
		return nil
	}

	openIDs, openNumbers, openTotal := summarize(open)
	cancelledIDs, cancelledNumbers, cancelledTotal := summarize(cancelled)
	total := openTotal.Add(cancelledTotal)

	commissions, err := s.commissionRepo.FindByInvoiceIDs(ctx, append(append([]uuid.UUID{}, openIDs...), cancelledIDs...))
	if err != nil {
		return err
	}
	var billed []uuid.UUID
	for _, c := range commissions {
		if c.Status == model.CommissionBilled {
			billed = append(billed, c.ID)
		}
	}
	if err := s.commissions.MarkCollected(ctx, billed); err != nil {
		return err
	}

	receivedAt := time.Now().UTC()
	entry, err := s.ledger.PostPaymentReceived(ctx, PaymentReceipt{
		PaymentID:      e.PaymentID,
		Amount:         total,
		ReceivedAt:     receivedAt,
		InvoiceNumbers: append(append([]string{}, openNumbers...), cancelledNumbers...),
	})
	if err != nil {
		return err
	}

	moved, err := s.invoiceRepo.UpdateGuarded(ctx, openIDs, []string{model.InvoiceSent}, map[string]interface{}{
		"status":           model.InvoicePaid,
		"paid_at":          receivedAt,
		"payment_entry_id": entry.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to mark invoices paid: %w", err)
	}
	if moved != int64(len(openIDs)) {
		return fmt.Errorf("%w: %d of %d invoices were still SENT", ErrCommissionStateConflict, moved, len(openIDs))
	}
	if _, err := s.invoiceRepo.UpdateGuarded(ctx, cancelledIDs, []string{model.InvoiceCancelled}, map[string]interface{}{
		"payment_entry_id": entry.ID,
	}); err != nil {
		return fmt.Errorf("failed to link receipt to cancelled invoices: %w", err)
	}

	payeeID := invoices[0].PayeeID
	payeeEmail := ""
	if payee, err := s.payeeRepo.FindByID(ctx, payeeID); err == nil {
		payeeEmail = payee.Email
	}

	log.Info().
		Str("entry_number", entry.EntryNumber).
		Str("amount", total.StringFixed(2)).
		Int("invoices", len(open)).
		Int("cancelled_invoices", len(cancelled)).
		Int("commissions", len(billed)).
		Msg("payment settled")

	if len(cancelled) > 0 {
		log.Warn().Strs("invoice_numbers", cancelledNumbers).Msg("payment collected for cancelled invoices")
		if err := s.outboxRepo.Enqueue(ctx, repository.OutboxMessage{
			Type:        model.EventPaymentForCancelled,
			AggregateID: e.PaymentID,
			DedupeKey:   model.EventPaymentForCancelled + ":" + e.PaymentID,
			Payload: map[string]interface{}{
				"payment_id":      e.PaymentID,
				"payee_id":        payeeID.String(),
				"invoice_numbers": cancelledNumbers,
				"amount":          cancelledTotal.StringFixed(2),
				"entry_number":    entry.EntryNumber,
			},
		}); err != nil {
			return err
		}
	}
	if len(open) == 0 {
		return nil
	}

	// The payee notification goes out from this event.
	return s.outboxRepo.Enqueue(ctx, repository.OutboxMessage{
		Type:        model.EventPaymentCollected,
		AggregateID: e.PaymentID,
		DedupeKey:   model.EventPaymentCollected + ":" + e.PaymentID,
		Payload: map[string]interface{}{
			"payment_id":      e.PaymentID,
			"payee_id":        payeeID.String(),
			"payee_email":     payeeEmail,
			"invoice_numbers": openNumbers,
			"amount":          openTotal.StringFixed(2),
			"entry_number":    entry.EntryNumber,
		},
	})
}

func summarize(invoices []model.Invoice) ([]uuid.UUID, []string, decimal.Decimal) {
	ids := make([]uuid.UUID, 0, len(invoices))
	numbers := make([]string, 0, len(invoices))
	total := decimal.Zero
	for _, inv := range invoices {
		ids = append(ids, inv.ID)
		numbers = append(numbers, inv.InvoiceNumber)
		total = total.Add(inv.TotalAmount)
	}
	return ids, numbers, total
}

func (s *webhookService) enqueuePaymentEvent(ctx context.Context, eventType string, e PaymentEvent, invoices []model.Invoice) error {
	numbers := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		numbers = append(numbers, inv.InvoiceNumber)
	}
	return s.outboxRepo.Enqueue(ctx, repository.OutboxMessage{
		Type:        eventType,
		AggregateID: e.PaymentID,
		DedupeKey:   eventType + ":" + e.ID,
		Payload: map[string]interface{}{
			"payment_id":      e.PaymentID,
			"payee_id":        invoices[0].PayeeID.String(),
			"invoice_numbers": numbers,
			"status":          e.Action,
			"cause":           e.Cause,
		},
	})
}
