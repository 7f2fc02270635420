package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commissionledger/internal/metrics"
	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BatchSummary is returned to the trigger caller and stored on the batch run.
type BatchSummary struct {
	RunID       string          `json:"runId"`
	Period      string          `json:"period"`
	TotalPayees int             `json:"totalPayees"`
	Succeeded   int             `json:"succeeded"`
	Skipped     int             `json:"skipped"`
	Failed      []PayeeFailure  `json:"failed"`
	Invoices    []IssuedInvoice `json:"invoices"`
}

type PayeeFailure struct {
	PayeeID   string `json:"payeeId"`
	PayeeName string `json:"payeeName"`
	Error     string `json:"error"`
}

type IssuedInvoice struct {
	PayeeID       string           `json:"payeeId"`
	InvoiceID     string           `json:"invoiceId"`
	InvoiceNumber string           `json:"invoiceNumber"`
	TotalAmount   string           `json:"totalAmount"`
	Payment       InitiationResult `json:"payment"`
}

// InvoiceGenerator bills the PENDING commissions of a closed month.
type InvoiceGenerator interface {
	// Run bills the month preceding runDate.
	Run(ctx context.Context, runDate time.Time, trigger, actor string) (BatchSummary, error)
	RunForPeriod(ctx context.Context, period Period, trigger, actor string) (BatchSummary, error)
	// ListRuns returns the most recent batch runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]BatchRunResponse, error)
}

type BatchRunResponse struct {
	ID          string          `json:"id"`
	Period      string          `json:"period"`
	Trigger     string          `json:"trigger"`
	TotalPayees int             `json:"total_payees"`
	Succeeded   int             `json:"succeeded"`
	Skipped     int             `json:"skipped"`
	Failed      int             `json:"failed"`
	StartedAt   string          `json:"started_at"`
	FinishedAt  *string         `json:"finished_at"`
	Summary     json.RawMessage `json:"summary,omitempty"`
}

var errAlreadyInvoiced = errors.New("period already invoiced")

type payeeOutcome struct {
	issued  *IssuedInvoice
	skipped bool
	err     error
}

type invoiceGenerator struct {
	commissions CommissionService
	ledger      LedgerService
	payments    PaymentService
	audit       AuditService
	sequencer   Sequencer
	payeeRepo   repository.PayeeRepository
	invoiceRepo repository.InvoiceRepository
	outboxRepo  repository.OutboxRepository
	jobRepo     repository.JobRepository
	commRepo    repository.CommissionRepository
	txManager   repository.TransactionManager
	settings    Settings
	metrics     *metrics.LedgerMetrics
	log         zerolog.Logger
}

type InvoiceGeneratorDeps struct {
	Commissions    CommissionService
	Ledger         LedgerService
	Payments       PaymentService
	Audit          AuditService
	Sequencer      Sequencer
	PayeeRepo      repository.PayeeRepository
	InvoiceRepo    repository.InvoiceRepository
	OutboxRepo     repository.OutboxRepository
	JobRepo        repository.JobRepository
	CommissionRepo repository.CommissionRepository
	TxManager      repository.TransactionManager
	Settings       Settings
	Metrics        *metrics.LedgerMetrics
	Log            zerolog.Logger
}

func NewInvoiceGenerator(d InvoiceGeneratorDeps) InvoiceGenerator {
	return &invoiceGenerator{
		commissions: d.Commissions,
		ledger:      d.Ledger,
		payments:    d.Payments,
		audit:       d.Audit,
		sequencer:   d.Sequencer,
		payeeRepo:   d.PayeeRepo,
		invoiceRepo: d.InvoiceRepo,
		outboxRepo:  d.OutboxRepo,
		jobRepo:     d.JobRepo,
		commRepo:    d.CommissionRepo,
		txManager:   d.TxManager,
		settings:    d.Settings,
		metrics:     d.Metrics,
		log:         d.Log,
	}
}

func (g *invoiceGenerator) Run(ctx context.Context, runDate time.Time, trigger, actor string) (BatchSummary, error) {
	return g.RunForPeriod(ctx, PreviousMonth(runDate), trigger, actor)
}

// RunForPeriod is safe to re-invoke: payees already invoiced for the period are
// skipped, and a concurrent run is refused by the job lease.
func (g *invoiceGenerator) RunForPeriod(ctx context.Context, period Period, trigger, actor string) (BatchSummary, error) {
	started := time.Now()
	if !period.End.After(period.Start) || period.End.After(started.UTC()) {
		return BatchSummary{}, fmt.Errorf("%w: %s is not a closed month", ErrInvalidPeriod, period.Label())
	}

	holder := uuid.NewString()
	acquired, err := g.jobRepo.TryAcquire(ctx, model.JobMonthlyInvoices, holder, g.settings.BatchLockTTL)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to acquire batch lock: %w", err)
	}
	if !acquired {
		g.metrics.ObserveBatch(trigger, "locked", time.Since(started))
		return BatchSummary{}, ErrBatchAlreadyRunning
	}
	defer func() {
		if err := g.jobRepo.Release(context.WithoutCancel(ctx), model.JobMonthlyInvoices, holder); err != nil {
			g.log.Error().Err(err).Msg("failed to release batch lock")
		}
	}()

	run := &model.BatchRun{PeriodStart: period.Start, Trigger: trigger, StartedAt: started.UTC()}
	if err := g.jobRepo.CreateRun(ctx, run); err != nil {
		return BatchSummary{}, fmt.Errorf("failed to record batch run: %w", err)
	}

	log := g.log.With().Str("run_id", run.ID.String()).Str("period", period.Label()).Str("trigger", trigger).Logger()
	log.Info().Msg("invoice batch started")

	payeeIDs, err := g.commRepo.PayeeIDsWithPending(ctx, period.Start, period.End)
	if err != nil {
		g.metrics.ObserveBatch(trigger, "error", time.Since(started))
		return BatchSummary{}, fmt.Errorf("failed to find payees with pending commissions: %w", err)
	}
	payees, err := g.payeeRepo.FindByIDs(ctx, payeeIDs)
	if err != nil {
		g.metrics.ObserveBatch(trigger, "error", time.Since(started))
		return BatchSummary{}, fmt.Errorf("failed to load payees: %w", err)
	}

	summary := BatchSummary{
		RunID:       run.ID.String(),
		Period:      period.Label(),
		TotalPayees: len(payeeIDs),
		Failed:      []PayeeFailure{},
		Invoices:    []IssuedInvoice{},
	}

	known := make(map[uuid.UUID]bool, len(payees))
	for _, p := range payees {
		known[p.ID] = true
	}
	for _, id := range payeeIDs {
		if !known[id] {
			summary.Failed = append(summary.Failed, PayeeFailure{PayeeID: id.String(), Error: "payee not found"})
			g.metrics.IncBatchPayee("failed")
		}
	}

	outcomes := make([]payeeOutcome, len(payees))
	var group errgroup.Group
	group.SetLimit(max(g.settings.BatchWorkers, 1))
	for i := range payees {
		payee := payees[i]
		group.Go(func() error {
			outcomes[i] = g.processPayee(ctx, &payee, period, log)
			return nil
		})
	}
	_ = group.Wait()

	for i, out := range outcomes {
		switch {
		case out.err != nil:
			summary.Failed = append(summary.Failed, PayeeFailure{
				PayeeID:   payees[i].ID.String(),
				PayeeName: payees[i].Name,
				Error:     out.err.Error(),
			})
			g.metrics.IncBatchPayee("failed")
		case out.skipped:
			summary.Skipped++
			g.metrics.IncBatchPayee("skipped")
		default:
			summary.Succeeded++
			summary.Invoices = append(summary.Invoices, *out.issued)
			g.metrics.IncBatchPayee("invoiced")
		}
	}

	g.finishRun(ctx, run, summary, log)
	if trigger == model.TriggerManual {
		if err := g.audit.Record(ctx, actor, model.ActionRunInvoiceBatch, run.ID.String(), period.Label(), map[string]interface{}{
			"succeeded": summary.Succeeded,
			"skipped":   summary.Skipped,
			"failed":    len(summary.Failed),
		}); err != nil {
			log.Error().Err(err).Msg("failed to write audit log")
		}
	}

	result := "ok"
	if len(summary.Failed) > 0 {
		result = "partial"
	}
	g.metrics.ObserveBatch(trigger, result, time.Since(started))
	log.Info().
		Int("total_payees", summary.TotalPayees).
		Int("succeeded", summary.Succeeded).
		Int("skipped", summary.Skipped).
		Int("failed", len(summary.Failed)).
		Dur("took", time.Since(started)).
		Msg("invoice batch finished")
	return summary, nil
}

// processPayee issues the invoice in its own transaction, then tries the direct
// debit after commit so a provider outage cannot undo the invoice.
func (g *invoiceGenerator) processPayee(ctx context.Context, payee *model.Payee, period Period, log zerolog.Logger) payeeOutcome {
	plog := log.With().Str("payee_id", payee.ID.String()).Str("payee", payee.Name).Logger()

	invoice, err := g.issueInvoice(ctx, payee, period)
	if errors.Is(err, errAlreadyInvoiced) {
		plog.Info().Msg("payee already invoiced for period, skipping")
		return payeeOutcome{skipped: true}
	}
	if err != nil {
		plog.Error().Err(err).Msg("failed to invoice payee")
		return payeeOutcome{err: err}
	}
	if invoice == nil {
		plog.Info().Msg("no billable commissions left, skipping")
		return payeeOutcome{skipped: true}
	}

	payment, err := g.payments.InitiateForInvoice(ctx, invoice.ID)
	if err != nil {
		plog.Warn().Err(err).Str("invoice_number", invoice.InvoiceNumber).Msg("payment hand-off failed, invoice stays payable by transfer")
		payment = InitiationResult{Reason: err.Error()}
	}

	plog.Info().
		Str("invoice_number", invoice.InvoiceNumber).
		Str("total", invoice.TotalAmount.StringFixed(2)).
		Bool("direct_debit", payment.Attempted).
		Msg("invoice issued")
	return payeeOutcome{issued: &IssuedInvoice{
		PayeeID:       payee.ID.String(),
		InvoiceID:     invoice.ID.String(),
		InvoiceNumber: invoice.InvoiceNumber,
		TotalAmount:   invoice.TotalAmount.StringFixed(2),
		Payment:       payment,
	}}
}

// issueInvoice snapshots the payee's billable commissions. It returns a nil invoice
// when nothing is left to bill.
func (g *invoiceGenerator) issueInvoice(ctx context.Context, payee *model.Payee, period Period) (*model.Invoice, error) {
	var invoice *model.Invoice
	err := g.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		locked, err := g.payeeRepo.FindByIDForUpdate(txCtx, payee.ID)
		if err != nil {
			return err
		}

		if _, err := g.invoiceRepo.FindActiveForPeriod(txCtx, locked.ID, period.Start); err == nil {
			return errAlreadyInvoiced
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		commissions, err := g.commissions.ListBillable(txCtx, locked.ID, period)
		if err != nil {
			return fmt.Errorf("failed to list billable commissions: %w", err)
		}
		if len(commissions) == 0 {
			return nil
		}

		issuedAt := time.Now().UTC()
		number, err := g.sequencer.Next(txCtx, g.settings.InvoicePrefix, issuedAt.Year())
		if err != nil {
			return err
		}

		invoice = BuildInvoice(locked, period, commissions, g.settings)
		invoice.InvoiceNumber = number
		if err := g.invoiceRepo.Create(txCtx, invoice); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errAlreadyInvoiced
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		ids := make([]uuid.UUID, 0, len(commissions))
		for _, c := range commissions {
			ids = append(ids, c.ID)
		}
		if err := g.commissions.MarkBilled(txCtx, ids, invoice.ID); err != nil {
			return err
		}

		entry, err := g.ledger.PostInvoice(txCtx, invoice, locked.Name)
		if err != nil {
			return err
		}

		n, err := g.invoiceRepo.UpdateGuarded(txCtx, []uuid.UUID{invoice.ID}, []string{model.InvoiceDraft}, map[string]interface{}{
			"status":              model.InvoiceSent,
			"accounting_entry_id": entry.ID,
			"sent_at":             issuedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to finalize invoice: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("invoice %s left draft concurrently", invoice.InvoiceNumber)
		}
		invoice.Status = model.InvoiceSent
		invoice.AccountingEntryID = &entry.ID
		invoice.SentAt = &issuedAt

		// PDF rendering and the e-mail to the payee run off this event after commit.
		return g.outboxRepo.Enqueue(txCtx, repository.OutboxMessage{
			Type:        model.EventInvoiceIssued,
			AggregateID: invoice.ID.String(),
			DedupeKey:   model.EventInvoiceIssued + ":" + invoice.ID.String(),
			Payload: map[string]interface{}{
				"invoice_id":     invoice.ID.String(),
				"invoice_number": invoice.InvoiceNumber,
				"payee_id":       locked.ID.String(),
				"payee_email":    locked.Email,
				"period":         period.Label(),
				"total_amount":   invoice.TotalAmount.StringFixed(2),
				"due_date":       invoice.DueDate.Format("2006-01-02"),
				"entry_number":   entry.EntryNumber,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// BuildInvoice turns commissions into an invoice draft with one line per commission.
func BuildInvoice(payee *model.Payee, period Period, commissions []model.Commission, settings Settings) *model.Invoice {
	lines := make([]model.InvoiceLineItem, 0, len(commissions))
	subtotal := decimal.Zero
	for i, c := range commissions {
		commissionID := c.ID
		description := c.Description
		if description == "" {
			description = fmt.Sprintf("Commission booking %s", c.BookingID)
		}
		if c.ServiceType != "" {
			description = c.ServiceType + ": " + description
		}
		lines = append(lines, model.InvoiceLineItem{
			Position:     i + 1,
			CommissionID: &commissionID,
			ServiceDate:  c.ServiceDate,
			Description:  truncate(fmt.Sprintf("%s (%s)", description, c.ServiceDate.Format("02.01.2006")), 255),
			Quantity:     1,
			UnitPrice:    c.CommissionAmount,
			VATRate:      settings.VATRate,
			Total:        c.CommissionAmount,
		})
		subtotal = subtotal.Add(c.CommissionAmount)
	}

	vat := roundMoney(subtotal.Mul(settings.VATRate))
	return &model.Invoice{
		PayeeID:     payee.ID,
		PeriodStart: period.Start,
		PeriodEnd:   period.LastDay(),
		Subtotal:    subtotal,
		VATRate:     settings.VATRate,
		VATAmount:   vat,
		TotalAmount: subtotal.Add(vat),
		Status:      model.InvoiceDraft,
		DueDate:     period.LastDay().AddDate(0, 0, settings.PaymentDueDays),
		LineItems:   lines,
	}
}

func (g *invoiceGenerator) finishRun(ctx context.Context, run *model.BatchRun, summary BatchSummary, log zerolog.Logger) {
	finished := time.Now().UTC()
	run.TotalPayees = summary.TotalPayees
	run.Succeeded = summary.Succeeded
	run.Skipped = summary.Skipped
	run.Failed = len(summary.Failed)
	run.FinishedAt = &finished
	if b, err := json.Marshal(summary); err == nil {
		run.Summary = b
	}
	if err := g.jobRepo.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error().Err(err).Msg("failed to record batch run result")
	}
}

func (g *invoiceGenerator) ListRuns(ctx context.Context, limit int) ([]BatchRunResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := g.jobRepo.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch runs: %w", err)
	}
	out := make([]BatchRunResponse, 0, len(runs))
	for _, r := range runs {
		res := BatchRunResponse{
			ID:          r.ID.String(),
			Period:      r.PeriodStart.Format("2006-01"),
			Trigger:     r.Trigger,
			TotalPayees: r.TotalPayees,
			Succeeded:   r.Succeeded,
			Skipped:     r.Skipped,
			Failed:      r.Failed,
			StartedAt:   r.StartedAt.UTC().Format(time.RFC3339),
		}
		if r.FinishedAt != nil {
			finished := r.FinishedAt.UTC().Format(time.RFC3339)
			res.FinishedAt = &finished
		}
		if len(r.Summary) > 0 {
			res.Summary = json.RawMessage(r.Summary)
		}
		out = append(out, res)
	}
	return out, nil
}
