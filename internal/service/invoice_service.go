package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type InvoiceListFilter struct {
	PayeeID string
	Status  string // DRAFT, SENT, PAID, CANCELLED or empty for all
	Period  string // YYYY-MM
	Number  string // partial match on invoice_number
	Page    int
	Limit   int
}

type InvoiceLineResponse struct {
	Position     int     `json:"position"`
	CommissionID *string `json:"commission_id"`
	ServiceDate  string  `json:"service_date"`
	Description  string  `json:"description"`
	Quantity     int     `json:"quantity"`
	UnitPrice    string  `json:"unit_price"`
	VATRate      string  `json:"vat_rate"`
	Total        string  `json:"total"`
}

type InvoiceResponse struct {
	ID                string                `json:"id"`
	InvoiceNumber     string                `json:"invoice_number"`
	PayeeID           string                `json:"payee_id"`
	PayeeName         string                `json:"payee_name"`
	PeriodStart       string                `json:"period_start"`
	PeriodEnd         string                `json:"period_end"`
	Subtotal          string                `json:"subtotal"`
	VATRate           string                `json:"vat_rate"`
	VATAmount         string                `json:"vat_amount"`
	TotalAmount       string                `json:"total_amount"`
	Status            string                `json:"status"`
	ProviderPaymentID string                `json:"provider_payment_id"`
	PaymentStatus     string                `json:"payment_status"`
	DueDate           string                `json:"due_date"`
	Notes             string                `json:"notes"`
	SentAt            *string               `json:"sent_at"`
	PaidAt            *string               `json:"paid_at"`
	CancelledAt       *string               `json:"cancelled_at"`
	LineItems         []InvoiceLineResponse `json:"line_items,omitempty"`
	CreatedAt         string                `json:"created_at"`
}

type StornoRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type StornoResponse struct {
	Invoice InvoiceResponse `json:"invoice"`
	Entry   EntryResponse   `json:"entry"`
}

type InvoiceStatsResponse struct {
	Year             int            `json:"year"`
	CountByStatus    map[string]int `json:"count_by_status"`
	IssuedRevenue    string         `json:"issued_revenue"`
	PaidRevenue      string         `json:"paid_revenue"`
	OutstandingTotal string         `json:"outstanding_total"`
}

// --- Interface ---

type InvoiceService interface {
	ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, id string) (InvoiceResponse, error)
	// InvoiceEntries returns the issuance, payment and storno entries of an invoice.
	InvoiceEntries(ctx context.Context, id string) ([]EntryResponse, error)
	// Storno cancels an invoice with a balancing entry. Collected commissions are left alone.
	Storno(ctx context.Context, id, reason, actor string) (StornoResponse, error)
	Stats(ctx context.Context, year int) (InvoiceStatsResponse, error)
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	ledgerRepo  repository.LedgerRepository
	outboxRepo  repository.OutboxRepository
	ledger      LedgerService
	audit       AuditService
	txManager   repository.TransactionManager
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	ledgerRepo repository.LedgerRepository,
	outboxRepo repository.OutboxRepository,
	ledger LedgerService,
	audit AuditService,
	txManager repository.TransactionManager,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		ledger:      ledger,
		audit:       audit,
		txManager:   txManager,
	}
}

// --- Implementation ---

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	repoFilter := repository.InvoiceFilter{
		Status: filter.Status,
		Number: filter.Number,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.PayeeID != "" {
		id, err := parseUUID(filter.PayeeID)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.PayeeID = &id
	}
	if filter.Period != "" {
		period, err := ParsePeriod(filter.Period)
		if err != nil {
			return nil, 0, err
		}
		repoFilter.PeriodStart = &period.Start
	}

	invoices, total, err := s.invoiceRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, err
	}
	res := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		res = append(res, toInvoiceResponse(inv, false))
	}
	return res, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (InvoiceResponse, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, uid)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return toInvoiceResponse(*invoice, true), nil
}

func (s *invoiceService) InvoiceEntries(ctx context.Context, id string) ([]EntryResponse, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}

	// Issuance and storno entries carry the invoice id as source.
	entries, _, err := s.ledgerRepo.List(ctx, repository.EntryFilter{SourceID: invoice.ID.String(), Page: 1, Limit: 100})
	if err != nil {
		return nil, err
	}
	if invoice.PaymentEntryID != nil {
		payment, err := s.ledgerRepo.FindByID(ctx, *invoice.PaymentEntryID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *payment)
	}
	return toEntryResponses(entries), nil
}

func (s *invoiceService) Storno(ctx context.Context, id, reason, actor string) (StornoResponse, error) {
	uid, err := parseUUID(id)
	if err != nil {
		return StornoResponse{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return StornoResponse{}, ErrReasonRequired
	}

	var entry *model.AccountingEntry
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoiceRepo.FindByIDForUpdate(txCtx, uid)
		if err != nil {
			return err
		}
		if invoice.Status == model.InvoiceCancelled {
			return fmt.Errorf("%w: %s", ErrInvoiceAlreadyCancelled, invoice.InvoiceNumber)
		}
		if invoice.AccountingEntryID == nil {
			return fmt.Errorf("%w: %s", ErrInvoiceNotPosted, invoice.InvoiceNumber)
		}

		original, err := s.ledgerRepo.FindByID(txCtx, *invoice.AccountingEntryID)
		if err != nil {
			return fmt.Errorf("issuance entry of %s: %w", invoice.InvoiceNumber, err)
		}
		entry, err = s.ledger.PostStorno(txCtx, original, reason, actor)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		notes := strings.TrimSpace(invoice.Notes + "\nCancelled: " + reason)
		n, err := s.invoiceRepo.UpdateGuarded(txCtx, []uuid.UUID{invoice.ID},
			[]string{model.InvoiceDraft, model.InvoiceSent, model.InvoicePaid},
			map[string]interface{}{
				"status":       model.InvoiceCancelled,
				"cancelled_at": now,
				"notes":        notes,
			})
		if err != nil {
			return fmt.Errorf("failed to cancel invoice: %w", err)
		}
		if n != 1 {
			return fmt.Errorf("%w: %s", ErrInvoiceAlreadyCancelled, invoice.InvoiceNumber)
		}

		if err := s.audit.Record(txCtx, actor, model.ActionStornoInvoice, invoice.ID.String(), invoice.InvoiceNumber, map[string]interface{}{
			"reason":          reason,
			"previous_status": invoice.Status,
			"original_entry":  original.EntryNumber,
			"storno_entry":    entry.EntryNumber,
			"amount":          original.Amount.StringFixed(2),
		}); err != nil {
			return err
		}

		return s.outboxRepo.Enqueue(txCtx, repository.OutboxMessage{
			Type:        model.EventInvoiceCancelled,
			AggregateID: invoice.ID.String(),
			DedupeKey:   model.EventInvoiceCancelled + ":" + invoice.ID.String(),
			Payload: map[string]interface{}{
				"invoice_id":      invoice.ID.String(),
				"invoice_number":  invoice.InvoiceNumber,
				"payee_id":        invoice.PayeeID.String(),
				"previous_status": invoice.Status,
				"reason":          reason,
				"entry_number":    entry.EntryNumber,
			},
		})
	})
	if err != nil {
		return StornoResponse{}, err
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, uid)
	if err != nil {
		return StornoResponse{}, err
	}
	return StornoResponse{Invoice: toInvoiceResponse(*invoice, false), Entry: toEntryResponse(*entry)}, nil
}

// Stats aggregates invoices whose billing period starts in year.
func (s *invoiceService) Stats(ctx context.Context, year int) (InvoiceStatsResponse, error) {
	if year < 2000 || year > 9999 {
		return InvoiceStatsResponse{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	invoices, err := s.invoiceRepo.ListForPeriods(ctx, from, from.AddDate(1, 0, 0))
	if err != nil {
		return InvoiceStatsResponse{}, err
	}

	stats := model.InvoiceStats{
		Year:             year,
		CountByStatus:    map[string]int{},
		IssuedRevenue:    decimal.Zero,
		PaidRevenue:      decimal.Zero,
		OutstandingTotal: decimal.Zero,
	}
	for _, inv := range invoices {
		stats.CountByStatus[inv.Status]++
		switch inv.Status {
		case model.InvoiceSent:
			stats.IssuedRevenue = stats.IssuedRevenue.Add(inv.TotalAmount)
			stats.OutstandingTotal = stats.OutstandingTotal.Add(inv.TotalAmount)
		case model.InvoicePaid:
			stats.IssuedRevenue = stats.IssuedRevenue.Add(inv.TotalAmount)
			stats.PaidRevenue = stats.PaidRevenue.Add(inv.TotalAmount)
		}
	}

	return InvoiceStatsResponse{
		Year:             stats.Year,
		CountByStatus:    stats.CountByStatus,
		IssuedRevenue:    stats.IssuedRevenue.StringFixed(2),
		PaidRevenue:      stats.PaidRevenue.StringFixed(2),
		OutstandingTotal: stats.OutstandingTotal.StringFixed(2),
	}, nil
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toInvoiceResponse(inv model.Invoice, withLines bool) InvoiceResponse {
	res := InvoiceResponse{
		ID:                inv.ID.String(),
		InvoiceNumber:     inv.InvoiceNumber,
		PayeeID:           inv.PayeeID.String(),
		PeriodStart:       inv.PeriodStart.Format("2006-01-02"),
		PeriodEnd:         inv.PeriodEnd.Format("2006-01-02"),
		Subtotal:          inv.Subtotal.StringFixed(2),
		VATRate:           inv.VATRate.String(),
		VATAmount:         inv.VATAmount.StringFixed(2),
		TotalAmount:       inv.TotalAmount.StringFixed(2),
		Status:            inv.Status,
		ProviderPaymentID: inv.ProviderPaymentID,
		PaymentStatus:     inv.PaymentStatus,
		DueDate:           inv.DueDate.Format("2006-01-02"),
		Notes:             inv.Notes,
		SentAt:            formatOptionalTime(inv.SentAt),
		PaidAt:            formatOptionalTime(inv.PaidAt),
		CancelledAt:       formatOptionalTime(inv.CancelledAt),
		CreatedAt:         inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.Payee != nil {
		res.PayeeName = inv.Payee.Name
	}
	if withLines {
		res.LineItems = make([]InvoiceLineResponse, 0, len(inv.LineItems))
		for _, l := range inv.LineItems {
			var commissionID *string
			if l.CommissionID != nil {
				id := l.CommissionID.String()
				commissionID = &id
			}
			res.LineItems = append(res.LineItems, InvoiceLineResponse{
				Position:     l.Position,
				CommissionID: commissionID,
				ServiceDate:  l.ServiceDate.Format("2006-01-02"),
				Description:  l.Description,
				Quantity:     l.Quantity,
				UnitPrice:    l.UnitPrice.StringFixed(2),
				VATRate:      l.VATRate.String(),
				Total:        l.Total.StringFixed(2),
			})
		}
	}
	return res
}
