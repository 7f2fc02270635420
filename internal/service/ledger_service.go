package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"commissionledger/internal/datev"
	"commissionledger/internal/metrics"
	"commissionledger/internal/model"
	"commissionledger/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentReceipt is one settlement from the provider. A payout that covers
// several invoices is booked as a single entry, mirroring the bank statement.
type PaymentReceipt struct {
	PaymentID      string
	Amount         decimal.Decimal
	ReceivedAt     time.Time
	InvoiceNumbers []string
}

type EntryResponse struct {
	ID              string  `json:"id"`
	EntryNumber     string  `json:"entry_number"`
	BookingDate     string  `json:"booking_date"`
	DocumentDate    string  `json:"document_date"`
	DebitAccount    string  `json:"debit_account"`
	CreditAccount   string  `json:"credit_account"`
	Amount          string  `json:"amount"`
	NetAmount       string  `json:"net_amount"`
	VATRate         string  `json:"vat_rate"`
	VATAmount       string  `json:"vat_amount"`
	Description     string  `json:"description"`
	DocumentNumber  string  `json:"document_number"`
	SourceType      string  `json:"source_type"`
	SourceID        string  `json:"source_id"`
	InternalNote    string  `json:"internal_note,omitempty"`
	ReversesEntryID *string `json:"reverses_entry_id"`
	CreatedBy       string  `json:"created_by"`
}

type EntryListFilter struct {
	From       *time.Time
	Until      *time.Time
	SourceType string
	Account    string
	Page       int
	Limit      int
}

type TrialBalanceResponse struct {
	From        string                 `json:"from"`
	Until       string                 `json:"until"`
	Accounts    []model.AccountBalance `json:"accounts"`
	TotalDebit  decimal.Decimal        `json:"total_debit"`
	TotalCredit decimal.Decimal        `json:"total_credit"`
	Balanced    bool                   `json:"balanced"`
	EntryCount  int                    `json:"entry_count"`
}

// LedgerService posts balanced double-entry bookings. Entries are never edited
// or deleted; a correction is a new entry.
type LedgerService interface {
	PostInvoice(ctx context.Context, invoice *model.Invoice, payeeName string) (*model.AccountingEntry, error)
	PostPaymentReceived(ctx context.Context, receipt PaymentReceipt) (*model.AccountingEntry, error)
	PostStorno(ctx context.Context, original *model.AccountingEntry, reason, actor string) (*model.AccountingEntry, error)
	ListEntries(ctx context.Context, filter EntryListFilter) ([]EntryResponse, int64, error)
	TrialBalance(ctx context.Context, from, until time.Time) (TrialBalanceResponse, error)
	// ExportDATEV renders every entry booked in [from, until) and returns the file with its row count.
	ExportDATEV(ctx context.Context, from, until time.Time) ([]byte, int, error)
}

type ledgerService struct {
	ledgerRepo repository.LedgerRepository
	sequencer  Sequencer
	txManager  repository.TransactionManager
	settings   Settings
	metrics    *metrics.LedgerMetrics
	log        zerolog.Logger
}

func NewLedgerService(
	ledgerRepo repository.LedgerRepository,
	sequencer Sequencer,
	txManager repository.TransactionManager,
	settings Settings,
	m *metrics.LedgerMetrics,
	log zerolog.Logger,
) LedgerService {
	return &ledgerService{
		ledgerRepo: ledgerRepo,
		sequencer:  sequencer,
		txManager:  txManager,
		settings:   settings,
		metrics:    m,
		log:        log,
	}
}

func (s *ledgerService) PostInvoice(ctx context.Context, invoice *model.Invoice, payeeName string) (*model.AccountingEntry, error) {
	now := time.Now().UTC()
	entry := &model.AccountingEntry{
		BookingDate:    now,
		DocumentDate:   now,
		DebitAccount:   s.settings.AccountReceivables,
		CreditAccount:  s.settings.AccountRevenue,
		Amount:         invoice.TotalAmount,
		NetAmount:      invoice.Subtotal,
		VATRate:        invoice.VATRate,
		VATAmount:      invoice.VATAmount,
		Description:    truncate(fmt.Sprintf("Commission invoice %s %s", invoice.InvoiceNumber, payeeName), 255),
		DocumentNumber: invoice.InvoiceNumber,
		SourceType:     model.SourceInvoice,
		SourceID:       invoice.ID.String(),
		CreatedBy:      "system",
	}
	if err := s.post(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to post invoice %s: %w", invoice.InvoiceNumber, err)
	}
	return entry, nil
}

// PostPaymentReceived books cash against receivables. VAT was booked at issuance
// and is not recomputed here.
func (s *ledgerService) PostPaymentReceived(ctx context.Context, receipt PaymentReceipt) (*model.AccountingEntry, error) {
	if !receipt.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount must be positive", ErrInvalidAmount)
	}
	receivedAt := receipt.ReceivedAt.UTC()
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	entry := &model.AccountingEntry{
		BookingDate:    receivedAt,
		DocumentDate:   receivedAt,
		DebitAccount:   s.settings.AccountBank,
		CreditAccount:  s.settings.AccountReceivables,
		Amount:         receipt.Amount,
		NetAmount:      receipt.Amount,
		VATRate:        decimal.Zero,
		VATAmount:      decimal.Zero,
		Description:    truncate(fmt.Sprintf("Direct debit %s: %s", receipt.PaymentID, strings.Join(receipt.InvoiceNumbers, ", ")), 255),
		DocumentNumber: truncate(receipt.PaymentID, 50),
		SourceType:     model.SourcePayment,
		SourceID:       receipt.PaymentID,
		CreatedBy:      "system",
	}
	if err := s.post(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to post payment %s: %w", receipt.PaymentID, err)
	}
	return entry, nil
}

// PostStorno mirrors original with debit and credit swapped. An entry can be reversed once.
func (s *ledgerService) PostStorno(ctx context.Context, original *model.AccountingEntry, reason, actor string) (*model.AccountingEntry, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	if original.ReversesEntryID != nil {
		return nil, fmt.Errorf("%w: %s is itself a storno", ErrEntryAlreadyReversed, original.EntryNumber)
	}

	now := time.Now().UTC()
	entry := &model.AccountingEntry{
		BookingDate:     now,
		DocumentDate:    now,
		DebitAccount:    original.CreditAccount,
		CreditAccount:   original.DebitAccount,
		Amount:          original.Amount,
		NetAmount:       original.NetAmount,
		VATRate:         original.VATRate,
		VATAmount:       original.VATAmount,
		Description:     truncate("STORNO: "+original.Description, 255),
		DocumentNumber:  original.DocumentNumber,
		SourceType:      model.SourceStorno,
		SourceID:        original.SourceID,
		InternalNote:    "Reason: " + reason,
		ReversesEntryID: &original.ID,
		CreatedBy:       actor,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.ledgerRepo.FindReversalOf(txCtx, original.ID); err == nil {
			return fmt.Errorf("%w: %s", ErrEntryAlreadyReversed, original.EntryNumber)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return s.post(txCtx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// post numbers the entry inside the caller's transaction so the number is
// consumed only when the entry commits.
func (s *ledgerService) post(ctx context.Context, entry *model.AccountingEntry) error {
	if entry.Status == "" {
		entry.Status = model.EntryPosted
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		number, err := s.sequencer.Next(txCtx, s.settings.EntryPrefix, entry.BookingDate.Year())
		if err != nil {
			return err
		}
		entry.EntryNumber = number
		return s.ledgerRepo.Create(txCtx, entry)
	})
	if err != nil {
		return err
	}

	s.metrics.IncLedgerEntry(entry.SourceType)
	s.log.Info().
		Str("entry_number", entry.EntryNumber).
		Str("source_type", entry.SourceType).
		Str("source_id", entry.SourceID).
		Str("debit", entry.DebitAccount).
		Str("credit", entry.CreditAccount).
		Str("amount", entry.Amount.StringFixed(2)).
		Msg("ledger entry posted")
	return nil
}

func (s *ledgerService) ListEntries(ctx context.Context, filter EntryListFilter) ([]EntryResponse, int64, error) {
	entries, total, err := s.ledgerRepo.List(ctx, repository.EntryFilter{
		From:       filter.From,
		Until:      filter.Until,
		SourceType: filter.SourceType,
		Account:    filter.Account,
		Page:       filter.Page,
		Limit:      filter.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	return toEntryResponses(entries), total, nil
}

// TrialBalance sums both legs per account. Every entry adds the same amount to
// one debit and one credit, so the totals must agree.
func (s *ledgerService) TrialBalance(ctx context.Context, from, until time.Time) (TrialBalanceResponse, error) {
	if !until.After(from) {
		return TrialBalanceResponse{}, fmt.Errorf("%w: until must be after from", ErrInvalidPeriod)
	}
	entries, err := s.ledgerRepo.ListBetween(ctx, from, until)
	if err != nil {
		return TrialBalanceResponse{}, err
	}

	balances := make(map[string]*model.AccountBalance)
	account := func(code string) *model.AccountBalance {
		b, ok := balances[code]
		if !ok {
			b = &model.AccountBalance{Account: code, Debit: decimal.Zero, Credit: decimal.Zero}
			balances[code] = b
		}
		return b
	}

	totalDebit, totalCredit := decimal.Zero, decimal.Zero
	for _, e := range entries {
		d := account(e.DebitAccount)
		d.Debit = d.Debit.Add(e.Amount)
		c := account(e.CreditAccount)
		c.Credit = c.Credit.Add(e.Amount)
		totalDebit = totalDebit.Add(e.Amount)
		totalCredit = totalCredit.Add(e.Amount)
	}

	rows := make([]model.AccountBalance, 0, len(balances))
	for _, b := range balances {
		b.Balance = b.Debit.Sub(b.Credit)
		rows = append(rows, *b)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Account < rows[j].Account })

	return TrialBalanceResponse{
		From:        from.Format("2006-01-02"),
		Until:       until.Format("2006-01-02"),
		Accounts:    rows,
		TotalDebit:  totalDebit,
		TotalCredit: totalCredit,
		Balanced:    totalDebit.Equal(totalCredit),
		EntryCount:  len(entries),
	}, nil
}

func (s *ledgerService) ExportDATEV(ctx context.Context, from, until time.Time) ([]byte, int, error) {
	if !until.After(from) {
		return nil, 0, fmt.Errorf("%w: until must be after from", ErrInvalidPeriod)
	}
	entries, err := s.ledgerRepo.ListBetween(ctx, from, until)
	if err != nil {
		return nil, 0, err
	}

	bookings := make([]datev.Booking, 0, len(entries))
	for _, e := range entries {
		bookings = append(bookings, datev.Booking{
			Amount:         e.Amount,
			Currency:       s.settings.Currency,
			DebitAccount:   e.DebitAccount,
			CreditAccount:  e.CreditAccount,
			DocumentDate:   e.BookingDate,
			DocumentNumber: e.EntryNumber,
			Text:           e.Description,
		})
	}

	var buf bytes.Buffer
	header := datev.Header{
		ConsultantNumber: s.settings.DATEVConsultantNumber,
		ClientNumber:     s.settings.DATEVClientNumber,
		AccountLength:    4,
		From:             from,
		To:               until.AddDate(0, 0, -1),
		Label:            "Commission ledger " + from.Format("2006-01"),
	}
	if err := datev.Write(&buf, header, bookings); err != nil {
		return nil, 0, fmt.Errorf("failed to render DATEV export: %w", err)
	}
	return buf.Bytes(), len(bookings), nil
}

func toEntryResponses(entries []model.AccountingEntry) []EntryResponse {
	res := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, toEntryResponse(e))
	}
	return res
}

func toEntryResponse(e model.AccountingEntry) EntryResponse {
	var reverses *string
	if e.ReversesEntryID != nil {
		id := e.ReversesEntryID.String()
		reverses = &id
	}
	return EntryResponse{
		ID:              e.ID.String(),
		EntryNumber:     e.EntryNumber,
		BookingDate:     e.BookingDate.Format("2006-01-02"),
		DocumentDate:    e.DocumentDate.Format("2006-01-02"),
		DebitAccount:    e.DebitAccount,
		CreditAccount:   e.CreditAccount,
		Amount:          e.Amount.StringFixed(2),
		NetAmount:       e.NetAmount.StringFixed(2),
		VATRate:         e.VATRate.String(),
		VATAmount:       e.VATAmount.StringFixed(2),
		Description:     e.Description,
		DocumentNumber:  e.DocumentNumber,
		SourceType:      e.SourceType,
		SourceID:        e.SourceID,
		InternalNote:    e.InternalNote,
		ReversesEntryID: reverses,
		CreatedBy:       e.CreatedBy,
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func parseUUID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return uid, nil
}
