package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"commissionledger/internal/model"
	"commissionledger/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoiceNumber(n int) string {
	return service.FormatDocumentNumber("INV", time.Now().UTC().Year(), int64(n))
}

func TestBatchInvoicesPendingCommissionsOfMonth(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "", "")

	h.record(t, p, "b-1", "10", "2024-03-04")
	h.record(t, p, "b-2", "20", "2024-03-15")
	h.record(t, p, "b-3", "30", "2024-03-31")
	h.record(t, p, "b-april", "99", "2024-04-01")

	summary := h.runMonth(t, "2024-03")
	assert.Equal(t, "2024-03", summary.Period)
	assert.Equal(t, 1, summary.TotalPayees)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	require.Len(t, summary.Invoices, 1)
	assert.Equal(t, "71.40", summary.Invoices[0].TotalAmount)
	assert.Equal(t, invoiceNumber(1), summary.Invoices[0].InvoiceNumber)
	assert.False(t, summary.Invoices[0].Payment.Attempted)
	assert.Equal(t, "no mandate", summary.Invoices[0].Payment.Reason)

	inv, err := h.invoices.GetInvoice(ctx, summary.Invoices[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceSent, inv.Status)
	assert.Equal(t, "60.00", inv.Subtotal)
	assert.Equal(t, "11.40", inv.VATAmount)
	assert.Equal(t, "71.40", inv.TotalAmount)
	assert.Equal(t, "2024-03-01", inv.PeriodStart)
	assert.Equal(t, "2024-03-31", inv.PeriodEnd)
	assert.Equal(t, "2024-04-14", inv.DueDate)
	assert.Equal(t, "Reifen Müller", inv.PayeeName)
	assert.NotNil(t, inv.SentAt)
	require.Len(t, inv.LineItems, 3)
	assert.Equal(t, "10.00", inv.LineItems[0].UnitPrice)
	assert.Equal(t, 1, inv.LineItems[0].Quantity)
	assert.Contains(t, inv.LineItems[0].Description, "Reifenwechsel")
	assert.Contains(t, inv.LineItems[0].Description, "04.03.2024")

	assert.Equal(t, []string{model.CommissionBilled, model.CommissionBilled, model.CommissionBilled},
		h.commissionStatuses(t, inv.ID))

	april, _, err := h.commissions.ListCommissions(ctx, service.CommissionListFilter{PayeeID: p.ID.String(), Year: 2024, Month: 4})
	require.NoError(t, err)
	require.Len(t, april, 1)
	assert.Equal(t, model.CommissionPending, april[0].Status)

	entries, err := h.invoices.InvoiceEntries(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1400", entries[0].DebitAccount)
	assert.Equal(t, "8400", entries[0].CreditAccount)
	assert.Equal(t, "71.40", entries[0].Amount)
	assert.Equal(t, "60.00", entries[0].NetAmount)
	assert.Equal(t, "11.40", entries[0].VATAmount)
	assert.Equal(t, inv.InvoiceNumber, entries[0].DocumentNumber)

	issued := h.outbox(t, model.EventInvoiceIssued)
	require.Len(t, issued, 1)
	assert.Equal(t, inv.InvoiceNumber, issued[0].Payload["invoice_number"])
	assert.Equal(t, "billing@example.com", issued[0].Payload["payee_email"])
	assert.Empty(t, h.outbox(t, model.EventPaymentInitiationFailed), "payees without mandate pay by transfer")
}

func TestBatchRerunDoesNotDoubleBill(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Autohaus Weber", "", "")
	h.record(t, p, "b-1", "10", "2024-03-10")

	first := h.runMonth(t, "2024-03")
	require.Equal(t, 1, first.Succeeded)

	second := h.runMonth(t, "2024-03")
	assert.Zero(t, second.TotalPayees)
	assert.Zero(t, second.Succeeded)
	assert.Empty(t, second.Invoices)

	// A commission recorded after the month was invoiced is not billed into a second invoice.
	late := h.record(t, p, "b-late", "5", "2024-03-20")
	third := h.runMonth(t, "2024-03")
	assert.Equal(t, 1, third.TotalPayees)
	assert.Equal(t, 1, third.Skipped)
	assert.Zero(t, third.Succeeded)

	list, total, err := h.invoices.ListInvoices(ctx, service.InvoiceListFilter{Period: "2024-03", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "11.90", list[0].TotalAmount)
	assert.Equal(t, int64(1), h.entryCount(t))

	pending, _, err := h.commissions.ListCommissions(ctx, service.CommissionListFilter{Status: model.CommissionPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, late.ID, pending[0].ID)
}

func TestBatchRefusesConcurrentRun(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "", "")
	h.record(t, p, "b-1", "10", "2024-03-10")

	ok, err := h.jobRepo.TryAcquire(ctx, model.JobMonthlyInvoices, "other-worker", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	period, err := service.ParsePeriod("2024-03")
	require.NoError(t, err)
	_, err = h.generator.RunForPeriod(ctx, period, model.TriggerManual, "admin")
	require.ErrorIs(t, err, service.ErrBatchAlreadyRunning)
	assert.True(t, service.IsConflict(err))

	_, total, err := h.invoices.ListInvoices(ctx, service.InvoiceListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, h.jobRepo.Release(ctx, model.JobMonthlyInvoices, "other-worker"))
	summary, err := h.generator.RunForPeriod(ctx, period, model.TriggerManual, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	logs, _, err := h.audit.GetAuditLogs(ctx, summary.RunID, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.ActionRunInvoiceBatch, logs[0].Action)
	assert.Equal(t, "admin", logs[0].ActorID)
}

func TestBatchRejectsOpenMonth(t *testing.T) {
	h := newHarness(t, nil)
	now := time.Now().UTC()
	period, err := service.MonthPeriod(now.Year(), now.Month())
	require.NoError(t, err)

	_, err = h.generator.RunForPeriod(context.Background(), period, model.TriggerManual, "admin")
	require.ErrorIs(t, err, service.ErrInvalidPeriod)
	assert.True(t, service.IsValidation(err))
}

func TestRunBillsPreviousMonth(t *testing.T) {
	h := newHarness(t, nil)
	a := h.payee(t, "Reifen Müller", "", "")
	b := h.payee(t, "Autohaus Weber", "", "")
	h.record(t, a, "b-1", "10", "2024-02-29")
	h.record(t, b, "b-2", "20", "2024-03-01")

	summary, err := h.generator.Run(context.Background(), time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), model.TriggerSchedule, "")
	require.NoError(t, err)
	assert.Equal(t, "2024-02", summary.Period)
	assert.Equal(t, 1, summary.TotalPayees)
	require.Len(t, summary.Invoices, 1)
	assert.Equal(t, a.ID.String(), summary.Invoices[0].PayeeID)
}

func TestBatchInitiatesDirectDebitForUsableMandate(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, provider)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "MD001", model.MandateSubmitted)
	h.record(t, p, "b-1", "10", "2024-03-10")

	summary := h.runMonth(t, "2024-03")
	require.Len(t, summary.Invoices, 1)
	payment := summary.Invoices[0].Payment
	assert.True(t, payment.Attempted)
	assert.Equal(t, "PM001", payment.ProviderPaymentID)
	assert.Equal(t, model.PaymentCreated, payment.Status)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, int64(1190), calls[0].AmountCents)
	assert.Equal(t, "EUR", calls[0].Currency)
	assert.Equal(t, "MD001", calls[0].MandateID)
	assert.True(t, strings.HasPrefix(calls[0].IdempotencyKey, invoiceNumber(1)+"/"))

	inv, err := h.invoices.GetInvoice(ctx, summary.Invoices[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "PM001", inv.ProviderPaymentID)
	assert.Equal(t, model.PaymentCreated, inv.PaymentStatus)
	assert.Equal(t, model.InvoiceSent, inv.Status)
	assert.Len(t, h.outbox(t, model.EventPaymentInitiated), 1)
}

func TestBatchFallsBackToTransferAndAlertsWhenDebitFails(t *testing.T) {
	provider := &fakeProvider{err: errors.New("gocardless: 503 service unavailable")}
	h := newHarness(t, provider)
	ctx := context.Background()
	active := h.payee(t, "Reifen Müller", "MD001", model.MandateActive)
	cancelled := h.payee(t, "Autohaus Weber", "MD002", model.MandateCancelled)
	h.record(t, active, "b-1", "10", "2024-03-10")
	h.record(t, cancelled, "b-2", "20", "2024-03-11")

	summary := h.runMonth(t, "2024-03")
	assert.Equal(t, 2, summary.Succeeded, "the invoice stands even when the debit fails")
	require.Len(t, summary.Invoices, 2)
	for _, issued := range summary.Invoices {
		assert.False(t, issued.Payment.Attempted)
		inv, err := h.invoices.GetInvoice(ctx, issued.InvoiceID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceSent, inv.Status)
		assert.Empty(t, inv.ProviderPaymentID)
	}
	assert.Len(t, provider.Calls(), 1, "a cancelled mandate is never charged")

	alerts := h.outbox(t, model.EventPaymentInitiationFailed)
	require.Len(t, alerts, 2)
	reasons := []string{fmt.Sprint(alerts[0].Payload["reason"]), fmt.Sprint(alerts[1].Payload["reason"])}
	assert.Contains(t, strings.Join(reasons, "|"), "503 service unavailable")
	assert.Contains(t, strings.Join(reasons, "|"), "MD002 is cancelled")
}

func TestBuildInvoice(t *testing.T) {
	settings := service.DefaultSettings()
	period, err := service.ParsePeriod("2024-02")
	require.NoError(t, err)
	payee := &model.Payee{ID: uuid.New(), Name: "Reifen Müller"}
	commissions := []model.Commission{
		{ID: uuid.New(), BookingID: "b-1", CommissionAmount: decimal.RequireFromString("0.05"), ServiceDate: period.Start},
		{ID: uuid.New(), BookingID: "b-2", CommissionAmount: decimal.RequireFromString("0.05"), ServiceDate: period.Start, Description: "Achsvermessung"},
	}

	inv := service.BuildInvoice(payee, period, commissions, settings)
	assert.True(t, decimal.RequireFromString("0.10").Equal(inv.Subtotal))
	assert.True(t, decimal.RequireFromString("0.02").Equal(inv.VATAmount), "vat is rounded on the subtotal, not per line")
	assert.True(t, decimal.RequireFromString("0.12").Equal(inv.TotalAmount))
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), inv.PeriodEnd)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), inv.DueDate)
	assert.Equal(t, model.InvoiceDraft, inv.Status)
	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, 2, inv.LineItems[1].Position)
	assert.Equal(t, "Commission booking b-1 (01.02.2024)", inv.LineItems[0].Description)
	assert.Equal(t, "Achsvermessung (01.02.2024)", inv.LineItems[1].Description)
}

// rejectingLedger fails invoice postings for one payee and delegates the rest.
type rejectingLedger struct {
	service.LedgerService
	payeeName string
}

func (l rejectingLedger) PostInvoice(ctx context.Context, invoice *model.Invoice, payeeName string) (*model.AccountingEntry, error) {
	if payeeName == l.payeeName {
		return nil, errors.New("ledger unavailable")
	}
	return l.LedgerService.PostInvoice(ctx, invoice, payeeName)
}

func TestBatchIsolatesFailingPayee(t *testing.T) {
	h := newHarnessWithLedger(t, nil, func(l service.LedgerService) service.LedgerService {
		return rejectingLedger{LedgerService: l, payeeName: "Autohaus Adler"}
	})
	broken := h.payee(t, "Autohaus Adler", "", "")
	healthy := h.payee(t, "Reifen Berger", "", "")
	h.record(t, broken, "b-a1", "10", "2024-03-04")
	h.record(t, broken, "b-a2", "15", "2024-03-20")
	h.record(t, healthy, "b-b1", "20", "2024-03-11")

	summary := h.runMonth(t, "2024-03")
	assert.Equal(t, 2, summary.TotalPayees)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, broken.ID.String(), summary.Failed[0].PayeeID)
	assert.Equal(t, "Autohaus Adler", summary.Failed[0].PayeeName)
	assert.Contains(t, summary.Failed[0].Error, "ledger unavailable")

	require.Len(t, summary.Invoices, 1)
	assert.Equal(t, healthy.ID.String(), summary.Invoices[0].PayeeID)
	assert.Equal(t, invoiceNumber(1), summary.Invoices[0].InvoiceNumber, "the rolled back number is reused")
	assert.Equal(t, int64(1), h.entryCount(t))

	var invoices int64
	require.NoError(t, h.db.Model(&model.Invoice{}).Where("payee_id = ?", broken.ID).Count(&invoices).Error)
	assert.Zero(t, invoices)

	var statuses []string
	require.NoError(t, h.db.Model(&model.Commission{}).Where("payee_id = ?", broken.ID).Pluck("status", &statuses).Error)
	assert.Equal(t, []string{model.CommissionPending, model.CommissionPending}, statuses)
}
