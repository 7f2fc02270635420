package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"commissionledger/internal/model"
	"commissionledger/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func today() (time.Time, time.Time) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func TestTrialBalanceStaysBalanced(t *testing.T) {
	h := newHarness(t, &fakeProvider{})
	ctx := context.Background()
	_, invoiceIDs := collectTwoInvoices(t, h)
	h.deliver(t, paymentEvent("EV1", model.PaymentConfirmed, "PM001"))
	_, err := h.invoices.Storno(ctx, invoiceIDs[1], "duplicate", "admin")
	require.NoError(t, err)

	from, until := today()
	tb, err := h.ledger.TrialBalance(ctx, from, until)
	require.NoError(t, err)
	assert.True(t, tb.Balanced)
	assert.Equal(t, 4, tb.EntryCount)
	assert.True(t, tb.TotalDebit.Equal(tb.TotalCredit))

	balances := map[string]string{}
	for _, a := range tb.Accounts {
		balances[a.Account] = a.Balance.StringFixed(2)
	}
	assert.Equal(t, map[string]string{
		"1200": "101.40",
		"1400": "-71.40",
		"8400": "-30.00",
	}, balances)
	assert.Equal(t, "1200", tb.Accounts[0].Account)

	_, err = h.ledger.TrialBalance(ctx, until, from)
	require.ErrorIs(t, err, service.ErrInvalidPeriod)
}

func TestExportDATEV(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "", "")
	h.record(t, p, "b-1", "60", "2024-03-04")
	summary := h.runMonth(t, "2024-03")
	_, err := h.invoices.Storno(ctx, summary.Invoices[0].InvoiceID, "duplicate", "admin")
	require.NoError(t, err)

	from, until := today()
	out, rows, err := h.ledger.ExportDATEV(ctx, from, until)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	lines := strings.Split(strings.TrimPrefix(string(out), "\ufeff"), "\r\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], `"1001";"1";`))

	issuance := strings.Split(lines[3], ";")
	assert.Equal(t, `"71.40"`, issuance[0])
	assert.Equal(t, `"1400"`, issuance[6])
	assert.Equal(t, `"8400"`, issuance[7])
	assert.Contains(t, issuance[13], "Commission invoice "+summary.Invoices[0].InvoiceNumber)

	storno := strings.Split(lines[4], ";")
	assert.Equal(t, `"71.40"`, storno[0])
	assert.Equal(t, `"8400"`, storno[6])
	assert.Equal(t, `"1400"`, storno[7])
	assert.True(t, strings.HasPrefix(storno[13], `"STORNO: `))

	_, rows, err = h.ledger.ExportDATEV(ctx, from.AddDate(-1, 0, 0), from.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestPostStornoGuards(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	original, err := h.ledger.PostPaymentReceived(ctx, service.PaymentReceipt{
		PaymentID:      "PM777",
		Amount:         decimal.RequireFromString("11.90"),
		InvoiceNumbers: []string{"INV-2024-00001"},
	})
	require.NoError(t, err)
	assert.Equal(t, service.FormatDocumentNumber("BEL", original.BookingDate.Year(), 1), original.EntryNumber)

	_, err = h.ledger.PostStorno(ctx, original, "", "admin")
	require.ErrorIs(t, err, service.ErrReasonRequired)

	storno, err := h.ledger.PostStorno(ctx, original, "bounced", "admin")
	require.NoError(t, err)
	assert.Equal(t, service.FormatDocumentNumber("BEL", storno.BookingDate.Year(), 2), storno.EntryNumber)

	_, err = h.ledger.PostStorno(ctx, original, "bounced again", "admin")
	require.ErrorIs(t, err, service.ErrEntryAlreadyReversed)

	_, err = h.ledger.PostStorno(ctx, storno, "undo the undo", "admin")
	require.ErrorIs(t, err, service.ErrEntryAlreadyReversed)

	_, err = h.ledger.PostPaymentReceived(ctx, service.PaymentReceipt{PaymentID: "PM0", Amount: decimal.Zero})
	require.ErrorIs(t, err, service.ErrInvalidAmount)
	assert.Equal(t, int64(2), h.entryCount(t))
}

func TestEntryNumbersAreContiguous(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := h.ledger.PostPaymentReceived(ctx, service.PaymentReceipt{PaymentID: "PM", Amount: decimal.NewFromInt(1)})
		require.NoError(t, err)
	}

	entries, total, err := h.ledger.ListEntries(ctx, service.EntryListFilter{Account: "1200", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	numbers := make([]string, 0, len(entries))
	for _, e := range entries {
		numbers = append(numbers, e.EntryNumber)
	}
	year := time.Now().UTC().Year()
	assert.ElementsMatch(t, []string{
		service.FormatDocumentNumber("BEL", year, 1),
		service.FormatDocumentNumber("BEL", year, 2),
		service.FormatDocumentNumber("BEL", year, 3),
	}, numbers)
}
