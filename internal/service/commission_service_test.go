package service_test

import (
	"context"
	"testing"

	"commissionledger/internal/model"
	"commissionledger/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateCommission(t *testing.T) {
	tests := []struct {
		name       string
		orderTotal string
		rate       string
		net        string
		vat        string
		gross      string
	}{
		{"platform default", "250.00", "0.049", "12.25", "2.33", "14.58"},
		{"ten percent", "100", "0.1", "10.00", "1.90", "11.90"},
		{"half cent rounds up", "10.10", "0.05", "0.51", "0.10", "0.61"},
	}
	vat := decimal.RequireFromString("0.19")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, v, gross := service.CalculateCommission(decimal.RequireFromString(tt.orderTotal), decimal.RequireFromString(tt.rate), vat)
			assert.Equal(t, tt.net, net.StringFixed(2))
			assert.Equal(t, tt.vat, v.StringFixed(2))
			assert.Equal(t, tt.gross, gross.StringFixed(2))
		})
	}
}

func TestRecordCommissionResolvesRate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	plain := h.payee(t, "Reifen Müller", "", "")
	custom := &model.Payee{Name: "Autohaus Weber", CommissionRate: decimal.NewNullDecimal(decimal.RequireFromString("0.08"))}
	require.NoError(t, h.payeeRepo.Create(ctx, custom))

	res, err := h.commissions.RecordCommission(ctx, service.RecordCommissionRequest{
		BookingID: "b-1", PayeeID: plain.ID.String(), OrderTotal: "250", ServiceDate: "2024-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.049", res.CommissionRate)
	assert.Equal(t, "12.25", res.CommissionAmount)
	assert.Equal(t, res.CommissionAmount, res.NetAmount)
	assert.Equal(t, "14.58", res.GrossAmount)
	assert.Equal(t, 2024, res.BillingYear)
	assert.Equal(t, 3, res.BillingMonth)
	assert.Equal(t, model.CommissionPending, res.Status)
	assert.Nil(t, res.InvoiceID)

	res, err = h.commissions.RecordCommission(ctx, service.RecordCommissionRequest{
		BookingID: "b-2", PayeeID: custom.ID.String(), OrderTotal: "100", ServiceDate: "2024-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "0.08", res.CommissionRate)
	assert.Equal(t, "8.00", res.NetAmount)

	res, err = h.commissions.RecordCommission(ctx, service.RecordCommissionRequest{
		BookingID: "b-3", PayeeID: custom.ID.String(), OrderTotal: "100", CommissionRate: "0.12", ServiceDate: "2024-03-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "12.00", res.NetAmount, "an explicit rate wins over the payee override")
}

func TestRecordCommissionRejectsDuplicateBooking(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "", "")
	h.record(t, p, "booking-42", "10", "2024-03-10")

	_, err := h.commissions.RecordCommission(ctx, service.RecordCommissionRequest{
		BookingID: "booking-42", PayeeID: p.ID.String(), OrderTotal: "500", ServiceDate: "2024-03-11",
	})
	require.ErrorIs(t, err, service.ErrCommissionAlreadyRecorded)
	assert.True(t, service.IsConflict(err))

	list, total, err := h.commissions.ListCommissions(ctx, service.CommissionListFilter{PayeeID: p.ID.String(), Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "100.00", list[0].OrderTotal)
}

func TestRecordCommissionValidation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "", "")
	valid := service.RecordCommissionRequest{BookingID: "b-1", PayeeID: p.ID.String(), OrderTotal: "100", ServiceDate: "2024-03-10"}

	tests := []struct {
		name   string
		mutate func(r *service.RecordCommissionRequest)
		want   error
	}{
		{"missing booking", func(r *service.RecordCommissionRequest) { r.BookingID = " " }, service.ErrInvalidInput},
		{"bad payee id", func(r *service.RecordCommissionRequest) { r.PayeeID = "p-1" }, service.ErrInvalidID},
		{"unknown payee", func(r *service.RecordCommissionRequest) { r.PayeeID = uuid.NewString() }, service.ErrNotFound},
		{"negative total", func(r *service.RecordCommissionRequest) { r.OrderTotal = "-5" }, service.ErrInvalidAmount},
		{"zero total", func(r *service.RecordCommissionRequest) { r.OrderTotal = "0" }, service.ErrInvalidAmount},
		{"bad date", func(r *service.RecordCommissionRequest) { r.ServiceDate = "10.03.2024" }, service.ErrInvalidInput},
		{"rate of one", func(r *service.RecordCommissionRequest) { r.CommissionRate = "1" }, service.ErrInvalidRate},
		{"rate not a number", func(r *service.RecordCommissionRequest) { r.CommissionRate = "4.9%" }, service.ErrInvalidRate},
		{"rate finer than the stored scale", func(r *service.RecordCommissionRequest) { r.CommissionRate = "0.04925" }, service.ErrInvalidRate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			_, err := h.commissions.RecordCommission(ctx, req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, total, err := h.commissions.ListCommissions(ctx, service.CommissionListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestMarkBilledIsAllOrNothing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	p := h.payee(t, "Reifen Müller", "", "")
	first := h.record(t, p, "b-1", "10", "2024-03-10")
	second := h.record(t, p, "b-2", "20", "2024-03-11")
	ids := []uuid.UUID{uuid.MustParse(first.ID), uuid.MustParse(second.ID)}
	invoiceID := uuid.New()

	require.NoError(t, h.commissions.MarkBilled(ctx, ids[:1], invoiceID))

	err := h.commissions.MarkBilled(ctx, ids, uuid.New())
	require.ErrorIs(t, err, service.ErrCommissionStateConflict)

	list, _, err := h.commissions.ListCommissions(ctx, service.CommissionListFilter{Status: model.CommissionPending, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1, "the second commission rolled back with the conflict")
	assert.Equal(t, second.ID, list[0].ID)

	err = h.commissions.MarkCollected(ctx, ids[1:])
	require.ErrorIs(t, err, service.ErrCommissionStateConflict, "PENDING cannot skip to COLLECTED")
	require.NoError(t, h.commissions.MarkCollected(ctx, ids[:1]))
	require.NoError(t, h.commissions.MarkCollected(ctx, nil))
}
