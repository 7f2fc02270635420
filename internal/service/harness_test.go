package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"commissionledger/internal/database/dbtest"
	"commissionledger/internal/gocardless"
	"commissionledger/internal/logger"
	"commissionledger/internal/metrics"
	"commissionledger/internal/model"
	"commissionledger/internal/repository"
	"commissionledger/internal/service"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_test"

type fakeProvider struct {
	mu    sync.Mutex
	err   error
	calls []gocardless.CreatePaymentRequest
}

func (f *fakeProvider) CreatePayment(ctx context.Context, req gocardless.CreatePaymentRequest) (*gocardless.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gocardless.Payment{
		ID:       fmt.Sprintf("PM%03d", len(f.calls)),
		Status:   "pending_submission",
		Amount:   req.AmountCents,
		Currency: req.Currency,
	}, nil
}

func (f *fakeProvider) Calls() []gocardless.CreatePaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gocardless.CreatePaymentRequest(nil), f.calls...)
}

// harness wires every service against a fresh SQLite database.
type harness struct {
	db       *gorm.DB
	settings service.Settings

	payeeRepo   repository.PayeeRepository
	invoiceRepo repository.InvoiceRepository
	ledgerRepo  repository.LedgerRepository
	jobRepo     repository.JobRepository
	webhookRepo repository.WebhookEventRepository

	commissions service.CommissionService
	ledger      service.LedgerService
	payments    service.PaymentService
	payees      service.PayeeService
	invoices    service.InvoiceService
	generator   service.InvoiceGenerator
	webhooks    service.WebhookService
	audit       service.AuditService
}

// newHarness passes provider through untouched; pass a nil interface for "no provider".
func newHarness(t *testing.T, provider service.PaymentProvider) *harness {
	t.Helper()
	return newHarnessWithLedger(t, provider, nil)
}

// newHarnessWithLedger lets the batch see the ledger through wrap.
func newHarnessWithLedger(t *testing.T, provider service.PaymentProvider, wrap func(service.LedgerService) service.LedgerService) *harness {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	settings := service.DefaultSettings()
	m := metrics.NewForTest(prometheus.NewRegistry())
	log := logger.Nop()

	txm := repository.NewTransactionManager(db)
	payeeRepo := repository.NewPayeeRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	outboxRepo := repository.NewOutboxRepository(db, node)
	jobRepo := repository.NewJobRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)
	auditSvc := service.NewAuditService(repository.NewAuditRepository(db))
	sequencer := service.NewSequencer(repository.NewSequenceRepository(db), txm)

	commissions := service.NewCommissionService(commissionRepo, payeeRepo, txm, settings)
	ledger := service.NewLedgerService(ledgerRepo, sequencer, txm, settings, m, log)
	payments := service.NewPaymentService(provider, invoiceRepo, payeeRepo, outboxRepo, auditSvc, txm, settings, m, log)
	batchLedger := ledger
	if wrap != nil {
		batchLedger = wrap(ledger)
	}

	return &harness{
		db:          db,
		settings:    settings,
		payeeRepo:   payeeRepo,
		invoiceRepo: invoiceRepo,
		ledgerRepo:  ledgerRepo,
		jobRepo:     jobRepo,
		webhookRepo: webhookRepo,
		commissions: commissions,
		ledger:      ledger,
		payments:    payments,
		payees:      service.NewPayeeService(payeeRepo, outboxRepo, auditSvc, txm),
		invoices:    service.NewInvoiceService(invoiceRepo, ledgerRepo, outboxRepo, ledger, auditSvc, txm),
		audit:       auditSvc,
		generator: service.NewInvoiceGenerator(service.InvoiceGeneratorDeps{
			Commissions:    commissions,
			Ledger:         batchLedger,
			Payments:       payments,
			Audit:          auditSvc,
			Sequencer:      sequencer,
			PayeeRepo:      payeeRepo,
			InvoiceRepo:    invoiceRepo,
			OutboxRepo:     outboxRepo,
			JobRepo:        jobRepo,
			CommissionRepo: commissionRepo,
			TxManager:      txm,
			Settings:       settings,
			Metrics:        m,
			Log:            log,
		}),
		webhooks: service.NewWebhookService(service.WebhookServiceDeps{
			Secret:         webhookSecret,
			WebhookRepo:    webhookRepo,
			PayeeRepo:      payeeRepo,
			InvoiceRepo:    invoiceRepo,
			CommissionRepo: commissionRepo,
			OutboxRepo:     outboxRepo,
			Commissions:    commissions,
			Ledger:         ledger,
			TxManager:      txm,
			Metrics:        m,
			Log:            log,
		}),
	}
}

func (h *harness) payee(t *testing.T, name, mandateID, mandateStatus string) *model.Payee {
	t.Helper()
	p := &model.Payee{
		Name:          name,
		Email:         "billing@example.com",
		MandateID:     mandateID,
		MandateStatus: mandateStatus,
		IsActive:      true,
	}
	require.NoError(t, h.payeeRepo.Create(context.Background(), p))
	return p
}

// record books a commission at a 10% rate so the order total is ten times the commission.
func (h *harness) record(t *testing.T, payee *model.Payee, booking, commission, serviceDate string) service.CommissionResponse {
	t.Helper()
	res, err := h.commissions.RecordCommission(context.Background(), service.RecordCommissionRequest{
		BookingID:      booking,
		PayeeID:        payee.ID.String(),
		OrderTotal:     decimal.RequireFromString(commission).Mul(decimal.NewFromInt(10)).String(),
		CommissionRate: "0.1",
		ServiceDate:    serviceDate,
		ServiceType:    "Reifenwechsel",
	})
	require.NoError(t, err)
	return res
}

func (h *harness) runMonth(t *testing.T, label string) service.BatchSummary {
	t.Helper()
	period, err := service.ParsePeriod(label)
	require.NoError(t, err)
	summary, err := h.generator.RunForPeriod(context.Background(), period, model.TriggerCLI, "")
	require.NoError(t, err)
	return summary
}

func (h *harness) outbox(t *testing.T, eventType string) []model.OutboxEvent {
	t.Helper()
	var rows []model.OutboxEvent
	require.NoError(t, h.db.Where("event_type = ?", eventType).Order("id ASC").Find(&rows).Error)
	return rows
}

func (h *harness) entryCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&model.AccountingEntry{}).Count(&n).Error)
	return n
}

func (h *harness) commissionStatuses(t *testing.T, invoiceID string) []string {
	t.Helper()
	var statuses []string
	require.NoError(t, h.db.Model(&model.Commission{}).
		Where("invoice_id = ?", invoiceID).
		Order("service_date ASC").
		Pluck("status", &statuses).Error)
	return statuses
}

type webhookEvent struct {
	ID           string            `json:"id"`
	CreatedAt    string            `json:"created_at"`
	ResourceType string            `json:"resource_type"`
	Action       string            `json:"action"`
	Links        map[string]string `json:"links"`
	Details      map[string]string `json:"details,omitempty"`
}

func paymentEvent(id, action, paymentID string) webhookEvent {
	return webhookEvent{
		ID:           id,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		ResourceType: gocardless.ResourcePayments,
		Action:       action,
		Links:        map[string]string{"payment": paymentID},
		Details:      map[string]string{"cause": "payment_" + action},
	}
}

func mandateEvent(id, action, mandateID string) webhookEvent {
	return webhookEvent{
		ID:           id,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		ResourceType: gocardless.ResourceMandates,
		Action:       action,
		Links:        map[string]string{"mandate": mandateID},
	}
}

// deliver signs the envelope the way the provider does and hands it to the webhook service.
func (h *harness) deliver(t *testing.T, events ...webhookEvent) service.WebhookResult {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{"events": events})
	require.NoError(t, err)
	return h.deliverRaw(t, body)
}

func (h *harness) deliverRaw(t *testing.T, body []byte) service.WebhookResult {
	t.Helper()
	res, err := h.webhooks.HandleDelivery(context.Background(), body, gocardless.Sign(body, webhookSecret))
	require.NoError(t, err)
	return res
}
