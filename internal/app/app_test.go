package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"commissionledger/internal/app"
	"commissionledger/internal/config"
	"commissionledger/internal/database/dbtest"
	"commissionledger/internal/events"
	"commissionledger/internal/gocardless"
	"commissionledger/internal/metrics"
	"commissionledger/internal/middleware"
	"commissionledger/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jwtSecret     = "test-jwt-secret"
	cronSecret    = "cron-secret"
	webhookSecret = "whsec_test"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type fakeProvider struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeProvider) CreatePayment(_ context.Context, req gocardless.CreatePaymentRequest) (*gocardless.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &gocardless.Payment{ID: "PM001", Status: "pending_submission", Amount: req.AmountCents, Currency: req.Currency}, nil
}

type recordingTransport struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (r *recordingTransport) Publish(_ context.Context, msg events.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingTransport) Close() error { return nil }

func (r *recordingTransport) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                "test",
		Port:                  "0",
		CORSOrigins:           []string{"http://localhost:5173"},
		JWTSecret:             jwtSecret,
		CronSecret:            cronSecret,
		WebhookSecret:         webhookSecret,
		PaymentTimeout:        5 * time.Second,
		VATRate:               decimal.RequireFromString("0.19"),
		DefaultCommissionRate: decimal.RequireFromString("0.049"),
		Currency:              "EUR",
		InvoicePrefix:         "INV",
		EntryPrefix:           "BEL",
		AccountBank:           "1200",
		AccountReceivables:    "1400",
		AccountRevenue:        "8400",
		PaymentDueDays:        14,
		DATEVConsultantNumber: "1001",
		DATEVClientNumber:     "1",
		BatchWorkers:          1,
		BatchLockTTL:          time.Minute,
		OutboxTransport:       "log",
		OutboxPollInterval:    time.Second,
		NodeID:                1,
	}
}

type server struct {
	t         *testing.T
	router    *gin.Engine
	app       *app.App
	transport *recordingTransport
}

func newServer(t *testing.T, opts app.Options) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetJWTSecret(jwtSecret)

	transport := &recordingTransport{}
	opts.Transport = transport
	opts.Metrics = metrics.NewForTest(prometheus.NewRegistry())

	a, err := app.New(testConfig(), dbtest.Open(t), opts)
	require.NoError(t, err)
	return &server{t: t, router: a.Router(), app: a, transport: transport}
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "user-" + role,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return signed
}

func (s *server) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func (s *server) webhook(events ...map[string]interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	body, err := json.Marshal(map[string]interface{}{"events": events})
	require.NoError(s.t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(gocardless.SignatureHeader, gocardless.Sign(body, webhookSecret))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// seedMarch creates a payee with an active mandate and three March commissions worth 60.00 net.
func seedMarch(t *testing.T, s *server) string {
	t.Helper()
	admin := token(t, middleware.RoleAdmin)

	rec := s.do(http.MethodPost, "/api/payees", admin, map[string]string{"name": "Reifen Müller", "email": "billing@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var payee struct {
		ID string `json:"id"`
	}
	decode(t, rec, &payee)

	rec = s.do(http.MethodPut, "/api/payees/"+payee.ID+"/mandate", admin, map[string]string{"mandate_id": "MD001", "mandate_status": model.MandateActive})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	platform := token(t, middleware.RoleService)
	for i, c := range []struct{ booking, total, date string }{
		{"b-1", "100", "2024-03-04"},
		{"b-2", "200", "2024-03-15"},
		{"b-3", "300", "2024-03-31"},
	} {
		rec = s.do(http.MethodPost, "/api/commissions", platform, map[string]string{
			"booking_id":      c.booking,
			"payee_id":        payee.ID,
			"order_total":     c.total,
			"commission_rate": "0.1",
			"service_date":    c.date,
		})
		require.Equal(t, http.StatusCreated, rec.Code, "commission %d: %s", i, rec.Body.String())
	}
	return payee.ID
}

func TestMonthlyBatchThroughHTTP(t *testing.T) {
	provider := &fakeProvider{}
	s := newServer(t, app.Options{Provider: provider})
	seedMarch(t, s)

	rec := s.do(http.MethodPost, "/commission-invoices/run?period=2024-03", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/commission-invoices/run?period=2024-03", cronSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var summary struct {
		Period      string `json:"period"`
		TotalPayees int    `json:"totalPayees"`
		Succeeded   int    `json:"succeeded"`
		Failed      []any  `json:"failed"`
		Invoices    []struct {
			InvoiceID     string `json:"invoiceId"`
			InvoiceNumber string `json:"invoiceNumber"`
			TotalAmount   string `json:"totalAmount"`
		} `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary), "summary is the response body")
	assert.Equal(t, "2024-03", summary.Period)
	assert.Equal(t, 1, summary.TotalPayees)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	require.Len(t, summary.Invoices, 1)
	assert.Equal(t, "71.40", summary.Invoices[0].TotalAmount)
	assert.Equal(t, 1, provider.calls)

	// A manual re-run finds nothing left to bill.
	rec = s.do(http.MethodGet, "/commission-invoices/run?period=2024-03&secret="+cronSecret, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Empty(t, summary.Invoices)

	accountant := token(t, middleware.RoleAccountant)
	rec = s.do(http.MethodGet, "/api/batch-runs", accountant, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var runs []struct {
		Period     string  `json:"period"`
		Trigger    string  `json:"trigger"`
		Succeeded  int     `json:"succeeded"`
		FinishedAt *string `json:"finished_at"`
	}
	decode(t, rec, &runs)
	require.Len(t, runs, 2)
	triggers := []string{runs[0].Trigger, runs[1].Trigger}
	assert.ElementsMatch(t, []string{model.TriggerSchedule, model.TriggerManual}, triggers)
	for _, r := range runs {
		assert.Equal(t, "2024-03", r.Period)
		assert.NotNil(t, r.FinishedAt)
	}

	rec = s.do(http.MethodGet, "/api/invoices?period=2024-03", accountant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []struct {
			InvoiceNumber     string `json:"invoice_number"`
			Status            string `json:"status"`
			ProviderPaymentID string `json:"provider_payment_id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decode(t, rec, &page)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, model.InvoiceSent, page.Items[0].Status)
	assert.Equal(t, "PM001", page.Items[0].ProviderPaymentID)

	rec = s.webhook(map[string]interface{}{
		"id":            "EV001",
		"resource_type": gocardless.ResourcePayments,
		"action":        model.PaymentConfirmed,
		"links":         map[string]string{"payment": "PM001"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/invoices/"+summary0(t, s, accountant)+"/entries", accountant, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []struct {
		SourceType string `json:"source_type"`
		Amount     string `json:"amount"`
	}
	decode(t, rec, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, model.SourceInvoice, entries[0].SourceType)
	assert.Equal(t, model.SourcePayment, entries[1].SourceType)
	assert.Equal(t, "71.40", entries[1].Amount)

	published, err := s.app.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Positive(t, published)
	assert.Contains(t, s.transport.types(), model.EventInvoiceIssued)
	assert.Contains(t, s.transport.types(), model.EventPaymentCollected)
}

// summary0 returns the id of the only invoice.
func summary0(t *testing.T, s *server, bearer string) string {
	t.Helper()
	rec := s.do(http.MethodGet, "/api/invoices", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	return page.Items[0].ID
}

func TestStornoAndLedgerReportsThroughHTTP(t *testing.T) {
	s := newServer(t, app.Options{})
	seedMarch(t, s)
	rec := s.do(http.MethodPost, "/commission-invoices/run?period=2024-03", cronSecret, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	admin := token(t, middleware.RoleAdmin)
	id := summary0(t, s, admin)

	rec = s.do(http.MethodPost, "/api/invoices/"+id+"/storno", admin, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/invoices/"+id+"/storno", admin, map[string]string{"reason": "Duplicate booking"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var storno struct {
		Invoice struct {
			Status string `json:"status"`
		} `json:"invoice"`
		Entry struct {
			DebitAccount  string `json:"debit_account"`
			CreditAccount string `json:"credit_account"`
			Amount        string `json:"amount"`
		} `json:"entry"`
	}
	decode(t, rec, &storno)
	assert.Equal(t, model.InvoiceCancelled, storno.Invoice.Status)
	assert.Equal(t, "8400", storno.Entry.DebitAccount)
	assert.Equal(t, "1400", storno.Entry.CreditAccount)
	assert.Equal(t, "71.40", storno.Entry.Amount)

	rec = s.do(http.MethodPost, "/api/invoices/"+id+"/storno", admin, map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, "/api/invoices/00000000-0000-0000-0000-000000000000", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	to := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	rec = s.do(http.MethodGet, "/api/ledger/trial-balance?from=2000-01-01&to="+to, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var balance struct {
		Balanced   bool `json:"balanced"`
		EntryCount int  `json:"entry_count"`
	}
	decode(t, rec, &balance)
	assert.True(t, balance.Balanced)
	assert.Equal(t, 2, balance.EntryCount)

	rec = s.do(http.MethodGet, "/api/ledger/export/datev?from=2000-01-01&to="+to, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "EXTF_Buchungsstapel_20000101_")
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "\ufeff\"EXTF\""))
	assert.Len(t, strings.Split(body, "\r\n"), 5)

	rec = s.do(http.MethodGet, "/api/ledger/export/datev", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/audit-logs?entity_id="+id, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Total int64 `json:"total"`
	}
	decode(t, rec, &logs)
	assert.Equal(t, int64(1), logs.Total)
}

func TestRoutesEnforceRoles(t *testing.T) {
	s := newServer(t, app.Options{})

	rec := s.do(http.MethodGet, "/api/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/invoices", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/api/invoices", token(t, middleware.RoleService), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/ledger/entries", token(t, middleware.RoleAccountant), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/batch-runs", token(t, middleware.RoleService), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := newServer(t, app.Options{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{"events":[]}`))
	req.Header.Set(gocardless.SignatureHeader, "deadbeef")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := []byte(`{"events":`)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(gocardless.SignatureHeader, gocardless.Sign(body, webhookSecret))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommissionValidationErrors(t *testing.T) {
	s := newServer(t, app.Options{})
	payeeID := seedMarch(t, s)
	platform := token(t, middleware.RoleService)

	rec := s.do(http.MethodPost, "/api/commissions", platform, map[string]string{
		"booking_id":   "b-1",
		"payee_id":     payeeID,
		"order_total":  "100",
		"service_date": "2024-03-04",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/commissions", platform, map[string]string{
		"booking_id":   "b-9",
		"payee_id":     payeeID,
		"order_total":  "-5",
		"service_date": "2024-03-04",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/commissions?year=abc", token(t, middleware.RoleAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
