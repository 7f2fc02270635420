package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config sets the constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

type LedgerMetrics struct {
	batchRuns          *prometheus.CounterVec
	batchPayees        *prometheus.CounterVec
	batchDuration      prometheus.Histogram
	ledgerEntries      *prometheus.CounterVec
	paymentInitiations *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	outboxPublished    *prometheus.CounterVec
	outboxBacklog      prometheus.Gauge
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = newLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

// NewForTest registers a fresh set of collectors on reg.
func NewForTest(reg prometheus.Registerer) *LedgerMetrics {
	return newLedgerMetrics(reg, Config{ServiceName: "test", Environment: "test"})
}

func newLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "commissionledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &LedgerMetrics{
		batchRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "commission_invoice_batch_runs_total",
				Help:        "Monthly invoice batch executions.",
				ConstLabels: constLabels,
			},
			[]string{"trigger", "result"}, // ok | partial | locked | error
		),
		batchPayees: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "commission_invoice_batch_payees_total",
				Help:        "Payees processed by the invoice batch.",
				ConstLabels: constLabels,
			},
			[]string{"result"}, // invoiced | skipped | failed
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "commission_invoice_batch_duration_seconds",
				Help:        "Wall time of one invoice batch.",
				Buckets:     []float64{1, 5, 15, 60, 300, 900, 1800},
				ConstLabels: constLabels,
			},
		),
		ledgerEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "commission_ledger_entries_total",
				Help:        "Accounting entries posted.",
				ConstLabels: constLabels,
			},
			[]string{"source"},
		),
		paymentInitiations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "commission_payment_initiations_total",
				Help:        "Direct-debit initiation attempts.",
				ConstLabels: constLabels,
			},
			[]string{"result"}, // created | skipped | failed
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "commission_webhook_events_total",
				Help:        "Payment provider webhook events handled.",
				ConstLabels: constLabels,
			},
			[]string{"resource", "result"}, // processed | duplicate | ignored | failed
		),
		outboxPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "commission_outbox_publish_total",
				Help:        "Outbox relay publish attempts.",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		outboxBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "commission_outbox_backlog",
				Help:        "Unpublished outbox events seen by the last relay pass.",
				ConstLabels: constLabels,
			},
		),
	}

	registerer.MustRegister(
		m.batchRuns,
		m.batchPayees,
		m.batchDuration,
		m.ledgerEntries,
		m.paymentInitiations,
		m.webhookEvents,
		m.outboxPublished,
		m.outboxBacklog,
	)
	return m
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *LedgerMetrics) ObserveBatch(trigger, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.batchRuns.WithLabelValues(trigger, result).Inc()
	m.batchDuration.Observe(took.Seconds())
}

func (m *LedgerMetrics) IncBatchPayee(result string) {
	if m == nil {
		return
	}
	m.batchPayees.WithLabelValues(result).Inc()
}

func (m *LedgerMetrics) IncLedgerEntry(source string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(source).Inc()
}

func (m *LedgerMetrics) IncPaymentInitiation(result string) {
	if m == nil {
		return
	}
	m.paymentInitiations.WithLabelValues(result).Inc()
}

func (m *LedgerMetrics) IncWebhookEvent(resource, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(resource, result).Inc()
}

func (m *LedgerMetrics) IncOutboxPublish(result string) {
	if m == nil {
		return
	}
	m.outboxPublished.WithLabelValues(result).Inc()
}

func (m *LedgerMetrics) SetOutboxBacklog(n int) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(float64(n))
}
