package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLedgerMetricsCount(t *testing.T) {
	m := NewForTest(prometheus.NewRegistry())

	m.IncLedgerEntry("INVOICE")
	m.IncLedgerEntry("INVOICE")
	m.IncLedgerEntry("STORNO")
	m.ObserveBatch("manual", "ok", 2*time.Second)
	m.SetOutboxBacklog(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ledgerEntries.WithLabelValues("INVOICE")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ledgerEntries.WithLabelValues("STORNO")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchRuns.WithLabelValues("manual", "ok")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.outboxBacklog))
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *LedgerMetrics
	assert.NotPanics(t, func() {
		m.IncLedgerEntry("INVOICE")
		m.IncWebhookEvent("payments", "processed")
		m.ObserveBatch("schedule", "ok", time.Second)
	})
}
