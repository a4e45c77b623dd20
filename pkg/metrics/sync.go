package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Order outcomes counted by SyncMetrics.
const (
	OutcomePosted    = "posted"
	OutcomeError     = "error"
	OutcomeDuplicate = "duplicate"
	OutcomeSkipped   = "skipped"
	OutcomeInvalid   = "invalid"
)

// SyncMetrics records purchase order submission outcomes per tenant.
type SyncMetrics struct {
	orders        *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	ledgerErrors  *prometheus.CounterVec
}

// NewSyncMetrics registers the sync collectors on reg. A nil registerer yields a no-op recorder.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posync_orders_total",
		Help: "Purchase orders processed, by outcome.",
	}, []string{"tenant", "outcome"})
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posync_batch_duration_seconds",
		Help:    "Duration of portal batch submissions in seconds.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"tenant", "result"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posync_batch_retries_total",
		Help: "Batches resubmitted after a duplicate-order conflict.",
	}, []string{"tenant"})
	ledgerErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "posync_ledger_write_failures_total",
		Help: "Control record writes that failed.",
	}, []string{"tenant"})
	reg.MustRegister(orders, batchDuration, retries, ledgerErrors)
	return &SyncMetrics{
		orders:        orders,
		batchDuration: batchDuration,
		retries:       retries,
		ledgerErrors:  ledgerErrors,
	}
}

// AddOrders adds n orders with the given outcome.
func (m *SyncMetrics) AddOrders(tenant, outcome string, n int) {
	if m == nil || m.orders == nil || n <= 0 {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(tenant), normalizeLabel(outcome)).Add(float64(n))
}

// ObserveBatch records one portal call; result is "ok", "duplicate" or the error code.
func (m *SyncMetrics) ObserveBatch(tenant, result string, duration time.Duration) {
	if m == nil || m.batchDuration == nil {
		return
	}
	m.batchDuration.WithLabelValues(normalizeLabel(tenant), normalizeLabel(result)).Observe(duration.Seconds())
}

func (m *SyncMetrics) IncRetry(tenant string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(tenant)).Inc()
}

func (m *SyncMetrics) IncLedgerFailure(tenant string) {
	if m == nil || m.ledgerErrors == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(normalizeLabel(tenant)).Inc()
}
