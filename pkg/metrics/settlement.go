package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement records outcomes of the money-moving operations.
// A nil *Settlement is valid and records nothing.
type Settlement struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
	moved      *prometheus.CounterVec
}

// NewSettlement registers the settlement metrics on the provided registerer.
func NewSettlement(reg prometheus.Registerer) *Settlement {
	if reg == nil {
		return &Settlement{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Atomic wallet operations by name and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_operation_duration_seconds",
		Help:    "Duration of atomic wallet operations including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_version_conflict_retries_total",
		Help: "Attempts retried after a wallet version conflict.",
	}, []string{"operation"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Authenticated and rejected gateway webhooks by outcome.",
	}, []string{"outcome"})
	moved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_amount_moved_total",
		Help: "Minor currency units moved by transaction type.",
	}, []string{"type"})
	reg.MustRegister(operations, duration, retries, webhooks, moved)
	return &Settlement{
		operations: operations,
		duration:   duration,
		retries:    retries,
		webhooks:   webhooks,
		moved:      moved,
	}
}

// ObserveOperation records the outcome and duration of one atomic operation.
func (m *Settlement) ObserveOperation(operation, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

// IncRetry counts one retried attempt.
func (m *Settlement) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncWebhook counts one webhook delivery by outcome.
func (m *Settlement) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// AddMoved adds the absolute amount moved for a transaction type.
func (m *Settlement) AddMoved(txType string, amount int64) {
	if m == nil || m.moved == nil {
		return
	}
	if amount < 0 {
		amount = -amount
	}
	m.moved.WithLabelValues(normalizeLabel(txType)).Add(float64(amount))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
