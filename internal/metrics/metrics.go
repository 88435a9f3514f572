package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wallet"

// Metrics groups the collectors exported by the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	pendingRequests prometheus.Gauge
	resolveOutcomes *prometheus.CounterVec
	resolveLatency  prometheus.Histogram
	droppedReplies  *prometheus.CounterVec
	walletOps       *prometheus.CounterVec
	reconciliations prometheus.Counter
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "pending_requests",
			Help:      "Identity requests awaiting a correlated response.",
		}),
		resolveOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolve_total",
			Help:      "Identity resolutions by outcome.",
		}, []string{"outcome"}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "resolve_duration_seconds",
			Help:      "Time from publish to completion of an identity resolution.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		droppedReplies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "dropped_responses_total",
			Help:      "Inbound responses discarded by the demultiplexer.",
		}, []string{"reason"}),
		walletOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Wallet engine operations by result.",
		}, []string{"operation", "result"}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "balance_reconciliations_total",
			Help:      "Corrective writes issued when a cached balance drifted from the log.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.pendingRequests, m.resolveOutcomes, m.resolveLatency, m.droppedReplies, m.walletOps, m.reconciliations)
	}
	return m
}

// SetPending records the size of the correlation table.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingRequests.Set(float64(n))
}

// ResolveOutcome counts a finished resolution and its latency.
func (m *Metrics) ResolveOutcome(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.resolveOutcomes.WithLabelValues(outcome).Inc()
	m.resolveLatency.Observe(took.Seconds())
}

// ResponseDropped counts an inbound message that completed nothing.
func (m *Metrics) ResponseDropped(reason string) {
	if m == nil {
		return
	}
	m.droppedReplies.WithLabelValues(reason).Inc()
}

// WalletOp counts an engine operation.
func (m *Metrics) WalletOp(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.walletOps.WithLabelValues(operation, result).Inc()
}

// BalanceReconciled counts a self-healing write.
func (m *Metrics) BalanceReconciled() {
	if m == nil {
		return
	}
	m.reconciliations.Inc()
}
