// Package metrics exposes Prometheus collectors for plan mutations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors updated by the engine.  A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Batches       *prometheus.CounterVec
	BatchOps      prometheus.Histogram
	Snapshots     prometheus.Counter
	AuditHandoffs *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seating_plan",
			Name:      "batches_total",
			Help:      "Plan mutation requests by outcome code and lifecycle stage.",
		}, []string{"outcome", "stage"}),
		BatchOps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "seating_plan",
			Name:      "batch_ops",
			Help:      "Number of operations per committed batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		Snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "seating_plan",
			Name:      "snapshots_total",
			Help:      "Pre-mutation snapshots written.",
		}),
		AuditHandoffs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "seating_plan",
			Name:      "audit_handoffs_total",
			Help:      "Audit batches handed to the out-of-band sink by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.Batches, m.BatchOps, m.Snapshots, m.AuditHandoffs)
	return m
}

// ObserveCommit records a committed batch of n operations.
func (m *Metrics) ObserveCommit(n int, snapshot bool) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues("committed", "committed").Inc()
	m.BatchOps.Observe(float64(n))
	if snapshot {
		m.Snapshots.Inc()
	}
}

// ObserveAbort records a request aborted with code at stage.
func (m *Metrics) ObserveAbort(code, stage string) {
	if m == nil {
		return
	}
	m.Batches.WithLabelValues(code, stage).Inc()
}

// ObserveHandoff records the final result of an audit hand-off.
func (m *Metrics) ObserveHandoff(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.AuditHandoffs.WithLabelValues(result).Inc()
}
