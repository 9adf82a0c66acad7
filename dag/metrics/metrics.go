// Package metrics provides Prometheus instrumentation for scheduler
// runs.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchedulerMetrics exposes Prometheus metrics for scheduler runs,
// namespaced "dagflow":
//
//   - active_workers (gauge): worker-pool slots currently executing an
//     Operation. Labels: run_id.
//   - queue_depth (gauge): nodes that have passed their fan-in barrier
//     and are waiting for a worker-pool slot. Labels: run_id.
//   - fanin_wait_ms (histogram): time a node spent blocked on its
//     fan-in barrier before Operation started. Labels: run_id, node_id.
//   - node_outcomes_total (counter): terminal node outcomes. Labels:
//     run_id, phase, class (succeeded, failed, skipped_failed,
//     skipped_cancelled).
//   - cancellations_total (counter): Cancel calls observed. Labels:
//     run_id.
type SchedulerMetrics struct {
	activeWorkers *prometheus.GaugeVec
	queueDepth    *prometheus.GaugeVec
	fanInWait     *prometheus.HistogramVec
	nodeOutcomes  *prometheus.CounterVec
	cancellations *prometheus.CounterVec

	mu      sync.RWMutex
	enabled bool
}

// NewSchedulerMetrics registers all scheduler metrics with registry. A
// nil registry uses prometheus.DefaultRegisterer.
func NewSchedulerMetrics(registry prometheus.Registerer) *SchedulerMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &SchedulerMetrics{
		enabled: true,

		activeWorkers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "active_workers",
			Help:      "Worker pool slots currently executing a node operation",
		}, []string{"run_id"}),

		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dagflow",
			Name:      "queue_depth",
			Help:      "Nodes past their fan-in barrier waiting for a worker pool slot",
		}, []string{"run_id"}),

		fanInWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dagflow",
			Name:      "fanin_wait_ms",
			Help:      "Time a node waited at its fan-in barrier before its operation started",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"run_id", "node_id"}),

		nodeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "node_outcomes_total",
			Help:      "Terminal node outcomes by class",
		}, []string{"run_id", "phase", "class"}),

		cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dagflow",
			Name:      "cancellations_total",
			Help:      "Cancel calls observed per run",
		}, []string{"run_id"}),
	}
}

// RecordFanInWait records how long a node waited at its fan-in barrier.
func (m *SchedulerMetrics) RecordFanInWait(runID, nodeID string, wait time.Duration) {
	if !m.isEnabled() {
		return
	}
	m.fanInWait.WithLabelValues(runID, nodeID).Observe(float64(wait.Milliseconds()))
}

// IncWorkers increments the active-workers gauge for runID.
func (m *SchedulerMetrics) IncWorkers(runID string) {
	if !m.isEnabled() {
		return
	}
	m.activeWorkers.WithLabelValues(runID).Inc()
}

// DecWorkers decrements the active-workers gauge for runID.
func (m *SchedulerMetrics) DecWorkers(runID string) {
	if !m.isEnabled() {
		return
	}
	m.activeWorkers.WithLabelValues(runID).Dec()
}

// IncQueued increments the queue-depth gauge for runID: a node has
// passed its fan-in barrier and is waiting for a worker pool slot.
func (m *SchedulerMetrics) IncQueued(runID string) {
	if !m.isEnabled() {
		return
	}
	m.queueDepth.WithLabelValues(runID).Inc()
}

// DecQueued decrements the queue-depth gauge for runID: the node either
// acquired a worker pool slot or was cancelled while waiting.
func (m *SchedulerMetrics) DecQueued(runID string) {
	if !m.isEnabled() {
		return
	}
	m.queueDepth.WithLabelValues(runID).Dec()
}

// RecordOutcome increments the node_outcomes_total counter for class
// ("succeeded", "failed", "skipped_failed", "skipped_cancelled").
func (m *SchedulerMetrics) RecordOutcome(runID, phase, class string) {
	if !m.isEnabled() {
		return
	}
	m.nodeOutcomes.WithLabelValues(runID, phase, class).Inc()
}

// RecordCancellation increments the cancellations_total counter.
func (m *SchedulerMetrics) RecordCancellation(runID string) {
	if !m.isEnabled() {
		return
	}
	m.cancellations.WithLabelValues(runID).Inc()
}

// Disable stops metric recording without unregistering collectors.
// Useful in tests that share a process-wide registry.
func (m *SchedulerMetrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// Enable re-enables metric recording after Disable.
func (m *SchedulerMetrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

func (m *SchedulerMetrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}
