package queue

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the worker
type Metrics struct {
	runsConsumed *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	activeRuns   prometheus.Gauge
	queueWait    prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics instance with all worker metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		runsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_worker_runs_consumed_total",
				Help: "Total number of run requests consumed by outcome",
			},
			[]string{"outcome"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loom_worker_run_duration_seconds",
				Help:    "End-to-end run execution time in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
			},
			[]string{"outcome"},
		),

		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "loom_worker_active_runs",
				Help: "Number of runs currently executing",
			},
		),

		queueWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "loom_worker_queue_wait_seconds",
				Help:    "Time a run request spent waiting on the queue",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
		),

		registry: registry,
	}

	registry.MustRegister(
		m.runsConsumed,
		m.runDuration,
		m.activeRuns,
		m.queueWait,
	)

	return m
}

// RecordRunConsumed counts a consumed request by outcome
func (m *Metrics) RecordRunConsumed(outcome string) {
	m.runsConsumed.WithLabelValues(outcome).Inc()
}

// RecordRunDuration observes the execution time of a run
func (m *Metrics) RecordRunDuration(outcome string, duration time.Duration) {
	m.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordQueueWait observes how long a request sat on the queue
func (m *Metrics) RecordQueueWait(wait time.Duration) {
	m.queueWait.Observe(wait.Seconds())
}

// IncActiveRuns increments the active run gauge
func (m *Metrics) IncActiveRuns() {
	m.activeRuns.Inc()
}

// DecActiveRuns decrements the active run gauge
func (m *Metrics) DecActiveRuns() {
	m.activeRuns.Dec()
}

// Handler returns an HTTP handler serving this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
