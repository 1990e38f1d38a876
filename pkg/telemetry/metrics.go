package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loomworks/loom/pkg/domain"
)

var (
	metricsOnce        sync.Once
	metricsInitErr     error
	nodeRunsCounter    metric.Int64Counter
	nodeRetriesCounter metric.Int64Counter
	nodeDurationHist   metric.Float64Histogram
	runsCounter        metric.Int64Counter
	runRowsCounter     metric.Int64Counter
	runDurationHist    metric.Float64Histogram
)

// NodeMetrics captures the fields needed to record one node execution.
type NodeMetrics struct {
	PipelineID string
	NodeID     string
	NodeType   string
	Status     domain.NodeStatus
	Attempts   int
	Duration   time.Duration
}

// RecordNodeMetrics emits the counters and histograms describing node
// execution behaviour. Attempts beyond the first count as retries.
func RecordNodeMetrics(ctx context.Context, m NodeMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline.id", m.PipelineID),
		attribute.String("node.id", m.NodeID),
		attribute.String("node.type", m.NodeType),
		attribute.String("node.status", string(m.Status)),
	}

	nodeRunsCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Duration > 0 {
		nodeDurationHist.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if m.Attempts > 1 {
		nodeRetriesCounter.Add(ctx, int64(m.Attempts-1), metric.WithAttributes(attrs...))
	}
}

// RunMetrics captures the fields needed to record one completed run.
type RunMetrics struct {
	PipelineID string
	Status     domain.RunStatus
	Rows       int64
	Duration   time.Duration
}

// RecordRunMetrics emits run-level counters and the run duration histogram.
func RecordRunMetrics(ctx context.Context, m RunMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("pipeline.id", m.PipelineID),
		attribute.String("run.status", string(m.Status)),
	}

	runsCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Rows > 0 {
		runRowsCounter.Add(ctx, m.Rows, metric.WithAttributes(attrs...))
	}

	if m.Duration > 0 {
		runDurationHist.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("loom.pipeline")

		nodeRunsCounter, metricsInitErr = meter.Int64Counter(
			"loom.node.executions_total",
			metric.WithDescription("Pipeline node executions partitioned by status"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeRetriesCounter, metricsInitErr = meter.Int64Counter(
			"loom.node.retries_total",
			metric.WithDescription("Retry attempts performed by pipeline nodes"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		nodeDurationHist, metricsInitErr = meter.Float64Histogram(
			"loom.node.duration_ms",
			metric.WithDescription("Observed node execution latency"),
			metric.WithUnit("ms"),
		)
		if metricsInitErr != nil {
			return
		}

		runsCounter, metricsInitErr = meter.Int64Counter(
			"loom.run.completed_total",
			metric.WithDescription("Pipeline runs reaching a terminal status"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		runRowsCounter, metricsInitErr = meter.Int64Counter(
			"loom.run.rows_total",
			metric.WithDescription("Rows processed by successful pipeline runs"),
			metric.WithUnit("{row}"),
		)
		if metricsInitErr != nil {
			return
		}

		runDurationHist, metricsInitErr = meter.Float64Histogram(
			"loom.run.duration_ms",
			metric.WithDescription("Observed pipeline run duration"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
