package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/loomworks/loom/pkg/domain"
)

func setupManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
	})

	ResetMetricsForTest()
	return reader
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect metrics: %v", err)
	}

	metrics := map[string]metricdata.Metrics{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			metrics[m.Name] = m
		}
	}
	return metrics
}

func TestRecordNodeMetrics(t *testing.T) {
	reader := setupManualReader(t)

	RecordNodeMetrics(context.Background(), NodeMetrics{
		PipelineID: "orders-daily",
		NodeID:     "clean",
		NodeType:   "transform",
		Status:     domain.NodeSucceeded,
		Attempts:   3,
		Duration:   150 * time.Millisecond,
	})

	metrics := collectMetrics(t, reader)

	sumExec, ok := metrics["loom.node.executions_total"]
	if !ok {
		t.Fatalf("missing loom.node.executions_total metric")
	}
	execData, ok := sumExec.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("unexpected data type for executions metric")
	}
	if len(execData.DataPoints) != 1 {
		t.Fatalf("expected 1 datapoint, got %d", len(execData.DataPoints))
	}
	if execData.DataPoints[0].Value != 1 {
		t.Fatalf("expected executions count 1, got %d", execData.DataPoints[0].Value)
	}
	if value, ok := execData.DataPoints[0].Attributes.Value(attribute.Key("node.type")); !ok || value.AsString() != "transform" {
		t.Fatalf("expected node.type attribute to be transform, got %v", value)
	}
	if value, ok := execData.DataPoints[0].Attributes.Value(attribute.Key("node.status")); !ok || value.AsString() != "success" {
		t.Fatalf("expected node.status attribute to be success, got %v", value)
	}

	sumRetry, ok := metrics["loom.node.retries_total"]
	if !ok {
		t.Fatalf("missing loom.node.retries_total metric")
	}
	retryData := sumRetry.Data.(metricdata.Sum[int64])
	if retryData.DataPoints[0].Value != 2 {
		t.Fatalf("expected 2 retries for 3 attempts, got %d", retryData.DataPoints[0].Value)
	}

	hist, ok := metrics["loom.node.duration_ms"]
	if !ok {
		t.Fatalf("missing loom.node.duration_ms metric")
	}
	histData, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("unexpected data type for duration metric")
	}
	if histData.DataPoints[0].Count != 1 {
		t.Fatalf("expected 1 duration observation, got %d", histData.DataPoints[0].Count)
	}
}

func TestRecordNodeMetricsSkipsRetryCounterOnFirstAttempt(t *testing.T) {
	reader := setupManualReader(t)

	RecordNodeMetrics(context.Background(), NodeMetrics{
		PipelineID: "orders-daily",
		NodeID:     "extract",
		NodeType:   "file_input",
		Status:     domain.NodeSucceeded,
		Attempts:   1,
		Duration:   10 * time.Millisecond,
	})

	metrics := collectMetrics(t, reader)
	if _, ok := metrics["loom.node.retries_total"]; ok {
		t.Fatalf("retry counter should not record for single-attempt nodes")
	}
}

func TestRecordRunMetrics(t *testing.T) {
	reader := setupManualReader(t)

	RecordRunMetrics(context.Background(), RunMetrics{
		PipelineID: "orders-daily",
		Status:     domain.RunSuccess,
		Rows:       1250,
		Duration:   2 * time.Second,
	})

	metrics := collectMetrics(t, reader)

	sumRuns, ok := metrics["loom.run.completed_total"]
	if !ok {
		t.Fatalf("missing loom.run.completed_total metric")
	}
	runData := sumRuns.Data.(metricdata.Sum[int64])
	if runData.DataPoints[0].Value != 1 {
		t.Fatalf("expected 1 completed run, got %d", runData.DataPoints[0].Value)
	}
	if value, ok := runData.DataPoints[0].Attributes.Value(attribute.Key("run.status")); !ok || value.AsString() != "success" {
		t.Fatalf("expected run.status attribute success, got %v", value)
	}

	sumRows, ok := metrics["loom.run.rows_total"]
	if !ok {
		t.Fatalf("missing loom.run.rows_total metric")
	}
	rowData := sumRows.Data.(metricdata.Sum[int64])
	if rowData.DataPoints[0].Value != 1250 {
		t.Fatalf("expected 1250 rows, got %d", rowData.DataPoints[0].Value)
	}
}
