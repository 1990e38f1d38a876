package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/loomworks/loom/internal/governance"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine"
	"github.com/loomworks/loom/pkg/engine/runtime"
	"github.com/loomworks/loom/pkg/pubsub"
	"github.com/loomworks/loom/pkg/queue"
	"github.com/loomworks/loom/pkg/runstore"
)

const workerDefinition = `{
  "id": "orders-daily",
  "graph": {
    "nodes": [
      {"id": "extract", "type": "file_input"},
      {"id": "publish", "type": "file_output"}
    ],
    "edges": [{"source": "extract", "target": "publish"}]
  }
}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T, handler runtime.Handler) *engine.Engine {
	t.Helper()
	registry := engine.NewRegistry()
	registry.SetFallback(handler)
	return engine.New(engine.Config{
		Handlers:   registry,
		Store:      runstore.NewMemoryStore(),
		Retry:      governance.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond},
		ScratchDir: t.TempDir(),
		Logger:     discardLogger(),
	})
}

func TestHandlerExecutesRunAndPublishesSuccess(t *testing.T) {
	eng := testEngine(t, runtime.HandlerFunc(func(_ context.Context, _ *domain.Node, _ runtime.Invocation) (runtime.Result, error) {
		return runtime.Result{Rows: 5}, nil
	}))
	publisher := pubsub.NewMemoryPublisher()
	handler := makeHandler(eng, publisher, discardLogger())

	err := handler(context.Background(), queue.RunRequest{
		RunID:       "run-1",
		PipelineID:  "orders-daily",
		TriggeredBy: domain.TriggerManual,
		Definition:  []byte(workerDefinition),
	})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	events := publisher.Events()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].RunID != "run-1" {
		t.Errorf("event run id = %q, want %q", events[0].RunID, "run-1")
	}
	if events[0].Status != domain.RunSuccess {
		t.Errorf("event status = %q, want %q", events[0].Status, domain.RunSuccess)
	}
	if events[0].Error != "" {
		t.Errorf("success event carries error %q", events[0].Error)
	}
}

func TestHandlerReportsFailedRun(t *testing.T) {
	eng := testEngine(t, runtime.HandlerFunc(func(_ context.Context, _ *domain.Node, _ runtime.Invocation) (runtime.Result, error) {
		return runtime.Result{}, errors.New("upstream gone away")
	}))
	publisher := pubsub.NewMemoryPublisher()
	handler := makeHandler(eng, publisher, discardLogger())

	err := handler(context.Background(), queue.RunRequest{
		RunID:      "run-2",
		Definition: []byte(workerDefinition),
	})
	if err == nil {
		t.Fatal("handler returned nil for a failed run")
	}
	if !strings.Contains(err.Error(), "run run-2 failed") {
		t.Errorf("error = %q, want it to name the run", err)
	}

	events := publisher.Events()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].Status != domain.RunFailed {
		t.Errorf("event status = %q, want %q", events[0].Status, domain.RunFailed)
	}
	if !strings.Contains(events[0].Error, "extract") {
		t.Errorf("event error = %q, want it to name the failed node", events[0].Error)
	}
}

func TestHandlerPublishesFailureForBadDefinition(t *testing.T) {
	eng := testEngine(t, runtime.HandlerFunc(func(_ context.Context, _ *domain.Node, _ runtime.Invocation) (runtime.Result, error) {
		t.Error("handler executed a run with an unparseable definition")
		return runtime.Result{}, nil
	}))
	publisher := pubsub.NewMemoryPublisher()
	handler := makeHandler(eng, publisher, discardLogger())

	err := handler(context.Background(), queue.RunRequest{
		RunID:      "run-3",
		Definition: []byte(`{"graph": [`),
	})
	if err == nil {
		t.Fatal("handler returned nil for an unparseable definition")
	}

	events := publisher.Events()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].Status != domain.RunFailed {
		t.Errorf("event status = %q, want %q", events[0].Status, domain.RunFailed)
	}
	if !strings.Contains(events[0].Error, "invalid definition") {
		t.Errorf("event error = %q, want an invalid definition message", events[0].Error)
	}
}

func TestHandlerFallsBackToPipelineIdentity(t *testing.T) {
	var sawRunID string
	eng := testEngine(t, runtime.HandlerFunc(func(_ context.Context, _ *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
		sawRunID = inv.RunID
		return runtime.Result{Rows: 1}, nil
	}))
	publisher := pubsub.NewMemoryPublisher()
	handler := makeHandler(eng, publisher, discardLogger())

	// No run ID: the engine mints one and the event must carry it.
	err := handler(context.Background(), queue.RunRequest{Definition: []byte(workerDefinition)})
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	events := publisher.Events()
	if len(events) != 1 {
		t.Fatalf("published %d events, want 1", len(events))
	}
	if events[0].RunID == "" {
		t.Error("event run id is empty")
	}
	if events[0].RunID != sawRunID {
		t.Errorf("event run id = %q, handlers saw %q", events[0].RunID, sawRunID)
	}
}
