package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomworks/loom/internal/governance"
	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
	"github.com/loomworks/loom/pkg/runstore"
	"github.com/loomworks/loom/pkg/telemetry"
)

// Config carries the engine's collaborators and policies. Zero-value fields
// fall back to safe defaults: an empty handler registry, an in-memory run
// store, the standard retry policy, and the OS temp dir for scratch space.
type Config struct {
	Handlers   *Registry
	Store      runstore.Store
	Retry      governance.RetryConfig
	ScratchDir string
	Logger     *slog.Logger
}

// Engine executes pipeline graphs. It is safe for concurrent use; each run
// gets its own scratch space and the shared collaborators are read-only
// during execution.
type Engine struct {
	handlers   *Registry
	store      runstore.Store
	retry      *governance.RetryPolicy
	scratchDir string
	logger     *slog.Logger
}

// New creates an engine from cfg, filling in defaults for absent fields.
func New(cfg Config) *Engine {
	handlers := cfg.Handlers
	if handlers == nil {
		handlers = NewRegistry()
	}
	store := cfg.Store
	if store == nil {
		store = runstore.NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		handlers:   handlers,
		store:      store,
		retry:      governance.NewRetryPolicy(cfg.Retry),
		scratchDir: cfg.ScratchDir,
		logger:     logger,
	}
}

// Execute runs graph on behalf of run and returns the structured outcome.
// The run transitions pending -> running -> success or failed; the engine
// never produces cancelled, a context cancellation surfaces as a failed run.
// A nil or id-less run is given a fresh identity so ad-hoc executions work
// without a pre-created record.
func (e *Engine) Execute(ctx context.Context, graph *domain.Graph, run *domain.Run) *domain.RunResult {
	if run == nil {
		run = &domain.Run{TriggeredBy: domain.TriggerManual}
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	started := time.Now()
	tracer := otel.Tracer("loom.pipeline")

	nodes := 0
	if graph != nil {
		nodes = len(graph.Nodes)
	}
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", run.ID),
		attribute.String("pipeline.id", run.PipelineID),
		attribute.Int("graph.nodes", nodes),
	))
	defer span.End()

	e.logger.Info("run starting",
		"run_id", run.ID,
		"pipeline_id", run.PipelineID,
		"nodes", nodes,
	)

	run.Status = domain.RunRunning
	run.StartedAt = &started
	e.syncRun(ctx, run)

	// Ordering failures (malformed graph, cycle) fail the run before any
	// node executes, so no node records exist for such runs.
	order, orderErr := ExecutionOrder(graph)
	if orderErr != nil {
		return e.finish(ctx, span, run, started, 0, orderErr)
	}

	scratch, err := newScratch(e.scratchDir, run.ID)
	if err != nil {
		return e.finish(ctx, span, run, started, 0, err)
	}
	defer scratch.Cleanup(e.logger)

	var totalRows int64
	var runErr error
	for _, nodeID := range order {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted: %w", err)
			break
		}

		node := graph.Node(nodeID)
		upstream := scratch.Resolve(graph.Inbound(nodeID))

		result, attempts, err := e.runNode(ctx, tracer, run, node, upstream, scratch)
		if err != nil {
			runErr = &domain.NodeError{NodeID: node.ID, NodeType: node.Type, Attempts: attempts, Err: err}
			break
		}

		scratch.Track(node.ID, result.OutputPath)
		totalRows += result.Rows
	}

	return e.finish(ctx, span, run, started, totalRows, runErr)
}

// runNode dispatches one node through the retry policy, writing a telemetry
// record per attempt. Returns the handler result, the number of attempts
// made, and the final error if all allowed attempts failed.
func (e *Engine) runNode(ctx context.Context, tracer trace.Tracer, run *domain.Run, node *domain.Node, upstream []string, scratch *Scratch) (runtime.Result, int, error) {
	handler := e.handlers.Resolve(node.Type)
	inv := runtime.Invocation{RunID: run.ID, Upstream: upstream, Scratch: scratch}

	nodeCtx, nodeSpan := tracer.Start(ctx, "pipeline.node", trace.WithAttributes(
		attribute.String("node.id", node.ID),
		attribute.String("node.type", string(node.Type)),
		attribute.Int("node.upstream", len(upstream)),
	))
	defer nodeSpan.End()

	nodeStart := time.Now()
	var result runtime.Result

	attempts, err := e.retry.ExecuteWithRetry(nodeCtx, func(ctx context.Context, attempt int) error {
		rec := &domain.NodeRecord{
			ID:        uuid.NewString(),
			RunID:     run.ID,
			NodeID:    node.ID,
			NodeType:  node.Type,
			Attempt:   attempt,
			Status:    domain.NodeRunning,
			StartedAt: time.Now().UTC(),
		}
		e.appendRecord(ctx, rec)

		res, execErr := handler.Execute(ctx, node, inv)
		e.closeRecord(ctx, rec, res, execErr)

		if execErr != nil {
			e.logger.Warn("node attempt failed",
				"run_id", run.ID,
				"node_id", node.ID,
				"node_type", node.Type,
				"attempt", attempt,
				"error", execErr,
			)
			return execErr
		}

		result = res
		e.logger.Debug("node succeeded",
			"run_id", run.ID,
			"node_id", node.ID,
			"attempt", attempt,
			"rows", res.Rows,
		)
		return nil
	})

	status := domain.NodeSucceeded
	if err != nil {
		status = domain.NodeFailed
		nodeSpan.RecordError(err)
		nodeSpan.SetStatus(codes.Error, err.Error())
	}
	nodeSpan.SetAttributes(
		attribute.Int("node.attempts", attempts),
		attribute.String("node.status", string(status)),
	)

	telemetry.RecordNodeMetrics(nodeCtx, telemetry.NodeMetrics{
		PipelineID: run.PipelineID,
		NodeID:     node.ID,
		NodeType:   string(node.Type),
		Status:     status,
		Attempts:   attempts,
		Duration:   time.Since(nodeStart),
	})

	return result, attempts, err
}

// finish moves the run to its terminal status, persists it, and builds the
// caller-facing result. Rows are only reported for successful runs.
func (e *Engine) finish(ctx context.Context, span trace.Span, run *domain.Run, started time.Time, rows int64, runErr error) *domain.RunResult {
	finished := time.Now()
	duration := finished.Sub(started)
	run.FinishedAt = &finished
	run.DurationMS = duration.Milliseconds()

	if runErr != nil {
		run.Status = domain.RunFailed
		run.ErrorMessage = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		e.logger.Error("run failed",
			"run_id", run.ID,
			"pipeline_id", run.PipelineID,
			"duration_ms", run.DurationMS,
			"error", runErr,
		)
	} else {
		run.Status = domain.RunSuccess
		run.RowsProcessed = rows
		e.logger.Info("run succeeded",
			"run_id", run.ID,
			"pipeline_id", run.PipelineID,
			"rows_processed", rows,
			"duration_ms", run.DurationMS,
		)
	}
	e.syncRun(ctx, run)

	telemetry.RecordRunMetrics(ctx, telemetry.RunMetrics{
		PipelineID: run.PipelineID,
		Status:     run.Status,
		Rows:       run.RowsProcessed,
		Duration:   duration,
	})

	return &domain.RunResult{
		RunID:         run.ID,
		Status:        run.Status,
		RowsProcessed: run.RowsProcessed,
		Duration:      duration,
		DurationMS:    run.DurationMS,
		Error:         run.ErrorMessage,
	}
}

// syncRun persists the run's current state, creating the record on first
// sight. Store trouble is logged, never fatal; the run itself matters more
// than its bookkeeping.
func (e *Engine) syncRun(ctx context.Context, run *domain.Run) {
	err := e.store.UpdateRun(ctx, run)
	if errors.Is(err, domain.ErrRunNotFound) {
		err = e.store.CreateRun(ctx, run)
	}
	if err != nil {
		e.logger.Warn("run state not persisted", "run_id", run.ID, "error", err)
	}
}

func (e *Engine) appendRecord(ctx context.Context, rec *domain.NodeRecord) {
	if err := e.store.AppendNodeRecord(ctx, rec); err != nil {
		e.logger.Warn("node record not persisted", "run_id", rec.RunID, "node_id", rec.NodeID, "error", err)
	}
}

// closeRecord moves an attempt record to its terminal status and persists
// the update.
func (e *Engine) closeRecord(ctx context.Context, rec *domain.NodeRecord, res runtime.Result, execErr error) {
	finished := time.Now().UTC()
	rec.FinishedAt = &finished
	rec.DurationMS = finished.Sub(rec.StartedAt).Milliseconds()
	if execErr != nil {
		rec.Status = domain.NodeFailed
		rec.Log = execErr.Error()
	} else {
		rec.Status = domain.NodeSucceeded
		rec.Log = res.Log
		rows := res.Rows
		rec.RowsOut = &rows
	}
	if err := e.store.UpdateNodeRecord(ctx, rec); err != nil {
		e.logger.Warn("node record not persisted", "run_id", rec.RunID, "node_id", rec.NodeID, "error", err)
	}
}
