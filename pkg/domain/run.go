package domain

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed || s == RunCancelled
}

// TriggerKind records what started a run.
type TriggerKind string

const (
	TriggerManual   TriggerKind = "manual"
	TriggerSchedule TriggerKind = "schedule"
	TriggerEvent    TriggerKind = "event"
	TriggerWebhook  TriggerKind = "webhook"
)

// Run is one execution of a pipeline graph.
//
// The engine owns the pending → running → {success, failed} transitions.
// Cancelled is only ever set from outside the engine.
type Run struct {
	ID            string         `json:"id"`
	PipelineID    string         `json:"pipeline_id"`
	Status        RunStatus      `json:"status"`
	TriggeredBy   TriggerKind    `json:"triggered_by"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
	RowsProcessed int64          `json:"rows_processed"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NodeStatus is the lifecycle state of a single node attempt.
type NodeStatus string

const (
	NodeRunning   NodeStatus = "running"
	NodeSucceeded NodeStatus = "success"
	NodeFailed    NodeStatus = "failed"
	NodeSkipped   NodeStatus = "skipped"
)

// NodeRecord is the telemetry record for one attempt of one node within a
// run. Every attempt gets its own record, so a node that fails twice and
// succeeds on the third try leaves three records behind. Records are
// immutable once their attempt reaches a terminal status.
type NodeRecord struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	NodeID     string     `json:"node_id"`
	NodeType   NodeType   `json:"node_type"`
	Attempt    int        `json:"attempt"`
	Status     NodeStatus `json:"status"`
	RowsIn     *int64     `json:"rows_in,omitempty"`
	RowsOut    *int64     `json:"rows_out,omitempty"`
	Log        string     `json:"log,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms"`

	// Metadata is free-form annotation on the attempt. The engine never
	// reads it; it exists for handlers and operators.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResult is the structured outcome handed back to the engine's caller.
type RunResult struct {
	RunID         string        `json:"run_id"`
	Status        RunStatus     `json:"status"`
	RowsProcessed int64         `json:"rows_processed"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
	Error         string        `json:"error,omitempty"`
}
