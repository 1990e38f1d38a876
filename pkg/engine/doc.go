// Package engine executes pipeline graphs.
//
// Architecture:
//
// executor.go   - Core run loop (Engine, node traversal, per-attempt records)
// order.go      - Graph validation and topological ordering
// registry.go   - Node type to handler dispatch table
// builtin.go    - Wiring of the built-in handlers to their collaborators
// scratch.go    - Per-run scratch space and intermediate output tracking
// definition.go - Pipeline definition parsing (YAML or JSON)
//
// The engine walks a validated DAG in dependency order, dispatches each node
// to its handler with the outputs of its upstream nodes, retries transient
// failures with linear backoff, and records one telemetry record per attempt.
// Scratch files are deleted when the run finishes, whatever the outcome.
package engine
