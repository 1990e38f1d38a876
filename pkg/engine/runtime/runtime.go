// Package runtime defines the contract between the DAG orchestrator and node
// handlers, keeping per-type business logic decoupled from walk mechanics.
package runtime

import (
	"context"

	"github.com/loomworks/loom/pkg/domain"
)

// Scratch allocates run-scoped output file paths. Paths returned here are
// deleted when the run finishes, whatever the outcome, so handlers must
// never hand out a path the user owns.
type Scratch interface {
	// Path returns a fresh scratch file path with the given extension
	// (".csv", ".json", ...). The file is not created; the handler writes it.
	Path(ext string) string
}

// Invocation carries the run-scoped context a handler executes under.
type Invocation struct {
	RunID string

	// Upstream holds the scratch paths produced by the nodes feeding this
	// one, resolved in edge-list order. Nodes that produced no output
	// contribute nothing.
	Upstream []string

	Scratch Scratch
}

// FirstUpstream returns the first upstream path, or "" when there is none.
func (inv Invocation) FirstUpstream() string {
	if len(inv.Upstream) == 0 {
		return ""
	}
	return inv.Upstream[0]
}

// Result is what a node execution hands back to the orchestrator.
type Result struct {
	// Rows is the node's contribution to the run's rows-processed total.
	Rows int64

	// Log is a one-line human-readable summary stored on the node record.
	Log string

	// OutputPath is the scratch file downstream nodes consume, or "" when
	// the node produces no relation (export, webhook delivery).
	OutputPath string
}

// Handler executes one node type.
type Handler interface {
	Execute(ctx context.Context, node *domain.Node, inv Invocation) (Result, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, node *domain.Node, inv Invocation) (Result, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, node *domain.Node, inv Invocation) (Result, error) {
	return f(ctx, node, inv)
}
