package handlers

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

// Conditional forwards the first upstream path unchanged. The branch
// expression is carried in config but not evaluated; routing on it is a
// documented simplification, not an omission the engine hides.
type Conditional struct{}

// NewConditional builds the conditional_branch handler.
func NewConditional() *Conditional {
	return &Conditional{}
}

func (h *Conditional) Execute(_ context.Context, _ *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	return runtime.Result{
		Log:        "Conditional evaluated",
		OutputPath: inv.FirstUpstream(),
	}, nil
}

// FileOutput marks the first upstream path as the pipeline's final output.
// Durable persistence of that path is the caller's responsibility, so the
// handler itself does no I/O. Config: filename (display name for the log).
type FileOutput struct{}

// NewFileOutput builds the file_output handler.
func NewFileOutput() *FileOutput {
	return &FileOutput{}
}

func (h *FileOutput) Execute(_ context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	input := inv.FirstUpstream()
	if input == "" {
		return runtime.Result{}, fmt.Errorf("file_output: %w", domain.ErrMissingInput)
	}

	return runtime.Result{
		Log:        fmt.Sprintf("Output ready: %s", stringOpt(node.Config, "filename", "output.csv")),
		OutputPath: input,
	}, nil
}

// Passthrough handles node types the registry does not recognize, forwarding
// the first upstream path with a zero row count. Permissive on purpose:
// partially-authored pipelines still execute end to end.
type Passthrough struct{}

// NewPassthrough builds the unknown-type fallback handler.
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

func (h *Passthrough) Execute(_ context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	return runtime.Result{
		Log:        fmt.Sprintf("Pass-through node type: %s", node.Type),
		OutputPath: inv.FirstUpstream(),
	}, nil
}
