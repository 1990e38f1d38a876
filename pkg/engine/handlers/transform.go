package handlers

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

// Transform compiles the node's declarative steps to SQL and materializes
// the final relation into a fresh scratch file. Config: steps (ordered step
// list), format (input format, sniffed from the path when absent),
// output_format (csv default, parquet, json).
type Transform struct {
	analytics Analytics
}

// NewTransform builds the transform handler.
func NewTransform(analytics Analytics) *Transform {
	return &Transform{analytics: analytics}
}

func (h *Transform) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	input := inv.FirstUpstream()
	if input == "" {
		return runtime.Result{}, fmt.Errorf("transform: %w", domain.ErrMissingInput)
	}

	steps := parseSteps(node.Config["steps"])
	outputFormat := stringOpt(node.Config, "output_format", "csv")
	output := inv.Scratch.Path(extFor(outputFormat))

	rows, err := h.analytics.Materialize(ctx, input, formatOf(node.Config, input), steps, output, outputFormat)
	if err != nil {
		return runtime.Result{}, err
	}

	return runtime.Result{
		Rows:       rows,
		Log:        fmt.Sprintf("Applied %d transforms", len(steps)),
		OutputPath: output,
	}, nil
}
