package handlers

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

// Merge unions all upstream relations by column position into one scratch
// file. A single input passes through untouched; zero inputs fail the node.
// Config: format (shared by all inputs, sniffed from the first when absent).
type Merge struct {
	analytics Analytics
}

// NewMerge builds the merge handler.
func NewMerge(analytics Analytics) *Merge {
	return &Merge{analytics: analytics}
}

func (h *Merge) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	switch len(inv.Upstream) {
	case 0:
		return runtime.Result{}, fmt.Errorf("merge: %w", domain.ErrMissingInput)
	case 1:
		return runtime.Result{
			Log:        "Single input, pass-through",
			OutputPath: inv.Upstream[0],
		}, nil
	}

	output := inv.Scratch.Path(".csv")
	if err := h.analytics.Union(ctx, inv.Upstream, formatOf(node.Config, inv.Upstream[0]), output); err != nil {
		return runtime.Result{}, err
	}

	return runtime.Result{
		Log:        fmt.Sprintf("Merged %d inputs", len(inv.Upstream)),
		OutputPath: output,
	}, nil
}
