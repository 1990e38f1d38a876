package handlers

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/engine/runtime"
)

// Validate computes the data-quality score of the first upstream relation
// and gates on it: below the configured minimum the node fails, otherwise
// the input passes through unchanged. Config: min_score (default 50),
// format.
type Validate struct {
	analytics Analytics
}

// NewValidate builds the validation handler.
func NewValidate(analytics Analytics) *Validate {
	return &Validate{analytics: analytics}
}

func (h *Validate) Execute(ctx context.Context, node *domain.Node, inv runtime.Invocation) (runtime.Result, error) {
	input := inv.FirstUpstream()
	if input == "" {
		return runtime.Result{}, fmt.Errorf("validation: %w", domain.ErrMissingInput)
	}

	report, err := h.analytics.QualityScore(ctx, input, formatOf(node.Config, input))
	if err != nil {
		return runtime.Result{}, err
	}

	minScore := floatOpt(node.Config, "min_score", 50)
	if report.Score < minScore {
		return runtime.Result{}, fmt.Errorf("%w: score %.1f below minimum %g", domain.ErrQualityGate, report.Score, minScore)
	}

	return runtime.Result{
		Rows:       report.TotalRows,
		Log:        fmt.Sprintf("Quality: %.1f/100", report.Score),
		OutputPath: input,
	}, nil
}
