// Package handlers implements one node handler per pipeline node type. Each
// handler consumes zero or more upstream scratch paths and produces at most
// one downstream path plus a row count and a one-line log summary.
//
// Handlers reach external systems only through the narrow collaborator
// interfaces injected at construction, so every handler is testable without
// the real infrastructure behind it.
package handlers

import (
	"context"

	"github.com/loomworks/loom/pkg/analytics"
	"github.com/loomworks/loom/pkg/domain"
)

// Analytics is the slice of the analytical engine the data-shaping handlers
// drive. *analytics.Engine satisfies it.
type Analytics interface {
	// Materialize applies a transform chain to a file and writes the final
	// relation to outputPath, returning its row count.
	Materialize(ctx context.Context, path, format string, steps []domain.TransformStep, outputPath, outputFormat string) (int64, error)

	// Union concatenates same-format files by column position into
	// outputPath as CSV.
	Union(ctx context.Context, paths []string, format, outputPath string) error

	// QualityScore computes the 0-100 null-rate-based quality metric.
	QualityScore(ctx context.Context, path, format string) (*analytics.QualityReport, error)
}

// stringOpt returns config[key] as a string, or def when absent or not a
// string.
func stringOpt(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// floatOpt returns config[key] as a float64, accepting any numeric shape a
// JSON or YAML decode produces.
func floatOpt(config map[string]any, key string, def float64) float64 {
	switch v := config[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return def
}

// mapOpt returns config[key] as a map, or nil.
func mapOpt(config map[string]any, key string) map[string]any {
	if v, ok := config[key].(map[string]any); ok {
		return v
	}
	return nil
}

// parseSteps converts the decoded "steps" config value into transform steps.
// Accepts the natural JSON/YAML decode shape and already-typed steps from
// programmatic graph construction; anything else yields no steps.
func parseSteps(v any) []domain.TransformStep {
	switch steps := v.(type) {
	case []domain.TransformStep:
		return steps
	case []any:
		out := make([]domain.TransformStep, 0, len(steps))
		for _, raw := range steps {
			switch s := raw.(type) {
			case domain.TransformStep:
				out = append(out, s)
			case map[string]any:
				step := domain.TransformStep{Params: map[string]any{}}
				if op, ok := s["operator"].(string); ok {
					step.Operator = op
				}
				if params, ok := s["params"].(map[string]any); ok {
					step.Params = params
				}
				out = append(out, step)
			}
		}
		return out
	}
	return nil
}

// formatOf picks the node's declared file format, falling back to sniffing
// the path extension.
func formatOf(config map[string]any, path string) string {
	if f := stringOpt(config, "format", ""); f != "" {
		return f
	}
	return analytics.DetectFormat(path)
}

// extFor maps an output format to the scratch file extension it is written
// under.
func extFor(format string) string {
	switch format {
	case "parquet":
		return ".parquet"
	case "json":
		return ".json"
	}
	return ".csv"
}
