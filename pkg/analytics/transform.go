package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/loomworks/loom/pkg/domain"
	"github.com/loomworks/loom/pkg/transform"
)

// TransformPreview applies a step chain to a file and returns a bounded
// preview of the final relation.
func (e *Engine) TransformPreview(ctx context.Context, path, format string, steps []domain.TransformStep, limit int) (*ResultSet, error) {
	if limit <= 0 {
		limit = 200
	}
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	final, err := buildChain(ctx, db, path, format, steps)
	if err != nil {
		return nil, err
	}

	cols, rows, err := collectRows(ctx, db, fmt.Sprintf("SELECT * FROM %s LIMIT %d", final, limit))
	if err != nil {
		return nil, fmt.Errorf("preview transformed relation: %w", err)
	}

	var total int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", final)).Scan(&total); err != nil {
		return nil, fmt.Errorf("count transformed relation: %w", err)
	}
	return &ResultSet{Columns: cols, Rows: rows, TotalCount: total}, nil
}

// Materialize applies a step chain to a file and writes the final relation
// to outputPath in outputFormat, returning the output row count. Only the
// final relation is ever materialized; intermediate steps stay as views.
func (e *Engine) Materialize(ctx context.Context, path, format string, steps []domain.TransformStep, outputPath, outputFormat string) (int64, error) {
	db, err := e.open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	final, err := buildChain(ctx, db, path, format, steps)
	if err != nil {
		return 0, err
	}

	if _, err := db.ExecContext(ctx, copyStatement(final, outputPath, outputFormat)); err != nil {
		return 0, fmt.Errorf("materialize to %s: %w", outputPath, err)
	}

	var rows int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", final)).Scan(&rows); err != nil {
		return 0, fmt.Errorf("count final relation: %w", err)
	}
	return rows, nil
}

// Union concatenates same-format files by column position into outputPath
// as CSV with a header row.
func (e *Engine) Union(ctx context.Context, paths []string, format, outputPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("union: no input files")
	}
	db, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	parts := make([]string, len(paths))
	for i, p := range paths {
		view := fmt.Sprintf("_merge_%d", i)
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", view, readRelation(format, p))
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("register merge input %s: %w", p, err)
		}
		parts[i] = "SELECT * FROM " + view
	}

	stmt := fmt.Sprintf("COPY (%s) TO '%s' (FORMAT CSV, HEADER)",
		strings.Join(parts, " UNION ALL "), escapePath(outputPath))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("union %d inputs: %w", len(paths), err)
	}
	return nil
}

// buildChain registers the input file as _input and stacks one view per
// compiled step, returning the name of the final relation.
func buildChain(ctx context.Context, db *sql.DB, path, format string, steps []domain.TransformStep) (string, error) {
	stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", transform.InputView, readRelation(format, path))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return "", fmt.Errorf("register input %s: %w", path, err)
	}
	for _, compiled := range transform.CompileChain(steps) {
		stmt := fmt.Sprintf("CREATE VIEW %s AS %s", compiled.View, compiled.SQL)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return "", fmt.Errorf("step %s (%s): %w", compiled.View, compiled.Operator, err)
		}
	}
	return transform.FinalView(steps), nil
}

func copyStatement(view, outputPath, outputFormat string) string {
	target := escapePath(outputPath)
	switch outputFormat {
	case "parquet":
		return fmt.Sprintf("COPY %s TO '%s' (FORMAT PARQUET)", view, target)
	case "json":
		return fmt.Sprintf("COPY %s TO '%s' (FORMAT JSON)", view, target)
	default:
		return fmt.Sprintf("COPY %s TO '%s' (FORMAT CSV, HEADER)", view, target)
	}
}

func escapePath(p string) string {
	return strings.ReplaceAll(p, "'", "''")
}
