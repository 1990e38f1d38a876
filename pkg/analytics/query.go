package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Column describes one inferred column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ResultSet is a bounded slice of query output plus the unbounded total.
type ResultSet struct {
	Columns    []string         `json:"columns"`
	Rows       []map[string]any `json:"rows"`
	TotalCount int64            `json:"total_count"`
}

// Preview reads up to limit rows of a file along with its total row count.
func (e *Engine) Preview(ctx context.Context, path, format string, limit int) (*ResultSet, error) {
	if limit <= 0 {
		limit = 200
	}
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rel := readRelation(format, path)

	var total int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", rel)).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", path, err)
	}

	cols, rows, err := collectRows(ctx, db, fmt.Sprintf("SELECT * FROM %s LIMIT %d", rel, limit))
	if err != nil {
		return nil, fmt.Errorf("preview %s: %w", path, err)
	}
	return &ResultSet{Columns: cols, Rows: rows, TotalCount: total}, nil
}

// InferSchema reports the column names and types the engine derives for a
// file. Nullability is not tracked by the sniffer, so every column reports
// nullable.
func (e *Engine) InferSchema(ctx context.Context, path, format string) ([]Column, error) {
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf("DESCRIBE SELECT * FROM %s", readRelation(format, path)))
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var schema []Column
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		schema = append(schema, Column{
			Name:     asString(dest[0]),
			Type:     asString(dest[1]),
			Nullable: true,
		})
	}
	return schema, rows.Err()
}

// ExecuteSQL runs an arbitrary query with optional named source files
// registered as views, capping the returned rows at limit.
func (e *Engine) ExecuteSQL(ctx context.Context, query string, sources map[string]string, limit int) (*ResultSet, error) {
	if limit <= 0 {
		limit = 1000
	}
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	// Sorted registration keeps failure messages stable across runs.
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := sources[name]
		rel := readRelation(DetectFormat(path), path)
		stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM %s", quoteIdent(name), rel)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("register source %s: %w", name, err)
		}
	}

	cols, rows, err := collectRows(ctx, db, fmt.Sprintf("SELECT * FROM (%s) AS _q LIMIT %d", query, limit))
	if err != nil {
		return nil, fmt.Errorf("execute sql: %w", err)
	}
	return &ResultSet{Columns: cols, Rows: rows, TotalCount: int64(len(rows))}, nil
}

// collectRows runs a query and scans every row into name-keyed maps.
func collectRows(ctx context.Context, db *sql.DB, query string) ([]string, []map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	out := make([]map[string]any, 0, 64)
	for rows.Next() {
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		record := make(map[string]any, len(cols))
		for i, name := range cols {
			record[name] = normalize(dest[i])
		}
		out = append(out, record)
	}
	return cols, out, rows.Err()
}

// normalize converts driver byte slices to strings so results survive JSON
// encoding without base64 surprises.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
