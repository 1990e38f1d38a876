package analytics

import (
	"context"
	"fmt"
	"math"
)

// ColumnQuality holds per-column quality stats.
type ColumnQuality struct {
	NullRate    float64 `json:"null_rate"`
	UniqueRatio float64 `json:"unique_ratio"`
	Score       float64 `json:"score"`
}

// QualityReport is an aggregate 0-100 quality metric over a file plus the
// per-column breakdown it was averaged from.
type QualityReport struct {
	Score       float64                  `json:"score"`
	TotalRows   int64                    `json:"total_rows"`
	ColumnCount int                      `json:"column_count"`
	Details     map[string]ColumnQuality `json:"details"`
}

// QualityScore computes null-rate and uniqueness stats per column and an
// averaged overall score. An empty file scores 0 with no details.
func (e *Engine) QualityScore(ctx context.Context, path, format string) (*QualityReport, error) {
	db, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	stmt := fmt.Sprintf("CREATE VIEW _data AS SELECT * FROM %s", readRelation(format, path))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("register %s: %w", path, err)
	}

	cols, _, err := collectRows(ctx, db, "SELECT * FROM _data LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("inspect columns: %w", err)
	}

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM _data").Scan(&total); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	if total == 0 {
		return &QualityReport{Score: 0, TotalRows: 0, Details: map[string]ColumnQuality{}}, nil
	}

	details := make(map[string]ColumnQuality, len(cols))
	var sum float64
	for _, col := range cols {
		var nulls, distinct int64
		q := fmt.Sprintf("SELECT COUNT(*) FILTER (WHERE %s IS NULL), COUNT(DISTINCT %s) FROM _data",
			quoteIdent(col), quoteIdent(col))
		if err := db.QueryRowContext(ctx, q).Scan(&nulls, &distinct); err != nil {
			return nil, fmt.Errorf("profile column %s: %w", col, err)
		}

		nullRate := float64(nulls) / float64(total)
		score := math.Max(0, (1-nullRate)*100)
		details[col] = ColumnQuality{
			NullRate:    round4(nullRate),
			UniqueRatio: round4(float64(distinct) / float64(total)),
			Score:       round1(score),
		}
		sum += round1(score)
	}

	return &QualityReport{
		Score:       round1(sum / float64(len(cols))),
		TotalRows:   total,
		ColumnCount: len(cols),
		Details:     details,
	}, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
