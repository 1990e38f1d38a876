// Package analytics runs SQL over data files through an embedded DuckDB
// engine. Every operation opens a fresh, resource-bounded session and closes
// it before returning; no process-wide connection is ever retained, so
// concurrent runs never share engine state.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
)

// Config bounds each analytical session.
type Config struct {
	// MemoryLimit caps session memory, in DuckDB syntax ("1GB").
	MemoryLimit string
	// Threads caps intra-session parallelism.
	Threads int
	// EnableHTTPFS installs the httpfs extension so sessions can read
	// presigned object-store URLs directly. Off by default; it pulls the
	// extension from the network on first use.
	EnableHTTPFS bool
}

// DefaultConfig returns the standard session bounds.
func DefaultConfig() Config {
	return Config{MemoryLimit: "1GB", Threads: 2}
}

// Engine executes previews, schema inference, transforms, and quality
// scoring against local data files.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an analytics engine. Zero-value config fields fall back to
// DefaultConfig.
func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.MemoryLimit == "" {
		cfg.MemoryLimit = DefaultConfig().MemoryLimit
	}
	if cfg.Threads <= 0 {
		cfg.Threads = DefaultConfig().Threads
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// open creates one bounded in-memory session. Callers must Close it; every
// exported method does so via defer, even on error.
func (e *Engine) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open analytics session: %w", err)
	}
	// One underlying connection so the session pragmas below apply to
	// every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		fmt.Sprintf("SET memory_limit='%s'", e.cfg.MemoryLimit),
		fmt.Sprintf("SET threads=%d", e.cfg.Threads),
	}
	if e.cfg.EnableHTTPFS {
		pragmas = append(pragmas, "INSTALL httpfs", "LOAD httpfs")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure analytics session: %w", err)
		}
	}
	return db, nil
}

// readRelation returns the read-function expression for a file in the given
// format. Unrecognized formats fall back to the CSV sniffer, which handles
// delimited text broadly.
func readRelation(format, path string) string {
	escaped := strings.ReplaceAll(path, "'", "''")
	switch format {
	case "csv", "txt":
		return fmt.Sprintf("read_csv_auto('%s')", escaped)
	case "json":
		return fmt.Sprintf("read_json_auto('%s')", escaped)
	case "parquet":
		return fmt.Sprintf("read_parquet('%s')", escaped)
	default:
		return fmt.Sprintf("read_csv_auto('%s')", escaped)
	}
}

// DetectFormat guesses a file's format from its extension.
func DetectFormat(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "csv", "json", "parquet", "txt":
		return ext
	default:
		return "csv"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
