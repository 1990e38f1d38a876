package connector

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQLConnector reads query results out of MySQL into CSV scratch files and
// replaces tables from CSV data.
type MySQLConnector struct {
	dsn string
}

// NewMySQLConnector creates an unconfigured MySQL connector.
func NewMySQLConnector() *MySQLConnector {
	return &MySQLConnector{}
}

// Connect builds the DSN from host/port/user/password/database config keys.
func (c *MySQLConnector) Connect(config map[string]any) error {
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"

	host, _ := config["host"].(string)
	if host == "" {
		host = "localhost"
	}
	port := intValue(config["port"], 3306)
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)

	cfg.User, _ = config["user"].(string)
	if cfg.User == "" {
		cfg.User = "root"
	}
	cfg.Passwd, _ = config["password"].(string)
	cfg.DBName, _ = config["database"].(string)
	cfg.ParseTime = true

	c.dsn = cfg.FormatDSN()
	return nil
}

// TestConnection pings the server with a short deadline.
func (c *MySQLConnector) TestConnection(ctx context.Context) bool {
	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return false
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.PingContext(ctx) == nil
}

// Read executes the query param and writes the result set to a scratch CSV.
func (c *MySQLConnector) Read(ctx context.Context, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	if query == "" {
		query = "SELECT 1"
	}

	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return "", fmt.Errorf("mysql connector: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("mysql connector query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("mysql connector: %w", err)
	}

	tmp, err := os.CreateTemp("", "loom-connector-*.csv")
	if err != nil {
		return "", fmt.Errorf("mysql connector: %w", err)
	}
	defer tmp.Close()

	w := csv.NewWriter(tmp)
	if err := w.Write(cols); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("mysql connector: %w", err)
	}

	dest := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	record := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("mysql connector: %w", err)
		}
		for i, v := range dest {
			record[i] = fieldString(v)
		}
		if err := w.Write(record); err != nil {
			os.Remove(tmp.Name())
			return "", fmt.Errorf("mysql connector: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("mysql connector: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("mysql connector: %w", err)
	}
	return tmp.Name(), nil
}

// Write replaces the params table_name table with the CSV file's contents.
// Columns are created as TEXT; downstream consumers cast as needed.
func (c *MySQLConnector) Write(ctx context.Context, localPath string, params map[string]any) error {
	table, _ := params["table_name"].(string)
	if table == "" {
		table = "import_data"
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("mysql connector write: read header: %w", err)
	}

	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}
	defer db.Close()

	quoted := make([]string, len(header))
	defs := make([]string, len(header))
	marks := make([]string, len(header))
	for i, col := range header {
		quoted[i] = quoteMySQL(col)
		defs[i] = quoted[i] + " TEXT"
		marks[i] = "?"
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteMySQL(table)); err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteMySQL(table), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteMySQL(table), strings.Join(quoted, ", "), strings.Join(marks, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}
	defer stmt.Close()

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("mysql connector write: read csv: %w", err)
		}
		args := make([]any, len(record))
		for i, v := range record {
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("mysql connector write row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mysql connector write: %w", err)
	}
	return nil
}

// Type returns "mysql".
func (c *MySQLConnector) Type() string {
	return "mysql"
}

func quoteMySQL(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func intValue(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}

func fieldString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(s)
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
