package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/wonny/consolidator/pkg/config"
)

// Engine wraps a single DuckDB connection used as the streaming columnar engine
// ⭐ SSOT: DuckDB 연결은 이 패키지에서만 생성
type Engine struct {
	db   *sql.DB
	opts Options
}

// Options bounds the engine's working set
type Options struct {
	Path        string // "" = in-memory catalog
	MemoryLimit string // e.g. "2GB"
	TempDir     string // spill directory for sort/merge state above MemoryLimit
	Threads     int    // 0 = engine default
}

// Table is a fully materialized query result
type Table struct {
	Columns []string
	Rows    [][]any
}

// OptionsFromConfig maps the application config onto engine options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MemoryLimit: cfg.DuckDB.MemoryLimit,
		TempDir:     cfg.DuckDB.TempDir,
		Threads:     cfg.DuckDB.Threads,
	}
}

// New opens the engine from application config
func New(ctx context.Context, cfg *config.Config) (*Engine, error) {
	return Open(ctx, OptionsFromConfig(cfg))
}

// Open opens a DuckDB connection and applies the memory discipline settings.
// Failure here is the only condition that aborts a whole consolidation run.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	// 단일 커넥션: 등록된 view 와 세션 설정을 모든 작업이 공유
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	e := &Engine{db: db, opts: opts}
	if err := e.configure(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return e, nil
}

func (e *Engine) configure(ctx context.Context) error {
	settings := []string{
		"SET preserve_insertion_order = false",
	}

	if e.opts.MemoryLimit != "" {
		settings = append(settings, fmt.Sprintf("SET memory_limit = %s", Literal(e.opts.MemoryLimit)))
	}

	if e.opts.TempDir != "" {
		if err := os.MkdirAll(e.opts.TempDir, 0o755); err != nil {
			return fmt.Errorf("failed to create spill directory: %w", err)
		}
		settings = append(settings, fmt.Sprintf("SET temp_directory = %s", Literal(e.opts.TempDir)))
	}

	if e.opts.Threads > 0 {
		settings = append(settings, fmt.Sprintf("SET threads = %d", e.opts.Threads))
	}

	for _, stmt := range settings {
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}

	return nil
}

// Exec runs a statement that returns no rows (CREATE VIEW, COPY, ...)
func (e *Engine) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := e.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	return nil
}

// QueryInt runs a single-value integer query such as SELECT count(*)
func (e *Engine) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := e.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// QueryStrings returns the first column of every row as strings
func (e *Engine) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// QueryTable materializes a query result. Only use it for bounded results
// (a single year's artifact, a shard preview); never for the full history.
func (e *Engine) QueryTable(ctx context.Context, query string, args ...any) (*Table, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := &Table{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = plainValue(v)
		}
		table.Rows = append(table.Rows, values)
	}

	return table, rows.Err()
}

// plainValue maps driver-specific cell types onto plain Go values
func plainValue(v any) any {
	switch x := v.(type) {
	case goduckdb.Decimal:
		return x.Float64()
	case *goduckdb.Decimal:
		if x == nil {
			return nil
		}
		return x.Float64()
	}
	return v
}

// Setting returns the current value of an engine setting
func (e *Engine) Setting(ctx context.Context, name string) (string, error) {
	var v string
	query := fmt.Sprintf("SELECT current_setting(%s)::VARCHAR", Literal(name))
	err := e.db.QueryRowContext(ctx, query).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", name, err)
	}
	return v, nil
}

// HealthStatus represents the health status of the engine
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Version      string        `json:"version"`
	MemoryLimit  string        `json:"memory_limit"`
	TempDir      string        `json:"temp_directory"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
}

// HealthCheck reports engine version and effective memory settings
func (e *Engine) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{}
	start := time.Now()

	if err := e.db.QueryRowContext(ctx, "SELECT version()").Scan(&status.Version); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	status.MemoryLimit, _ = e.Setting(ctx, "memory_limit")
	status.TempDir, _ = e.Setting(ctx, "temp_directory")
	status.Healthy = true

	return status, nil
}

// Close closes the engine connection
func (e *Engine) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Literal renders s as a SQL string literal
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Ident renders s as a quoted SQL identifier
func Ident(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
