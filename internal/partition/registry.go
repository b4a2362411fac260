package partition

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/dedup"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
)

// View is a registered logical relation over one kind's shard set
type View struct {
	Name    string
	Kind    contracts.Kind
	Files   []string
	Columns []string // source columns including the arrival columns
}

// Empty reports whether the view is the zero-row fallback
func (v View) Empty() bool {
	return len(v.Files) == 0
}

// Registry registers one raw view per kind on the shared engine connection.
// Views are registered once and reused by every partition task.
type Registry struct {
	engine *duckdb.Engine
	logger *logger.Logger

	mu    sync.RWMutex
	views map[contracts.Kind]View
}

// NewRegistry creates a view registry
func NewRegistry(engine *duckdb.Engine, log *logger.Logger) *Registry {
	return &Registry{
		engine: engine,
		logger: log,
		views:  make(map[contracts.Kind]View),
	}
}

// ViewName returns the engine relation name of a kind
func ViewName(kind contracts.Kind) string {
	return "raw_" + string(kind)
}

// Register creates (or replaces) the view of a kind as a union-by-name of the
// shard files, each row tagged with its shard ordinal and file row number.
// No files → an empty view with a (date, code) fallback schema.
func (r *Registry) Register(ctx context.Context, kind contracts.Kind, files []string) (View, error) {
	name := ViewName(kind)

	body := emptyViewSQL()
	if len(files) > 0 {
		parts := make([]string, len(files))
		for i, f := range files {
			parts[i] = fmt.Sprintf(
				"SELECT * EXCLUDE (file_row_number), CAST(%d AS INTEGER) AS %s, file_row_number AS %s FROM read_parquet(%s, file_row_number = true)",
				i, duckdb.Ident(dedup.ShardColumn), duckdb.Ident(dedup.RowColumn), duckdb.Literal(f),
			)
		}
		body = strings.Join(parts, "\nUNION ALL BY NAME\n")
	}

	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", duckdb.Ident(name), body)
	if err := r.engine.Exec(ctx, stmt); err != nil {
		return View{}, fmt.Errorf("failed to register view %s: %w", name, err)
	}

	cols, err := r.columns(ctx, name)
	if err != nil {
		return View{}, err
	}

	view := View{Name: name, Kind: kind, Files: files, Columns: cols}

	r.mu.Lock()
	r.views[kind] = view
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"kind":    string(kind),
		"view":    name,
		"shards":  len(files),
		"columns": len(cols),
	}).Info("Registered shard view")

	return view, nil
}

// View returns a registered view
func (r *Registry) View(kind contracts.Kind) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[kind]
	return v, ok
}

func (r *Registry) columns(ctx context.Context, name string) ([]string, error) {
	table, err := r.engine.QueryTable(ctx, "DESCRIBE "+duckdb.Ident(name))
	if err != nil {
		return nil, fmt.Errorf("failed to describe view %s: %w", name, err)
	}

	cols := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok {
			cols = append(cols, s)
		}
	}
	return cols, nil
}

func emptyViewSQL() string {
	return fmt.Sprintf(
		"SELECT CAST(NULL AS VARCHAR) AS date, CAST(NULL AS VARCHAR) AS code, CAST(0 AS INTEGER) AS %s, CAST(0 AS BIGINT) AS %s WHERE false",
		duckdb.Ident(dedup.ShardColumn), duckdb.Ident(dedup.RowColumn),
	)
}
