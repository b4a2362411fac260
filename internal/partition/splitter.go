package partition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/dedup"
	"github.com/wonny/consolidator/internal/normalize"
	"github.com/wonny/consolidator/internal/schema"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
)

// ErrNoRows means the task produced zero rows; no artifact was written
var ErrNoRows = errors.New("no rows")

// ErrViewNotRegistered means Split was called before Register
var ErrViewNotRegistered = errors.New("view not registered")

// Metadata artifact names
const (
	StockListName  = "stock_list"
	SectorListName = "sector_list"
)

// Output is one written artifact
type Output struct {
	Artifact contracts.Artifact
	Rows     int64
}

// Splitter writes one artifact per (kind, year) through the engine
type Splitter struct {
	engine   *duckdb.Engine
	registry *Registry
	outDir   string
	logger   *logger.Logger
}

// NewSplitter creates a splitter writing into outDir
func NewSplitter(engine *duckdb.Engine, registry *Registry, outDir string, log *logger.Logger) *Splitter {
	return &Splitter{
		engine:   engine,
		registry: registry,
		outDir:   outDir,
		logger:   log,
	}
}

// OutDir returns the artifact directory
func (s *Splitter) OutDir() string {
	return s.outDir
}

// normalizedSQL renders the normalized relation of a kind with its arrival
// columns carried through for dedup
func (s *Splitter) normalizedSQL(kind contracts.Kind) (string, error) {
	view, ok := s.registry.View(kind)
	if !ok {
		return "", fmt.Errorf("%s: %w", kind, ErrViewNotRegistered)
	}

	proj, err := normalize.Projection(kind, view.Columns)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("SELECT\n  %s,\n  %s,\n  %s\nFROM %s",
		proj, duckdb.Ident(dedup.ShardColumn), duckdb.Ident(dedup.RowColumn), duckdb.Ident(view.Name)), nil
}

// PartitionQuery renders the full per-(kind, year) query: normalize, filter
// to the closed calendar year, dedup, order by (code, date)
func (s *Splitter) PartitionQuery(kind contracts.Kind, year int) (string, error) {
	sch, err := schema.For(kind)
	if err != nil {
		return "", err
	}
	normalized, err := s.normalizedSQL(kind)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`WITH normalized AS (
%s
)
SELECT %s
FROM normalized
WHERE "date" BETWEEN %s AND %s
%s
%s`,
		normalized,
		identList(sch.Names()),
		duckdb.Literal(fmt.Sprintf("%04d-01-01", year)),
		duckdb.Literal(fmt.Sprintf("%04d-12-31", year)),
		dedup.Clause(dedup.KeyColumns, dedup.ArrivalColumns),
		dedup.OrderBy(dedup.KeyColumns),
	), nil
}

// Split writes {kind}_{year}.parquet. Zero rows → ErrNoRows and no file.
func (s *Splitter) Split(ctx context.Context, kind contracts.Kind, year int) (*Output, error) {
	query, err := s.PartitionQuery(kind, year)
	if err != nil {
		return nil, err
	}

	out, err := s.write(ctx, query, kind.FileName(year))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind.ArtifactName(year), err)
	}

	out.Artifact.Kind = kind
	out.Artifact.Year = year

	s.logger.WithFields(map[string]interface{}{
		"kind": string(kind),
		"year": year,
		"rows": out.Rows,
		"path": out.Artifact.LocalPath,
	}).Info("Wrote partition")

	return out, nil
}

// CopySnapshot duplicates the latest constituents snapshot verbatim into
// sector_constituents_{year}.parquet. An absent snapshot → ErrNoRows.
func (s *Splitter) CopySnapshot(ctx context.Context, snapshot string, year int) (*Output, error) {
	kind := contracts.KindSectorConstituents
	if snapshot == "" {
		return nil, fmt.Errorf("%s: %w", kind.ArtifactName(year), ErrNoRows)
	}

	rows, err := s.engine.QueryInt(ctx, fmt.Sprintf("SELECT count(*) FROM read_parquet(%s)", duckdb.Literal(snapshot)))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", snapshot, err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%s: %w", kind.ArtifactName(year), ErrNoRows)
	}

	dst := filepath.Join(s.outDir, kind.FileName(year))
	size, err := copyFile(snapshot, dst)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"kind": string(kind),
		"year": year,
		"rows": rows,
		"path": dst,
	}).Info("Copied constituents snapshot")

	return &Output{
		Artifact: contracts.Artifact{
			Kind:       kind,
			Year:       year,
			LocalPath:  dst,
			RemoteName: filepath.Base(dst),
			SizeBytes:  size,
		},
		Rows: rows,
	}, nil
}

// StockList writes stock_list.parquet: every code with the latest date seen
func (s *Splitter) StockList(ctx context.Context) (*Output, error) {
	normalized, err := s.normalizedSQL(contracts.KindStockKline)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`WITH normalized AS (
%s
)
SELECT "code", max("date") AS "last_date"
FROM normalized
WHERE "code" IS NOT NULL
GROUP BY "code"
ORDER BY "code"`, normalized)

	return s.writeMetadata(ctx, query, StockListName)
}

// SectorList writes sector_list.parquet: every sector code with its most
// recent name and type
func (s *Splitter) SectorList(ctx context.Context) (*Output, error) {
	normalized, err := s.normalizedSQL(contracts.KindSectorKline)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`WITH normalized AS (
%s
)
SELECT "code", arg_max("name", "date") AS "name", arg_max("type", "date") AS "type"
FROM normalized
WHERE "code" IS NOT NULL
GROUP BY "code"
ORDER BY "code"`, normalized)

	return s.writeMetadata(ctx, query, SectorListName)
}

func (s *Splitter) writeMetadata(ctx context.Context, query, name string) (*Output, error) {
	out, err := s.write(ctx, query, name+".parquet")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"artifact": name,
		"rows":     out.Rows,
	}).Info("Wrote metadata artifact")

	return out, nil
}

// write streams query into a temp file next to the target, then renames it
// into place. The engine never materializes the result in process memory.
func (s *Splitter) write(ctx context.Context, query, fileName string) (*Output, error) {
	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	dst := filepath.Join(s.outDir, fileName)
	tmp := filepath.Join(s.outDir, "."+strings.TrimSuffix(fileName, ".parquet")+".tmp.parquet")

	stmt := fmt.Sprintf("COPY (\n%s\n) TO %s (FORMAT PARQUET, COMPRESSION ZSTD)", query, duckdb.Literal(tmp))
	if err := s.engine.Exec(ctx, stmt); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("copy failed: %w", err)
	}

	rows, err := s.engine.QueryInt(ctx, fmt.Sprintf("SELECT count(*) FROM read_parquet(%s)", duckdb.Literal(tmp)))
	if err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("count failed: %w", err)
	}

	if rows == 0 {
		os.Remove(tmp)
		return nil, ErrNoRows
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to move artifact into place: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}

	return &Output{
		Artifact: contracts.Artifact{
			LocalPath:  dst,
			RemoteName: fileName,
			SizeBytes:  info.Size(),
		},
		Rows: rows,
	}, nil
}

// copyFile overwrites dst with the bytes of src
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output dir: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return n, nil
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = duckdb.Ident(c)
	}
	return strings.Join(quoted, ", ")
}
