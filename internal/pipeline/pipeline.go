// Package pipeline runs one consolidation: register shard views, split every
// (kind, year) task, audit each artifact, emit the QC report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/quality"
	"github.com/wonny/consolidator/internal/report"
	"github.com/wonny/consolidator/internal/runconfig"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
)

// Options configures one run
type Options struct {
	ShardDir  string
	OutputDir string
	Years     partition.YearSelector
	RunConfig *runconfig.Config

	// Now is the run clock; defaults to time.Now
	Now func() time.Time
}

// TaskError is one failed (kind, year) task. Sibling tasks are not affected.
type TaskError struct {
	Kind contracts.Kind
	Year int // 0 for metadata artifacts
	Err  error
}

func (e TaskError) Error() string {
	if e.Year == 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %d: %v", e.Kind, e.Year, e.Err)
}

func (e TaskError) Unwrap() error { return e.Err }

// Result is the outcome of a run. A clean return does not imply artifacts:
// callers inspect Report.
type Result struct {
	RunID       string
	Years       []int
	Report      *contracts.QualityReport
	Artifacts   contracts.PublishSet
	ReportPaths report.Paths
	TaskErrors  []TaskError
	StartedAt   time.Time
	Duration    time.Duration
}

// Pipeline orchestrates a consolidation run on one engine connection.
// ⭐ SSOT: 통합 실행 순서는 여기서만 정의
type Pipeline struct {
	engine   *duckdb.Engine
	registry *partition.Registry
	splitter *partition.Splitter
	auditor  *quality.Auditor
	opts     Options
	logger   *logger.Logger
}

// New creates a pipeline
func New(engine *duckdb.Engine, opts Options, log *logger.Logger) *Pipeline {
	if opts.RunConfig == nil {
		opts.RunConfig = runconfig.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log = log.WithComponent("pipeline")
	registry := partition.NewRegistry(engine, log)

	return &Pipeline{
		engine:   engine,
		registry: registry,
		splitter: partition.NewSplitter(engine, registry, opts.OutputDir, log),
		auditor:  quality.NewAuditor(log),
		opts:     opts,
		logger:   log,
	}
}

// Run executes the whole consolidation. It only returns an error when the
// report cannot be written or ctx is done. An unreadable shard set fails
// its own kind's tasks only.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	now := p.opts.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		Years:     partition.ResolveYears(p.opts.Years, now),
		StartedAt: now,
	}
	res.Report = contracts.NewQualityReport(res.RunID, now)
	if hash, err := runconfig.Hash(p.opts.RunConfig); err == nil {
		res.Report.ConfigHash = hash
	}

	log := p.logger.WithFields(map[string]interface{}{
		"run_id": res.RunID,
		"years":  p.opts.Years.String(),
	})
	log.WithField("year_count", len(res.Years)).Info("Starting consolidation")

	snapshot := p.registerViews(ctx, res)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	for _, year := range res.Years {
		for _, kind := range contracts.PartitionedKinds {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			p.runSplit(ctx, res, kind, year)
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		p.runSnapshot(ctx, res, snapshot, year)
	}

	p.runMetadata(ctx, res)

	paths, err := report.Emit(p.opts.OutputDir, res.Report)
	if err != nil {
		return res, fmt.Errorf("failed to emit report: %w", err)
	}
	res.ReportPaths = paths
	res.Artifacts.Add(contracts.Artifact{LocalPath: paths.JSON, RemoteName: report.JSONFile})
	res.Artifacts.Add(contracts.Artifact{LocalPath: paths.Markdown, RemoteName: report.MarkdownFile})

	res.Duration = time.Since(now)
	log.WithFields(map[string]interface{}{
		"artifacts":   len(res.Artifacts),
		"errors":      len(res.Report.Errors),
		"task_errors": len(res.TaskErrors),
		"anomalies":   res.Report.TotalAnomalies(),
		"duration":    res.Duration.String(),
	}).Info("Consolidation completed")

	return res, nil
}

// registerViews registers one view per partitioned kind and resolves the
// constituents snapshot path ("" when absent). A kind whose shards cannot be
// read is recorded as a task error and gets the empty view, so its year
// tasks produce nothing.
func (p *Pipeline) registerViews(ctx context.Context, res *Result) string {
	for _, kind := range contracts.PartitionedKinds {
		if ctx.Err() != nil {
			return ""
		}

		shards, err := p.shardsFor(kind)
		if err == nil {
			_, err = p.registry.Register(ctx, kind, partition.Paths(shards))
		}
		if err == nil {
			continue
		}
		p.handleTaskErr(res, kind, 0, err)

		// 빈 view 로 대체: 해당 kind 의 연도 작업은 ErrNoRows 로 건너뜀
		if _, err := p.registry.Register(ctx, kind, nil); err != nil {
			p.logger.WithField("kind", string(kind)).WithError(err).Error("Failed to register empty fallback view")
		}
	}

	shards, err := p.shardsFor(contracts.KindSectorConstituents)
	if err != nil {
		p.handleTaskErr(res, contracts.KindSectorConstituents, 0, err)
		return ""
	}
	if len(shards) == 0 {
		p.logger.Info("No constituents snapshot found")
		return ""
	}
	return shards[0].Path
}

func (p *Pipeline) shardsFor(kind contracts.Kind) ([]partition.ShardFile, error) {
	ds := p.opts.RunConfig.For(kind)
	if ds.Sharded() {
		return partition.DiscoverShards(p.opts.ShardDir, ds.ShardPrefix)
	}
	return partition.SingleShard(p.opts.ShardDir, ds.ShardFile)
}

func (p *Pipeline) runSplit(ctx context.Context, res *Result, kind contracts.Kind, year int) {
	out, err := p.splitter.Split(ctx, kind, year)
	if p.handleTaskErr(res, kind, year, err) {
		return
	}
	p.audit(ctx, res, out, kind)
}

func (p *Pipeline) runSnapshot(ctx context.Context, res *Result, snapshot string, year int) {
	if snapshot == "" {
		return
	}
	kind := contracts.KindSectorConstituents
	out, err := p.splitter.CopySnapshot(ctx, snapshot, year)
	if p.handleTaskErr(res, kind, year, err) {
		return
	}
	p.audit(ctx, res, out, kind)
}

func (p *Pipeline) runMetadata(ctx context.Context, res *Result) {
	md := p.opts.RunConfig.Metadata

	type metaTask struct {
		enabled bool
		kind    contracts.Kind
		run     func(context.Context) (*partition.Output, error)
	}
	tasks := []metaTask{
		{md.StockList, contracts.KindStockKline, p.splitter.StockList},
		{md.SectorList, contracts.KindSectorKline, p.splitter.SectorList},
	}

	for _, task := range tasks {
		if !task.enabled || ctx.Err() != nil {
			continue
		}
		out, err := task.run(ctx)
		if p.handleTaskErr(res, task.kind, 0, err) {
			continue
		}
		res.Artifacts.Add(out.Artifact)
	}
}

// handleTaskErr logs and records a task failure. It reports whether the task
// produced nothing (failure or empty skip).
func (p *Pipeline) handleTaskErr(res *Result, kind contracts.Kind, year int, err error) bool {
	if err == nil {
		return false
	}

	fields := map[string]interface{}{"kind": string(kind), "year": year}
	if errors.Is(err, partition.ErrNoRows) {
		p.logger.WithFields(fields).Debug("No rows, skipping artifact")
		return true
	}

	res.TaskErrors = append(res.TaskErrors, TaskError{Kind: kind, Year: year, Err: err})
	p.logger.WithFields(fields).WithError(err).Error("Task failed")
	return true
}

// audit reads a finished artifact back through the engine and records its
// statistics. A successful write always joins the publish set.
func (p *Pipeline) audit(ctx context.Context, res *Result, out *partition.Output, kind contracts.Kind) {
	res.Artifacts.Add(out.Artifact)

	name := kind.ArtifactName(out.Artifact.Year)
	frame, err := LoadFrame(ctx, p.engine, out.Artifact.LocalPath)
	if err != nil {
		res.TaskErrors = append(res.TaskErrors, TaskError{Kind: kind, Year: out.Artifact.Year, Err: fmt.Errorf("audit: %w", err)})
		p.logger.WithField("artifact", name).WithError(err).Error("Failed to read artifact for audit")
		return
	}

	p.auditor.Audit(res.Report, name, frame, out.Artifact.SizeBytes, p.opts.RunConfig.For(kind).CriticalColumns)
}

// LoadFrame materializes one parquet file. Only for bounded inputs.
func LoadFrame(ctx context.Context, engine *duckdb.Engine, path string) (contracts.Frame, error) {
	table, err := engine.QueryTable(ctx, "SELECT * FROM read_parquet("+duckdb.Literal(path)+")")
	if err != nil {
		return contracts.Frame{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return contracts.Frame{Columns: table.Columns, Rows: table.Rows}, nil
}
