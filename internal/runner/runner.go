// Package runner wires one consolidation run to its side effects: report
// persistence, latest-report cache and artifact publication.
package runner

import (
	"context"
	"fmt"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/pipeline"
	"github.com/wonny/consolidator/internal/publish"
	"github.com/wonny/consolidator/internal/runconfig"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

// ReportSaver persists a finished QC report (internal/store)
type ReportSaver interface {
	SaveRun(ctx context.Context, rep *contracts.QualityReport) error
}

// Deps are the optional collaborators of a Runner. Nil fields are skipped.
type Deps struct {
	Store ReportSaver
	Cache *redis.Cache
	Sink  contracts.ArtifactSink
}

// Outcome is a finished run plus its publish summary (nil when not published)
type Outcome struct {
	Result  *pipeline.Result
	Publish *publish.Summary
}

// Runner executes consolidations with a fresh engine per run
// ⭐ SSOT: 실행 + 후처리(저장/캐시/배포) 순서는 여기서만
type Runner struct {
	cfg    *config.Config
	runCfg *runconfig.Config
	deps   Deps
	logger *logger.Logger
}

// New creates a runner
func New(cfg *config.Config, runCfg *runconfig.Config, deps Deps, log *logger.Logger) *Runner {
	if runCfg == nil {
		runCfg = runconfig.Default()
	}
	return &Runner{
		cfg:    cfg,
		runCfg: runCfg,
		deps:   deps,
		logger: log.WithComponent("runner"),
	}
}

// Run consolidates the selected years. Persistence and cache failures are
// logged; a publish failure is returned alongside the outcome.
func (r *Runner) Run(ctx context.Context, years partition.YearSelector) (*Outcome, error) {
	engine, err := duckdb.New(ctx, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	p := pipeline.New(engine, pipeline.Options{
		ShardDir:  r.cfg.Paths.ShardDir,
		OutputDir: r.cfg.Paths.OutputDir,
		Years:     years,
		RunConfig: r.runCfg,
	}, r.logger)

	res, err := p.Run(ctx)
	if err != nil {
		return &Outcome{Result: res}, fmt.Errorf("consolidation: %w", err)
	}
	out := &Outcome{Result: res}

	r.save(ctx, res.Report)
	r.cacheReport(ctx, res.Report)

	if r.deps.Sink == nil {
		r.logger.Debug("Publishing disabled")
		return out, nil
	}
	concurrency := r.cfg.Publish.Concurrency
	summary, err := publish.NewPublisher(r.deps.Sink, concurrency, r.logger).Publish(ctx, res.Artifacts)
	out.Publish = summary
	return out, err
}

func (r *Runner) save(ctx context.Context, rep *contracts.QualityReport) {
	if r.deps.Store == nil {
		return
	}
	if err := r.deps.Store.SaveRun(ctx, rep); err != nil {
		r.logger.WithError(err).WithField("run_id", rep.RunID).Error("Failed to persist QC report")
		return
	}
	r.logger.WithField("run_id", rep.RunID).Debug("QC report persisted")
}

func (r *Runner) cacheReport(ctx context.Context, rep *contracts.QualityReport) {
	if r.deps.Cache == nil {
		return
	}
	for _, key := range []string{redis.LatestReportKey(), redis.RunReportKey(rep.RunID)} {
		if err := r.deps.Cache.Set(ctx, key, rep, redis.TTLLong); err != nil {
			r.logger.WithError(err).WithField("key", key).Warn("Failed to cache QC report")
		}
	}
}
