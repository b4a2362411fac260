package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/consolidator/internal/api/handlers"
	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/publish"
	"github.com/wonny/consolidator/internal/runconfig"
	"github.com/wonny/consolidator/internal/runner"
	"github.com/wonny/consolidator/internal/store"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/database"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

// keyPrefix namespaces every Redis key of this service
const keyPrefix = "consolidator"

// app holds the process-wide dependencies of a command
type app struct {
	cfg    *config.Config
	runCfg *runconfig.Config
	log    *logger.Logger
	rdb    *redis.Client
	cache  *redis.Cache
	locker *redis.Locker
	db     *database.DB
	repo   *store.ReportRepository
	sink   contracts.ArtifactSink
}

// bootstrap loads config and connects the optional backends.
// Redis and PostgreSQL are only dialed when configured.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	path := cfg.Paths.RunConfig
	if runConfigPath != "" {
		path = runConfigPath
	}
	runCfg, err := runconfig.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load run config: %w", err)
	}

	a := &app{cfg: cfg, runCfg: runCfg, log: log}

	a.rdb, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.cache = redis.NewCache(a.rdb, keyPrefix)
	a.locker = redis.NewLocker(a.rdb, keyPrefix)

	a.db, err = database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		log.Debug("DATABASE_URL not set, report store disabled")
	case err != nil:
		a.close()
		return nil, fmt.Errorf("connect to database: %w", err)
	default:
		a.repo = store.NewReportRepository(a.db)
		if err := a.repo.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	a.sink, err = publish.SinkFromConfig(cfg, a.rdb, log)
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// runner builds the consolidation runner over the connected backends
func (a *app) runner() *runner.Runner {
	deps := runner.Deps{Cache: a.cache, Sink: a.sink}
	if a.repo != nil {
		deps.Store = a.repo
	}
	return runner.New(a.cfg, a.runCfg, deps, a.log)
}

// runStore returns the report store, or a nil interface when disabled
func (a *app) runStore() handlers.RunStore {
	if a.repo == nil {
		return nil
	}
	return a.repo
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
}
