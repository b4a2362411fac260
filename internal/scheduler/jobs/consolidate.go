package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/runner"
	"github.com/wonny/consolidator/internal/scheduler"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

// RunLockName is the run lock shared by every job touching the output dir
const RunLockName = "consolidate"

// Consolidator runs one consolidation (runner.Runner)
type Consolidator interface {
	Run(ctx context.Context, years partition.YearSelector) (*runner.Outcome, error)
}

// ConsolidateJob runs the consolidation on a schedule
// ⭐ SSOT: 정기 통합 스케줄은 이 Job에서만
type ConsolidateJob struct {
	consolidator Consolidator
	locker       *redis.Locker
	schedule     string
	years        partition.YearSelector
	lockTTL      time.Duration
	local        sync.Mutex
	logger       *logger.Logger
}

// NewConsolidateJob creates a new consolidation job
func NewConsolidateJob(c Consolidator, locker *redis.Locker, schedule string, years partition.YearSelector, log *logger.Logger) *ConsolidateJob {
	return &ConsolidateJob{
		consolidator: c,
		locker:       locker,
		schedule:     schedule,
		years:        years,
		lockTTL:      6 * time.Hour, // 전체 이력 재생성 상한
		logger:       log,
	}
}

// Name returns the job name
func (j *ConsolidateJob) Name() string {
	return "consolidate"
}

// Schedule returns the cron schedule (with seconds)
func (j *ConsolidateJob) Schedule() string {
	return j.schedule
}

// Run executes one consolidation unless another run holds the lock.
// A held lock is not an error: the overlapping activation is skipped.
func (j *ConsolidateJob) Run(ctx context.Context) error {
	if !j.local.TryLock() {
		j.logger.Warn("Consolidation already running in this process, skipping")
		scheduler.RecordRun(ctx, scheduler.RunRecord{Skipped: true})
		return nil
	}
	defer j.local.Unlock()

	lease, ok, err := j.locker.Acquire(ctx, RunLockName, j.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		j.logger.Warn("Consolidation running on another host, skipping")
		scheduler.RecordRun(ctx, scheduler.RunRecord{Skipped: true})
		return nil
	}
	defer func() {
		// 취소된 ctx 로는 해제 불가
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			j.logger.WithError(err).Warn("Failed to release run lock")
		}
	}()

	j.logger.WithField("years", j.years.String()).Info("Starting scheduled consolidation")

	out, err := j.consolidator.Run(ctx, j.years)
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	res := out.Result
	scheduler.RecordRun(ctx, scheduler.RunRecord{
		RunID:      res.RunID,
		Artifacts:  len(res.Artifacts),
		TaskErrors: len(res.TaskErrors),
		Anomalies:  res.Report.TotalAnomalies(),
	})
	j.logger.WithFields(map[string]interface{}{
		"run_id":      res.RunID,
		"artifacts":   len(res.Artifacts),
		"task_errors": len(res.TaskErrors),
		"errors":      len(res.Report.Errors),
	}).Info("Scheduled consolidation completed")

	return nil
}
