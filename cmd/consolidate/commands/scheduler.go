package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/scheduler"
	"github.com/wonny/consolidator/internal/scheduler/jobs"
	"github.com/wonny/consolidator/pkg/config"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `정기 통합 스케줄러를 시작하거나 작업을 조회합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록

Example:
  go run ./cmd/consolidate scheduler start
  go run ./cmd/consolidate scheduler start --now
  go run ./cmd/consolidate scheduler list`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- consolidate: SCHEDULE_CRON (기본 평일 17:30), 연도 선택은 SCHEDULE_YEAR
- cleanup: 매시간 (중단된 실행의 임시 파일 정리)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunNow bool
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)

	schedulerStartCmd.Flags().BoolVar(&schedulerRunNow, "now", false, "시작 직후 consolidate 1회 실행")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Consolidator Scheduler ===")

	a, err := bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()
	if schedulerRunNow {
		if err := sched.RunJob("consolidate"); err != nil {
			return err
		}
	}

	fmt.Println("\n✅ Scheduler started successfully")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	sched, err := newScheduler(a)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	printJobs(sched)
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	fmt.Println("\nRegistered jobs:")
	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  - %-12s %s\n", name, stat.Schedule)
	}
}

// newScheduler registers the consolidation and cleanup jobs
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sel, err := partition.ParseYearSelector(a.cfg.Schedule.Year)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_YEAR: %w", err)
	}

	sched := scheduler.New(a.log, scheduler.WithRetry(2, 5*time.Minute))

	consolidate := jobs.NewConsolidateJob(a.runner(), a.locker, a.cfg.Schedule.Cron, sel, a.log)
	if err := sched.AddJob(consolidate); err != nil {
		return nil, err
	}

	cleanupDirs := []string{a.cfg.Paths.OutputDir}
	if a.cfg.Publish.Mode == config.PublishLocal {
		cleanupDirs = append(cleanupDirs, a.cfg.Publish.Dir)
	}
	cleanup := jobs.NewCleanupJob(a.locker, cleanupDirs, 2*time.Hour, a.log)
	if err := sched.AddJob(cleanup); err != nil {
		return nil, err
	}

	return sched, nil
}
