package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/scheduler/jobs"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "샤드 통합 1회 실행",
	Long: `샤드를 연도별 아티팩트로 통합하고 QC 리포트를 생성합니다.

연도 선택:
  (기본)      현재 연도
  --year N    지정 연도
  --all       2005 ~ 작년 전체 이력

PUBLISH_MODE 가 local/hf 이면 결과를 배포합니다.

Example:
  go run ./cmd/consolidate run
  go run ./cmd/consolidate run --year 2023
  go run ./cmd/consolidate run --all`,
	RunE: runConsolidate,
}

var (
	runYear int
	runAll  bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runYear, "year", 0, "연도 (기본: 현재 연도)")
	runCmd.Flags().BoolVar(&runAll, "all", false, "전체 이력 (2005 ~ 작년)")
	runCmd.MarkFlagsMutuallyExclusive("year", "all")
}

// yearSelector maps the flags onto a selector
func yearSelector(year int, all bool) (partition.YearSelector, error) {
	if all {
		return partition.YearSelector{Year: partition.AllYears}, nil
	}
	if year == 0 {
		return partition.YearSelector{}, nil
	}
	return partition.ParseYearSelector(strconv.Itoa(year))
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	sel, err := yearSelector(runYear, runAll)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	start := time.Now()
	PrintHeader("Consolidation",
		fmt.Sprintf("Years     : %s", sel.String()),
		fmt.Sprintf("Shards    : %s", a.cfg.Paths.ShardDir),
		fmt.Sprintf("Output    : %s", a.cfg.Paths.OutputDir),
		fmt.Sprintf("Publish   : %s", a.cfg.Publish.Mode),
	)

	lease, ok, err := a.locker.Acquire(ctx, jobs.RunLockName, 6*time.Hour)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("another consolidation holds the run lock")
	}
	defer lease.Release(context.Background())

	out, err := a.runner().Run(ctx, sel)
	if out != nil && out.Result != nil && out.Result.Report != nil {
		PrintRunSummary(out.Result)
		PrintPublishSummary(out.Publish)
	}
	if err != nil {
		PrintCompletion(start, false)
		return err
	}

	res := out.Result
	PrintCompletion(start, len(res.TaskErrors) == 0 && !res.Report.HasErrors())
	return nil
}
