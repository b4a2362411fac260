package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/wonny/consolidator/internal/report"
	"github.com/wonny/consolidator/pkg/config"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "QC 리포트 조회",
	Long: `QC 리포트를 조회합니다.

Subcommands:
  show [path]  - qc_report.json 을 markdown 으로 출력 (기본: OUTPUT_DIR)
  runs         - 저장된 실행 목록 (DATABASE_URL 필요)

Example:
  go run ./cmd/consolidate report show
  go run ./cmd/consolidate report show output/qc_report.json
  go run ./cmd/consolidate report runs --limit 10`,
}

var (
	reportShowCmd = &cobra.Command{
		Use:   "show [path]",
		Short: "QC 리포트 출력",
		Args:  cobra.MaximumNArgs(1),
		RunE:  showReport,
	}

	reportRunsCmd = &cobra.Command{
		Use:   "runs",
		Short: "저장된 실행 목록",
		RunE:  listRuns,
	}

	reportRunsLimit int
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportShowCmd)
	reportCmd.AddCommand(reportRunsCmd)

	reportRunsCmd.Flags().IntVar(&reportRunsLimit, "limit", 20, "최대 개수")
}

func showReport(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = filepath.Join(cfg.Paths.OutputDir, report.JSONFile)
	}

	rep, err := report.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}
	return report.WriteMarkdown(os.Stdout, rep)
}

func listRuns(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.repo == nil {
		return fmt.Errorf("DATABASE_URL not set: report store disabled")
	}

	runs, err := a.repo.ListRuns(ctx, reportRunsLimit)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("QC runs (%d)", len(runs)))
	for _, r := range runs {
		fmt.Printf("  %s  %s  artifacts=%-3d anomalies=%-8s errors=%d\n",
			r.GeneratedAt.Format("2006-01-02 15:04:05"), r.RunID,
			r.ArtifactCount, humanize.Comma(int64(r.AnomalyCount)), r.ErrorCount)
	}
	return nil
}
