package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	runConfigPath string
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "A-share 시장 데이터 샤드 통합기",
	Long: `Market-data shard consolidator

워커별 parquet 샤드를 연도별 아티팩트로 병합하고
(code, date) 중복 제거 + 품질 리포트를 생성합니다.

Usage:
  go run ./cmd/consolidate [command]

Examples:
  go run ./cmd/consolidate run
  go run ./cmd/consolidate run --year 2023
  go run ./cmd/consolidate run --all
  go run ./cmd/consolidate scheduler start
  go run ./cmd/consolidate serve
  go run ./cmd/consolidate report show`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runConfigPath, "run-config", "", "YAML run config (default: RUN_CONFIG or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
