package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/pipeline"
	"github.com/wonny/consolidator/internal/runconfig"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "단일 샤드 점검",
	Long: `단일 워커 샤드를 정규화/중복제거/감사하여 요약을 출력합니다.
출력 디렉터리는 변경하지 않습니다.

Example:
  go run ./cmd/consolidate inspect shard all_artifacts/kline_part_3.parquet --kind stock_kline
  go run ./cmd/consolidate inspect shard all_artifacts/flow_part_0.parquet --kind stock_money_flow
  go run ./cmd/consolidate inspect code all_artifacts/kline_part_3.parquet 600000 --kind stock_kline`,
}

var (
	inspectShardCmd = &cobra.Command{
		Use:   "shard <path>",
		Short: "샤드 요약 (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectShard,
	}

	inspectCodeCmd = &cobra.Command{
		Use:   "code <path> <code>",
		Short: "샤드 내 단일 종목 이력 (정규화/중복제거 후)",
		Args:  cobra.ExactArgs(2),
		RunE:  inspectCode,
	}

	inspectKind string
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectShardCmd)
	inspectCmd.AddCommand(inspectCodeCmd)

	for _, c := range []*cobra.Command{inspectShardCmd, inspectCodeCmd} {
		c.Flags().StringVar(&inspectKind, "kind", string(contracts.KindStockKline), "데이터 종류")
	}
}

func inspectShard(cmd *cobra.Command, args []string) error {
	kind, err := contracts.ParseKind(inspectKind)
	if err != nil {
		return err
	}

	env, err := openInspectEnv()
	if err != nil {
		return err
	}
	defer env.engine.Close()

	summary, err := pipeline.InspectShard(env.ctx, env.engine, kind, args[0], env.runCfg.For(kind).CriticalColumns, env.log)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func inspectCode(cmd *cobra.Command, args []string) error {
	kind, err := contracts.ParseKind(inspectKind)
	if err != nil {
		return err
	}

	env, err := openInspectEnv()
	if err != nil {
		return err
	}
	defer env.engine.Close()

	recs, err := pipeline.InspectCode(env.ctx, env.engine, kind, args[0], args[1], env.log)
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("%s / %s", kind, recs.Code), args[0])
	PrintCodeRecords(recs)
	return nil
}

// inspectEnv is what every inspect subcommand needs: no redis, no database
type inspectEnv struct {
	ctx    context.Context
	engine *duckdb.Engine
	runCfg *runconfig.Config
	log    *logger.Logger
}

func openInspectEnv() (*inspectEnv, error) {
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

	ctx := context.Background()
	engine, err := duckdb.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &inspectEnv{ctx: ctx, engine: engine, runCfg: runCfg, log: log}, nil
}
