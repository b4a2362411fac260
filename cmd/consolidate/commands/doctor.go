package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/runconfig"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/database"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/redis"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "실행 환경 점검",
	Long: `통합 실행 전 환경을 점검합니다.

이 명령어는:
- config / run config 로드
- DuckDB 엔진 오픈 + memory_limit / temp_directory 확인
- 샤드 디렉터리의 종류별 샤드 개수 표시
- Redis / PostgreSQL 연결 (설정된 경우)

Example:
  go run ./cmd/consolidate doctor`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Consolidator Environment Check ===")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}
	fmt.Printf("✅ Config loaded (ENV: %s)\n", cfg.Env)

	path := cfg.Paths.RunConfig
	if runConfigPath != "" {
		path = runConfigPath
	}
	runCfg, err := runconfig.LoadOrDefault(path)
	if err != nil {
		return fmt.Errorf("❌ Failed to load run config: %w", err)
	}
	if err := runconfig.Validate(runCfg); err != nil {
		return fmt.Errorf("❌ Invalid run config: %w", err)
	}
	fmt.Println("✅ Run config valid")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	engine, err := duckdb.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to open engine: %w", err)
	}
	defer engine.Close()

	status, err := engine.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("❌ Engine health check failed: %w", err)
	}
	fmt.Println("✅ Engine ready")
	fmt.Printf("   Version: %s\n", status.Version)
	fmt.Printf("   Memory Limit: %s\n", status.MemoryLimit)
	fmt.Printf("   Temp Dir: %s\n", status.TempDir)

	fmt.Printf("\n📂 Shards in %s:\n", cfg.Paths.ShardDir)
	for _, kind := range contracts.AllKinds {
		ds := runCfg.For(kind)
		var shards []partition.ShardFile
		if ds.Sharded() {
			shards, err = partition.DiscoverShards(cfg.Paths.ShardDir, ds.ShardPrefix)
		} else {
			shards, err = partition.SingleShard(cfg.Paths.ShardDir, ds.ShardFile)
		}
		if err != nil {
			fmt.Printf("   ❌ %-24s %v\n", kind, err)
			continue
		}
		fmt.Printf("   %-26s %d\n", kind, len(shards))
	}
	fmt.Println()

	rdb, err := redis.New(cfg)
	switch {
	case err != nil:
		fmt.Printf("❌ Redis: %v\n", err)
	case !rdb.Enabled():
		fmt.Println("➖ Redis disabled (local run lock)")
	default:
		fmt.Println("✅ Redis connected")
		rdb.Close()
	}

	db, err := database.New(ctx, cfg)
	switch {
	case errors.Is(err, database.ErrDisabled):
		fmt.Println("➖ Report store disabled (DATABASE_URL not set)")
	case err != nil:
		fmt.Printf("❌ Database (%s): %v\n", maskPassword(cfg.Database.URL), err)
	default:
		defer db.Close()
		hs, err := db.HealthCheck(ctx)
		if err != nil {
			fmt.Printf("❌ Database health check failed: %v\n", err)
			break
		}
		fmt.Printf("✅ Database connected (%s, %v)\n", maskPassword(cfg.Database.URL), hs.ResponseTime)
	}

	fmt.Println("\n✅ Check completed")
	return nil
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
