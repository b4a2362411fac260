package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/consolidator/internal/api"
	"github.com/wonny/consolidator/internal/api/handlers"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "QC 리포트 API 서버 시작",
	Long: `읽기 전용 REST API 서버를 시작합니다.

Endpoints:
  GET  /health               - Health check (database, redis)
  GET  /api/qc/latest        - 최신 QC 리포트 (?format=markdown)
  GET  /api/qc/runs          - 저장된 실행 목록 (DATABASE_URL 필요)
  GET  /api/qc/runs/latest   - 최신 저장 실행 (DATABASE_URL 필요)
  GET  /api/artifacts        - 출력 디렉터리 아티팩트 목록
  GET  /api/scheduler/jobs   - 작업 통계 (--with-scheduler)

Example:
  go run ./cmd/consolidate serve
  go run ./cmd/consolidate serve --port 8090 --with-scheduler`,
	RunE: runServe,
}

var (
	servePort          string
	serveWithScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: PORT)")
	serveCmd.Flags().BoolVar(&serveWithScheduler, "with-scheduler", false, "스케줄러를 같은 프로세스에서 실행")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Consolidator API Server ===")

	a, err := bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer a.close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	h := api.Handlers{
		QC:        handlers.NewQCHandler(a.cfg.Paths.OutputDir, a.cache, a.runStore(), a.log),
		Artifacts: handlers.NewArtifactHandler(a.cfg.Paths.OutputDir, a.log),
		Checks: map[string]api.HealthCheck{
			"redis": a.rdb.Ping,
		},
	}
	if a.db != nil {
		h.Checks["database"] = a.db.Ping
	}

	if serveWithScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		h.Scheduler = handlers.NewSchedulerHandler(sched)
	}

	server := api.New(a.cfg, a.log, api.NewRouter(h, a.log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
