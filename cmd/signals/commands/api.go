package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-signals/internal/api"
	"github.com/wonny/aegis-signals/internal/api/handlers"
	"github.com/wonny/aegis-signals/internal/scheduler"
	"github.com/wonny/aegis-signals/internal/scheduler/jobs"
	"github.com/wonny/aegis-signals/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 시그널 통계 조회 엔드포인트 제공
- 분석 실행 트리거 + WebSocket 진행 상황 스트림 제공

Endpoints:
  GET  /health                     - Health check
  GET  /api/signals                - 시그널 카탈로그
  GET  /api/summary                - 최근 전체 시장 요약
  GET  /api/stocks/{code}/signals  - 종목별 통계
  POST /api/analysis/run           - 분석 실행 트리거
  GET  /api/analysis/status        - 실행 상태
  GET  /ws/progress                - 진행 상황 스트림
  GET  /metrics                    - Prometheus metrics

Example:
  go run ./cmd/signals api
  go run ./cmd/signals api --port 8080 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "signal_analysis 스케줄 잡 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Signals API Server ===")

	baseCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	// 1. Wire dependencies
	d, err := newDeps(baseCtx, depsOptions{WriteReports: true})
	if err != nil {
		return err
	}
	defer d.Close()

	cfg, log := d.cfg, d.log

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port":       cfg.Port,
		"env":        cfg.Env,
		"bar_source": cfg.Analysis.BarSource,
		"persist":    cfg.Analysis.Persist,
	}).Info("Initializing API server")

	// 2. Create handlers
	hub := handlers.NewProgressHub(log)
	limiter := redis.NewRateLimiter(d.rdb, redisPrefix)
	analysisHandler := handlers.NewAnalysisHandler(baseCtx, d.service, limiter, hub, log)

	// 3. Create router + server
	router := api.NewRouter(analysisHandler, hub, cfg.MetricsEnabled, log)
	server := api.New(cfg, log, router)

	// 4. Optional scheduler sharing the same service
	var sched *scheduler.Scheduler
	if apiWithScheduler {
		sched = scheduler.New(log, scheduler.DefaultOptions())
		job := jobs.NewAnalysisJob(d.service, cfg.Analysis.Schedule, log)
		job.OnProgress(hub.Broadcast)
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job: %w", err)
		}
		sched.Start()
	}

	// 5. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	PrintList([]string{
		"GET  /health",
		"GET  /api/signals",
		"GET  /api/summary",
		"GET  /api/stocks/{code}/signals",
		"POST /api/analysis/run",
		"GET  /api/analysis/status",
		"GET  /ws/progress",
		"GET  /metrics",
	})
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// 실행 중인 분석 취소
	cancelRuns()
	if sched != nil {
		sched.Stop()
	}
	hub.Close()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
