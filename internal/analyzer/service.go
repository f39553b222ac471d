package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/wonny/aegis-signals/internal/analysisconfig"
	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/report"
	"github.com/wonny/aegis-signals/internal/s0_data"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
	"github.com/wonny/aegis-signals/pkg/logger"
	"github.com/wonny/aegis-signals/pkg/redis"
)

// ErrRunInProgress is returned when a run is already executing
var ErrRunInProgress = errors.New("analysis run already in progress")

// ServiceConfig holds runtime settings shared by the CLI, API and scheduler
type ServiceConfig struct {
	ConfigPath   string  // YAML 분석 설정 (없으면 기본값)
	Workers      int
	LoadRate     float64
	WriteReports bool // Markdown 리포트 출력 여부
}

// RunRequest overrides parts of the YAML config for one run
type RunRequest struct {
	Codes   []string
	Signals []string
}

// Service loads the analysis config, wires sources and sinks and runs one analysis at a time
// ⭐ SSOT: CLI / API / 스케줄러 공통 실행 경로
type Service struct {
	cfg    ServiceConfig
	source contracts.BarSource // nil → YAML data_dir 의 CSV
	repo   *s3_backtest.Repository
	cache  *redis.Cache
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	last    *RunResult
}

// NewService creates a new analysis service. source, repo and cache are optional.
func NewService(cfg ServiceConfig, source contracts.BarSource, repo *s3_backtest.Repository, cache *redis.Cache, log *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		source: source,
		repo:   repo,
		cache:  cache,
		logger: log.WithField("module", "analysis.service"),
	}
}

// LoadConfig reads the YAML config, falling back to defaults when the file is absent
func (s *Service) LoadConfig() (*analysisconfig.Config, error) {
	if s.cfg.ConfigPath == "" {
		return analysisconfig.Default(), nil
	}

	cfg, _, err := analysisconfig.Load(s.cfg.ConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.WithField("path", s.cfg.ConfigPath).Warn("Analysis config not found, using defaults")
		return analysisconfig.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	for _, w := range analysisconfig.Warn(cfg) {
		s.logger.WithFields(map[string]interface{}{
			"code":    w.Code,
			"message": w.Message,
		}).Warn("Analysis config warning")
	}
	return cfg, nil
}

// Running reports whether a run is executing
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the most recent completed run (nil before the first run)
func (s *Service) Last() *RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run executes one full analysis. Only one run executes at a time.
func (s *Service) Run(ctx context.Context, req RunRequest, progress func(ProgressEvent)) (*RunResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	cfg, err := s.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load analysis config: %w", err)
	}
	if len(req.Signals) > 0 {
		cfg.Signals = req.Signals
		if err := analysisconfig.Validate(cfg); err != nil {
			return nil, err
		}
	}

	opts, err := OptionsFromConfig(cfg, s.cfg.Workers, s.cfg.LoadRate)
	if err != nil {
		return nil, err
	}

	source := s.source
	if source == nil {
		source = s0_data.NewCSVSource(cfg.DataDir)
	}

	a, err := New(source, opts, s.logger)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		a.WithCache(s.cache)
	}
	if s.cfg.WriteReports {
		w := report.NewMarkdownWriter(cfg.OutputDir, opts.Backtest.Horizon, s.logger)
		a.AddStatsSink(w)
		a.AddSummarySink(w)
	}
	if s.repo != nil {
		sink := s3_backtest.NewRepositorySink(s.repo)
		a.AddStatsSink(sink)
		a.AddSummarySink(sink)
	}
	if progress != nil {
		a.OnProgress(progress)
	}

	codes := req.Codes
	if len(codes) == 0 {
		codes = cfg.StockCodes
	}
	codes, err = a.ResolveCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	result, err := a.Run(ctx, codes)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, redis.SummaryKey(), result.Summary, redis.TTLDaily); err != nil {
			s.logger.WithError(err).Warn("Failed to cache summary")
		}
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	return result, nil
}

// LatestSummary returns the newest summary: in-memory run, then cache, then repository
func (s *Service) LatestSummary(ctx context.Context) (*contracts.MarketSummary, error) {
	if last := s.Last(); last != nil {
		return last.Summary, nil
	}

	if s.cache != nil {
		var summary contracts.MarketSummary
		hit, err := s.cache.Get(ctx, redis.SummaryKey(), &summary)
		if err != nil {
			s.logger.WithError(err).Warn("Summary cache read failed")
		}
		if hit {
			return &summary, nil
		}
	}

	if s.repo != nil {
		return s.repo.GetLatestSummary(ctx)
	}
	return nil, s3_backtest.ErrNoRuns
}

// StockStats returns the newest stats for one code: in-memory run, then repository
func (s *Service) StockStats(ctx context.Context, code string) (*contracts.StockReport, error) {
	if last := s.Last(); last != nil {
		for _, r := range last.Reports {
			if r != nil && r.Code == code {
				return r, nil
			}
		}
	}

	if s.repo != nil {
		return s.repo.GetStockStats(ctx, code)
	}
	return nil, fmt.Errorf("stock %s: %w", code, contracts.ErrSeriesNotFound)
}
