package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/metrics"
	"github.com/wonny/aegis-signals/internal/s0_data/quality"
	"github.com/wonny/aegis-signals/internal/s2_signals"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
	"github.com/wonny/aegis-signals/internal/s4_summary"
	"github.com/wonny/aegis-signals/pkg/logger"
	"github.com/wonny/aegis-signals/pkg/redis"
)

// ErrNoInstruments is returned when neither the config nor the source yields codes
var ErrNoInstruments = errors.New("no instruments to analyze")

// Analyzer runs the S1→S4 pipeline over many instruments
// ⭐ SSOT: 종목 병렬 실행 + 집계 barrier 는 여기서만
type Analyzer struct {
	source     contracts.BarSource
	opts       Options
	evaluator  *s3_backtest.Evaluator
	aggregator *s4_summary.Aggregator
	gate       *quality.QualityGate
	cache      *redis.Cache

	statsSinks   []contracts.StatsSink
	summarySinks []contracts.SummarySink
	runSinks     []contracts.RunSink
	progress     func(ProgressEvent)

	logger *logger.Logger
}

// ProgressEvent is emitted once per finished instrument
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	Code    string    `json:"code"`
	Name    string    `json:"name"`
	Done    int       `json:"done"`
	Total   int       `json:"total"`
	Skipped bool      `json:"skipped"`
	Cached  bool      `json:"cached"`
	Warning string    `json:"warning,omitempty"`
	Time    time.Time `json:"time"`
}

// RunResult holds the output of one run
type RunResult struct {
	Run      contracts.RunInfo
	Reports  []*contracts.StockReport // input code order
	Summary  *contracts.MarketSummary
	Duration time.Duration
}

// New creates a new Analyzer
func New(source contracts.BarSource, opts Options, log *logger.Logger) (*Analyzer, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid analyzer options: %w", err)
	}

	evaluator, err := s3_backtest.NewEvaluator(opts.Backtest)
	if err != nil {
		return nil, err
	}

	log = log.WithField("module", "analyzer")
	return &Analyzer{
		source:     source,
		opts:       opts,
		evaluator:  evaluator,
		aggregator: s4_summary.NewAggregator(log.Zerolog()),
		gate:       quality.NewQualityGate(opts.Quality),
		logger:     log,
	}, nil
}

// WithCache enables report caching (no-op cache when Redis is disabled)
func (a *Analyzer) WithCache(cache *redis.Cache) *Analyzer {
	a.cache = cache
	return a
}

// AddStatsSink registers a per-instrument sink. RunSink is detected automatically.
func (a *Analyzer) AddStatsSink(sink contracts.StatsSink) {
	a.statsSinks = append(a.statsSinks, sink)
	if rs, ok := sink.(contracts.RunSink); ok {
		a.runSinks = append(a.runSinks, rs)
	}
}

// AddSummarySink registers a market summary sink
func (a *Analyzer) AddSummarySink(sink contracts.SummarySink) {
	a.summarySinks = append(a.summarySinks, sink)
}

// OnProgress sets the progress callback. Called from a single goroutine.
func (a *Analyzer) OnProgress(fn func(ProgressEvent)) {
	a.progress = fn
}

// Options returns the run options
func (a *Analyzer) Options() Options {
	return a.opts
}

// ResolveCodes returns the configured codes, or every code the source lists
func (a *Analyzer) ResolveCodes(ctx context.Context, configured []string) ([]string, error) {
	if len(configured) > 0 {
		return configured, nil
	}

	lister, ok := a.source.(contracts.CodeLister)
	if !ok {
		return nil, ErrNoInstruments
	}
	codes, err := lister.ListCodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	if len(codes) == 0 {
		return nil, ErrNoInstruments
	}
	return codes, nil
}

type job struct {
	index int
	code  string
}

type outcome struct {
	index   int
	report  *contracts.StockReport
	loaded  bool // false: 로드 실패 (싱크로 보내지 않음)
	cached  bool
	elapsed time.Duration
}

// Run analyzes every code, then aggregates once all workers are done
func (a *Analyzer) Run(ctx context.Context, codes []string) (*RunResult, error) {
	start := time.Now()
	run := contracts.RunInfo{
		RunID:      uuid.NewString(),
		ConfigHash: a.opts.ConfigHash,
		Horizon:    a.opts.Backtest.Horizon,
		StartedAt:  start,
	}

	log := a.logger.WithField("run_id", run.RunID)
	log.WithFields(map[string]interface{}{
		"instruments": len(codes),
		"signals":     len(a.opts.Catalogue),
		"horizon":     run.Horizon,
		"workers":     a.opts.Workers,
	}).Info("Starting analysis run")

	for _, rs := range a.runSinks {
		if err := rs.StartRun(ctx, &run); err != nil {
			log.WithError(err).Error("Failed to record run start")
		}
	}

	outcomes := a.runWorkers(ctx, run.RunID, codes)

	if err := ctx.Err(); err != nil {
		metrics.RunsTotal.WithLabelValues("cancelled").Inc()
		log.WithError(err).Warn("Analysis run cancelled")
		return nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}

	// barrier 이후: 입력 순서대로 정렬된 결과
	result := &RunResult{Reports: make([]*contracts.StockReport, len(codes))}
	for _, o := range outcomes {
		result.Reports[o.index] = o.report
		if o.report.Skipped {
			run.Skipped++
		} else {
			run.Instruments++
		}
	}

	for _, o := range outcomes {
		if !o.loaded {
			continue
		}
		for _, sink := range a.statsSinks {
			if err := sink.WriteStock(ctx, o.report); err != nil {
				log.WithError(err).WithField("code", o.report.Code).Error("Failed to write stock report")
			}
		}
	}

	summary := a.aggregator.Summarize(run.RunID, run.Horizon, a.opts.Catalogue, result.Reports)
	for _, sink := range a.summarySinks {
		if err := sink.WriteSummary(ctx, summary); err != nil {
			log.WithError(err).Error("Failed to write summary")
		}
	}

	run.FinishedAt = time.Now()
	for _, rs := range a.runSinks {
		if err := rs.FinishRun(ctx, &run); err != nil {
			log.WithError(err).Error("Failed to record run finish")
		}
	}

	result.Run = run
	result.Summary = summary
	result.Duration = run.FinishedAt.Sub(start)

	metrics.RunsTotal.WithLabelValues("success").Inc()
	metrics.RunSeconds.Observe(result.Duration.Seconds())

	log.WithFields(map[string]interface{}{
		"analyzed": run.Instruments,
		"skipped":  run.Skipped,
		"duration": result.Duration.String(),
	}).Info("Analysis run completed")

	return result, nil
}

// runWorkers fans codes out to the worker pool and returns outcomes in index order
func (a *Analyzer) runWorkers(ctx context.Context, runID string, codes []string) []outcome {
	workers := a.opts.Workers
	if workers > len(codes) {
		workers = len(codes)
	}

	limit := rate.Inf
	if a.opts.LoadRate > 0 {
		limit = rate.Limit(a.opts.LoadRate)
	}
	limiter := rate.NewLimiter(limit, 1)

	jobCh := make(chan job, len(codes))
	resultCh := make(chan outcome, len(codes))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			a.worker(ctx, workerID, runID, limiter, jobCh, resultCh)
		}(i)
	}

	// 취소되면 더 이상 종목을 나눠주지 않음
	go func() {
		defer close(jobCh)
		for i, code := range codes {
			select {
			case <-ctx.Done():
				return
			case jobCh <- job{index: i, code: code}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]outcome, 0, len(codes))
	done := 0
	for o := range resultCh {
		outcomes = append(outcomes, o)
		done++

		if o.report.Skipped {
			metrics.InstrumentsTotal.WithLabelValues("skipped").Inc()
		} else if o.cached {
			metrics.InstrumentsTotal.WithLabelValues("cached").Inc()
		} else {
			metrics.InstrumentsTotal.WithLabelValues("analyzed").Inc()
		}
		metrics.AnalyzeSeconds.Observe(o.elapsed.Seconds())

		if a.progress != nil {
			a.progress(ProgressEvent{
				RunID:   runID,
				Code:    o.report.Code,
				Name:    o.report.Name,
				Done:    done,
				Total:   len(codes),
				Skipped: o.report.Skipped,
				Cached:  o.cached,
				Warning: o.report.Warning,
				Time:    time.Now(),
			})
		}
	}

	sorted := make([]outcome, 0, len(outcomes))
	byIndex := make(map[int]outcome, len(outcomes))
	for _, o := range outcomes {
		byIndex[o.index] = o
	}
	for i := range codes {
		if o, ok := byIndex[i]; ok {
			sorted = append(sorted, o)
		}
	}
	return sorted
}

// worker loads and analyzes one instrument at a time
func (a *Analyzer) worker(ctx context.Context, workerID int, runID string, limiter *rate.Limiter, jobCh <-chan job, resultCh chan<- outcome) {
	for j := range jobCh {
		start := time.Now()

		if err := limiter.Wait(ctx); err != nil {
			resultCh <- a.failed(j, runID, err, start)
			continue
		}

		series, err := a.source.LoadSeries(ctx, j.code)
		if err != nil {
			a.logger.WithError(err).WithFields(map[string]interface{}{
				"worker":     workerID,
				"stock_code": j.code,
			}).Warn("Failed to load series")
			resultCh <- a.failed(j, runID, err, start)
			continue
		}

		report, cached := a.cachedReport(ctx, series)
		if report == nil {
			report = a.AnalyzeSeries(ctx, series)
			a.storeReport(ctx, series, report)
		}
		report.RunID = runID

		a.logger.WithFields(map[string]interface{}{
			"worker":     workerID,
			"stock_code": j.code,
			"bars":       series.Len(),
			"cached":     cached,
		}).Debug("Analyzed instrument")

		resultCh <- outcome{index: j.index, report: report, loaded: true, cached: cached, elapsed: time.Since(start)}
	}
}

func (a *Analyzer) failed(j job, runID string, err error, start time.Time) outcome {
	report := a.emptyReport(runID, j.code, "")
	report.Skipped = true
	report.Warning = err.Error()
	return outcome{index: j.index, report: report, elapsed: time.Since(start)}
}

// AnalyzeSeries evaluates every selected signal on one series.
// 시그널 하나의 실패는 해당 시그널 통계(Error)에만 기록되고 나머지는 계속 진행
func (a *Analyzer) AnalyzeSeries(ctx context.Context, s *contracts.BarSeries) *contracts.StockReport {
	report := a.emptyReport("", s.Code, s.Name)
	report.Bars = s.Len()
	report.FirstDate = s.FirstDate()
	report.LastDate = s.LastDate()

	switch {
	case s.Len() == 0:
		report.Skipped = true
		report.Warning = "empty series"
	case s.Len() < a.opts.MinBars:
		report.Skipped = true
		report.Warning = fmt.Errorf("%d bars < %d: %w", s.Len(), a.opts.MinBars, contracts.ErrSeriesTooShort).Error()
	}
	if report.Skipped {
		a.logger.WithFields(map[string]interface{}{
			"stock_code": s.Code,
			"bars":       s.Len(),
		}).Warn("Skipping instrument")
		return report
	}

	if snapshot := a.gate.Check(s); len(snapshot.Warnings) > 0 {
		report.Warning = snapshot.Warning()
	}

	for i, sig := range a.opts.Catalogue {
		flags, err := s2_signals.Evaluate(sig, s, a.opts.Params)
		if err != nil {
			report.Stats[i].Error = err.Error()
			metrics.SignalErrorsTotal.WithLabelValues(sig.Code).Inc()
			a.logger.WithError(err).WithFields(map[string]interface{}{
				"stock_code": s.Code,
				"signal":     sig.Code,
			}).Warn("Signal evaluation failed")
			continue
		}

		stats := a.evaluator.Evaluate(s, flags).Stats
		stats.Signal = sig.Code
		stats.Name = sig.Name
		report.Stats[i] = stats

		metrics.OccurrencesTotal.WithLabelValues(sig.Code).Add(float64(stats.Count))
	}

	return report
}

func (a *Analyzer) emptyReport(runID, code, name string) *contracts.StockReport {
	stats := make([]contracts.SignalStats, len(a.opts.Catalogue))
	for i, sig := range a.opts.Catalogue {
		stats[i] = contracts.SignalStats{Signal: sig.Code, Name: sig.Name}
	}
	return &contracts.StockReport{
		RunID:      runID,
		Code:       code,
		Name:       name,
		Stats:      stats,
		AnalyzedAt: time.Now(),
	}
}

func (a *Analyzer) cacheKey(s *contracts.BarSeries) string {
	return redis.ReportKey(s.Code, s.LastDate().Format("20060102"), a.opts.ConfigHash)
}

func (a *Analyzer) cachedReport(ctx context.Context, s *contracts.BarSeries) (*contracts.StockReport, bool) {
	if a.cache == nil || a.opts.ConfigHash == "" {
		return nil, false
	}

	var report contracts.StockReport
	hit, err := a.cache.Get(ctx, a.cacheKey(s), &report)
	if err != nil {
		a.logger.WithError(err).WithField("stock_code", s.Code).Warn("Report cache read failed")
		return nil, false
	}
	if !hit || report.Bars != s.Len() {
		return nil, false
	}
	return &report, true
}

func (a *Analyzer) storeReport(ctx context.Context, s *contracts.BarSeries, report *contracts.StockReport) {
	if a.cache == nil || a.opts.ConfigHash == "" {
		return
	}
	if err := a.cache.Set(ctx, a.cacheKey(s), report, redis.TTLDaily); err != nil {
		a.logger.WithError(err).WithField("stock_code", s.Code).Warn("Report cache write failed")
	}
}
