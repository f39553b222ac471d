package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/aegis-signals/internal/analyzer"
	"github.com/wonny/aegis-signals/internal/scheduler"
	"github.com/wonny/aegis-signals/pkg/logger"
)

// DefaultAnalysisSchedule runs after the close on weekdays
const DefaultAnalysisSchedule = "0 30 18 * * 1-5"

// Runner executes one analysis run
type Runner interface {
	Run(ctx context.Context, req analyzer.RunRequest, progress func(analyzer.ProgressEvent)) (*analyzer.RunResult, error)
}

// AnalysisJob runs the full signal analysis on a schedule
type AnalysisJob struct {
	runner   Runner
	schedule string
	progress func(analyzer.ProgressEvent)
	logger   *logger.Logger
}

// NewAnalysisJob creates a new analysis job. Empty schedule uses DefaultAnalysisSchedule.
func NewAnalysisJob(runner Runner, schedule string, log *logger.Logger) *AnalysisJob {
	if schedule == "" {
		schedule = DefaultAnalysisSchedule
	}
	return &AnalysisJob{
		runner:   runner,
		schedule: schedule,
		logger:   log,
	}
}

// OnProgress forwards per-instrument progress (e.g. to the websocket hub)
func (j *AnalysisJob) OnProgress(fn func(analyzer.ProgressEvent)) {
	j.progress = fn
}

// Name returns the job name
func (j *AnalysisJob) Name() string {
	return "signal_analysis"
}

// Schedule returns the cron schedule
func (j *AnalysisJob) Schedule() string {
	return j.schedule
}

// Run executes the analysis
func (j *AnalysisJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled signal analysis")

	result, err := j.runner.Run(ctx, analyzer.RunRequest{}, j.progress)
	if errors.Is(err, analyzer.ErrRunInProgress) {
		// 수동 실행과 겹치면 재시도하지 않음
		return fmt.Errorf("%w: %v", scheduler.ErrSkip, err)
	}
	if err != nil {
		return fmt.Errorf("signal analysis: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":      result.Run.RunID,
		"instruments": result.Run.Instruments,
		"skipped":     result.Run.Skipped,
		"duration":    result.Duration,
	}).Info("Scheduled signal analysis completed")

	return nil
}
