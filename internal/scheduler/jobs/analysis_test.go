package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signals/internal/analyzer"
	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/scheduler"
	"github.com/wonny/aegis-signals/pkg/logger"
)

type stubRunner struct {
	err   error
	calls int
}

func (r *stubRunner) Run(ctx context.Context, req analyzer.RunRequest, progress func(analyzer.ProgressEvent)) (*analyzer.RunResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if progress != nil {
		progress(analyzer.ProgressEvent{Code: "000001", Done: 1, Total: 1})
	}
	return &analyzer.RunResult{Run: contracts.RunInfo{RunID: "r1", Instruments: 1}}, nil
}

func TestAnalysisJob(t *testing.T) {
	job := NewAnalysisJob(&stubRunner{}, "", logger.Nop())
	assert.Equal(t, "signal_analysis", job.Name())
	assert.Equal(t, DefaultAnalysisSchedule, job.Schedule())

	var seen int
	job.OnProgress(func(analyzer.ProgressEvent) { seen++ })
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, seen)
}

func TestAnalysisJob_Errors(t *testing.T) {
	busy := NewAnalysisJob(&stubRunner{err: analyzer.ErrRunInProgress}, "@daily", logger.Nop())
	err := busy.Run(context.Background())
	assert.ErrorIs(t, err, scheduler.ErrSkip)

	failing := NewAnalysisJob(&stubRunner{err: errors.New("no instruments")}, "@daily", logger.Nop())
	err = failing.Run(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, scheduler.ErrSkip)
}

func TestAnalysisJob_Scheduled(t *testing.T) {
	runner := &stubRunner{}
	s := scheduler.New(logger.Nop(), scheduler.DefaultOptions())
	require.NoError(t, s.AddJob(NewAnalysisJob(runner, "0 0 19 * * 1-5", logger.Nop())))

	result, err := s.RunJobSync(context.Background(), "signal_analysis")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, runner.calls)
}

func TestAnalysisJob_ScheduledWhileBusy(t *testing.T) {
	runner := &stubRunner{err: analyzer.ErrRunInProgress}
	s := scheduler.New(logger.Nop(), scheduler.DefaultOptions())
	require.NoError(t, s.AddJob(NewAnalysisJob(runner, "0 0 19 * * 1-5", logger.Nop())))

	result, err := s.RunJobSync(context.Background(), "signal_analysis")
	assert.ErrorIs(t, err, scheduler.ErrSkip)
	assert.True(t, result.Skipped)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, runner.calls, "no retry while another run is active")

	stats := s.GetJobStats()["signal_analysis"]
	assert.Equal(t, 1, stats.SkippedCount)
	assert.Equal(t, 0, stats.FailureCount)
}
