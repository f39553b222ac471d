package scheduler

import (
	"context"
	"time"
)

// DefaultHistoryLimit 잡별 보관 이력 수 (평일 1회 분석 기준 약 3개월)
const DefaultHistoryLimit = 60

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string

	// Run executes the job. Wrap ErrSkip to record a skipped run without retries.
	Run(ctx context.Context) error

	// Schedule returns the cron expression, seconds field first
	// e.g. "0 30 18 * * 1-5" (평일 18:30), "@daily"
	Schedule() string
}

// JobResult is one execution of a job, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"` // 다른 분석 실행 중
	Error     string        `json:"error,omitempty"`
}

// Failed reports a run that neither succeeded nor was skipped
func (r JobResult) Failed() bool {
	return !r.Success && !r.Skipped
}

// JobHistory keeps the most recent results of one job
type JobHistory struct {
	Results []JobResult
	limit   int
}

// NewJobHistory creates a history capped at limit results (<= 0 → DefaultHistoryLimit)
func NewJobHistory(limit int) *JobHistory {
	return &JobHistory{limit: limit}
}

func (h *JobHistory) capacity() int {
	if h.limit <= 0 {
		return DefaultHistoryLimit
	}
	return h.limit
}

// AddResult appends a result, dropping the oldest beyond the cap
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if limit := h.capacity(); len(h.Results) > limit {
		h.Results = h.Results[len(h.Results)-limit:]
	}
}

// GetLatestResults returns the latest N results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns failed results (skips excluded)
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if result.Failed() {
			failed = append(failed, result)
		}
	}
	return failed
}

// Counts returns success, failure and skip counts
func (h *JobHistory) Counts() (success, failed, skipped int) {
	for _, r := range h.Results {
		switch {
		case r.Success:
			success++
		case r.Skipped:
			skipped++
		default:
			failed++
		}
	}
	return success, failed, skipped
}

// GetSuccessRate returns success / (success + failed). Skipped runs don't count.
func (h *JobHistory) GetSuccessRate() float64 {
	success, failed, _ := h.Counts()
	if success+failed == 0 {
		return 0.0
	}
	return float64(success) / float64(success+failed)
}
