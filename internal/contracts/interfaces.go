package contracts

import (
	"context"
	"time"
)

// BarSource produces one instrument's bar history (S0)
// ⭐ SSOT: 데이터 소스 인터페이스 (CSV, Postgres, HTTP)
type BarSource interface {
	LoadSeries(ctx context.Context, code string) (*BarSeries, error)
}

// StatsSink receives per-instrument results as they complete
// ⭐ SSOT: 종목별 결과 출력 인터페이스 (Markdown, DB)
type StatsSink interface {
	WriteStock(ctx context.Context, report *StockReport) error
}

// SummarySink receives the market summary once every instrument is done
type SummarySink interface {
	WriteSummary(ctx context.Context, summary *MarketSummary) error
}

// RunInfo describes one analysis run
type RunInfo struct {
	RunID       string    `json:"run_id"`
	ConfigHash  string    `json:"config_hash"`
	Horizon     int       `json:"horizon"`
	Instruments int       `json:"instruments"`
	Skipped     int       `json:"skipped"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// RunSink is implemented by sinks that track run lifecycle (optional).
// StartRun 은 첫 WriteStock 전에, FinishRun 은 WriteSummary 후에 호출
type RunSink interface {
	StartRun(ctx context.Context, run *RunInfo) error
	FinishRun(ctx context.Context, run *RunInfo) error
}

// CodeLister is implemented by sources that can enumerate their instruments
type CodeLister interface {
	ListCodes(ctx context.Context) ([]string, error)
}
