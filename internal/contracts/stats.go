package contracts

import "time"

// SignalStats is the backtest outcome of one signal on one instrument
// ⭐ SSOT: 종목×시그널 통계 (Wins 원본 카운트를 함께 전달)
type SignalStats struct {
	Signal    string  `json:"signal"` // catalogue code
	Name      string  `json:"name"`   // display name
	Count     int     `json:"count"`  // valid in-window trades
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	AvgReturn float64 `json:"avg_return"`
	RawCount  int     `json:"raw_count"` // predicate-true positions before truncation
	Error     string  `json:"error,omitempty"`
}

// Failed reports whether the signal could not be evaluated
func (s SignalStats) Failed() bool {
	return s.Error != ""
}

// StockReport is the per-instrument result of one analysis run
type StockReport struct {
	RunID      string        `json:"run_id"`
	Code       string        `json:"code"`
	Name       string        `json:"name"`
	Bars       int           `json:"bars"`
	FirstDate  time.Time     `json:"first_date"`
	LastDate   time.Time     `json:"last_date"`
	Stats      []SignalStats `json:"stats"`
	Skipped    bool          `json:"skipped"`
	Warning    string        `json:"warning,omitempty"`
	AnalyzedAt time.Time     `json:"analyzed_at"`
}

// Get returns the stats for one signal code
func (r *StockReport) Get(signal string) (SignalStats, bool) {
	for _, s := range r.Stats {
		if s.Signal == signal {
			return s, true
		}
	}
	return SignalStats{}, false
}

// SummaryEntry is one signal aggregated across all instruments
type SummaryEntry struct {
	Signal      string  `json:"signal"`
	Name        string  `json:"name"`
	TotalCount  int     `json:"total_count"`
	TotalWins   int     `json:"total_wins"`
	WinRate     float64 `json:"win_rate"`
	AvgReturn   float64 `json:"avg_return"`
	Instruments int     `json:"instruments"` // instruments with at least one trade
}

// MarketSummary is the market-wide result of one analysis run
type MarketSummary struct {
	RunID       string         `json:"run_id"`
	Horizon     int            `json:"horizon"`
	Instruments int            `json:"instruments"` // instruments that were analyzed (not skipped)
	Entries     []SummaryEntry `json:"entries"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Get returns the entry for one signal code
func (m *MarketSummary) Get(signal string) (SummaryEntry, bool) {
	for _, e := range m.Entries {
		if e.Signal == signal {
			return e, true
		}
	}
	return SummaryEntry{}, false
}
