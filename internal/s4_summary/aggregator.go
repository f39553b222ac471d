package s4_summary

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s2_signals"
)

// Aggregator 전 종목 시그널 통계 집계기
// ⭐ SSOT: 시장 전체 요약은 여기서만 계산
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator 새 집계기 생성
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "s4.aggregator").Logger(),
	}
}

type accumulator struct {
	count       int
	wins        int
	returnSum   float64 // Σ avg_return × count
	instruments int
}

// Summarize folds every stock report into one entry per catalogue signal.
// 승수는 종목별 원본 Wins 를 그대로 합산 (count × win_rate 역산 없음)
func (a *Aggregator) Summarize(runID string, horizon int, cat s2_signals.Catalogue, reports []*contracts.StockReport) *contracts.MarketSummary {
	acc := make(map[string]*accumulator, len(cat))
	for _, sig := range cat {
		acc[sig.Code] = &accumulator{}
	}

	analyzed, failed := 0, 0
	for _, r := range reports {
		if r == nil || r.Skipped {
			continue
		}
		analyzed++

		for _, s := range r.Stats {
			if s.Failed() {
				failed++
				continue
			}
			e, ok := acc[s.Signal]
			if !ok || s.Count == 0 {
				continue
			}
			e.count += s.Count
			e.wins += s.Wins
			e.returnSum += s.AvgReturn * float64(s.Count)
			e.instruments++
		}
	}

	summary := &contracts.MarketSummary{
		RunID:       runID,
		Horizon:     horizon,
		Instruments: analyzed,
		Entries:     make([]contracts.SummaryEntry, 0, len(cat)),
		GeneratedAt: time.Now(),
	}

	for _, sig := range cat {
		e := acc[sig.Code]
		entry := contracts.SummaryEntry{
			Signal:      sig.Code,
			Name:        sig.Name,
			TotalCount:  e.count,
			TotalWins:   e.wins,
			Instruments: e.instruments,
		}
		if e.count > 0 {
			entry.WinRate = float64(e.wins) / float64(e.count)
			entry.AvgReturn = e.returnSum / float64(e.count)
		}
		summary.Entries = append(summary.Entries, entry)
	}

	a.log.Info().
		Str("run_id", runID).
		Int("reports", len(reports)).
		Int("analyzed", analyzed).
		Int("failed_signals", failed).
		Msg("summary aggregated")

	return summary
}
