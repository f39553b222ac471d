package s3_backtest

import (
	"fmt"
	"time"

	"github.com/wonny/aegis-signals/internal/contracts"
)

// Config holds the fixed trade rule
type Config struct {
	Horizon int `yaml:"horizon" json:"horizon"` // exit at close[i+Horizon]
}

// DefaultConfig returns the reference rule: buy next open, sell 5 bars later at close
func DefaultConfig() Config {
	return Config{Horizon: 5}
}

// Validate checks the trade rule
func (c Config) Validate() error {
	if c.Horizon < 1 {
		return fmt.Errorf("horizon must be >= 1, got %d", c.Horizon)
	}
	return nil
}

// Trade is one in-window occurrence of a signal
type Trade struct {
	SignalIndex int       `json:"signal_index"`
	SignalDate  time.Time `json:"signal_date"`
	EntryIndex  int       `json:"entry_index"`
	EntryDate   time.Time `json:"entry_date"`
	EntryPrice  float64   `json:"entry_price"`
	ExitIndex   int       `json:"exit_index"`
	ExitDate    time.Time `json:"exit_date"`
	ExitPrice   float64   `json:"exit_price"`
	Return      float64   `json:"return"`
}

// Win reports whether the trade closed with a positive return
func (t Trade) Win() bool {
	return t.Return > 0
}

// Result holds the statistics and the trades behind them
type Result struct {
	Stats  contracts.SignalStats
	Trades []Trade
}

// Evaluator turns predicate flags into outcome statistics
// ⭐ SSOT: 매매 규칙 (next open 진입, close[i+H] 청산)은 여기서만
type Evaluator struct {
	config Config
}

// NewEvaluator creates a new evaluator
func NewEvaluator(config Config) (*Evaluator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new evaluator: %w", err)
	}
	return &Evaluator{config: config}, nil
}

// Horizon returns the holding period in bars
func (e *Evaluator) Horizon() int {
	return e.config.Horizon
}

// Evaluate applies the trade rule to every flagged index.
// 진입/청산 인덱스가 시리즈 밖이면 조용히 제외 (RawCount 에만 포함)
func (e *Evaluator) Evaluate(s *contracts.BarSeries, flags []bool) Result {
	n := s.Len()
	opens, closes := s.Opens(), s.Closes()

	var res Result
	for i, f := range flags {
		if !f {
			continue
		}
		res.Stats.RawCount++

		entry, exit := i+1, i+e.config.Horizon
		if entry >= n || exit >= n {
			continue
		}

		t := Trade{
			SignalIndex: i,
			SignalDate:  s.At(i).Date,
			EntryIndex:  entry,
			EntryDate:   s.At(entry).Date,
			EntryPrice:  opens[entry],
			ExitIndex:   exit,
			ExitDate:    s.At(exit).Date,
			ExitPrice:   closes[exit],
		}
		t.Return = (t.ExitPrice - t.EntryPrice) / t.EntryPrice
		res.Trades = append(res.Trades, t)
	}

	res.Stats.Count = len(res.Trades)
	if res.Stats.Count == 0 {
		return res
	}

	// 좌→우 단순 합산 (재실행 시 비트 단위 동일)
	sum := 0.0
	for _, t := range res.Trades {
		sum += t.Return
		if t.Win() {
			res.Stats.Wins++
		}
	}
	res.Stats.WinRate = float64(res.Stats.Wins) / float64(res.Stats.Count)
	res.Stats.AvgReturn = sum / float64(res.Stats.Count)

	return res
}
