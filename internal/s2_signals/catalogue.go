package s2_signals

import (
	"errors"
	"fmt"

	"github.com/wonny/aegis-signals/internal/contracts"
)

// ErrUnknownSignal is returned when a configured code is not in the catalogue
var ErrUnknownSignal = errors.New("unknown signal")

// ErrDetectorFailed wraps a panic recovered from a detector
var ErrDetectorFailed = errors.New("signal detector failed")

// Detector maps a bar series to one flag per index
type Detector func(s *contracts.BarSeries, p Params) []bool

// Signal is one named, stateless predicate
type Signal struct {
	Code     string             `json:"code"`
	Name     string             `json:"name"`
	Title    string             `json:"title"`
	Lookback int                `json:"lookback"` // deepest fixed back offset (0 = window-dependent)
	Requires contracts.FieldSet `json:"-"`
	Detect   Detector           `json:"-"`
}

// Signal codes
const (
	CodeThreeRisingSuns   = "three_rising_suns"
	CodeBreakoutMA        = "breakout_ma"
	CodeSunriseGap        = "sunrise_gap"
	CodeTwoBullsFlankBear = "two_bulls_flank_bear"
	CodeMorningStar       = "morning_star"
	CodeMACDGoldenCross   = "macd_golden_cross"
)

// Catalogue is an ordered list of signals; order is the report order
// ⭐ SSOT: 시그널 목록과 순서는 여기서만 정의
type Catalogue []Signal

// DefaultCatalogue returns all six signals in report order
func DefaultCatalogue() Catalogue {
	return Catalogue{
		{
			Code:     CodeThreeRisingSuns,
			Name:     "三阳开泰",
			Title:    "Three Rising Suns",
			Lookback: 2,
			Requires: contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldClose),
			Detect:   detectThreeRisingSuns,
		},
		{
			Code:     CodeBreakoutMA,
			Name:     "出水芙蓉",
			Title:    "Breakout Above 30-day MA",
			Requires: contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldClose, contracts.FieldVolume),
			Detect:   detectBreakoutMA,
		},
		{
			Code:     CodeSunriseGap,
			Name:     "旭日东升",
			Title:    "Sunrise Gap",
			Lookback: 1,
			Requires: contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldClose),
			Detect:   detectSunriseGap,
		},
		{
			Code:     CodeTwoBullsFlankBear,
			Name:     "多方炮",
			Title:    "Two Bulls Flank a Bear",
			Lookback: 2,
			Requires: contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldClose),
			Detect:   detectTwoBullsFlankBear,
		},
		{
			Code:     CodeMorningStar,
			Name:     "早晨之星",
			Title:    "Morning Star",
			Lookback: 2,
			Requires: contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldHigh, contracts.FieldLow, contracts.FieldClose),
			Detect:   detectMorningStar,
		},
		{
			Code:     CodeMACDGoldenCross,
			Name:     "MACD金叉",
			Title:    "MACD Golden Cross",
			Lookback: 1,
			Requires: contracts.NewFieldSet(contracts.FieldClose),
			Detect:   detectMACDGoldenCross,
		},
	}
}

// Lookup finds a signal by code
func (c Catalogue) Lookup(code string) (Signal, bool) {
	for _, s := range c {
		if s.Code == code {
			return s, true
		}
	}
	return Signal{}, false
}

// Select keeps the listed codes in catalogue order. An empty list selects everything.
func (c Catalogue) Select(codes []string) (Catalogue, error) {
	if len(codes) == 0 {
		return c, nil
	}

	want := make(map[string]bool, len(codes))
	for _, code := range codes {
		if _, ok := c.Lookup(code); !ok {
			return nil, fmt.Errorf("select %q: %w", code, ErrUnknownSignal)
		}
		want[code] = true
	}

	selected := make(Catalogue, 0, len(want))
	for _, s := range c {
		if want[s.Code] {
			selected = append(selected, s)
		}
	}
	return selected, nil
}

// Codes returns the signal codes in order
func (c Catalogue) Codes() []string {
	codes := make([]string, len(c))
	for i, s := range c {
		codes[i] = s.Code
	}
	return codes
}

// Evaluate runs one signal over a series.
// 필수 컬럼 누락, detector panic 은 이 시그널만의 에러로 격리
func Evaluate(sig Signal, s *contracts.BarSeries, p Params) (flags []bool, err error) {
	if err := s.Require(sig.Requires); err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", sig.Code, err)
	}

	defer func() {
		if r := recover(); r != nil {
			flags = nil
			err = fmt.Errorf("evaluate %s: %v: %w", sig.Code, r, ErrDetectorFailed)
		}
	}()

	flags = sig.Detect(s, p)
	if len(flags) != s.Len() {
		return nil, fmt.Errorf("evaluate %s: got %d flags for %d bars: %w", sig.Code, len(flags), s.Len(), ErrDetectorFailed)
	}
	return flags, nil
}

// Indices returns the positions where flags is true
func Indices(flags []bool) []int {
	var idx []int
	for i, f := range flags {
		if f {
			idx = append(idx, i)
		}
	}
	return idx
}
