package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Field identifies one column a bar source may or may not provide
type Field uint16

const (
	FieldOpen Field = 1 << iota
	FieldHigh
	FieldLow
	FieldClose
	FieldVolume
	FieldTurnover
	FieldAmplitude
	FieldChangePct
	FieldTurnoverRate
)

var fieldNames = []struct {
	field Field
	name  string
}{
	{FieldOpen, "open"},
	{FieldHigh, "high"},
	{FieldLow, "low"},
	{FieldClose, "close"},
	{FieldVolume, "volume"},
	{FieldTurnover, "turnover"},
	{FieldAmplitude, "amplitude"},
	{FieldChangePct, "change_pct"},
	{FieldTurnoverRate, "turnover_rate"},
}

// String returns the column name
func (f Field) String() string {
	for _, fn := range fieldNames {
		if fn.field == f {
			return fn.name
		}
	}
	return fmt.Sprintf("field(%d)", uint16(f))
}

// FieldSet is a bitmask of present columns
type FieldSet uint16

// OHLCV is the column set every complete daily bar source provides
const OHLCV = FieldSet(FieldOpen | FieldHigh | FieldLow | FieldClose | FieldVolume)

// NewFieldSet builds a set from individual fields
func NewFieldSet(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s |= FieldSet(f)
	}
	return s
}

// Has reports whether f is present
func (s FieldSet) Has(f Field) bool {
	return s&FieldSet(f) != 0
}

// Missing returns the fields of want that are absent from s, in column order
func (s FieldSet) Missing(want FieldSet) []Field {
	var missing []Field
	for _, fn := range fieldNames {
		if want.Has(fn.field) && !s.Has(fn.field) {
			missing = append(missing, fn.field)
		}
	}
	return missing
}

// Names lists the present column names in column order
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(fieldNames))
	for _, fn := range fieldNames {
		if s.Has(fn.field) {
			names = append(names, fn.name)
		}
	}
	return names
}

func (s FieldSet) String() string {
	return strings.Join(s.Names(), ",")
}

// Bar is one trading day for one instrument
type Bar struct {
	Date         time.Time `json:"date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"`
	Turnover     float64   `json:"turnover,omitempty"`      // 成交额
	Amplitude    float64   `json:"amplitude,omitempty"`     // 振幅
	ChangePct    float64   `json:"change_pct,omitempty"`    // 涨跌幅
	TurnoverRate float64   `json:"turnover_rate,omitempty"` // 换手率
}

// IsBullish reports close > open
func (b Bar) IsBullish() bool {
	return b.Close > b.Open
}

// IsBearish reports close < open
func (b Bar) IsBearish() bool {
	return b.Close < b.Open
}

// BarSeries is the ordered daily history of one instrument.
// ⭐ SSOT: 모든 시그널/백테스트는 이 구조의 인덱스(0..N-1)로만 봉을 참조
// Immutable after NewBarSeries; column slices are shared and must not be modified.
type BarSeries struct {
	Code   string
	Name   string
	Fields FieldSet

	bars    []Bar
	opens   []float64
	highs   []float64
	lows    []float64
	closes  []float64
	volumes []float64
}

// NewBarSeries validates and sorts bars ascending by date.
// open/close 는 항상 필수. 중복 날짜, 0 이하 가격은 거부
func NewBarSeries(code, name string, fields FieldSet, bars []Bar) (*BarSeries, error) {
	if code == "" {
		return nil, fmt.Errorf("new bar series: %w", ErrEmptyCode)
	}
	if !fields.Has(FieldOpen) || !fields.Has(FieldClose) {
		return nil, &MissingFieldError{Code: code, Fields: fields.Missing(NewFieldSet(FieldOpen, FieldClose))}
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i, b := range sorted {
		if i > 0 && sameDay(sorted[i-1].Date, b.Date) {
			return nil, fmt.Errorf("%s %s: %w", code, b.Date.Format("2006-01-02"), ErrDuplicateDate)
		}
		if b.Open <= 0 || b.Close <= 0 {
			return nil, fmt.Errorf("%s %s: open/close must be positive: %w", code, b.Date.Format("2006-01-02"), ErrInvalidBar)
		}
		if fields.Has(FieldVolume) && b.Volume < 0 {
			return nil, fmt.Errorf("%s %s: negative volume: %w", code, b.Date.Format("2006-01-02"), ErrInvalidBar)
		}
	}

	s := &BarSeries{
		Code:    code,
		Name:    name,
		Fields:  fields,
		bars:    sorted,
		opens:   make([]float64, len(sorted)),
		highs:   make([]float64, len(sorted)),
		lows:    make([]float64, len(sorted)),
		closes:  make([]float64, len(sorted)),
		volumes: make([]float64, len(sorted)),
	}
	for i, b := range sorted {
		s.opens[i] = b.Open
		s.highs[i] = b.High
		s.lows[i] = b.Low
		s.closes[i] = b.Close
		s.volumes[i] = b.Volume
	}

	return s, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Len returns the number of bars
func (s *BarSeries) Len() int {
	return len(s.bars)
}

// At returns the bar at index i
func (s *BarSeries) At(i int) Bar {
	return s.bars[i]
}

// InRange reports whether i addresses a bar
func (s *BarSeries) InRange(i int) bool {
	return i >= 0 && i < len(s.bars)
}

// FirstDate returns the date of the first bar (zero time when empty)
func (s *BarSeries) FirstDate() time.Time {
	if len(s.bars) == 0 {
		return time.Time{}
	}
	return s.bars[0].Date
}

// LastDate returns the date of the last bar (zero time when empty)
func (s *BarSeries) LastDate() time.Time {
	if len(s.bars) == 0 {
		return time.Time{}
	}
	return s.bars[len(s.bars)-1].Date
}

// Require returns a MissingFieldError when any of want is absent
func (s *BarSeries) Require(want FieldSet) error {
	if missing := s.Fields.Missing(want); len(missing) > 0 {
		return &MissingFieldError{Code: s.Code, Fields: missing}
	}
	return nil
}

func (s *BarSeries) Opens() []float64   { return s.opens }
func (s *BarSeries) Highs() []float64   { return s.highs }
func (s *BarSeries) Lows() []float64    { return s.lows }
func (s *BarSeries) Closes() []float64  { return s.closes }
func (s *BarSeries) Volumes() []float64 { return s.volumes }
