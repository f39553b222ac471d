package s0_data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/aegis-signals/internal/contracts"
)

// ErrBadCSV is returned for unreadable CSV content
var ErrBadCSV = errors.New("malformed bar csv")

type column int

const (
	colDate column = iota
	colOpen
	colClose
	colHigh
	colLow
	colVolume
	colTurnover
	colAmplitude
	colChangePct
	colTurnoverRate
	colCode
	colName
)

// 헤더 이름 → 컬럼 (중문 원본 + 영문 별칭)
var headerAliases = map[string]column{
	"日期": colDate, "date": colDate,
	"开盘": colOpen, "open": colOpen,
	"收盘": colClose, "close": colClose,
	"最高": colHigh, "high": colHigh,
	"最低": colLow, "low": colLow,
	"成交量": colVolume, "volume": colVolume,
	"成交额": colTurnover, "turnover": colTurnover,
	"振幅": colAmplitude, "amplitude": colAmplitude,
	"涨跌幅": colChangePct, "change_pct": colChangePct,
	"换手率": colTurnoverRate, "turnover_rate": colTurnoverRate,
	"stock_code": colCode, "code": colCode,
	"stock_name": colName, "name": colName,
}

var columnFields = map[column]contracts.Field{
	colOpen:         contracts.FieldOpen,
	colClose:        contracts.FieldClose,
	colHigh:         contracts.FieldHigh,
	colLow:          contracts.FieldLow,
	colVolume:       contracts.FieldVolume,
	colTurnover:     contracts.FieldTurnover,
	colAmplitude:    contracts.FieldAmplitude,
	colChangePct:    contracts.FieldChangePct,
	colTurnoverRate: contracts.FieldTurnoverRate,
}

var dateLayouts = []string{"2006-01-02", "2006/01/02", "20060102", "2006-01-02 15:04:05"}

// CSVSource loads bars from `{Dir}/{code}-{name}.csv` files
// ⭐ SSOT: CSV 디렉토리 데이터 소스
type CSVSource struct {
	Dir string
}

// NewCSVSource creates a CSV bar source rooted at dir
func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

// Resolve finds the file for a stock code (first match in lexical order)
func (s *CSVSource) Resolve(code string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, globEscape(code)+"-*.csv"))
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", code, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("stock %s in %s: %w", code, s.Dir, contracts.ErrSeriesNotFound)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ListCodes returns every stock code with a file in Dir
func (s *CSVSource) ListCodes(ctx context.Context) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.Dir, "*-*.csv"))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", s.Dir, err)
	}

	seen := make(map[string]bool)
	var codes []string
	for _, m := range matches {
		code, _ := splitFileName(m)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes, nil
}

// LoadSeries implements contracts.BarSource
func (s *CSVSource) LoadSeries(ctx context.Context, code string) (*contracts.BarSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.Resolve(code)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, fileName := splitFileName(path)
	series, err := ParseCSV(f, code, fileName)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return series, nil
}

// ParseCSV reads one stock's bars. fallbackName is used when no name column exists.
func ParseCSV(r io.Reader, code, fallbackName string) (*contracts.BarSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: %w", ErrBadCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[column]int)
	for i, h := range header {
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff") // utf-8-sig BOM
		if c, ok := headerAliases[strings.ToLower(h)]; ok {
			if _, dup := index[c]; !dup {
				index[c] = i
			}
		}
	}
	if _, ok := index[colDate]; !ok {
		return nil, fmt.Errorf("no date column: %w", ErrBadCSV)
	}

	var fields contracts.FieldSet
	for c, f := range columnFields {
		if _, ok := index[c]; ok {
			fields |= contracts.NewFieldSet(f)
		}
	}

	name := fallbackName
	named := false
	var blanks contracts.FieldSet
	var bars []contracts.Bar
	line := 1
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}

		b, empty, err := parseRecord(rec, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
		blanks |= empty

		// 종목명은 첫 행 기준
		if v := cell(rec, index, colName); !named && v != "" {
			name = v
			named = true
		}
	}

	// 빈 칸이 있는 보조 컬럼은 시리즈에서 제외 → 해당 컬럼을 쓰는 시그널만 실패
	return contracts.NewBarSeries(code, name, fields&^blanks, bars)
}

// requiredColumns must be filled on every row
var requiredColumns = map[column]bool{colOpen: true, colClose: true}

// parseRecord returns the bar plus the optional columns left blank on this row
func parseRecord(rec []string, index map[column]int) (contracts.Bar, contracts.FieldSet, error) {
	var b contracts.Bar
	var blanks contracts.FieldSet

	date, err := parseDate(cell(rec, index, colDate))
	if err != nil {
		return b, blanks, err
	}
	b.Date = date

	targets := map[column]*float64{
		colOpen: &b.Open, colClose: &b.Close, colHigh: &b.High, colLow: &b.Low,
		colVolume: &b.Volume, colTurnover: &b.Turnover, colAmplitude: &b.Amplitude,
		colChangePct: &b.ChangePct, colTurnoverRate: &b.TurnoverRate,
	}
	for c, dst := range targets {
		if _, ok := index[c]; !ok {
			continue
		}
		raw := strings.TrimSuffix(cell(rec, index, c), "%")
		if raw == "" {
			if requiredColumns[c] {
				return b, blanks, fmt.Errorf("empty %s value: %w", columnFields[c], ErrBadCSV)
			}
			blanks |= contracts.NewFieldSet(columnFields[c])
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, blanks, fmt.Errorf("%s %q: %w", columnFields[c], raw, ErrBadCSV)
		}
		*dst = v
	}

	return b, blanks, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q: %w", raw, ErrBadCSV)
}

func cell(rec []string, index map[column]int, c column) string {
	i, ok := index[c]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// splitFileName: "data/600519-贵州茅台.csv" → ("600519", "贵州茅台")
func splitFileName(path string) (code, name string) {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	code, name, _ = strings.Cut(base, "-")
	return code, name
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
