package s0_data

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s2_signals"
)

const chineseCSV = `日期,开盘,收盘,最高,最低,成交量,成交额,振幅,涨跌幅,换手率,stock_code,stock_name
2024-01-03,10.10,10.30,10.40,10.00,120000,1236000.0,3.96,1.98,0.52,000001,平安银行
2024-01-02,10.00,10.10,10.20,9.90,100000,1010000.0,2.97,1.00,0.43,000001,平安银行
2024-01-04,10.30,10.20,10.35,10.10,90000,921000.0,2.43,-0.97,0.39,000001,平安银行
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestCSVSource_LoadSeries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "000001-平安银行.csv", chineseCSV)

	s, err := NewCSVSource(dir).LoadSeries(context.Background(), "000001")
	require.NoError(t, err)

	assert.Equal(t, "000001", s.Code)
	assert.Equal(t, "平安银行", s.Name)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{10.10, 10.30, 10.20}, s.Closes(), "sorted by date")
	assert.Equal(t, "2024-01-02", s.FirstDate().Format("2006-01-02"))

	assert.NoError(t, s.Require(contracts.OHLCV))
	assert.True(t, s.Fields.Has(contracts.FieldTurnoverRate))
	assert.InDelta(t, 3.96, s.At(1).Amplitude, 1e-12)
}

func TestCSVSource_EnglishHeaderAndFileName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600519-贵州茅台.csv", "\ufeffdate,open,close,volume\n2024/01/02,1700,1710,5000\n2024/01/03,1710,1690,4000\n")

	s, err := NewCSVSource(dir).LoadSeries(context.Background(), "600519")
	require.NoError(t, err)

	assert.Equal(t, "贵州茅台", s.Name, "name falls back to file name")
	assert.True(t, s.Fields.Has(contracts.FieldVolume))
	assert.False(t, s.Fields.Has(contracts.FieldHigh))

	err = s.Require(contracts.NewFieldSet(contracts.FieldHigh, contracts.FieldLow))
	assert.ErrorIs(t, err, contracts.ErrMissingField)
}

func TestCSVSource_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "000002-万科A.csv", "日期,开盘,收盘\n2024-01-02,abc,10\n")
	writeFile(t, dir, "000003-bad.csv", "开盘,收盘\n10,10\n")
	writeFile(t, dir, "000004-dup.csv", "日期,开盘,收盘\n2024-01-02,10,10\n2024-01-02,11,11\n")

	src := NewCSVSource(dir)
	ctx := context.Background()

	tests := []struct {
		code    string
		wantErr error
	}{
		{"999999", contracts.ErrSeriesNotFound},
		{"000002", ErrBadCSV},
		{"000003", ErrBadCSV},
		{"000004", contracts.ErrDuplicateDate},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := src.LoadSeries(ctx, tt.code)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCSVSource_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "000005-空.csv", "日期,开盘,收盘,最高,最低,成交量\n")

	s, err := NewCSVSource(dir).LoadSeries(context.Background(), "000005")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestCSVSource_ListCodes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "600519-贵州茅台.csv", chineseCSV)
	writeFile(t, dir, "000001-平安银行.csv", chineseCSV)
	writeFile(t, dir, "notes.txt", "ignored")

	codes, err := NewCSVSource(dir).ListCodes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "600519"}, codes)
}

func TestParseCSV_SkipsBlankLines(t *testing.T) {
	in := "日期,开盘,收盘\n2024-01-02,10,10.5\n\n2024-01-03,10.5,11\n"

	s, err := ParseCSV(strings.NewReader(in), "000001", "平安银行")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestParseCSV_BlankOptionalCell(t *testing.T) {
	in := `日期,开盘,收盘,最高,最低,成交量,换手率
2024-01-02,10.00,10.10,10.20,9.90,100000,0.43
2024-01-03,10.10,10.30,10.40,10.00,120000,
2024-01-04,10.30,10.20,10.35,10.10,90000,0.39
`
	s, err := ParseCSV(strings.NewReader(in), "000001", "平安银行")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Fields.Has(contracts.FieldTurnoverRate), "blank column dropped")
	assert.NoError(t, s.Require(contracts.OHLCV))

	for _, sig := range s2_signals.DefaultCatalogue() {
		flags, err := s2_signals.Evaluate(sig, s, s2_signals.DefaultParams())
		assert.NoError(t, err, sig.Code)
		assert.Len(t, flags, 3, sig.Code)
	}
}

func TestParseCSV_BlankHighFailsOnlyDependentSignals(t *testing.T) {
	in := `日期,开盘,收盘,最高,最低,成交量
2024-01-02,10.00,10.10,10.20,9.90,100000
2024-01-03,10.10,10.30,,10.00,120000
2024-01-04,10.30,10.40,10.45,10.10,90000
`
	s, err := ParseCSV(strings.NewReader(in), "000001", "平安银行")
	require.NoError(t, err)
	assert.False(t, s.Fields.Has(contracts.FieldHigh))

	cat := s2_signals.DefaultCatalogue()
	star, _ := cat.Lookup(s2_signals.CodeMorningStar)
	_, err = s2_signals.Evaluate(star, s, s2_signals.DefaultParams())
	assert.ErrorIs(t, err, contracts.ErrMissingField)

	suns, _ := cat.Lookup(s2_signals.CodeThreeRisingSuns)
	flags, err := s2_signals.Evaluate(suns, s, s2_signals.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true}, flags)
}

func TestParseCSV_BlankRequiredCell(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"open", "日期,开盘,收盘\n2024-01-02,,10\n"},
		{"close", "日期,开盘,收盘\n2024-01-02,10,\n"},
		{"date", "日期,开盘,收盘\n,10,10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.in), "000001", "平安银行")
			assert.ErrorIs(t, err, ErrBadCSV)
		})
	}
}

func TestParseCSV_NameFromFirstRow(t *testing.T) {
	in := `日期,开盘,收盘,stock_name
2024-01-02,10,10.5,深发展A
2024-01-03,10.5,11,平安银行
`
	s, err := ParseCSV(strings.NewReader(in), "000001", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "深发展A", s.Name)
}

func TestSplitFileName(t *testing.T) {
	code, name := splitFileName("/data/000001-平安银行.csv")
	assert.Equal(t, "000001", code)
	assert.Equal(t, "平安银行", name)
}
