package s2_signals

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signals/internal/contracts"
)

type ohlcv struct {
	o, h, l, c, v float64
}

func buildSeries(t *testing.T, rows []ohlcv) *contracts.BarSeries {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, len(rows))
	for i, r := range rows {
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: r.o, High: r.h, Low: r.l, Close: r.c, Volume: r.v}
	}
	s, err := contracts.NewBarSeries("000001", "平安银行", contracts.OHLCV, bars)
	require.NoError(t, err)
	return s
}

// risingSeries: close 10, 11, 12, ... and open = prior close
func risingSeries(t *testing.T, n int) *contracts.BarSeries {
	rows := make([]ohlcv, n)
	for i := range rows {
		c := 10.0 + float64(i)
		rows[i] = ohlcv{o: c - 1, h: c, l: c - 1, c: c, v: 1000}
	}
	return buildSeries(t, rows)
}

func detect(t *testing.T, code string, s *contracts.BarSeries) []bool {
	t.Helper()
	sig, ok := DefaultCatalogue().Lookup(code)
	require.True(t, ok)
	flags, err := Evaluate(sig, s, DefaultParams())
	require.NoError(t, err)
	require.Len(t, flags, s.Len())
	return flags
}

func TestThreeRisingSuns_RisingSeries(t *testing.T) {
	s := risingSeries(t, 40)

	suns := detect(t, CodeThreeRisingSuns, s)
	for i, f := range suns {
		assert.Equal(t, i >= 2, f, "index %d", i)
	}

	bulls := detect(t, CodeTwoBullsFlankBear, s)
	assert.Empty(t, Indices(bulls), "no bearish middle bar exists")
}

func TestThreePatterns_ShortSeries(t *testing.T) {
	threeBar := []string{CodeThreeRisingSuns, CodeMorningStar, CodeTwoBullsFlankBear}

	for n := 0; n < 3; n++ {
		s := risingSeries(t, n)
		for _, code := range threeBar {
			assert.Empty(t, Indices(detect(t, code, s)), "%s with %d bars", code, n)
		}
	}
}

func TestMACDGoldenCross(t *testing.T) {
	// falling closes keep DIF below DEA; the jump on the last bar crosses
	s := buildSeries(t, []ohlcv{
		{10.5, 10.6, 9.9, 10, 100},
		{9.5, 9.6, 8.9, 9, 100},
		{8.5, 8.6, 7.9, 8, 100},
		{7.5, 7.6, 6.9, 7, 100},
		{6.5, 6.6, 5.9, 6, 100},
		{6, 14.2, 6, 14, 100},
	})

	assert.Equal(t, []int{5}, Indices(detect(t, CodeMACDGoldenCross, s)))
}

func TestMACDGoldenCross_NeverAtFirstBar(t *testing.T) {
	s := buildSeries(t, []ohlcv{{1, 2, 1, 2, 1}})
	assert.Empty(t, Indices(detect(t, CodeMACDGoldenCross, s)))
}

func TestMorningStar(t *testing.T) {
	tests := []struct {
		name string
		rows []ohlcv
		want []int
	}{
		{
			name: "flat doji with zero range",
			rows: []ohlcv{
				{10, 10.1, 8.9, 9, 100},    // bearish, midpoint 9.5
				{8.5, 8.5, 8.5, 8.5, 100},  // high == low, body 0
				{8.6, 9.9, 8.6, 9.8, 100},  // bullish, closes above 9.5
			},
			want: []int{2},
		},
		{
			name: "third bar below midpoint",
			rows: []ohlcv{
				{10, 10.1, 8.9, 9, 100},
				{8.5, 8.6, 8.4, 8.51, 100},
				{8.6, 9.4, 8.6, 9.3, 100},
			},
			want: nil,
		},
		{
			name: "middle bar body too large",
			rows: []ohlcv{
				{10, 10.1, 8.9, 9, 100},
				{8.5, 8.9, 8.4, 8.8, 100}, // body 0.3 / range 0.5
				{8.6, 9.9, 8.6, 9.8, 100},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Indices(detect(t, CodeMorningStar, buildSeries(t, tt.rows)))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMorningStar_FlatBarsStayFinite(t *testing.T) {
	s := buildSeries(t, []ohlcv{
		{5, 5, 5, 5, 0},
		{5, 5, 5, 5, 0},
		{5, 5, 5, 5, 0},
	})

	h, l := col(s.Highs()), col(s.Lows())
	o, c := col(s.Opens()), col(s.Closes())
	ratio := div(abs(sub(c, o)), addConst(sub(h, l), DefaultParams().DojiEpsilon))
	for i, r := range ratio {
		assert.False(t, math.IsNaN(r) || math.IsInf(r, 0), "index %d", i)
	}

	assert.Empty(t, Indices(detect(t, CodeMorningStar, s)))
}

func TestBreakoutMA(t *testing.T) {
	flat := func(n int) []ohlcv {
		rows := make([]ohlcv, n)
		for i := range rows {
			rows[i] = ohlcv{10, 10, 10, 10, 100}
		}
		return rows
	}

	t.Run("breakout on first fully defined bar", func(t *testing.T) {
		rows := append(flat(30), ohlcv{10, 11, 10, 11, 200})
		assert.Equal(t, []int{30}, Indices(detect(t, CodeBreakoutMA, buildSeries(t, rows))))
	})

	t.Run("too early for prior MA", func(t *testing.T) {
		rows := append(flat(29), ohlcv{10, 11, 10, 11, 200})
		assert.Empty(t, Indices(detect(t, CodeBreakoutMA, buildSeries(t, rows))))
	})

	t.Run("gain below threshold", func(t *testing.T) {
		rows := append(flat(30), ohlcv{10, 10.4, 10, 10.4, 200})
		assert.Empty(t, Indices(detect(t, CodeBreakoutMA, buildSeries(t, rows))))
	})

	t.Run("volume not above prior average", func(t *testing.T) {
		rows := append(flat(30), ohlcv{10, 11, 10, 11, 100})
		assert.Empty(t, Indices(detect(t, CodeBreakoutMA, buildSeries(t, rows))))
	})
}

func TestSunriseGap(t *testing.T) {
	tests := []struct {
		name string
		rows []ohlcv
		want []int
	}{
		{
			name: "gap down then close above prior open",
			rows: []ohlcv{
				{10, 10, 9.5, 9.5, 100}, // body 5%
				{9.4, 10.2, 9.4, 10.1, 100},
			},
			want: []int{1},
		},
		{
			name: "prior body too small",
			rows: []ohlcv{
				{10, 10, 9.8, 9.8, 100}, // body 2%
				{9.7, 10.2, 9.7, 10.1, 100},
			},
			want: nil,
		},
		{
			name: "no gap",
			rows: []ohlcv{
				{10, 10, 9.5, 9.5, 100},
				{9.6, 10.2, 9.6, 10.1, 100},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Indices(detect(t, CodeSunriseGap, buildSeries(t, tt.rows))))
		})
	}
}

func TestTwoBullsFlankBear(t *testing.T) {
	s := buildSeries(t, []ohlcv{
		{10, 10.5, 10, 10.5, 100},
		{10.5, 10.5, 10.3, 10.3, 100}, // 1.9% bearish body
		{10.3, 10.8, 10.3, 10.8, 100},
		{10.8, 10.8, 10.0, 10.0, 100}, // big bearish bar
		{10.0, 10.9, 10.0, 10.9, 100},
	})

	assert.Equal(t, []int{2}, Indices(detect(t, CodeTwoBullsFlankBear, s)))
}

func TestEvaluate_MissingField(t *testing.T) {
	bars := []contracts.Bar{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, Close: 2},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 2, Close: 3},
	}
	s, err := contracts.NewBarSeries("000002", "万科A", contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldClose), bars)
	require.NoError(t, err)

	cat := DefaultCatalogue()

	breakout, _ := cat.Lookup(CodeBreakoutMA)
	_, err = Evaluate(breakout, s, DefaultParams())
	assert.ErrorIs(t, err, contracts.ErrMissingField)

	star, _ := cat.Lookup(CodeMorningStar)
	_, err = Evaluate(star, s, DefaultParams())
	assert.ErrorIs(t, err, contracts.ErrMissingField)

	// siblings that only need open/close still evaluate
	suns, _ := cat.Lookup(CodeThreeRisingSuns)
	flags, err := Evaluate(suns, s, DefaultParams())
	require.NoError(t, err)
	assert.Len(t, flags, 2)
}

func TestEvaluate_RecoversPanic(t *testing.T) {
	s := risingSeries(t, 5)
	broken := Signal{
		Code:   "broken",
		Detect: func(*contracts.BarSeries, Params) []bool { panic("index out of range") },
	}

	flags, err := Evaluate(broken, s, DefaultParams())
	assert.Nil(t, flags)
	assert.ErrorIs(t, err, ErrDetectorFailed)
}

func TestEvaluate_WrongLength(t *testing.T) {
	s := risingSeries(t, 5)
	short := Signal{
		Code:   "short",
		Detect: func(*contracts.BarSeries, Params) []bool { return []bool{true} },
	}

	_, err := Evaluate(short, s, DefaultParams())
	assert.ErrorIs(t, err, ErrDetectorFailed)
}

func TestEvaluate_Idempotent(t *testing.T) {
	s := risingSeries(t, 60)
	for _, sig := range DefaultCatalogue() {
		first, err := Evaluate(sig, s, DefaultParams())
		require.NoError(t, err)
		second, err := Evaluate(sig, s, DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, first, second, sig.Code)
	}
}

func TestCatalogue(t *testing.T) {
	cat := DefaultCatalogue()

	assert.Equal(t, []string{
		CodeThreeRisingSuns, CodeBreakoutMA, CodeSunriseGap,
		CodeTwoBullsFlankBear, CodeMorningStar, CodeMACDGoldenCross,
	}, cat.Codes())

	t.Run("select keeps catalogue order", func(t *testing.T) {
		sel, err := cat.Select([]string{CodeMACDGoldenCross, CodeThreeRisingSuns})
		require.NoError(t, err)
		assert.Equal(t, []string{CodeThreeRisingSuns, CodeMACDGoldenCross}, sel.Codes())
	})

	t.Run("empty selects all", func(t *testing.T) {
		sel, err := cat.Select(nil)
		require.NoError(t, err)
		assert.Len(t, sel, 6)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := cat.Select([]string{"head_and_shoulders"})
		assert.ErrorIs(t, err, ErrUnknownSignal)
	})
}

func TestParams_Validate(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())

	p := DefaultParams()
	p.BreakoutWindow = 1
	assert.Error(t, p.Validate())

	p = DefaultParams()
	p.DojiEpsilon = 0
	assert.Error(t, p.Validate())
}
