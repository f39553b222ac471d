package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signals/internal/analysisconfig"
	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s2_signals"
	"github.com/wonny/aegis-signals/pkg/logger"
)

type fakeSource struct {
	series map[string]*contracts.BarSeries
	errs   map[string]error
	mu     sync.Mutex
	loads  int
}

func (f *fakeSource) LoadSeries(ctx context.Context, code string) (*contracts.BarSeries, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()

	if err, ok := f.errs[code]; ok {
		return nil, err
	}
	s, ok := f.series[code]
	if !ok {
		return nil, fmt.Errorf("stock %s: %w", code, contracts.ErrSeriesNotFound)
	}
	return s, nil
}

func (f *fakeSource) ListCodes(ctx context.Context) ([]string, error) {
	return []string{"000001", "000002"}, nil
}

type recordingSink struct {
	mu       sync.Mutex
	stocks   []string
	summary  *contracts.MarketSummary
	started  *contracts.RunInfo
	finished *contracts.RunInfo
	fail     bool
}

func (r *recordingSink) WriteStock(ctx context.Context, report *contracts.StockReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stocks = append(r.stocks, report.Code)
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func (r *recordingSink) WriteSummary(ctx context.Context, s *contracts.MarketSummary) error {
	r.summary = s
	if r.fail {
		return errors.New("disk full")
	}
	return nil
}

func (r *recordingSink) StartRun(ctx context.Context, run *contracts.RunInfo) error {
	c := *run
	r.started = &c
	return nil
}

func (r *recordingSink) FinishRun(ctx context.Context, run *contracts.RunInfo) error {
	c := *run
	r.finished = &c
	return nil
}

// rising: close 10,11,12..., open = prior close → 三阳开泰 on every bar from index 2
func rising(t *testing.T, code string, n int) *contracts.BarSeries {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, n)
	for i := range bars {
		c := 10.0 + float64(i)
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: c - 1, High: c, Low: c - 1, Close: c, Volume: 1000}
	}
	s, err := contracts.NewBarSeries(code, "测试"+code, contracts.OHLCV, bars)
	require.NoError(t, err)
	return s
}

func newTestAnalyzer(t *testing.T, src contracts.BarSource, mutate func(*Options)) *Analyzer {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	a, err := New(src, opts, logger.Nop())
	require.NoError(t, err)
	return a
}

func TestAnalyzeSeries_RisingSeries(t *testing.T) {
	a := newTestAnalyzer(t, &fakeSource{}, nil)

	report := a.AnalyzeSeries(context.Background(), rising(t, "000001", 40))

	require.False(t, report.Skipped)
	assert.Equal(t, 40, report.Bars)
	require.Len(t, report.Stats, 6)
	assert.Equal(t, s2_signals.DefaultCatalogue().Codes(), statCodes(report))

	suns, ok := report.Get(s2_signals.CodeThreeRisingSuns)
	require.True(t, ok)
	assert.Equal(t, 38, suns.RawCount)
	assert.Equal(t, 38-5, suns.Count, "indices 35..39 run past the series end")
	assert.Equal(t, suns.Count, suns.Wins)
	assert.Equal(t, 1.0, suns.WinRate)

	bulls, _ := report.Get(s2_signals.CodeTwoBullsFlankBear)
	assert.Zero(t, bulls.RawCount)
}

func TestAnalyzeSeries_ShortAndEmpty(t *testing.T) {
	a := newTestAnalyzer(t, &fakeSource{}, nil)

	empty, err := contracts.NewBarSeries("000009", "空", contracts.OHLCV, nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		series  *contracts.BarSeries
		warning string
	}{
		{"empty", empty, "empty series"},
		{"two bars", rising(t, "000010", 2), "series too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := a.AnalyzeSeries(context.Background(), tt.series)
			assert.True(t, report.Skipped)
			assert.Contains(t, report.Warning, tt.warning)
			require.Len(t, report.Stats, 6)
			for _, s := range report.Stats {
				assert.Zero(t, s.Count)
				assert.Zero(t, s.WinRate)
			}
		})
	}
}

func TestAnalyzeSeries_MissingFieldIsolated(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.Bar, 10)
	for i := range bars {
		c := 10.0 + float64(i)
		bars[i] = contracts.Bar{Date: start.AddDate(0, 0, i), Open: c - 1, Close: c}
	}
	s, err := contracts.NewBarSeries("000003", "开收", contracts.NewFieldSet(contracts.FieldOpen, contracts.FieldClose), bars)
	require.NoError(t, err)

	report := newTestAnalyzer(t, &fakeSource{}, nil).AnalyzeSeries(context.Background(), s)

	star, _ := report.Get(s2_signals.CodeMorningStar)
	assert.True(t, star.Failed())
	assert.Contains(t, star.Error, "high")

	breakout, _ := report.Get(s2_signals.CodeBreakoutMA)
	assert.True(t, breakout.Failed())

	suns, _ := report.Get(s2_signals.CodeThreeRisingSuns)
	assert.False(t, suns.Failed())
	assert.Equal(t, 8, suns.RawCount)
}

func TestRun(t *testing.T) {
	src := &fakeSource{
		series: map[string]*contracts.BarSeries{
			"000001": rising(t, "000001", 40),
			"000002": rising(t, "000002", 20),
		},
		errs: map[string]error{"000004": errors.New("permission denied")},
	}
	a := newTestAnalyzer(t, src, func(o *Options) { o.Workers = 3; o.ConfigHash = "abc" })

	sink := &recordingSink{}
	a.AddStatsSink(sink)
	a.AddSummarySink(sink)

	var events []ProgressEvent
	a.OnProgress(func(e ProgressEvent) { events = append(events, e) })

	codes := []string{"000002", "000003", "000001", "000004"}
	res, err := a.Run(context.Background(), codes)
	require.NoError(t, err)

	require.Len(t, res.Reports, 4)
	assert.Equal(t, codes, reportCodes(res.Reports), "input order preserved")
	assert.True(t, res.Reports[1].Skipped)
	assert.Contains(t, res.Reports[1].Warning, "not found")
	assert.True(t, res.Reports[3].Skipped)

	assert.Equal(t, 2, res.Run.Instruments)
	assert.Equal(t, 2, res.Run.Skipped)
	assert.Equal(t, "abc", res.Run.ConfigHash)
	assert.NotEmpty(t, res.Run.RunID)
	for _, r := range res.Reports {
		assert.Equal(t, res.Run.RunID, r.RunID)
	}

	// load failures never reach the sinks
	assert.ElementsMatch(t, []string{"000001", "000002"}, sink.stocks)
	require.NotNil(t, sink.summary)
	require.NotNil(t, sink.started)
	require.NotNil(t, sink.finished)
	assert.Equal(t, res.Run.RunID, sink.started.RunID)
	assert.Equal(t, 2, sink.finished.Instruments)

	suns, _ := res.Summary.Get(s2_signals.CodeThreeRisingSuns)
	assert.Equal(t, (38-5)+(18-5), suns.TotalCount)
	assert.Equal(t, 2, suns.Instruments)
	assert.Equal(t, 2, res.Summary.Instruments)

	require.Len(t, events, 4)
	assert.Equal(t, 4, events[3].Done)
	assert.Equal(t, 4, events[3].Total)
}

func TestRun_SingleInstrumentSummaryMatchesStats(t *testing.T) {
	src := &fakeSource{series: map[string]*contracts.BarSeries{"000001": rising(t, "000001", 60)}}
	a := newTestAnalyzer(t, src, nil)

	res, err := a.Run(context.Background(), []string{"000001"})
	require.NoError(t, err)

	for _, s := range res.Reports[0].Stats {
		e, ok := res.Summary.Get(s.Signal)
		require.True(t, ok)
		assert.Equal(t, s.Count, e.TotalCount)
		assert.Equal(t, s.Wins, e.TotalWins)
		assert.Equal(t, s.WinRate, e.WinRate)
		assert.InDelta(t, s.AvgReturn, e.AvgReturn, 1e-15)
	}
}

func TestRun_SinkFailureDoesNotAbort(t *testing.T) {
	src := &fakeSource{series: map[string]*contracts.BarSeries{"000001": rising(t, "000001", 10)}}
	a := newTestAnalyzer(t, src, nil)
	a.AddStatsSink(&recordingSink{fail: true})

	res, err := a.Run(context.Background(), []string{"000001"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Run.Instruments)
}

func TestRun_Cancelled(t *testing.T) {
	src := &fakeSource{series: map[string]*contracts.BarSeries{"000001": rising(t, "000001", 10)}}
	a := newTestAnalyzer(t, src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Run(ctx, []string{"000001", "000002"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Deterministic(t *testing.T) {
	src := &fakeSource{series: map[string]*contracts.BarSeries{
		"000001": rising(t, "000001", 50),
		"000002": rising(t, "000002", 35),
	}}
	a := newTestAnalyzer(t, src, func(o *Options) { o.Workers = 2 })

	first, err := a.Run(context.Background(), []string{"000001", "000002"})
	require.NoError(t, err)
	second, err := a.Run(context.Background(), []string{"000001", "000002"})
	require.NoError(t, err)

	assert.NotEqual(t, first.Run.RunID, second.Run.RunID)
	assert.Equal(t, first.Summary.Entries, second.Summary.Entries)
	for i := range first.Reports {
		assert.Equal(t, first.Reports[i].Stats, second.Reports[i].Stats)
	}
}

func TestResolveCodes(t *testing.T) {
	a := newTestAnalyzer(t, &fakeSource{}, nil)

	codes, err := a.ResolveCodes(context.Background(), []string{"600519"})
	require.NoError(t, err)
	assert.Equal(t, []string{"600519"}, codes)

	codes, err = a.ResolveCodes(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000002"}, codes)

	type plainSource struct{ contracts.BarSource }
	b := newTestAnalyzer(t, plainSource{}, nil)
	_, err = b.ResolveCodes(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoInstruments)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := analysisconfig.Default()
	cfg.Signals = []string{s2_signals.CodeMACDGoldenCross}
	cfg.Backtest.Horizon = 3

	opts, err := OptionsFromConfig(cfg, 2, 50)
	require.NoError(t, err)

	assert.Equal(t, []string{s2_signals.CodeMACDGoldenCross}, opts.Catalogue.Codes())
	assert.Equal(t, 3, opts.Backtest.Horizon)
	assert.Equal(t, 2, opts.Workers)
	assert.Len(t, opts.ConfigHash, 64)

	_, err = New(&fakeSource{}, Options{}, logger.Nop())
	assert.Error(t, err)
}

func statCodes(r *contracts.StockReport) []string {
	codes := make([]string, len(r.Stats))
	for i, s := range r.Stats {
		codes[i] = s.Signal
	}
	return codes
}

func reportCodes(rs []*contracts.StockReport) []string {
	codes := make([]string, len(rs))
	for i, r := range rs {
		codes[i] = r.Code
	}
	return codes
}
