package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signals/internal/analyzer"
	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
	"github.com/wonny/aegis-signals/pkg/logger"
	"github.com/wonny/aegis-signals/pkg/redis"
)

type fakeService struct {
	mu      sync.Mutex
	running bool
	runErr  error
	runs    []analyzer.RunRequest
	summary *contracts.MarketSummary
	reports map[string]*contracts.StockReport
	block   chan struct{}
}

func (f *fakeService) Run(ctx context.Context, req analyzer.RunRequest, progress func(analyzer.ProgressEvent)) (*analyzer.RunResult, error) {
	f.mu.Lock()
	f.runs = append(f.runs, req)
	f.mu.Unlock()

	if f.runErr != nil {
		return nil, f.runErr
	}
	progress(analyzer.ProgressEvent{RunID: "r1", Code: "000001", Done: 1, Total: 1})
	if f.block != nil {
		<-f.block
	}
	return &analyzer.RunResult{Run: contracts.RunInfo{RunID: "r1"}}, nil
}

func (f *fakeService) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeService) Last() *analyzer.RunResult { return nil }

func (f *fakeService) LatestSummary(ctx context.Context) (*contracts.MarketSummary, error) {
	if f.summary == nil {
		return nil, s3_backtest.ErrNoRuns
	}
	return f.summary, nil
}

func (f *fakeService) StockStats(ctx context.Context, code string) (*contracts.StockReport, error) {
	if r, ok := f.reports[code]; ok {
		return r, nil
	}
	return nil, contracts.ErrSeriesNotFound
}

func (f *fakeService) requests() []analyzer.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analyzer.RunRequest(nil), f.runs...)
}

func newTestHandler(svc AnalysisService) *AnalysisHandler {
	limiter := redis.NewRateLimiter(redis.Disabled(), "test")
	return NewAnalysisHandler(context.Background(), svc, limiter, nil, logger.Nop())
}

func serve(h http.HandlerFunc, method, target, body string, vars map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestListSignals(t *testing.T) {
	h := newTestHandler(&fakeService{})

	rec := serve(h.ListSignals, http.MethodGet, "/api/signals", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Signals []SignalInfo `json:"signals"`
		Count   int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 6, body.Count)
	assert.Equal(t, "three_rising_suns", body.Signals[0].Code)
	assert.Equal(t, "macd_golden_cross", body.Signals[5].Code)
	assert.Equal(t, []string{"close"}, body.Signals[5].Requires)
}

func TestGetSummary(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		h := newTestHandler(&fakeService{})
		rec := serve(h.GetSummary, http.MethodGet, "/api/summary", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decode(t, rec), "error")
	})

	t.Run("latest summary", func(t *testing.T) {
		svc := &fakeService{summary: &contracts.MarketSummary{
			RunID:       "r1",
			Horizon:     5,
			Instruments: 2,
			Entries:     []contracts.SummaryEntry{{Signal: "sunrise_gap", TotalCount: 4, TotalWins: 3, WinRate: 75}},
		}}
		h := newTestHandler(svc)

		rec := serve(h.GetSummary, http.MethodGet, "/api/summary", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got contracts.MarketSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 2, got.Instruments)
		assert.Equal(t, 3, got.Entries[0].TotalWins)
	})
}

func TestGetStockSignals(t *testing.T) {
	svc := &fakeService{reports: map[string]*contracts.StockReport{
		"000001": {Code: "000001", Name: "平安银行", Bars: 120},
	}}
	h := newTestHandler(svc)

	rec := serve(h.GetStockSignals, http.MethodGet, "/api/stocks/000001/signals", "", map[string]string{"code": "000001"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "平安银行", decode(t, rec)["name"])

	rec = serve(h.GetStockSignals, http.MethodGet, "/api/stocks/999999/signals", "", map[string]string{"code": "999999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunAnalysis(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := &fakeService{}
		h := newTestHandler(svc)

		rec := serve(h.RunAnalysis, http.MethodPost, "/api/analysis/run", `{"codes":["000001"," ",""]}`, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "started", decode(t, rec)["status"])

		require.Eventually(t, func() bool { return len(svc.requests()) == 1 }, time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"000001"}, svc.requests()[0].Codes)
	})

	t.Run("already running", func(t *testing.T) {
		h := newTestHandler(&fakeService{running: true})
		rec := serve(h.RunAnalysis, http.MethodPost, "/api/analysis/run", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("lost race", func(t *testing.T) {
		h := newTestHandler(&fakeService{runErr: analyzer.ErrRunInProgress})
		rec := serve(h.RunAnalysis, http.MethodPost, "/api/analysis/run", "", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown signal", func(t *testing.T) {
		h := newTestHandler(&fakeService{})
		rec := serve(h.RunAnalysis, http.MethodPost, "/api/analysis/run", `{"signals":["head_and_shoulders"]}`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad body", func(t *testing.T) {
		h := newTestHandler(&fakeService{})
		rec := serve(h.RunAnalysis, http.MethodPost, "/api/analysis/run", `{`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetStatus(t *testing.T) {
	h := newTestHandler(&fakeService{running: true})

	rec := serve(h.GetStatus, http.MethodGet, "/api/analysis/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["running"])
}
