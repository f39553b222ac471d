package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signals/internal/analyzer"
	"github.com/wonny/aegis-signals/internal/contracts"
	"github.com/wonny/aegis-signals/internal/s2_signals"
	"github.com/wonny/aegis-signals/internal/s3_backtest"
	"github.com/wonny/aegis-signals/pkg/logger"
	"github.com/wonny/aegis-signals/pkg/redis"
)

// AnalysisService is the subset of analyzer.Service the handlers use
type AnalysisService interface {
	Run(ctx context.Context, req analyzer.RunRequest, progress func(analyzer.ProgressEvent)) (*analyzer.RunResult, error)
	Running() bool
	Last() *analyzer.RunResult
	LatestSummary(ctx context.Context) (*contracts.MarketSummary, error)
	StockStats(ctx context.Context, code string) (*contracts.StockReport, error)
}

// AnalysisHandler handles signal analysis endpoints
type AnalysisHandler struct {
	service   AnalysisService
	catalogue s2_signals.Catalogue
	limiter   *redis.RateLimiter
	hub       *ProgressHub
	baseCtx   context.Context
	logger    *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler.
// baseCtx bounds background runs (cancelled on server shutdown).
func NewAnalysisHandler(baseCtx context.Context, service AnalysisService, limiter *redis.RateLimiter, hub *ProgressHub, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:   service,
		catalogue: s2_signals.DefaultCatalogue(),
		limiter:   limiter,
		hub:       hub,
		baseCtx:   baseCtx,
		logger:    log.WithField("module", "api.analysis"),
	}
}

// SignalInfo describes one catalogue entry
type SignalInfo struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Lookback int      `json:"lookback"`
	Requires []string `json:"requires"`
}

// ListSignals handles GET /api/signals
func (h *AnalysisHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	infos := make([]SignalInfo, 0, len(h.catalogue))
	for _, sig := range h.catalogue {
		infos = append(infos, SignalInfo{
			Code:     sig.Code,
			Name:     sig.Name,
			Title:    sig.Title,
			Lookback: sig.Lookback,
			Requires: sig.Requires.Names(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"signals": infos,
		"count":   len(infos),
	})
}

// GetSummary handles GET /api/summary
func (h *AnalysisHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LatestSummary(r.Context())
	if errors.Is(err, s3_backtest.ErrNoRuns) {
		respondError(w, http.StatusNotFound, "no completed analysis run")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get summary")
		respondError(w, http.StatusInternalServerError, "Failed to get summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetStockSignals handles GET /api/stocks/{code}/signals
func (h *AnalysisHandler) GetStockSignals(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	report, err := h.service.StockStats(r.Context(), code)
	if errors.Is(err, contracts.ErrSeriesNotFound) || errors.Is(err, s3_backtest.ErrNoRuns) {
		respondError(w, http.StatusNotFound, "no stats for "+code)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Error("Failed to get stock stats")
		respondError(w, http.StatusInternalServerError, "Failed to get stock stats")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// RunRequest is the body of POST /api/analysis/run
type RunRequest struct {
	Codes   []string `json:"codes"`
	Signals []string `json:"signals"`
}

// RunAnalysis handles POST /api/analysis/run
// 비동기 실행: 202 즉시 반환, 진행 상황은 /ws/progress
func (h *AnalysisHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if _, err := s2_signals.DefaultCatalogue().Select(req.Signals); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.service.Running() {
		respondError(w, http.StatusConflict, "analysis already running")
		return
	}

	if h.limiter != nil {
		allowed, _, err := h.limiter.Allow(r.Context(), redis.AnalysisTriggerLimit)
		if err != nil {
			// Redis 장애 시 허용
			h.logger.WithError(err).Warn("Rate limiter check failed")
		} else if !allowed {
			w.Header().Set("X-RateLimit-Remaining", "0")
			respondError(w, http.StatusTooManyRequests, "analysis trigger rate limit exceeded")
			return
		}
	}

	codes := make([]string, 0, len(req.Codes))
	for _, c := range req.Codes {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}

	started := make(chan error, 1)
	go func() {
		var progress func(analyzer.ProgressEvent)
		if h.hub != nil {
			progress = h.hub.Broadcast
		}

		// Running() 체크와 Run 사이 경합은 ErrRunInProgress 로 처리
		result, err := h.service.Run(h.baseCtx, analyzer.RunRequest{Codes: codes, Signals: req.Signals}, func(ev analyzer.ProgressEvent) {
			select {
			case started <- nil:
			default:
			}
			if progress != nil {
				progress(ev)
			}
		})
		select {
		case started <- err:
		default:
		}
		if err != nil {
			h.logger.WithError(err).Error("Analysis run failed")
			return
		}

		h.logger.WithFields(map[string]interface{}{
			"run_id":   result.Run.RunID,
			"duration": result.Duration,
		}).Info("Analysis run completed")
	}()

	// 시작 직후 실패(중복 실행, 설정 오류)는 동기적으로 알림
	select {
	case err := <-started:
		if errors.Is(err, analyzer.ErrRunInProgress) {
			respondError(w, http.StatusConflict, "analysis already running")
			return
		}
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case <-time.After(500 * time.Millisecond):
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
		"codes":  len(codes),
	})
}

// GetStatus handles GET /api/analysis/status
func (h *AnalysisHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"running": h.service.Running(),
	}

	if last := h.service.Last(); last != nil {
		status["last_run"] = last.Run
		status["duration"] = last.Duration.String()
	}

	respondJSON(w, http.StatusOK, status)
}
