package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-signals/internal/api/handlers"
	"github.com/wonny/aegis-signals/internal/metrics"
	"github.com/wonny/aegis-signals/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(analysisHandler *handlers.AnalysisHandler, hub *handlers.ProgressHub, metricsEnabled bool, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Metrics
	if metricsEnabled {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	// Progress stream
	if hub != nil {
		r.HandleFunc("/ws/progress", hub.ServeWS).Methods("GET")
	}

	// API v1 (루트 라우터에 등록해야 메서드 불일치가 405 로 응답됨)
	const api = "/api"

	// Signal endpoints
	r.HandleFunc(api+"/signals", analysisHandler.ListSignals).Methods("GET")
	r.HandleFunc(api+"/summary", analysisHandler.GetSummary).Methods("GET")
	r.HandleFunc(api+"/stocks/{code}/signals", analysisHandler.GetStockSignals).Methods("GET")

	// Analysis endpoints
	r.HandleFunc(api+"/analysis/run", analysisHandler.RunAnalysis).Methods("POST")
	r.HandleFunc(api+"/analysis/status", analysisHandler.GetStatus).Methods("GET")

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "aegis-signals-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
