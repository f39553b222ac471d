package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_runs_total", Help: "Analysis runs by outcome"},
		[]string{"status"},
	)
	InstrumentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_instruments_total", Help: "Instruments processed by outcome"},
		[]string{"status"}, // analyzed | skipped | cached
	)
	OccurrencesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_occurrences_total", Help: "In-window signal occurrences"},
		[]string{"signal"},
	)
	SignalErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_signal_errors_total", Help: "Signals that failed on an instrument"},
		[]string{"signal"},
	)
	AnalyzeSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signals_instrument_duration_seconds",
			Help:    "Load + analysis time per instrument",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)
	RunSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signals_run_duration_seconds",
			Help:    "Wall time of a full analysis run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, InstrumentsTotal, OccurrencesTotal, SignalErrorsTotal, AnalyzeSeconds, RunSeconds)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
