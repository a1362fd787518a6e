// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FactorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alphascan_factor_duration_seconds",
			Help:    "Time spent computing one raw factor",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"factor"},
	)
	BacktestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alphascan_backtests_total", Help: "Backtests evaluated"},
		[]string{"source"}, // "computed" or "cache"
	)
	CalibrationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alphascan_calibration_duration_seconds",
			Help:    "Wall time of one calibration over a candidate set",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
	BestSharpe = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "alphascan_best_sharpe", Help: "Net Sharpe of the last calibration winner"},
	)
	ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "alphascan_scans_total", Help: "Completed scan runs"},
		[]string{"status"}, // "ok", "killed", "error"
	)
)

func init() {
	prometheus.MustRegister(FactorDuration, BacktestsTotal, CalibrationDuration, BestSharpe, ScansTotal)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
