package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scanhub_jobs_total",
			Help: "Total scan jobs by terminal status",
		},
		[]string{"status"},
	)

	scanDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scanhub_scan_duration_seconds",
			Help:    "Wall-clock duration of scan runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, scanDurationSeconds)
}

// MarkTerminal records a job reaching a terminal status. The engine calls
// it for completions and failures; the cancel path calls it directly.
func MarkTerminal(status string) {
	jobsTotal.WithLabelValues(status).Inc()
}
