package window

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reportsTotal counts accepted tracked-range reports.
	reportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlist_window_reports_total",
		Help: "Total tracked-range reports accepted by window coordinators",
	})

	// passesTotal counts fetch passes by outcome.
	passesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlist_window_passes_total",
		Help: "Total fetch passes by outcome",
	}, []string{"outcome"})

	// fetchTotal counts window fetches by result.
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vlist_window_fetch_total",
		Help: "Total window fetches by result",
	}, []string{"result"})

	// fetchDuration tracks fetcher latency.
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vlist_window_fetch_duration_seconds",
		Help:    "Window fetch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	// evictionsTotal counts windows evicted because they left the tracked set.
	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlist_window_evictions_total",
		Help: "Total cached windows evicted as untracked",
	})
)

// Pass outcomes used as metric labels.
const (
	outcomeCompleted  = "completed"
	outcomeSuperseded = "superseded"
	outcomeDiscarded  = "discarded"
)
