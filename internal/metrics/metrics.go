package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MergesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merges_total",
			Help: "Merge attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	UndosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "merge_undos_total",
			Help: "Undo attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	DuplicateGroupsFound = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duplicate_groups_found",
			Help:    "Groups returned per find-duplicates scan.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
		[]string{"kind"},
	)

	DuplicateScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duplicate_scan_duration_seconds",
			Help:    "Time spent grouping candidates.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)
