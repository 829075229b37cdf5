package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

var (
	ArchiveCallsTotal   *prometheus.CounterVec
	ArchiveCallDuration prometheus.Histogram
	TokenRotations      prometheus.Counter
	TokenCooldowns      prometheus.Counter
	TermsProcessed      *prometheus.CounterVec
	PagesProcessed      *prometheus.CounterVec
	MediaExtractions    *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
)

// Init registers all pipeline metrics with the default registry. Safe to
// call more than once; registration happens on the first call only.
func Init() {
	initOnce.Do(register)
}

func register() {
	ArchiveCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_calls_total",
			Help: "Total archive API calls by outcome.",
		},
		[]string{"outcome"}, // success, rate_limited, reduce_limit, ...
	)

	ArchiveCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_call_duration_seconds",
			Help:    "Duration of individual archive API calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	TokenRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_token_rotations_total",
		Help: "Times the client switched to a different token mid-fetch.",
	})

	TokenCooldowns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_token_cooldowns_total",
		Help: "Times a token was put into cooldown.",
	})

	TermsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_terms_processed_total",
			Help: "Search terms resolved, by final status.",
		},
		[]string{"status"},
	)

	PagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_pages_processed_total",
			Help: "Pages advanced by a stage, by stage and final status.",
		},
		[]string{"stage", "status"}, // stage: ads, media
	)

	MediaExtractions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_media_extractions_total",
			Help: "Snapshot extraction attempts, by outcome.",
		},
		[]string{"outcome"}, // found, empty, error, cached
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests served by the operational API.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests served by the operational API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
}
