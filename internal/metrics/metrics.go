package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_server_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_server_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Index store metrics
var (
	IndexQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_index_queries_total",
			Help: "Total number of index store queries",
		},
		[]string{"operation", "status"},
	)

	IndexQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_server_index_query_duration_seconds",
			Help:    "Index store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	IndexRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_server_index_records",
			Help: "Number of file records currently in the index",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_watcher_events_total",
			Help: "Total number of filesystem events processed",
		},
		[]string{"kind"}, // "discovered", "changed", "removed"
	)

	WatcherEnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_watcher_enrichments_total",
			Help: "Total number of metadata enrichment attempts",
		},
		[]string{"status"}, // "success", "failure", "unsupported"
	)

	WatcherScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_server_watcher_scan_duration_seconds",
			Help:    "Duration of full directory scans in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
	)

	WatcherEventsDeferred = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_server_watcher_events_deferred_total",
			Help: "Events parked for the next sweep because their worker queue was full",
		},
	)

	WatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_server_watcher_queue_depth",
			Help: "Number of enrichment tasks currently queued",
		},
	)
)

// Representation cache metrics
var (
	RepCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_server_repcache_requests_total",
			Help: "Total number of representation cache lookups",
		},
		[]string{"outcome"}, // "hit", "miss", "error"
	)

	RepCacheDedupTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_server_repcache_singleflight_dedup_total",
			Help: "Requests that attached to an in-flight producer instead of converting",
		},
	)

	RepCacheConvertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_server_repcache_convert_duration_seconds",
			Help:    "Converter invocation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60, 300},
		},
		[]string{"converter"},
	)

	RepCacheArtifactBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_server_repcache_artifact_bytes_total",
			Help: "Total bytes written to the representation cache",
		},
	)
)
