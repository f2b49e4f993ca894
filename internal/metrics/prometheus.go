package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AskTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counseldesk_ask_total",
			Help: "Total questions handled, by outcome",
		},
		[]string{"status"},
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counseldesk_ingest_total",
			Help: "Total ingestion requests handled, by outcome",
		},
		[]string{"status"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counseldesk_feedback_total",
			Help: "Total feedback submissions, by direction",
		},
		[]string{"feedback"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "counseldesk_upstream_duration_seconds",
			Help:    "Upstream call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 180, 300},
		},
		[]string{"target"},
	)

	StaleRowsMarked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "counseldesk_stale_rows_marked_total",
			Help: "Query log rows marked stale by ingestions",
		},
	)

	CatalogScans = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counseldesk_catalog_scans_total",
			Help: "Catalog aggregation scans, by outcome",
		},
		[]string{"status"},
	)

	CatalogPagesPerScan = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "counseldesk_catalog_pages_per_scan",
			Help:    "Scroll pages fetched per catalog scan",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	CatalogCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "counseldesk_catalog_cache_hits_total",
			Help: "Catalog snapshot cache hits",
		},
	)

	CatalogCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "counseldesk_catalog_cache_misses_total",
			Help: "Catalog snapshot cache misses",
		},
	)
)

func Init() {
	prometheus.MustRegister(AskTotal)
	prometheus.MustRegister(IngestTotal)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(UpstreamDuration)
	prometheus.MustRegister(StaleRowsMarked)
	prometheus.MustRegister(CatalogScans)
	prometheus.MustRegister(CatalogPagesPerScan)
	prometheus.MustRegister(CatalogCacheHits)
	prometheus.MustRegister(CatalogCacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
