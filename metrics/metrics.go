package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the block streamer.
type Metrics struct {
	// Counters, labeled by stream id
	ProcessedBlocks  *prometheus.CounterVec
	PublishedMatches *prometheus.CounterVec
	FetchErrors      *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec

	// Gauges
	LastProcessedHeight *prometheus.GaugeVec
	WorkersActive       prometheus.Gauge

	// Log bridge
	LogRecords *prometheus.CounterVec

	// Bitmap selector fallbacks to full scans
	SelectorFallbacks *prometheus.CounterVec
}

// New creates and registers the collectors on the default registerer.
func New(namespace string) *Metrics {
	return NewWith(namespace, prometheus.DefaultRegisterer)
}

// NewWith creates the collectors on a specific registerer. Tests use a fresh
// registry per case.
func NewWith(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "blockstream"
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProcessedBlocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "processed_blocks_total",
			Help:      "Number of blocks processed per stream",
		}, []string{"stream_id"}),
		PublishedMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "published_matches_total",
			Help:      "Number of matches appended to work streams",
		}, []string{"stream_id"}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Number of block fetch or decode failures",
		}, []string{"stream_id"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Number of receipt cache lookups that found no parent transaction",
		}, []string{"stream_id"}),
		LastProcessedHeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_processed_height",
			Help:      "Height of the last block processed per stream",
		}, []string{"stream_id"}),
		WorkersActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_active",
			Help:      "Number of running stream workers",
		}),
		LogRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_records_total",
			Help:      "Number of log records by severity level",
		}, []string{"level"}),
		SelectorFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_fallbacks_total",
			Help:      "Number of backfills that fell back to scanning every height",
		}, []string{"stream_id"}),
	}
}
