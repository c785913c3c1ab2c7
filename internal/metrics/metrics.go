// Package metrics registers the Prometheus collectors of the feed pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed generation
	FeedsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingofeed_feeds_generated_total",
			Help: "Total number of generated feeds",
		},
		[]string{"sort_mode", "partial"},
	)

	FeedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lingofeed_feed_duration_seconds",
			Help:    "Duration of feed generation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	SourceFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingofeed_source_fetch_failures_total",
			Help: "Total number of failed content source fetches",
		},
		[]string{"content_type"},
	)

	SourceBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "lingofeed_source_breaker_state",
			Help: "Circuit breaker state per content source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"content_type"},
	)

	// Signals
	SignalsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingofeed_signals_tracked_total",
			Help: "Total number of tracked interaction signals",
		},
		[]string{"type"},
	)

	SignalPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lingofeed_signal_persist_failures_total",
			Help: "Total number of signal persistence failures (queued for retry)",
		},
	)

	SignalBufferOccupancy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lingofeed_signal_buffer_entries",
			Help: "Number of signals held in per-user ring buffers",
		},
	)

	SignalRetryQueue = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lingofeed_signal_retry_queue_entries",
			Help: "Number of signals waiting to be persisted again",
		},
	)

	// Learning
	Rewards = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lingofeed_reward",
			Help:    "Distribution of computed bandit rewards",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	LevelChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lingofeed_level_changes_total",
			Help: "Total number of CEFR level adaptations",
		},
		[]string{"direction"},
	)

	InteractionsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lingofeed_interactions_cleaned_total",
			Help: "Total number of interaction records removed by retention cleanup",
		},
	)
)
