// Package metrics holds the Prometheus metrics for the karma engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects the engine's operational counters. Construct once at
// startup; promauto registers on the default registry.
type Metrics struct {
	EventsApplied        prometheus.Counter
	DuplicatesSkipped    prometheus.Counter
	EventsBuffered       prometheus.Counter
	SnapshotLoads        prometheus.Counter
	SnapshotDuration     prometheus.Histogram
	NotificationsEmitted prometheus.Counter
	NotificationsDropped prometheus.Counter
	ObservedUsers        prometheus.Gauge
}

// New creates and registers all karma engine metrics.
func New() *Metrics {
	return &Metrics{
		EventsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kudos_karma_events_applied_total",
			Help: "Activities folded into a user aggregate exactly once",
		}),
		DuplicatesSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kudos_karma_duplicates_skipped_total",
			Help: "Activities skipped because their id was already applied",
		}),
		EventsBuffered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kudos_karma_events_buffered_total",
			Help: "Live events buffered while a snapshot was in flight",
		}),
		SnapshotLoads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kudos_karma_snapshot_loads_total",
			Help: "Completed snapshot loads (including idempotent reloads)",
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kudos_karma_snapshot_duration_seconds",
			Help:    "Latency of snapshot fetch and application",
			Buckets: prometheus.DefBuckets,
		}),
		NotificationsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kudos_karma_notifications_emitted_total",
			Help: "Positive-gain notifications handed to the sink",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kudos_karma_notifications_dropped_total",
			Help: "Notifications dropped because the sink inbox was full",
		}),
		ObservedUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "kudos_karma_observed_users",
			Help: "Users with an active observation",
		}),
	}
}
