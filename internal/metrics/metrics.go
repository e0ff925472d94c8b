// Package metrics defines Prometheus metrics for asset migration.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetmig_migrations_total",
			Help: "Migration checks by asset type, dependency and outcome",
		},
		[]string{"type", "dependency", "result"},
	)

	UpgradeStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetmig_upgrade_steps_total",
			Help: "Upgrader steps applied",
		},
		[]string{"type", "dependency"},
	)

	MigrationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetmig_migration_duration_seconds",
			Help:    "Time spent migrating a single asset",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dependency"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetmig_errors_total",
			Help: "Migration failures by error kind",
		},
		[]string{"kind"},
	)

	JournalQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assetmig_journal_queue_depth",
			Help: "Journal entries waiting to be written",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MigrationsTotal, UpgradeStepsTotal, MigrationDuration,
		ErrorsTotal, JournalQueueDepth,
	)
}
