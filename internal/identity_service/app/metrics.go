package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolveOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "resolve_outcomes_total",
			Help:      "Identity resolution outcomes by source.",
		},
		[]string{"source"}, // "existing", "cache", "consolidated", "none"
	)

	consolidationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "consolidations_total",
			Help:      "Profile consolidation attempts.",
		},
		[]string{"status"}, // "success", "survivor_write_failed"
	)

	migratedReferencesCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "migrated_references_total",
			Help:      "Message records rewritten from a retired uid to its survivor.",
		},
	)

	sagaStepCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "deletion_saga_steps_total",
			Help:      "Deletion saga step results.",
		},
		[]string{"step", "status"},
	)

	sagaDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "identity",
			Name:      "deletion_saga_duration_seconds",
			Help:      "Duration of full deletion saga runs.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
