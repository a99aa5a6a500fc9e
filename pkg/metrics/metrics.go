// Package metrics defines the pipeline's Prometheus collectors, grounded
// on the promauto package-level-var idiom used across the example pack
// (e.g. ai-aas's services/user-org-service/internal/metrics/metrics.go).
// Metrics are registered globally at import time and scraped via a
// /metrics endpoint exposed alongside the gateway's HTTP routes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "shift_pipeline"

var (
	// TraceabilityDefectsTotal counts rows written with a minted
	// (rather than inherited) trace id — the SLO metric called for by
	// spec.md §9's open question. stage: ingestion, interaction, selector,
	// aggregator.
	TraceabilityDefectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traceability_defects_total",
			Help:      "Count of rows written with a minted trace id because the inherited one was absent",
		},
		[]string{"stage"},
	)

	// IngestionDuplicatesTotal counts submit-batch calls that hit an
	// already-claimed dedup key (spec.md §4.B).
	IngestionDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_duplicates_total",
			Help:      "Total submit-batch calls rejected as duplicates by the dedup store",
		},
	)

	// IngestionBatchesTotal counts batches durably persisted (post-dedup).
	IngestionBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestion_batches_total",
			Help:      "Total raw event batches persisted",
		},
	)

	// SelectorDecisionsTotal counts selector outcomes by result: selected,
	// no_candidate, suppressed_all, onboarding_gated, rate_limited,
	// no_state, no_stress (spec.md §4.D).
	SelectorDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_decisions_total",
			Help:      "Total selector decisions by outcome",
		},
		[]string{"outcome"},
	)

	// SelectorRateLimitRejectionsTotal counts selector runs that exited
	// because the 30-minute/3-instance rate limit was already met
	// (spec.md §4.D step 8, §8).
	SelectorRateLimitRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selector_rate_limit_rejections_total",
			Help:      "Total selector runs rejected by the per-user rate limit",
		},
	)

	// PushDeliveryTotal counts push attempts by outcome: sent, failed,
	// no_token (spec.md §4.D step 10).
	PushDeliveryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_delivery_total",
			Help:      "Total push delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	// EstimatorTickDuration measures the wall time of one state-estimator
	// invocation (transform + look-back publish), spec.md §4.C.
	EstimatorTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "estimator_tick_duration_seconds",
			Help:      "Duration of one state-estimator tick",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
