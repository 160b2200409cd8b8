package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_processed_total",
			Help: "Total number of chat turns processed, by route",
		},
		[]string{"route"},
	)

	TurnsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_failed_total",
			Help: "Total number of chat turns failed, by error code",
		},
		[]string{"route", "error_code"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "assistant_turn_duration_seconds",
			Help: "Duration of chat turn processing in seconds",
		},
		[]string{"route"},
	)

	PlanOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_plan_outcomes_total",
			Help: "Response plan outcomes on the structured path",
		},
		[]string{"outcome"},
	)

	ResolverCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_resolver_candidates",
			Help:    "Candidate count returned by fuzzy entity resolution",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
		[]string{"entity"},
	)
)
