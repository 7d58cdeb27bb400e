// README: Prometheus collectors shared by the nudge and matching modules.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DecisionNone labels a selection that produced no nudge.
const DecisionNone = "none"

var (
	NudgeDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenkap_nudge_decisions_total",
			Help: "Nudge selections by resulting nudge type",
		},
		[]string{"type"},
	)

	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenkap_collaborator_failures_total",
			Help: "Failed calls to nudge collaborators, treated as no result",
		},
		[]string{"collaborator"},
	)

	MatchScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenkap_match_score",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenkap_push_deliveries_total",
			Help: "Nudge push deliveries by outcome",
		},
		[]string{"outcome"},
	)
)
