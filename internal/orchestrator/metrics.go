package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts completed research sessions.
	// Labels: status (converged, forced, degraded)
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "researchd",
			Subsystem: "orchestrator",
			Name:      "sessions_total",
			Help:      "Total number of research sessions by outcome",
		},
		[]string{"status"},
	)

	// SessionDuration tracks wall-clock session time.
	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "researchd",
			Subsystem: "orchestrator",
			Name:      "session_duration_seconds",
			Help:      "Duration of research sessions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// SessionIterations tracks reflect cycles per session.
	SessionIterations = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "researchd",
			Subsystem: "orchestrator",
			Name:      "session_iterations",
			Help:      "Number of reflect iterations per session",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	// RoutingTotal counts per-subquery routing decisions.
	// Labels: target (knowledge_base, web, none)
	RoutingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "researchd",
			Subsystem: "orchestrator",
			Name:      "routing_total",
			Help:      "Total subquery routing decisions by target",
		},
		[]string{"target"},
	)
)
