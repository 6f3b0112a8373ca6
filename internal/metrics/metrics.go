// Package metrics exposes the judge/duel counters and histograms
// scraped at GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Judge metrics
var (
	JudgeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "judge_executions_total",
			Help: "Total number of code executions run by the judge",
		},
		[]string{"language", "outcome"},
	)

	JudgeExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "judge_execution_duration_seconds",
			Help:    "Judge execution latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"language"},
	)
)

// Duel lifecycle metrics
var (
	DuelsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duels_created_total",
			Help: "Total number of duels created",
		},
		[]string{"mode"},
	)

	DuelsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duels_completed_total",
			Help: "Total number of duels reaching a terminal state",
		},
		[]string{"status"},
	)

	DuelsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "duels_in_progress",
			Help: "Current number of InProgress duels",
		},
	)
)

// Gateway metrics
var (
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Current number of open websocket sessions",
		},
	)

	WSMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Total number of websocket messages handled",
		},
		[]string{"type", "direction"},
	)
)

// Submission rate limiter metrics
var (
	SubmissionRateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "submission_rate_limit_rejections_total",
			Help: "Total number of submissions rejected by the per-user rate limiter",
		},
	)
)

// Anti-duplicate index metrics
var (
	ProblemCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problem_cache_lookups_total",
			Help: "Total number of anti-duplicate index lookups",
		},
		[]string{"result"},
	)
)
