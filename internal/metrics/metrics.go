// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsbrief"

// Feed fetch outcomes.
const (
	FetchOK       = "ok"
	FetchError    = "error"
	FetchStatus   = "status"
	FetchParse    = "parse"
	FetchPolicy   = "policy"
	FetchTooLarge = "too_large"
)

var (
	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_fetch_total",
		Help:      "Feed fetch attempts by outcome.",
	}, []string{"outcome"})

	FeedValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_validation_total",
		Help:      "Feed candidate validations by verdict.",
	}, []string{"valid"})

	MapItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summarize_map_items_total",
		Help:      "Map-phase article extractions by outcome.",
	}, []string{"outcome"})

	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_transitions_total",
		Help:      "Synthesis job state transitions by target status.",
	}, []string{"status"})

	LLMLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_request_duration_seconds",
		Help:      "Language model call latency by pipeline phase.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
	}, []string{"phase"})
)
