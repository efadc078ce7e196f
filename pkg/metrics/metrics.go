// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MatchesFoundTotal tracks candidates produced by method
	MatchesFoundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "matches_found_total",
			Help:      "Total number of match candidates produced by method",
		},
		[]string{"method"},
	)

	// ItemsProcessedTotal tracks source items evaluated per stage
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "matching",
			Name:      "items_processed_total",
			Help:      "Total number of source items evaluated per job type",
		},
		[]string{"job_type"},
	)

	// JobsProcessed tracks matching jobs by terminal status
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "jobs",
			Name:      "processed_total",
			Help:      "Total number of matching jobs processed by status",
		},
		[]string{"job_type", "status"},
	)

	// JobsInFlight tracks jobs currently being processed
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "jobs",
			Name:      "in_flight",
			Help:      "Number of matching jobs currently being processed",
		},
	)

	// JobChunkDuration tracks chunk processing duration
	JobChunkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "jobs",
			Name:      "chunk_duration_seconds",
			Help:      "Duration of one job chunk in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job_type"},
	)

	// LLMRequestsTotal tracks LLM provider calls
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of LLM provider requests by status",
		},
		[]string{"status"},
	)

	// LLMRequestDuration tracks LLM provider call duration
	LLMRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of LLM provider requests in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// SearchRequestsTotal tracks web search API calls
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total number of web search requests by status",
		},
		[]string{"status"},
	)

	// EstimatedSpendUSD tracks estimated paid-stage spend
	EstimatedSpendUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "budget",
			Name:      "estimated_spend_usd_total",
			Help:      "Estimated spend on paid matching stages in USD",
		},
		[]string{"job_type"},
	)

	// BudgetPausesTotal tracks jobs paused for exceeding their budget
	BudgetPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "budget",
			Name:      "pauses_total",
			Help:      "Total number of jobs paused for exceeding their budget",
		},
	)

	// MasterRulesApplied tracks rule firings by rule type
	MasterRulesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "rules",
			Name:      "applied_total",
			Help:      "Total number of master rule applications by rule type",
		},
		[]string{"rule_type"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// RateLimitWaitTime tracks time spent waiting for provider rate limits
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "ratelimit",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for provider rate limits in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"limit_name"},
	)
)

// RecordMatchFound records one produced candidate
func RecordMatchFound(method string) {
	MatchesFoundTotal.WithLabelValues(method).Inc()
}

// RecordItemsProcessed records source items evaluated by one chunk
func RecordItemsProcessed(jobType string, count int) {
	ItemsProcessedTotal.WithLabelValues(jobType).Add(float64(count))
}

// RecordJobProcessed records a job reaching a terminal status
func RecordJobProcessed(jobType, status string) {
	JobsProcessed.WithLabelValues(jobType, status).Inc()
}

// RecordChunkDuration records one chunk's processing time
func RecordChunkDuration(jobType string, durationSeconds float64) {
	JobChunkDuration.WithLabelValues(jobType).Observe(durationSeconds)
}

// RecordLLMRequest records an LLM provider call
func RecordLLMRequest(status string, durationSeconds float64) {
	LLMRequestsTotal.WithLabelValues(status).Inc()
	LLMRequestDuration.Observe(durationSeconds)
}

// RecordSearchRequest records a web search call
func RecordSearchRequest(status string) {
	SearchRequestsTotal.WithLabelValues(status).Inc()
}

// RecordEstimatedSpend records estimated paid-stage spend
func RecordEstimatedSpend(jobType string, amountUSD float64) {
	EstimatedSpendUSD.WithLabelValues(jobType).Add(amountUSD)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
