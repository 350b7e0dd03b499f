package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttempts tracks executions of remote operations by final outcome
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caresync_retry_attempts_total",
			Help: "Total number of remote operation attempts",
		},
		[]string{"outcome"},
	)

	// RetriesExhausted tracks operations that failed after using the full budget
	RetriesExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caresync_retries_exhausted_total",
			Help: "Total number of operations that exhausted their retry budget",
		},
	)

	// NetworkTransitions tracks confirmed connectivity transitions
	NetworkTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caresync_network_transitions_total",
			Help: "Total number of confirmed connectivity transitions",
		},
		[]string{"to"},
	)

	// ProbeDuration tracks connectivity probe round-trip time
	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "caresync_probe_duration_seconds",
			Help:    "Connectivity probe round-trip time in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// OptimisticCommits tracks mutations confirmed by the remote store
	OptimisticCommits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caresync_optimistic_commits_total",
			Help: "Total number of optimistic mutations committed",
		},
	)

	// OptimisticRollbacks tracks mutations rolled back after a final failure
	OptimisticRollbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "caresync_optimistic_rollbacks_total",
			Help: "Total number of optimistic mutations rolled back",
		},
	)

	// BatchFailures tracks failed operations inside batches
	BatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caresync_batch_failures_total",
			Help: "Total number of failed batch operations",
		},
		[]string{"mode"},
	)

	// CacheOperations tracks cache store activity
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caresync_cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"op"},
	)
)
