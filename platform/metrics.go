package platform

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RepliesTotal counts assistant replies by how they were produced:
	// completed, rejected or degraded.
	RepliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "convochat_assistant_replies_total",
		Help: "Assistant replies produced, by outcome.",
	}, []string{"outcome"})

	CompletionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "convochat_llm_completion_duration_seconds",
		Help:    "Latency of chat completion calls to the LLM backend.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"status"})

	LockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "convochat_conversation_lock_wait_seconds",
		Help:    "Time spent waiting for a conversation write lock.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})
)
