package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpager_retries_total",
		Help: "Total number of load retry attempts by direction",
	}, []string{"direction"})

	RetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedpager_retry_backoff_seconds",
		Help:    "Backoff duration before load retries by direction",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"direction"})

	RetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpager_retry_exhausted_total",
		Help: "Total number of loads whose retry attempts were exhausted by direction",
	}, []string{"direction"})
)
