package httpsource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for page source requests.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpager_source_requests_total",
		Help: "Total page source requests by direction and status",
	}, []string{"direction", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "feedpager_source_request_duration_seconds",
		Help:    "Page source request duration in seconds by direction",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"direction"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedpager_source_errors_total",
		Help: "Total page source errors by class",
	}, []string{"class"})
)
