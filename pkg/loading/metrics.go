package loading

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoadsTotal tracks handled loads by direction and outcome
	LoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpager_loads_total",
			Help: "Total number of handled loads by direction and outcome",
		},
		[]string{"direction", "outcome"}, // outcome: "success", "empty", "skipped", "error", "ignored"
	)

	// LoadDuration tracks the duration of cache loads (including remote fetches)
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedpager_load_duration_seconds",
			Help:    "Duration of page loads by direction",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"direction"},
	)

	// LoadsInFlight tracks loads currently being handled
	LoadsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedpager_loads_in_flight",
			Help: "Current number of loads being handled by direction",
		},
		[]string{"direction"},
	)
)
