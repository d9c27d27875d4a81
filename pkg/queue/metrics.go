package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks queued requests by direction
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feedpager_queue_depth",
			Help: "Current number of queued load requests",
		},
		[]string{"direction"}, // "append", "prepend"
	)

	// QueueJumps tracks jump operations by direction
	QueueJumps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedpager_queue_jumps_total",
			Help: "Total number of queue jumps",
		},
		[]string{"direction"},
	)

	// PendingJobs tracks outstanding load jobs
	PendingJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feedpager_pending_jobs",
			Help: "Current number of outstanding load jobs",
		},
	)
)
