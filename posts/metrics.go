package posts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_mutations_total",
		Help: "Number of mutations dispatched, by kind",
	}, []string{"kind"})

	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_rollbacks_total",
		Help: "Number of failed mutations rolled back, by kind",
	}, []string{"kind"})

	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postboard_dispatch_duration_seconds",
		Help:    "Time spent waiting on the simulated backend",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // Start at 10ms, double each bucket, 10 buckets
	}, []string{"kind"})
)
