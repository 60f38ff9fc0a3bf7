package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intakesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_intakes_total",
		Help: "Accepted intake requests by kind and variant.",
	}, []string{"kind", "variant"})

	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_tasks_total",
		Help: "Background reconciliation outcomes by kind.",
	}, []string{"kind", "outcome"})

	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_task_duration_seconds",
		Help:    "Wall time of background reconciliation tasks.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)
