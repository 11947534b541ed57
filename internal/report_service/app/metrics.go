package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reportFetchesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "report_service",
			Name:      "report_fetches_total",
			Help:      "Total number of report fetches by outcome.",
		},
		[]string{"report_type", "outcome"}, // outcome: "success" or an error kind, e.g. "PollTimeout"
	)

	reportStatusPollsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "report_service",
			Name:      "report_status_polls_total",
			Help:      "Total number of report status polls by observed processing status.",
		},
		[]string{"status"},
	)

	reportFetchDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "report_service",
			Name:      "report_fetch_duration_seconds",
			Help:      "Duration of report fetches from submission to decoded document.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"report_type"},
	)

	reportJobsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "report_service",
			Name:      "background_jobs_total",
			Help:      "Total number of background report jobs by final status.",
		},
		[]string{"variant", "status"},
	)

	reportQueueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "report_service",
			Name:      "background_queue_depth",
			Help:      "Number of background report jobs waiting for a worker.",
		},
	)
)
