// Package metrics exposes the Prometheus instruments for the service. All
// collectors register on the default registry so promhttp.Handler picks them
// up without extra wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsSubmitted counts generation jobs accepted for processing.
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reframe_jobs_submitted_total",
		Help: "Number of generation jobs submitted.",
	})

	// JobsSucceeded counts jobs that reached SUCCEEDED.
	JobsSucceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reframe_jobs_succeeded_total",
		Help: "Number of generation jobs that completed successfully.",
	})

	// JobsFailed counts jobs that reached FAILED, in either pipeline stage.
	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reframe_jobs_failed_total",
		Help: "Number of generation jobs that terminated with an error.",
	})

	// HTTPRequestDuration observes request latency per route and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reframe_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "code"})
)
