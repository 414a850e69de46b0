// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/coppersystems/pipelined/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_claimed_total",
		Help: "Total number of jobs claimed from the queue",
	})
	JobsSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_succeeded_total",
		Help: "Total number of jobs that completed successfully",
	})
	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_failed_total",
		Help: "Total number of jobs that finished in the Failed state",
	})
	JobsBuildError = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_build_error_total",
		Help: "Total number of jobs that failed to build into a graph",
	})
	JobsRequeuedStale = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_jobs_requeued_stale_total",
		Help: "Total number of Running jobs requeued by the stale-job reaper",
	})
	NodeRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_node_run_duration_seconds",
		Help:    "Histogram of node.run call durations",
		Buckets: prometheus.DefBuckets,
	}, []string{"node_type"})
	BlobFragmentReads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_blob_fragment_reads_total",
		Help: "Total number of fragment reads issued against blob sources",
	})
	BlobFragmentBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipeline_blob_fragment_bytes_total",
		Help: "Total number of bytes read across all blob fragment reads",
	})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_queue_depth",
		Help: "Current number of jobs in each queue state",
	}, []string{"state"})
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open",
	}, []string{"client"})
	CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_circuit_breaker_trips_total",
		Help: "Count of times a circuit breaker transitioned to Open",
	}, []string{"client"})
	RunnerActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_runner_active_jobs",
		Help: "Number of jobs currently in flight in the runner",
	})
)

func init() {
	prometheus.MustRegister(
		JobsClaimed, JobsSucceeded, JobsFailed, JobsBuildError, JobsRequeuedStale,
		NodeRunDuration, BlobFragmentReads, BlobFragmentBytes, QueueDepth,
		CircuitBreakerState, CircuitBreakerTrips, RunnerActiveJobs,
	)
}

// StartMetricsServer exposes /metrics standalone; prefer StartHTTPServer in
// new code since it also serves health endpoints.
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
