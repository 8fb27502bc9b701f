// Package metrics holds the process-wide prometheus metric vars, all
// registered in this package's own init() and updated by the other
// packages of this module, mirroring how the teacher keeps one metrics.go per concern but
// consolidated here since kbcore's pipelines share a single process.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "kbcore"

var (
	// JobsClaimedTotal counts successful claims, labeled by pipeline
	// ("ingest" or "voc").
	JobsClaimedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "jobs_claimed_total",
			Help:      "Total number of jobs claimed by a worker.",
		},
		[]string{"pipeline"},
	)

	// JobsFinishedTotal counts jobs that reached a terminal or
	// retry-pending state, labeled by the status they finished in.
	JobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "jobs_finished_total",
			Help:      "Total number of jobs finished by a worker, by terminal status.",
		},
		[]string{"pipeline", "status"},
	)

	// JobDuration tracks wall-clock time spent running one claimed job.
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock time spent running a claimed job.",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 180, 600, 1800},
		},
		[]string{"pipeline"},
	)

	// LeaseRenewalFailuresTotal counts renewals that found the lease no
	// longer held, which aborts the job without a terminal write.
	LeaseRenewalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "renewal_failures_total",
			Help:      "Total number of lease renewals that found the job no longer held by this worker.",
		},
		[]string{"pipeline"},
	)

	// WorkerIdlePollsTotal counts poll cycles that found no claimable job.
	WorkerIdlePollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "idle_polls_total",
			Help:      "Total number of poll cycles that found no claimable job.",
		},
		[]string{"pipeline"},
	)

	// RetrievalQueryDuration tracks hybrid retrieval latency end to end.
	RetrievalQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retriever",
			Name:      "query_duration_seconds",
			Help:      "Duration of a retrieval query, including both backends when hybrid.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"backend"},
	)

	// RetrievalResultsReturned tracks result-set size per query.
	RetrievalResultsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retriever",
			Name:      "results_returned",
			Help:      "Number of chunks returned per retrieval query, after diversity capping.",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)

	// SpiderTasksEnqueuedTotal counts crawl units pushed onto the spider's
	// Redis queue, by run_type.
	SpiderTasksEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spider",
			Name:      "tasks_enqueued_total",
			Help:      "Total number of crawl units pushed to the spider queue.",
		},
		[]string{"run_type"},
	)

	// SpiderCallbacksTotal counts inbound spider callbacks, by outcome.
	SpiderCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spider",
			Name:      "callbacks_total",
			Help:      "Total number of spider callbacks received, by outcome.",
		},
		[]string{"outcome"},
	)

	// LLMRequestDuration tracks LLM enrichment call latency by backend and
	// model.
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of LLM enrichment calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"backend", "model"},
	)

	// LLMRequestErrorsTotal counts failed LLM calls by backend and model.
	LLMRequestErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_errors_total",
			Help:      "Total number of failed LLM enrichment calls.",
		},
		[]string{"backend", "model"},
	)
)

func init() {
	prometheus.MustRegister(
		JobsClaimedTotal,
		JobsFinishedTotal,
		JobDuration,
		LeaseRenewalFailuresTotal,
		WorkerIdlePollsTotal,
		RetrievalQueryDuration,
		RetrievalResultsReturned,
		SpiderTasksEnqueuedTotal,
		SpiderCallbacksTotal,
		LLMRequestDuration,
		LLMRequestErrorsTotal,
	)
}
