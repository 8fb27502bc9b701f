package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// These exercise each vector with its declared label set. A label-count
// mismatch here panics, catching drift between a metric's declared labels
// and the labels callers actually pass at WithLabelValues call sites.

func TestJobsClaimedTotal_AcceptsPipelineLabel(t *testing.T) {
	JobsClaimedTotal.WithLabelValues("ingest").Inc()
}

func TestJobsFinishedTotal_AcceptsPipelineAndStatusLabels(t *testing.T) {
	JobsFinishedTotal.WithLabelValues("voc", "SUCCEEDED").Inc()
}

func TestJobDuration_AcceptsPipelineLabel(t *testing.T) {
	JobDuration.WithLabelValues("ingest").Observe(1.5)
}

func TestLeaseRenewalFailuresTotal_AcceptsPipelineLabel(t *testing.T) {
	LeaseRenewalFailuresTotal.WithLabelValues("ingest").Inc()
}

func TestWorkerIdlePollsTotal_AcceptsPipelineLabel(t *testing.T) {
	WorkerIdlePollsTotal.WithLabelValues("voc").Inc()
}

func TestRetrievalQueryDuration_AcceptsBackendLabel(t *testing.T) {
	RetrievalQueryDuration.WithLabelValues("hybrid").Observe(0.2)
}

func TestRetrievalResultsReturned_IsUnlabeled(t *testing.T) {
	RetrievalResultsReturned.Observe(8)
}

func TestSpiderTasksEnqueuedTotal_AcceptsRunTypeLabel(t *testing.T) {
	before := testutil.ToFloat64(SpiderTasksEnqueuedTotal.WithLabelValues("amazon_listing"))
	SpiderTasksEnqueuedTotal.WithLabelValues("amazon_listing").Inc()
	after := testutil.ToFloat64(SpiderTasksEnqueuedTotal.WithLabelValues("amazon_listing"))
	if after != before+1 {
		t.Fatalf("counter did not increment: before=%v after=%v", before, after)
	}
}

func TestSpiderCallbacksTotal_AcceptsOutcomeLabel(t *testing.T) {
	SpiderCallbacksTotal.WithLabelValues("ready").Inc()
}

func TestLLMRequestDuration_AcceptsBackendAndModelLabels(t *testing.T) {
	LLMRequestDuration.WithLabelValues("openai", "gpt-4o-mini").Observe(0.8)
}

func TestLLMRequestErrorsTotal_AcceptsBackendAndModelLabels(t *testing.T) {
	LLMRequestErrorsTotal.WithLabelValues("openai", "gpt-4o-mini").Inc()
}

func TestAllVectorsAreRegisteredOnDefaultRegisterer(t *testing.T) {
	collectors := []prometheus.Collector{
		JobsClaimedTotal, JobsFinishedTotal, JobDuration, LeaseRenewalFailuresTotal,
		WorkerIdlePollsTotal, RetrievalQueryDuration, RetrievalResultsReturned,
		SpiderTasksEnqueuedTotal, SpiderCallbacksTotal, LLMRequestDuration, LLMRequestErrorsTotal,
	}
	for _, c := range collectors {
		// Re-registering an already-registered collector returns
		// AlreadyRegisteredError, proving init() registered it.
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				t.Fatalf("unexpected registration error: %v", err)
			}
		} else {
			t.Fatalf("collector was not registered by init()")
		}
	}
}
