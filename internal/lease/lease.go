// Package lease drives pipelines by pulling leased jobs from the JobStore,
// running them, and renewing or releasing their leases. It is the Go
// equivalent of the teacher's controller/worker goroutines
// (internal/controller/reindexjob_worker.go), generalized from a single
// Kubernetes reconciler to a small cooperative pool per pipeline kind.
package lease

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/metrics"
)

// Result is the uniform outcome a pipeline run translates into before the
// scheduler maps it onto JobStore state.
type Result int

const (
	Succeeded Result = iota
	Retryable
	Permanent
)

func (r Result) String() string {
	switch r {
	case Succeeded:
		return "SUCCEEDED"
	case Retryable:
		return "RETRYABLE"
	case Permanent:
		return "PERMANENT"
	default:
		return "UNKNOWN"
	}
}

// ErrLeaseLost names the condition of a lease no longer held by this
// worker. Pool's renewal loop does not return it: it signals the loss by
// cancelling the Runner's context, which pipelines MUST observe via
// ctx.Err() and abort without writing terminal state.
var ErrLeaseLost = errors.New("lease: no longer held by this worker")

// Options configures a worker pool for one pipeline kind.
type Options struct {
	// Pipeline names the pipeline for metrics/logging ("ingest" or "voc").
	Pipeline string
	// Concurrency is the number of cooperative worker goroutines.
	Concurrency int
	// LeaseSeconds is the duration granted per claim.
	LeaseSeconds int
	// IdleSleep is how long a worker sleeps after finding no claimable job.
	IdleSleep time.Duration
}

// DefaultIngestOptions matches the specification's defaults for the ingest
// pipeline (60s lease, 3s idle sleep).
func DefaultIngestOptions(concurrency int) Options {
	return Options{Pipeline: "ingest", Concurrency: concurrency, LeaseSeconds: 60, IdleSleep: 3 * time.Second}
}

// DefaultVocOptions matches the specification's defaults for the VOC
// pipeline (600s lease, 3s idle sleep).
func DefaultVocOptions(concurrency int) Options {
	return Options{Pipeline: "voc", Concurrency: concurrency, LeaseSeconds: 600, IdleSleep: 3 * time.Second}
}

// WorkerID returns a stable-enough per-process worker identity: a random
// UUID suffix on the supplied prefix, so two processes on the same host
// never collide.
func WorkerID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Job is the minimal shape a claimed unit of work exposes back to the pool,
// satisfied by small adapter structs wrapping *model.IngestJob and
// *model.VocJob in internal/ingest and internal/voc.
type Job interface {
	// ID is the job_id, used for logging and metrics only.
	ID() int64
}

// Claimer claims the next eligible job for this pipeline, or returns a nil
// job (and nil error) when there is nothing to do.
type Claimer interface {
	Claim(ctx context.Context, workerID string, leaseSeconds int) (Job, error)
	Renew(ctx context.Context, job Job, workerID string, leaseSeconds int) (bool, error)
	Finish(ctx context.Context, job Job, result Result, lastErr error) error
}

// Runner executes one claimed job to completion (or failure), returning the
// Result the pool should translate into a Finish call. ctx is cancelled
// when the background renewal loop detects the lease was lost.
type Runner func(ctx context.Context, job Job) Result

// Pool drives Concurrency worker goroutines against one Claimer/Runner
// pair until its context is cancelled.
type Pool struct {
	opts    Options
	claimer Claimer
	run     Runner
}

func NewPool(opts Options, claimer Claimer, run Runner) *Pool {
	return &Pool{opts: opts, claimer: claimer, run: run}
}

// Run blocks until ctx is cancelled, driving opts.Concurrency worker
// goroutines.
func (p *Pool) Run(ctx context.Context) {
	workers := p.opts.Concurrency
	if workers < 1 {
		workers = 1
	}
	done := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		workerID := WorkerID(p.opts.Pipeline)
		go func() {
			defer func() { done <- struct{}{} }()
			p.workerLoop(ctx, workerID)
		}()
	}
	for i := 0; i < workers; i++ {
		<-done
	}
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.claimer.Claim(ctx, workerID, p.opts.LeaseSeconds)
		if err != nil {
			klog.ErrorS(err, "claim failed", "pipeline", p.opts.Pipeline, "worker", workerID)
			sleep(ctx, p.opts.IdleSleep)
			continue
		}
		if job == nil {
			metrics.WorkerIdlePollsTotal.WithLabelValues(p.opts.Pipeline).Inc()
			sleep(ctx, p.opts.IdleSleep)
			continue
		}

		metrics.JobsClaimedTotal.WithLabelValues(p.opts.Pipeline).Inc()
		p.runOne(ctx, workerID, job)
	}
}

// runOne runs a single claimed job with a background lease-renewal ticker.
// If renewal ever observes the lease was lost, runCtx is cancelled; the
// Runner is expected to check ctx.Err() at its next checkpoint and return
// promptly. The job is still finished with whatever Result the Runner
// returns unless the lease was lost, in which case no terminal write
// happens at all.
func (p *Pool) runOne(parent context.Context, workerID string, job Job) {
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	leaseLost := make(chan struct{})
	renewStop := make(chan struct{})
	go p.renewLoop(parent, workerID, job, cancel, leaseLost, renewStop)
	defer close(renewStop)

	start := time.Now()
	result := p.run(runCtx, job)
	metrics.JobDuration.WithLabelValues(p.opts.Pipeline).Observe(time.Since(start).Seconds())

	select {
	case <-leaseLost:
		klog.V(2).InfoS("lease lost, skipping terminal write", "pipeline", p.opts.Pipeline, "jobID", job.ID())
		return
	default:
	}

	if err := p.claimer.Finish(parent, job, result, nil); err != nil {
		klog.ErrorS(err, "finish failed", "pipeline", p.opts.Pipeline, "jobID", job.ID())
	}
	metrics.JobsFinishedTotal.WithLabelValues(p.opts.Pipeline, result.String()).Inc()
}

func (p *Pool) renewLoop(ctx context.Context, workerID string, job Job, cancel context.CancelFunc, leaseLost, stop chan struct{}) {
	interval := time.Duration(p.opts.LeaseSeconds) * time.Second / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := p.claimer.Renew(ctx, job, workerID, p.opts.LeaseSeconds)
			if err != nil {
				klog.ErrorS(err, "lease renewal failed", "pipeline", p.opts.Pipeline, "jobID", job.ID())
				continue
			}
			if !ok {
				metrics.LeaseRenewalFailuresTotal.WithLabelValues(p.opts.Pipeline).Inc()
				close(leaseLost)
				cancel()
				return
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
