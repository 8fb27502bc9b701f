package ingest

import (
	"context"
	"errors"

	"github.com/yaccii-voc/kbcore/internal/lease"
	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/store"
)

// jobHandle is the lease.Job wrapper around a claimed IngestJob. It carries
// a mutable lastErr because lease.Pool's Runner signature returns only a
// Result, not an error — the pipeline stashes its failure message here
// before returning so Claimer.Finish can persist it.
type jobHandle struct {
	job     *model.IngestJob
	lastErr string
}

func (j *jobHandle) ID() int64 { return j.job.JobID }

// Claimer adapts JobStore's ingest-job operations to lease.Claimer.
type Claimer struct {
	Store *store.JobStore
}

func (c *Claimer) Claim(ctx context.Context, workerID string, leaseSeconds int) (lease.Job, error) {
	job, err := c.Store.ClaimNextIngestJob(ctx, workerID, leaseSeconds)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	return &jobHandle{job: job}, nil
}

func (c *Claimer) Renew(ctx context.Context, job lease.Job, workerID string, leaseSeconds int) (bool, error) {
	jh, ok := job.(*jobHandle)
	if !ok {
		return false, errors.New("ingest: unexpected job type")
	}
	rows, err := c.Store.RenewLease(ctx, jh.job.JobID, workerID, leaseSeconds)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (c *Claimer) Finish(ctx context.Context, job lease.Job, result lease.Result, _ error) error {
	jh, ok := job.(*jobHandle)
	if !ok {
		return errors.New("ingest: unexpected job type")
	}
	var status model.IngestJobStatus
	switch result {
	case lease.Succeeded:
		status = model.IngestSucceeded
	case lease.Retryable:
		status = model.IngestFailed
	default:
		status = model.IngestCancelled
	}
	return c.Store.FinishIngestJob(ctx, jh.job.JobID, status, jh.lastErr, true)
}

func isRetryableStoreErr(err error) bool {
	if err == nil {
		return false
	}
	var ce *store.ConstraintError
	if errors.As(err, &ce) {
		return false
	}
	return true
}
