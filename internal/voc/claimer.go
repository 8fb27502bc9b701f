package voc

import (
	"context"
	"errors"

	"github.com/yaccii-voc/kbcore/internal/lease"
	"github.com/yaccii-voc/kbcore/internal/model"
	"github.com/yaccii-voc/kbcore/internal/store"
)

// jobHandle is the lease.Job wrapper around a claimed VocJob. The pipeline
// itself writes the terminal status (DONE/FAILED) before returning, the
// same way the original run_job_pipeline commits its own status updates
// inline rather than leaving it to a caller — Finish only ever releases
// the lease, it never rewrites status.
type jobHandle struct {
	job         *model.VocJob
	lastErr     string
	failedStage string
}

func (j *jobHandle) ID() int64 { return j.job.JobID }

// Claimer adapts JobStore's VOC-job operations to lease.Claimer.
type Claimer struct {
	Store *store.JobStore
}

func (c *Claimer) Claim(ctx context.Context, workerID string, leaseSeconds int) (lease.Job, error) {
	job, err := c.Store.ClaimNextVocJob(ctx, workerID, leaseSeconds)
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
		return false, errors.New("voc: unexpected job type")
	}
	rows, err := c.Store.RenewVocLease(ctx, jh.job.JobID, workerID, leaseSeconds)
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Finish only clears the lease: run_job_pipeline already persisted the
// terminal VocJobStatus (DONE or FAILED) before returning its Result.
func (c *Claimer) Finish(ctx context.Context, job lease.Job, _ lease.Result, _ error) error {
	jh, ok := job.(*jobHandle)
	if !ok {
		return errors.New("voc: unexpected job type")
	}
	return c.Store.ClearVocLease(ctx, jh.job.JobID)
}
