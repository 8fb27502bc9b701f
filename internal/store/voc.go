package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yaccii-voc/kbcore/internal/model"
)

// CreateVocJobByHash inserts a PENDING VOC job keyed by input_hash. A
// duplicate create returns the existing row, making job creation idempotent.
func (s *JobStore) CreateVocJobByHash(ctx context.Context, siteCode, scopeType, scopeValue string, params map[string]interface{}) (*model.VocJob, error) {
	hash := vocInputHash(siteCode, scopeType, scopeValue, params)
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("store: marshal voc params: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO voc_jobs (input_hash, site_code, scope_type, scope_value, params, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (input_hash) DO NOTHING
		RETURNING job_id, input_hash, site_code, scope_type, scope_value, params, status, stage,
		          preferred_task_id, preferred_run_id, error_code, error_message, failed_stage`,
		hash, siteCode, scopeType, scopeValue, paramsJSON, model.VocPending)

	job, err := scanVocJob(row)
	if err == nil {
		return job, nil
	}
	if err != pgx.ErrNoRows {
		return nil, classify("CreateVocJobByHash.insert", err)
	}
	return s.getVocJobByHash(ctx, hash)
}

func (s *JobStore) getVocJobByHash(ctx context.Context, hash string) (*model.VocJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, input_hash, site_code, scope_type, scope_value, params, status, stage,
		       preferred_task_id, preferred_run_id, error_code, error_message, failed_stage
		FROM voc_jobs WHERE input_hash = $1`, hash)
	job, err := scanVocJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("getVocJobByHash", err)
	}
	return job, nil
}

func scanVocJob(row pgx.Row) (*model.VocJob, error) {
	j := &model.VocJob{}
	var paramsJSON []byte
	if err := row.Scan(&j.JobID, &j.InputHash, &j.SiteCode, &j.ScopeType, &j.ScopeValue, &paramsJSON,
		&j.Status, &j.Stage, &j.PreferredTaskID, &j.PreferredRunID, &j.ErrorCode, &j.ErrorMessage, &j.FailedStage); err != nil {
		return nil, err
	}
	j.Params = map[string]interface{}{}
	_ = json.Unmarshal(paramsJSON, &j.Params)
	return j, nil
}

func (s *JobStore) GetVocJob(ctx context.Context, jobID int64) (*model.VocJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, input_hash, site_code, scope_type, scope_value, params, status, stage,
		       preferred_task_id, preferred_run_id, error_code, error_message, failed_stage
		FROM voc_jobs WHERE job_id = $1`, jobID)
	j, err := scanVocJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("GetVocJob", err)
	}
	return j, nil
}

// UpdateVocJobParams persists a new params blob (used to track
// params.pending_crawl as callbacks drain it).
func (s *JobStore) UpdateVocJobParams(ctx context.Context, jobID int64, params map[string]interface{}) error {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("store: marshal voc params: %w", err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE voc_jobs SET params = $2 WHERE job_id = $1`, jobID, paramsJSON)
	if err != nil {
		return classify("UpdateVocJobParams", err)
	}
	return nil
}

// UpdateVocJobStatus transitions a VocJob's status/stage and, optionally,
// its error fields.
func (s *JobStore) UpdateVocJobStatus(ctx context.Context, jobID int64, status model.VocJobStatus, stage, errorCode, errorMessage, failedStage string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE voc_jobs SET status = $2, stage = $3, error_code = $4, error_message = $5, failed_stage = $6
		WHERE job_id = $1`, jobID, status, stage, errorCode, errorMessage, failedStage)
	if err != nil {
		return classify("UpdateVocJobStatus", err)
	}
	return nil
}

// SetVocPreferredPointers records the spider run this job should read from,
// overriding the "latest" lookup in ResultsReader.
func (s *JobStore) SetVocPreferredPointers(ctx context.Context, jobID int64, taskID, runID *int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE voc_jobs SET preferred_task_id = $2, preferred_run_id = $3 WHERE job_id = $1`,
		jobID, taskID, runID)
	if err != nil {
		return classify("SetVocPreferredPointers", err)
	}
	return nil
}

// ClaimNextVocJob claims one VOC job ready to progress through
// EXTRACTING->ANALYZING->PERSISTING, using the same lease/skip-locked
// pattern as ClaimNextIngestJob. Eligibility is status EXTRACTING or
// ANALYZING with no live lease (the Enqueuer does PENDING->CRAWLING and the
// callback receiver CRAWLING->EXTRACTING; this claim only drives the
// deterministic analyzer stage).
func (s *JobStore) ClaimNextVocJob(ctx context.Context, workerID string, leaseSeconds int) (*model.VocJob, error) {
	ctx, span := tracer.Start(ctx, "ClaimNextVocJob")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify("ClaimNextVocJob.begin", err)
	}
	defer tx.Rollback(ctx)

	now := nowUnix()
	row := tx.QueryRow(ctx, `
		SELECT job_id FROM voc_jobs
		WHERE (status = $1 OR status = $2)
		  AND (locked_until IS NULL OR locked_until < $3)
		ORDER BY job_id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`,
		model.VocExtracting, model.VocAnalyzing, now)

	var jobID int64
	if err := row.Scan(&jobID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classify("ClaimNextVocJob.select", err)
	}

	lockedUntil := now + int64(leaseSeconds)
	claimed := tx.QueryRow(ctx, `
		UPDATE voc_jobs SET status = $1, locked_by = $2, locked_until = $3
		WHERE job_id = $4
		RETURNING job_id, input_hash, site_code, scope_type, scope_value, params, status, stage,
		          preferred_task_id, preferred_run_id, error_code, error_message, failed_stage`,
		model.VocAnalyzing, workerID, lockedUntil, jobID)
	job, err := scanVocJob(claimed)
	if err != nil {
		return nil, classify("ClaimNextVocJob.update", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify("ClaimNextVocJob.commit", err)
	}
	return job, nil
}

// RenewVocLease extends a held VOC job lease.
func (s *JobStore) RenewVocLease(ctx context.Context, jobID int64, workerID string, leaseSeconds int) (int64, error) {
	lockedUntil := nowUnix() + int64(leaseSeconds)
	tag, err := s.pool.Exec(ctx, `
		UPDATE voc_jobs SET locked_until = $1
		WHERE job_id = $2 AND locked_by = $3 AND status IN ($4, $5, $6)`,
		lockedUntil, jobID, workerID, model.VocExtracting, model.VocAnalyzing, model.VocPersisting)
	if err != nil {
		return 0, classify("RenewVocLease", err)
	}
	return tag.RowsAffected(), nil
}

// ClearVocLease releases the lease without changing status, used when a
// worker finishes (status already reflects the outcome).
func (s *JobStore) ClearVocLease(ctx context.Context, jobID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE voc_jobs SET locked_by = NULL, locked_until = NULL WHERE job_id = $1`, jobID)
	if err != nil {
		return classify("ClearVocLease", err)
	}
	return nil
}

// --- spider tasks ------------------------------------------------------

func (s *JobStore) CreateSpiderTask(ctx context.Context, jobID int64, taskID string, runType model.RunType, scopeType, scopeValue, callbackTokenHash string) (*model.SpiderTask, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO spider_tasks (job_id, task_id, run_type, scope_type, scope_value, status, callback_token_hash, callback_token_created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (task_id) DO NOTHING
		RETURNING task_row_id, job_id, task_id, run_type, scope_type, scope_value, status, run_id,
		          callback_token_hash, callback_token_created_at, last_error`,
		jobID, taskID, string(runType), scopeType, scopeValue, model.SpiderPending, callbackTokenHash, nowUnix())
	task, err := scanSpiderTask(row)
	if err == nil {
		return task, nil
	}
	if err != pgx.ErrNoRows {
		return nil, classify("CreateSpiderTask.insert", err)
	}
	return s.GetSpiderTaskByTaskID(ctx, taskID)
}

func scanSpiderTask(row pgx.Row) (*model.SpiderTask, error) {
	t := &model.SpiderTask{}
	var runType string
	if err := row.Scan(&t.TaskRowID, &t.JobID, &t.TaskID, &runType, &t.ScopeType, &t.ScopeValue, &t.Status,
		&t.RunID, &t.CallbackTokenHash, &t.CallbackTokenCreated, &t.LastError); err != nil {
		return nil, err
	}
	t.RunType = model.RunType(runType)
	return t, nil
}

func (s *JobStore) GetSpiderTaskByTaskID(ctx context.Context, taskID string) (*model.SpiderTask, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT task_row_id, job_id, task_id, run_type, scope_type, scope_value, status, run_id,
		       callback_token_hash, callback_token_created_at, last_error
		FROM spider_tasks WHERE task_id = $1`, taskID)
	t, err := scanSpiderTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("GetSpiderTaskByTaskID", err)
	}
	return t, nil
}

// UpdateSpiderTaskStatus is idempotent: applying the same terminal status
// repeatedly is a no-op past the first application. It returns the updated
// row.
func (s *JobStore) UpdateSpiderTaskStatus(ctx context.Context, taskID string, status model.SpiderTaskStatus, runID *int64, lastError string) (*model.SpiderTask, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE spider_tasks SET status = $2, run_id = COALESCE($3, run_id), last_error = $4
		WHERE task_id = $1
		RETURNING task_row_id, job_id, task_id, run_type, scope_type, scope_value, status, run_id,
		          callback_token_hash, callback_token_created_at, last_error`,
		taskID, status, runID, lastError)
	t, err := scanSpiderTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("UpdateSpiderTaskStatus", err)
	}
	return t, nil
}

// --- voc outputs / evidence / report -------------------------------------

// UpsertVocOutput writes the per-module analysis result. Must be called
// before ClearVocEvidence/InsertVocEvidenceMany for the same module so
// evidence is never visible for an output that hasn't been written yet.
func (s *JobStore) UpsertVocOutput(ctx context.Context, jobID int64, moduleCode string, payload map[string]interface{}, schemaVersion int) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: marshal voc output payload: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO voc_outputs (job_id, module_code, schema_version, payload, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (job_id, module_code) DO UPDATE SET
			schema_version = EXCLUDED.schema_version, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		jobID, moduleCode, schemaVersion, payloadJSON, nowUnix())
	if err != nil {
		return classify("UpsertVocOutput", err)
	}
	return nil
}

func (s *JobStore) ListVocOutputs(ctx context.Context, jobID int64) ([]model.VocOutput, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, module_code, schema_version, payload, updated_at FROM voc_outputs WHERE job_id = $1
		ORDER BY module_code`, jobID)
	if err != nil {
		return nil, classify("ListVocOutputs", err)
	}
	defer rows.Close()

	var out []model.VocOutput
	for rows.Next() {
		var o model.VocOutput
		var payloadJSON []byte
		if err := rows.Scan(&o.JobID, &o.ModuleCode, &o.SchemaVersion, &payloadJSON, &o.UpdatedAt); err != nil {
			return nil, classify("ListVocOutputs.scan", err)
		}
		o.Payload = map[string]interface{}{}
		_ = json.Unmarshal(payloadJSON, &o.Payload)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ClearVocEvidence deletes all evidence rows for (job, module) ahead of a
// re-run.
func (s *JobStore) ClearVocEvidence(ctx context.Context, jobID int64, moduleCode string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM voc_evidence WHERE job_id = $1 AND module_code = $2`, jobID, moduleCode)
	if err != nil {
		return classify("ClearVocEvidence", err)
	}
	return nil
}

// InsertVocEvidenceMany appends evidence rows for a module in one batch.
func (s *JobStore) InsertVocEvidenceMany(ctx context.Context, jobID int64, moduleCode string, rows []model.VocEvidence) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		metaJSON, err := json.Marshal(r.Meta)
		if err != nil {
			return fmt.Errorf("store: marshal evidence meta: %w", err)
		}
		batch.Queue(`
			INSERT INTO voc_evidence (job_id, module_code, source_type, source_id, kind, snippet, meta)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			jobID, moduleCode, r.SourceType, r.SourceID, r.Kind, r.Snippet, metaJSON)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range rows {
		if _, err := br.Exec(); err != nil {
			return classify("InsertVocEvidenceMany", err)
		}
	}
	return nil
}

// CountVocEvidence returns evidence row counts grouped by module_code, used
// by the report builder to populate evidence_counts without re-scanning raw
// data.
func (s *JobStore) CountVocEvidence(ctx context.Context, jobID int64) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT module_code, COUNT(*) FROM voc_evidence WHERE job_id = $1 GROUP BY module_code`, jobID)
	if err != nil {
		return nil, classify("CountVocEvidence", err)
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, classify("CountVocEvidence.scan", err)
		}
		out[code] = n
	}
	return out, rows.Err()
}

// UpsertVocReport writes the at-most-one-per-job report row.
func (s *JobStore) UpsertVocReport(ctx context.Context, jobID int64, reportType string, payload, meta map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("store: marshal voc report payload: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("store: marshal voc report meta: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO voc_reports (job_id, report_type, payload, meta)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (job_id) DO UPDATE SET report_type = EXCLUDED.report_type, payload = EXCLUDED.payload, meta = EXCLUDED.meta`,
		jobID, reportType, payloadJSON, metaJSON)
	if err != nil {
		return classify("UpsertVocReport", err)
	}
	return nil
}
