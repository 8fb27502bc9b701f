// Package store provides durable, transactional access to the entities
// jobs, documents, chunks and their VOC counterparts are built from. It is
// the one authority for which index_version is "active" on a document and
// for job lease/claim semantics.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"k8s.io/klog/v2"

	"github.com/yaccii-voc/kbcore/internal/model"
)

var tracer = otel.Tracer("kbcore-store")

// JobStore is the durable backing store for documents, ingest jobs, chunks
// and VOC jobs. It is safe for concurrent use by multiple worker goroutines
// and multiple processes.
type JobStore struct {
	pool *pgxpool.Pool
}

// Open dials the primary store. Connections are pre-pinged by pgxpool's
// health-check loop, matching the specification's "DB connections come from
// a pool with pre-ping enabled".
func Open(ctx context.Context, dsn string) (*JobStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

func (s *JobStore) Close() { s.pool.Close() }

func nowUnix() int64 { return time.Now().Unix() }

// --- idempotency -------------------------------------------------------

// idempotencyKey mirrors the specification's
// hash(document_id, pipeline_version, index_version).
func idempotencyKey(documentID int64, pipelineVersion string, indexVersion int64) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s:%d", documentID, pipelineVersion, indexVersion)
	return hex.EncodeToString(h.Sum(nil))
}

func vocInputHash(siteCode, scopeType, scopeValue string, params map[string]interface{}) string {
	b, _ := json.Marshal(params)
	h := sha256.New()
	fmt.Fprintf(h, "%s:%s:%s:%s", siteCode, scopeType, scopeValue, string(b))
	return hex.EncodeToString(h.Sum(nil))
}

// --- documents / index versions -----------------------------------------

// AllocateIndexVersion takes an exclusive row lock on the document and
// returns (current active_or_0) + 1.
func (s *JobStore) AllocateIndexVersion(ctx context.Context, documentID int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "AllocateIndexVersion")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, classify("AllocateIndexVersion.begin", err)
	}
	defer tx.Rollback(ctx)

	var active int64
	err = tx.QueryRow(ctx, `SELECT active_index_version FROM documents WHERE document_id = $1 FOR UPDATE`, documentID).Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, classify("AllocateIndexVersion.select", err)
	}

	next := active + 1
	if err := tx.Commit(ctx); err != nil {
		return 0, classify("AllocateIndexVersion.commit", err)
	}
	return next, nil
}

// GetDocument fetches a document, including soft-deleted rows.
func (s *JobStore) GetDocument(ctx context.Context, documentID int64) (*model.Document, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT document_id, space_code, filename, content_type, size, storage_uri, sha256,
		       status, active_index_version, uploader_id, last_error, deleted_at
		FROM documents WHERE document_id = $1`, documentID)
	d := &model.Document{}
	if err := row.Scan(&d.DocumentID, &d.SpaceCode, &d.Filename, &d.ContentType, &d.Size, &d.StorageURI,
		&d.SHA256, &d.Status, &d.ActiveIndexVersion, &d.UploaderID, &d.LastError, &d.DeletedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("GetDocument", err)
	}
	return d, nil
}

// MarkDocumentStatus transitions a document to a new status, optionally
// recording an error.
func (s *JobStore) MarkDocumentStatus(ctx context.Context, documentID int64, status model.DocumentStatus, lastError string) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET status = $2, last_error = $3 WHERE document_id = $1`,
		documentID, status, lastError)
	if err != nil {
		return classify("MarkDocumentStatus", err)
	}
	return nil
}

// SetActiveIndexVersion promotes a document's searchable version. Callers
// MUST have already committed chunks for that version.
func (s *JobStore) SetActiveIndexVersion(ctx context.Context, documentID, version int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE documents SET active_index_version = $2 WHERE document_id = $1`,
		documentID, version)
	if err != nil {
		return classify("SetActiveIndexVersion", err)
	}
	return nil
}

// --- ingest jobs ----------------------------------------------------------

// CreateIngestJob inserts a PENDING ingest job. If a job with the same
// idempotency key already exists, the existing row is returned instead.
func (s *JobStore) CreateIngestJob(ctx context.Context, documentID int64, space, pipelineVersion string, indexVersion int64, maxRetries int) (*model.IngestJob, error) {
	key := idempotencyKey(documentID, pipelineVersion, indexVersion)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO ingest_jobs (document_id, space_code, pipeline_version, index_version, idempotency_key, status, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING job_id, document_id, space_code, pipeline_version, index_version, idempotency_key,
		          status, try_count, max_retries, locked_by, locked_until, last_error`,
		documentID, space, pipelineVersion, indexVersion, key, model.IngestPending, maxRetries)

	job, err := scanIngestJob(row)
	if err == nil {
		return job, nil
	}
	if err != pgx.ErrNoRows {
		return nil, classify("CreateIngestJob.insert", err)
	}

	// Conflict: the job already exists. Fetch it.
	existing, err := s.getIngestJobByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *JobStore) getIngestJobByKey(ctx context.Context, key string) (*model.IngestJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, document_id, space_code, pipeline_version, index_version, idempotency_key,
		       status, try_count, max_retries, locked_by, locked_until, last_error
		FROM ingest_jobs WHERE idempotency_key = $1`, key)
	job, err := scanIngestJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("getIngestJobByKey", err)
	}
	return job, nil
}

func scanIngestJob(row pgx.Row) (*model.IngestJob, error) {
	j := &model.IngestJob{}
	err := row.Scan(&j.JobID, &j.DocumentID, &j.SpaceCode, &j.PipelineVersion, &j.IndexVersion, &j.IdempotencyKey,
		&j.Status, &j.TryCount, &j.MaxRetries, &j.LockedBy, &j.LockedUntil, &j.LastError)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *JobStore) GetIngestJob(ctx context.Context, jobID int64) (*model.IngestJob, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, document_id, space_code, pipeline_version, index_version, idempotency_key,
		       status, try_count, max_retries, locked_by, locked_until, last_error
		FROM ingest_jobs WHERE job_id = $1`, jobID)
	j, err := scanIngestJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, classify("GetIngestJob", err)
	}
	return j, nil
}

// ClaimNextIngestJob atomically selects one eligible job and marks it
// RUNNING with a fresh lease, ordered by job_id ascending for fairness.
// Eligibility:
//
//	status = PENDING
//	OR (status = FAILED AND try_count < max_retries)
//	OR (status = RUNNING AND (locked_until IS NULL OR locked_until < now) AND try_count < max_retries)
func (s *JobStore) ClaimNextIngestJob(ctx context.Context, workerID string, leaseSeconds int) (*model.IngestJob, error) {
	ctx, span := tracer.Start(ctx, "ClaimNextIngestJob")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify("ClaimNextIngestJob.begin", err)
	}
	defer tx.Rollback(ctx)

	now := nowUnix()
	row := tx.QueryRow(ctx, `
		SELECT job_id FROM ingest_jobs
		WHERE status = $1
		   OR (status = $2 AND try_count < max_retries)
		   OR (status = $3 AND (locked_until IS NULL OR locked_until < $4) AND try_count < max_retries)
		ORDER BY job_id ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1`,
		model.IngestPending, model.IngestFailed, model.IngestRunning, now)

	var jobID int64
	if err := row.Scan(&jobID); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, classify("ClaimNextIngestJob.select", err)
	}

	lockedUntil := now + int64(leaseSeconds)
	claimed := tx.QueryRow(ctx, `
		UPDATE ingest_jobs
		SET status = $1, locked_by = $2, locked_until = $3, try_count = try_count + 1
		WHERE job_id = $4
		RETURNING job_id, document_id, space_code, pipeline_version, index_version, idempotency_key,
		          status, try_count, max_retries, locked_by, locked_until, last_error`,
		model.IngestRunning, workerID, lockedUntil, jobID)

	job, err := scanIngestJob(claimed)
	if err != nil {
		return nil, classify("ClaimNextIngestJob.update", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("ClaimNextIngestJob.commit", err)
	}
	klog.V(2).InfoS("claimed ingest job", "jobID", job.JobID, "worker", workerID, "tryCount", job.TryCount)
	return job, nil
}

// RenewLease extends a held lease. It only succeeds if the job is still
// RUNNING and still held by worker_id; a zero return means the caller has
// lost the claim and MUST abort without writing terminal state.
func (s *JobStore) RenewLease(ctx context.Context, jobID int64, workerID string, leaseSeconds int) (int64, error) {
	lockedUntil := nowUnix() + int64(leaseSeconds)
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_jobs SET locked_until = $1
		WHERE job_id = $2 AND locked_by = $3 AND status = $4`,
		lockedUntil, jobID, workerID, model.IngestRunning)
	if err != nil {
		return 0, classify("RenewLease", err)
	}
	return tag.RowsAffected(), nil
}

// FinishIngestJob sets the terminal or retry-pending state for a job and
// clears the lock when requested.
func (s *JobStore) FinishIngestJob(ctx context.Context, jobID int64, newStatus model.IngestJobStatus, lastError string, clearLock bool) error {
	var err error
	if clearLock {
		_, err = s.pool.Exec(ctx, `
			UPDATE ingest_jobs SET status = $1, last_error = $2, locked_by = NULL, locked_until = NULL
			WHERE job_id = $3`, newStatus, lastError, jobID)
	} else {
		_, err = s.pool.Exec(ctx, `UPDATE ingest_jobs SET status = $1, last_error = $2 WHERE job_id = $3`,
			newStatus, lastError, jobID)
	}
	if err != nil {
		return classify("FinishIngestJob", err)
	}
	return nil
}

// CancelJobsByDocument bulk-transitions non-terminal ingest jobs for a
// document to CANCELLED.
func (s *JobStore) CancelJobsByDocument(ctx context.Context, documentID int64, reason string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_jobs SET status = $1, last_error = $2, locked_by = NULL, locked_until = NULL
		WHERE document_id = $3 AND status NOT IN ($4, $1)`,
		model.IngestCancelled, reason, documentID, model.IngestSucceeded)
	if err != nil {
		return 0, classify("CancelJobsByDocument", err)
	}
	return tag.RowsAffected(), nil
}

// CancelJobsBySpace bulk-transitions non-terminal ingest jobs for a space to
// CANCELLED, used on KbSpace soft-delete.
func (s *JobStore) CancelJobsBySpace(ctx context.Context, space, reason string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_jobs SET status = $1, last_error = $2, locked_by = NULL, locked_until = NULL
		WHERE space_code = $3 AND status NOT IN ($4, $1)`,
		model.IngestCancelled, reason, space, model.IngestSucceeded)
	if err != nil {
		return 0, classify("CancelJobsBySpace", err)
	}
	return tag.RowsAffected(), nil
}

// --- chunks ----------------------------------------------------------------

// ReplaceChunks deletes and reinserts all chunks of (document_id,
// index_version) inside a single transaction, so the operation is fully
// idempotent on retry.
func (s *JobStore) ReplaceChunks(ctx context.Context, documentID, indexVersion int64, chunks []model.Chunk) error {
	ctx, span := tracer.Start(ctx, "ReplaceChunks")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify("ReplaceChunks.begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1 AND index_version = $2`, documentID, indexVersion); err != nil {
		return classify("ReplaceChunks.delete", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		locatorJSON, err := json.Marshal(c.Locator)
		if err != nil {
			return fmt.Errorf("store: marshal locator for chunk %s: %w", c.ChunkID, err)
		}
		batch.Queue(`
			INSERT INTO chunks (chunk_id, document_id, space_code, index_version, chunk_index, modality, locator, content, content_hash, token_count)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			c.ChunkID, documentID, c.SpaceCode, indexVersion, c.ChunkIndex, string(c.Modality), locatorJSON, c.Content, c.ContentHash, c.TokenCount)
	}
	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return classify("ReplaceChunks.insert", err)
		}
	}
	if err := br.Close(); err != nil {
		return classify("ReplaceChunks.batchclose", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("ReplaceChunks.commit", err)
	}
	return nil
}

// ListSearchableChunks resolves chunk ids to full chunk rows, restricted to
// chunks whose document is INDEXED, not DELETED, and whose index_version
// equals the document's active_index_version — the "searchable chunk" view
// used by hybrid retrieval.
func (s *JobStore) ListSearchableChunks(ctx context.Context, space string, chunkIDs []string) ([]model.Chunk, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT c.chunk_id, c.document_id, c.space_code, c.index_version, c.chunk_index, c.modality,
		       c.locator, c.content, c.content_hash, c.token_count
		FROM chunks c
		JOIN documents d ON d.document_id = c.document_id
		WHERE c.space_code = $1
		  AND c.chunk_id = ANY($2)
		  AND d.status = $3
		  AND d.deleted_at IS NULL
		  AND c.index_version = d.active_index_version`,
		space, chunkIDs, model.DocumentIndexed)
	if err != nil {
		return nil, classify("ListSearchableChunks", err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		var c model.Chunk
		var modality string
		var locatorJSON []byte
		if err := rows.Scan(&c.ChunkID, &c.DocumentID, &c.SpaceCode, &c.IndexVersion, &c.ChunkIndex, &modality,
			&locatorJSON, &c.Content, &c.ContentHash, &c.TokenCount); err != nil {
			return nil, classify("ListSearchableChunks.scan", err)
		}
		c.Modality = model.Modality(modality)
		_ = json.Unmarshal(locatorJSON, &c.Locator)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteStaleChunkVersions removes chunk rows of a document whose
// index_version differs from the currently active one, mirroring the
// best-effort post-commit cleanup the ingest pipeline performs against the
// external indices.
func (s *JobStore) DeleteStaleChunkVersions(ctx context.Context, documentID, keepVersion int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1 AND index_version <> $2`, documentID, keepVersion)
	if err != nil {
		return classify("DeleteStaleChunkVersions", err)
	}
	return nil
}
