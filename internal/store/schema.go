package store

// schema is the DDL for the primary transactional store. It is applied by
// operators via migration tooling, not by the process itself; it is kept
// alongside the store package as the single source of truth for column
// names the SQL in this package depends on.
const schema = `
CREATE TABLE IF NOT EXISTS kb_spaces (
	space_code   TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	enabled      BOOLEAN NOT NULL DEFAULT TRUE,
	status       TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS documents (
	document_id          BIGSERIAL PRIMARY KEY,
	space_code           TEXT NOT NULL REFERENCES kb_spaces(space_code),
	filename             TEXT NOT NULL,
	content_type         TEXT NOT NULL,
	size                 BIGINT NOT NULL,
	storage_uri          TEXT NOT NULL,
	sha256               TEXT NOT NULL,
	status               SMALLINT NOT NULL DEFAULT 10,
	active_index_version BIGINT NOT NULL DEFAULT 0,
	uploader_id          BIGINT NOT NULL,
	last_error           TEXT NOT NULL DEFAULT '',
	deleted_at           BIGINT
);

CREATE TABLE IF NOT EXISTS ingest_jobs (
	job_id           BIGSERIAL PRIMARY KEY,
	document_id      BIGINT NOT NULL REFERENCES documents(document_id),
	space_code       TEXT NOT NULL,
	pipeline_version TEXT NOT NULL,
	index_version    BIGINT NOT NULL,
	idempotency_key  TEXT NOT NULL UNIQUE,
	status           SMALLINT NOT NULL DEFAULT 10,
	try_count        INT NOT NULL DEFAULT 0,
	max_retries      INT NOT NULL DEFAULT 3,
	locked_by        TEXT,
	locked_until     BIGINT,
	last_error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_ingest_jobs_claimable ON ingest_jobs (status, job_id);

CREATE TABLE IF NOT EXISTS chunks (
	chunk_id      TEXT NOT NULL,
	document_id   BIGINT NOT NULL,
	space_code    TEXT NOT NULL,
	index_version BIGINT NOT NULL,
	chunk_index   INT NOT NULL,
	modality      TEXT NOT NULL,
	locator       JSONB NOT NULL,
	content       TEXT NOT NULL,
	content_hash  TEXT NOT NULL,
	token_count   INT NOT NULL,
	PRIMARY KEY (document_id, index_version, chunk_index)
);

CREATE TABLE IF NOT EXISTS voc_jobs (
	job_id            BIGSERIAL PRIMARY KEY,
	input_hash        TEXT NOT NULL UNIQUE,
	site_code         TEXT NOT NULL,
	scope_type        TEXT NOT NULL,
	scope_value       TEXT NOT NULL,
	params            JSONB NOT NULL,
	status            SMALLINT NOT NULL DEFAULT 10,
	stage             TEXT NOT NULL DEFAULT '',
	preferred_task_id BIGINT,
	preferred_run_id  BIGINT,
	error_code        TEXT NOT NULL DEFAULT '',
	error_message     TEXT NOT NULL DEFAULT '',
	failed_stage      TEXT NOT NULL DEFAULT '',
	locked_by         TEXT,
	locked_until      BIGINT
);
CREATE INDEX IF NOT EXISTS idx_voc_jobs_claimable ON voc_jobs (status, job_id);

CREATE TABLE IF NOT EXISTS spider_tasks (
	task_row_id             BIGSERIAL PRIMARY KEY,
	job_id                  BIGINT NOT NULL REFERENCES voc_jobs(job_id),
	task_id                 TEXT NOT NULL UNIQUE,
	run_type                TEXT NOT NULL,
	scope_type              TEXT NOT NULL,
	scope_value             TEXT NOT NULL,
	status                  SMALLINT NOT NULL DEFAULT 10,
	run_id                  BIGINT,
	callback_token_hash     TEXT NOT NULL,
	callback_token_created_at BIGINT NOT NULL,
	last_error              TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS voc_outputs (
	job_id         BIGINT NOT NULL REFERENCES voc_jobs(job_id),
	module_code    TEXT NOT NULL,
	schema_version INT NOT NULL,
	payload        JSONB NOT NULL,
	updated_at     BIGINT NOT NULL,
	PRIMARY KEY (job_id, module_code)
);

CREATE TABLE IF NOT EXISTS voc_evidence (
	evidence_id BIGSERIAL PRIMARY KEY,
	job_id      BIGINT NOT NULL REFERENCES voc_jobs(job_id),
	module_code TEXT NOT NULL,
	source_type TEXT NOT NULL,
	source_id   BIGINT NOT NULL,
	kind        TEXT,
	snippet     TEXT NOT NULL,
	meta        JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_voc_evidence_job_module ON voc_evidence (job_id, module_code);

CREATE TABLE IF NOT EXISTS voc_reports (
	job_id  BIGINT PRIMARY KEY REFERENCES voc_jobs(job_id),
	report_type TEXT NOT NULL,
	payload JSONB NOT NULL,
	meta    JSONB NOT NULL DEFAULT '{}'
);
`

// Schema returns the DDL applied by operator migration tooling.
func Schema() string { return schema }
