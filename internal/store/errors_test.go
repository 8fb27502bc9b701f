package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_NilErrorReturnsNil(t *testing.T) {
	assert.NoError(t, classify("op", nil))
}

func TestClassify_UniqueViolationBecomesConstraintError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ingest_jobs_idempotency_key_key"}
	err := classify("create_ingest_job", pgErr)
	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "ingest_jobs_idempotency_key_key", ce.Constraint)
}

func TestClassify_FKViolationBecomesConstraintError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	err := classify("op", pgErr)
	var ce *ConstraintError
	assert.True(t, errors.As(err, &ce))
}

func TestClassify_OtherPgErrorBecomesStorageError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "57014"} // query_canceled
	err := classify("op", pgErr)
	var se *StorageError
	require.True(t, errors.As(err, &se))
}

func TestClassify_NonPgErrorBecomesStorageError(t *testing.T) {
	err := classify("op", errors.New("connection reset"))
	var se *StorageError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, err.Error(), "op")
}

func TestIsUniqueViolation_DirectPgError(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}

func TestIsUniqueViolation_WrappedConstraintError(t *testing.T) {
	ce := &ConstraintError{Op: "op", Err: &pgconn.PgError{Code: "23505"}}
	assert.True(t, IsUniqueViolation(ce))
}

func TestIsUniqueViolation_UnrelatedErrorIsFalse(t *testing.T) {
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
