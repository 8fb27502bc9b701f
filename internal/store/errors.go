package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// StorageError wraps a transient failure talking to the store (connection
// drop, deadline exceeded, pool exhaustion). Callers MUST treat it as
// retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ConstraintError wraps a permanent failure (FK violation, unique violation
// other than the idempotency-key fast path, check constraint). Callers MUST
// treat it as fatal for the job at hand.
type ConstraintError struct {
	Op         string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("store: %s: constraint %q violated: %v", e.Op, e.Constraint, e.Err)
}
func (e *ConstraintError) Unwrap() error { return e.Err }

// ErrNotFound is returned by single-row lookups that found nothing.
var ErrNotFound = errors.New("store: not found")

// classify turns a raw pgx/driver error into StorageError or ConstraintError,
// the way JobStore operations are required to per the specification's error
// handling design.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503", "23514": // unique_violation, fk_violation, check_violation
			return &ConstraintError{Op: op, Constraint: pgErr.ConstraintName, Err: err}
		}
	}
	return &StorageError{Op: op, Err: err}
}

// IsUniqueViolation reports whether err is a unique-constraint violation
// (SQLSTATE 23505), either as a raw *pgconn.PgError or wrapped in a
// ConstraintError.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		var inner *pgconn.PgError
		if errors.As(ce.Err, &inner) {
			return inner.Code == "23505"
		}
	}
	return false
}
