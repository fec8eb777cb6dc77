package repos

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	m "mc.store/data/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNumericOverflow     = "22003"
)

var (
	// ErrUniqueViolation means the natural key already exists. Retrying the same
	// rows with a skip or overwrite policy resolves it.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation means the owning run does not exist (or was deleted
	// mid-write). The write cannot succeed as issued.
	ErrForeignKeyViolation = errors.New("foreign key violation")

	ErrNotFound = errors.New("not found")
)

// ConstraintError carries the table and constraint postgres reported.
type ConstraintError struct {
	Kind       error
	Table      string
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s on %s (%s): %v", e.Kind, e.Table, e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func (e *ConstraintError) Retryable() bool {
	return errors.Is(e.Kind, ErrUniqueViolation)
}

// IsRetryable reports whether err is a constraint failure a caller can recover from.
func IsRetryable(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce) && ce.Retryable()
}

// classify maps the postgres error codes callers act on onto the package's errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgUniqueViolation:
		return &ConstraintError{Kind: ErrUniqueViolation, Table: pgErr.TableName, Constraint: pgErr.ConstraintName, Err: err}
	case pgForeignKeyViolation:
		return &ConstraintError{Kind: ErrForeignKeyViolation, Table: pgErr.TableName, Constraint: pgErr.ConstraintName, Err: err}
	case pgNumericOverflow:
		return fmt.Errorf("%w: %w", m.ErrNumericOverflow, err)
	default:
		return err
	}
}
