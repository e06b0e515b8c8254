package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrRowNotFound is returned by single-row reads that match nothing.
var ErrRowNotFound = errors.New("row not found")

// DataAccessError wraps a store failure. Error() stays generic so the text is safe
// to surface; the wrapped cause is available through Unwrap and Cause for logs.
type DataAccessError struct {
	Op        string
	Namespace string
	Err       error
}

func (e *DataAccessError) Error() string {
	return fmt.Sprintf("data access failed during %s", e.Op)
}

func (e *DataAccessError) Unwrap() error { return e.Err }

// Cause returns the full underlying error text for server-side logging.
func (e *DataAccessError) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// classify maps raw pgx errors into the persistence taxonomy. Errors that did not
// originate in the store (business errors returned by callbacks) pass through.
func classify(op, namespace string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRowNotFound
	}

	var dae *DataAccessError
	if errors.As(err, &dae) {
		return err
	}

	var pgErr *pgconn.PgError
	var connectErr *pgconn.ConnectError
	if errors.As(err, &pgErr) || errors.As(err, &connectErr) || pgconn.Timeout(err) || errors.Is(err, pgx.ErrTooManyRows) {
		return &DataAccessError{Op: op, Namespace: namespace, Err: err}
	}
	return err
}

// wrapStore always wraps err; used for failures of statements the executor issues itself.
func wrapStore(op, namespace string, err error) error {
	if err == nil {
		return nil
	}
	return &DataAccessError{Op: op, Namespace: namespace, Err: err}
}

// IsUniqueViolation reports whether err carries a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
