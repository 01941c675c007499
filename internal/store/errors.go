package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dotcommander/kvsh/internal/models"
)

var (
	// ErrNotFound is returned when a key has no record.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned by any operation on a closed Adapter.
	ErrClosed = errors.New("store is closed")

	// ErrNotJSON is returned when a JSON path is applied to a non-JSON value.
	ErrNotJSON = errors.New("value is not valid JSON")

	// ErrConstraint marks a statement rejected by a UNIQUE, CHECK, NOT NULL
	// or FOREIGN KEY constraint.
	ErrConstraint = errors.New("constraint violation")

	// ErrBadNamespace is returned for a namespace name that cannot be used.
	ErrBadNamespace = errors.New("invalid namespace")
)

// classify wraps a driver error in the session error taxonomy. Connection
// level failures become *models.ConnectionError; everything else the
// database rejected becomes *models.QueryError. Context cancellation passes
// through untouched.
func classify(path, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var connErr *models.ConnectionError
	var queryErr *models.QueryError
	if errors.As(err, &connErr) || errors.As(err, &queryErr) {
		return err
	}
	if isConnectionFailure(err) {
		return &models.ConnectionError{Path: path, Err: err}
	}
	if IsConstraintErr(err) {
		return &models.QueryError{Op: op, Err: fmt.Errorf("%w: %w", ErrConstraint, err)}
	}
	return &models.QueryError{Op: op, Err: err}
}

// isConnectionFailure reports errors after which the connection cannot be
// trusted for further statements.
func isConnectionFailure(err error) bool {
	if errors.Is(err, ErrClosed) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch primaryCode(sqliteErr.Code()) {
		case sqlite3.SQLITE_IOERR, sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CANTOPEN:
			return true
		}
		return false
	}

	// database/sql does not export its closed-pool error.
	return strings.Contains(err.Error(), "sql: database is closed")
}

// IsConstraintErr checks for any SQLite constraint violation (UNIQUE, CHECK,
// NOT NULL, FOREIGN KEY).
func IsConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return primaryCode(sqliteErr.Code()) == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "constraint failed")
}
