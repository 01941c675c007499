package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/pkg/cache"
)

// Result is the outcome of Execute. Reads fill Columns and Rows; writes fill
// RowsAffected and LastInsertID.
type Result struct {
	Columns      []string `json:"columns,omitempty"`
	Rows         [][]any  `json:"rows,omitempty"`
	RowsAffected int64    `json:"rows_affected"`
	LastInsertID int64    `json:"last_insert_id,omitempty"`
}

// Adapter owns the single connection to the embedded store. It is not safe
// for concurrent use by more than one session.
type Adapter struct {
	db    *sql.DB
	path  string
	cache cache.Cache[models.Record]
	now   func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Option configures an Adapter at Open.
type Option func(*Adapter)

// WithCache puts a read-through cache in front of Get.
func WithCache(c cache.Cache[models.Record]) Option {
	return func(a *Adapter) {
		a.cache = c
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// Path returns the location the adapter was opened with.
func (a *Adapter) Path() string {
	return a.path
}

// DB exposes the underlying handle for diagnostics.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Close releases the connection. Calling it again has no further effect.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		if a.db != nil {
			a.closeErr = a.db.Close()
		}
	})
	return a.closeErr
}

// Closed reports whether Close has been called.
func (a *Adapter) Closed() bool {
	return a.closed.Load()
}

// Execute runs a parameterized statement. Statements that produce rows
// (queries, PRAGMA, CTEs and anything with a RETURNING clause) fill Columns
// and Rows; the rest report RowsAffected. Anything other than a plain SELECT,
// EXPLAIN or VALUES drops the read cache since it may touch records behind
// its back.
func (a *Adapter) Execute(ctx context.Context, statement string, params ...any) (*Result, error) {
	return a.run(ctx, "execute", !shapeOf(statement).readOnly, statement, params...)
}

// run is Execute with the operation name used in errors and explicit control
// over cache invalidation.
func (a *Adapter) run(ctx context.Context, op string, purge bool, statement string, params ...any) (*Result, error) {
	if a.Closed() {
		return nil, &models.ConnectionError{Path: a.path, Err: ErrClosed}
	}
	if strings.TrimSpace(statement) == "" {
		return nil, &models.QueryError{Op: op, Err: errors.New("empty statement")}
	}

	var res *Result
	err := RetryWithBackoff(ctx, func() error {
		var runErr error
		res, runErr = execute(ctx, a.db, statement, params...)
		return runErr
	})
	// A failed write may still have changed rows before it was rejected.
	if purge && a.cache != nil {
		a.cache.Purge()
	}
	if err != nil {
		return nil, classify(a.path, op, err)
	}
	return res, nil
}

// execute runs statement on q without retry or classification, so record
// operations can share it inside a transaction. q must hand every call the
// same connection (a *sql.Tx, or a *sql.DB capped at one connection) for
// the change count of row-returning writes to be accurate.
func execute(ctx context.Context, q Querier, statement string, params ...any) (*Result, error) {
	shape := shapeOf(statement)
	if !shape.returnsRows {
		r, err := q.ExecContext(ctx, statement, params...)
		if err != nil {
			return nil, err
		}
		res := &Result{}
		if res.RowsAffected, err = r.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to read rows affected: %w", err)
		}
		// SQLite always reports a last insert id; zero when nothing was inserted.
		res.LastInsertID, _ = r.LastInsertId()
		return res, nil
	}

	var before int64
	if !shape.readOnly {
		var err error
		if before, err = totalChanges(ctx, q); err != nil {
			return nil, err
		}
	}

	res, err := query(ctx, q, statement, params...)
	if err != nil {
		return nil, err
	}

	if !shape.readOnly {
		after, err := totalChanges(ctx, q)
		if err != nil {
			return nil, err
		}
		res.RowsAffected = after - before
	}
	return res, nil
}

func query(ctx context.Context, q Querier, statement string, params ...any) (*Result, error) {
	rows, err := q.QueryContext(ctx, statement, params...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// totalChanges reads the connection's running count of modified rows.
// changes() would report a stale count after a statement that wrote nothing.
func totalChanges(ctx context.Context, q Querier) (int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT total_changes()`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rows.Close() }()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

// statementShape says how a statement must be run.
type statementShape struct {
	// readOnly statements cannot modify the database.
	readOnly bool
	// returnsRows statements go through QueryContext.
	returnsRows bool
}

func shapeOf(statement string) statementShape {
	words := statementWords(statement)
	if len(words) == 0 {
		return statementShape{}
	}

	var shape statementShape
	switch words[0] {
	case "SELECT", "EXPLAIN", "VALUES":
		shape.readOnly = true
		shape.returnsRows = true
	case "WITH", "PRAGMA":
		shape.returnsRows = true
	}
	for _, w := range words[1:] {
		if w == "RETURNING" {
			shape.returnsRows = true
			break
		}
	}
	return shape
}

// statementWords returns the upper-cased bare words of statement, skipping
// string literals, quoted identifiers and comments.
func statementWords(statement string) []string {
	var words []string
	s := statement
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return words
			}
			i += end + 2
		case c == '[':
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				return words
			}
			i += end + 2
		case strings.HasPrefix(s[i:], "--"):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return words
			}
			i += end + 1
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return words
			}
			i += end + 4
		case isWordByte(c) && !isDigit(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			words = append(words, strings.ToUpper(s[i:j]))
			i = j
		case isWordByte(c):
			// Numeric literal or its suffix; never a keyword.
			for i < len(s) && isWordByte(s[i]) {
				i++
			}
		default:
			i++
		}
	}
	return words
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Scalar helpers for rows produced by execute.

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func asInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func asTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x.UTC()
	case int64:
		return time.Unix(x, 0).UTC()
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, x); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
