package models

import (
	"errors"
	"fmt"
)

// RecoverableError is implemented by enriched errors that carry structured
// context and remediation hints. Both the store and output packages use this
// interface to avoid an import cycle.
type RecoverableError interface {
	error
	ErrorCode() string
	Context() map[string]string
	SuggestedAction() string
}

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrParse      = errors.New("parse error")
	ErrQuery      = errors.New("query error")
	ErrConnection = errors.New("connection error")
)

// ParseError reports a malformed, empty or unrecognized command line.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string { return "parse error: " + e.Reason }
func (e *ParseError) ErrorCode() string { return "PARSE_ERROR" }
func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Context() map[string]string {
	return map[string]string{"line": e.Line}
}
func (e *ParseError) SuggestedAction() string { return "type help for the list of commands" }

// NewParseError builds a ParseError with a formatted reason.
func NewParseError(line, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// QueryError reports a statement that the store rejected: malformed SQL,
// a constraint violation, or a value that cannot serve the requested read.
// The session survives it.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	if e.Op == "" {
		return "query error: " + e.Err.Error()
	}
	return fmt.Sprintf("query error: %s: %v", e.Op, e.Err)
}
func (e *QueryError) Unwrap() error { return e.Err }
func (e *QueryError) ErrorCode() string { return "QUERY_ERROR" }
func (e *QueryError) Is(target error) bool { return target == ErrQuery }
func (e *QueryError) Context() map[string]string {
	return map[string]string{"op": e.Op}
}
func (e *QueryError) SuggestedAction() string { return "check the command arguments and retry" }

// ConnectionError reports that the store cannot be opened or the open
// connection is no longer usable. It ends the session.
type ConnectionError struct {
	Path string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Path == "" {
		return "connection error: " + e.Err.Error()
	}
	return fmt.Sprintf("connection error: %s: %v", e.Path, e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }
func (e *ConnectionError) ErrorCode() string { return "CONNECTION_ERROR" }
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
func (e *ConnectionError) Context() map[string]string {
	return map[string]string{"path": e.Path}
}
func (e *ConnectionError) SuggestedAction() string {
	return "set db_path to a writable location or pass --db-path"
}

// IsFatal reports whether err must end the session.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnection)
}
