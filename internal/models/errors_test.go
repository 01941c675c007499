package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRecoverableError_Is verifies each struct type matches its own sentinel
// via errors.Is and does not cross-match other sentinels.
func TestRecoverableError_Is(t *testing.T) {
	parse := NewParseError("frob", "unknown command %q", "frob")
	query := &QueryError{Op: "put", Err: errors.New("CHECK constraint failed")}
	conn := &ConnectionError{Path: "/tmp/x.db", Err: errors.New("disk I/O error")}

	assert.ErrorIs(t, parse, ErrParse)
	assert.ErrorIs(t, query, ErrQuery)
	assert.ErrorIs(t, conn, ErrConnection)

	assert.False(t, errors.Is(parse, ErrQuery))
	assert.False(t, errors.Is(parse, ErrConnection))
	assert.False(t, errors.Is(query, ErrParse))
	assert.False(t, errors.Is(query, ErrConnection))
	assert.False(t, errors.Is(conn, ErrParse))
	assert.False(t, errors.Is(conn, ErrQuery))
}

func TestRecoverableError_ErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      RecoverableError
		wantCode string
	}{
		{name: "ParseError", err: &ParseError{Line: "", Reason: "empty command"}, wantCode: "PARSE_ERROR"},
		{name: "QueryError", err: &QueryError{Op: "get", Err: errors.New("boom")}, wantCode: "QUERY_ERROR"},
		{name: "ConnectionError", err: &ConnectionError{Err: errors.New("boom")}, wantCode: "CONNECTION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode())
			assert.NotEmpty(t, tt.err.SuggestedAction())
			assert.NotNil(t, tt.err.Context())
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `parse error: unknown command "frob"`, NewParseError("frob", "unknown command %q", "frob").Error())
	assert.Equal(t, "query error: put: boom", (&QueryError{Op: "put", Err: errors.New("boom")}).Error())
	assert.Equal(t, "query error: boom", (&QueryError{Err: errors.New("boom")}).Error())
	assert.Equal(t, "connection error: /tmp/x.db: boom", (&ConnectionError{Path: "/tmp/x.db", Err: errors.New("boom")}).Error())
}

func TestIsFatal_SeesThroughWrapping(t *testing.T) {
	base := errors.New("database is closed")
	wrapped := fmt.Errorf("session: %w", &ConnectionError{Err: base})

	require.True(t, IsFatal(wrapped))
	require.ErrorIs(t, wrapped, base)
	require.False(t, IsFatal(&QueryError{Op: "get", Err: base}))
	require.False(t, IsFatal(nil))
}
