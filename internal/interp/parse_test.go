package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/kvsh/internal/models"
)

func TestParse(t *testing.T) {
	in := New(newFakeStorage())

	tests := []struct {
		name     string
		line     string
		wantName string
		wantArgs []string
		wantErr  string
	}{
		{name: "simple", line: "get k", wantName: "get", wantArgs: []string{"k"}},
		{name: "extra whitespace", line: "  put\tk   v  ", wantName: "put", wantArgs: []string{"k", "v"}},
		{name: "case-insensitive name", line: "GET Key", wantName: "get", wantArgs: []string{"Key"}},
		{name: "alias", line: "del k", wantName: "delete", wantArgs: []string{"k"}},
		{name: "empty", line: "", wantErr: "parse error: empty command"},
		{name: "blank", line: "   \t ", wantErr: "parse error: empty command"},
		{name: "unknown", line: "frob x", wantErr: `parse error: unknown command "frob"`},
		{name: "too few", line: "put k", wantErr: "parse error: usage: put <key> <value...>"},
		{name: "too many", line: "get a b c", wantErr: "parse error: usage: get <key> [json-path]"},
		{name: "no args allowed", line: "stats now", wantErr: "parse error: usage: stats"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, spec, err := in.Parse(tt.line)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, models.ErrParse)
				assert.EqualError(t, err, tt.wantErr)
				assert.Nil(t, spec)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, spec)
			assert.Equal(t, tt.wantName, cmd.Name)
			assert.Equal(t, tt.wantArgs, cmd.Args)
			assert.Equal(t, tt.line, cmd.Raw)
		})
	}
}

func TestCommand_Arg(t *testing.T) {
	cmd := Command{Args: []string{"a"}}
	assert.Equal(t, "a", cmd.Arg(0))
	assert.Equal(t, "", cmd.Arg(1))
}
