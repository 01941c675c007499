package commands

import (
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFlagType(t *testing.T) {
	require.Equal(t, "integer", normalizeFlagType("int64"))
	require.Equal(t, "boolean", normalizeFlagType("bool"))
	require.Equal(t, "string", normalizeFlagType("format"))
	require.Equal(t, "string", normalizeFlagType("string"))
}

func TestTypedFlagDefault(t *testing.T) {
	require.Equal(t, true, typedFlagDefault("bool", "true"))
	require.Equal(t, 42, typedFlagDefault("int", "42"))
	require.Equal(t, "oops", typedFlagDefault("int", "oops"))
	require.Equal(t, "text", typedFlagDefault("format", "text"))
}

func TestIsRequiredFlag(t *testing.T) {
	reqByAnnotation := &pflag.Flag{Annotations: map[string][]string{cobra.BashCompOneRequiredFlag: {"true"}}}
	require.True(t, isRequiredFlag(reqByAnnotation))

	reqByUsage := &pflag.Flag{Usage: "Key prefix (required)"}
	require.True(t, isRequiredFlag(reqByUsage))

	require.False(t, isRequiredFlag(&pflag.Flag{Usage: "optional flag"}))
}

func TestParseEnumValues(t *testing.T) {
	require.Equal(t, []string{"text", "json"}, parseEnumValues("Response format: text|json"))
	require.Equal(t, []string{"text", "json"}, parseEnumValues("Output style (text, json)"))
	require.Nil(t, parseEnumValues("Override database path (default: $KVSH_DB_PATH, then config.yaml)"))
	require.Nil(t, parseEnumValues("Example only (e.g. foo, bar)"))
	require.Nil(t, parseEnumValues(""))
}

func TestNormalizeEnumParts(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, normalizeEnumParts([]string{" a ", "[b]", "skip me", "1.2"}))
	require.Nil(t, normalizeEnumParts([]string{"onlyone"}))
}

func TestSchema_ListsFlagsAndSessionCommands(t *testing.T) {
	res := runCLI(t, tempDB(t), "", "schema")
	require.NoError(t, res.err)

	var resp struct {
		Data struct {
			Commands []commandArgSchema `json:"commands"`
			Session  []sessionCommand   `json:"session"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))

	byPath := map[string]commandArgSchema{}
	for _, c := range resp.Data.Commands {
		byPath[c.Command] = c
	}
	require.Contains(t, byPath, "kvsh")
	require.Contains(t, byPath, "kvsh exec")
	require.Contains(t, byPath, "kvsh db path")

	props := byPath["kvsh"].ArgsSchema["properties"].(map[string]any)
	format := props["format"].(map[string]any)
	assert.Equal(t, "text", format["default"])
	assert.Equal(t, []any{"text", "json"}, format["enum"])

	require.NotEmpty(t, resp.Data.Session)
	assert.Equal(t, "put", resp.Data.Session[0].Name)
	assert.Equal(t, "put <key> <value...> - store a value; extra words are joined with single spaces", resp.Data.Session[0].Usage)

	names := make([]string, 0, len(resp.Data.Session))
	for _, c := range resp.Data.Session {
		names = append(names, c.Name)
	}
	assert.Subset(t, names, []string{"use", "tables", "drop"})
	assert.Contains(t, props, "ns")
}

func TestStatus_ReportsCounts(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, runCLI(t, db, "", "exec", "put", "a", "1").err)

	res := runCLI(t, db, "", "status", "--check")
	require.NoError(t, res.err)

	var resp struct {
		Data struct {
			DB struct {
				OK        bool   `json:"ok"`
				Path      string `json:"path"`
				SizeBytes int64  `json:"size_bytes"`
			} `json:"db"`
			Settings struct {
				ListLimit    int `json:"list_limit"`
				HistoryLimit int `json:"history_limit"`
			} `json:"settings"`
			Counts struct {
				Records    int64 `json:"records"`
				Namespaces int64 `json:"namespaces"`
			} `json:"counts"`
			Verify struct {
				Checked int `json:"checked"`
			} `json:"verify"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.True(t, resp.Data.DB.OK)
	assert.Equal(t, db, resp.Data.DB.Path)
	assert.Positive(t, resp.Data.DB.SizeBytes)
	assert.Equal(t, 1000, resp.Data.Settings.ListLimit)
	assert.Equal(t, 10, resp.Data.Settings.HistoryLimit)
	assert.Equal(t, int64(1), resp.Data.Counts.Records)
	assert.Equal(t, int64(1), resp.Data.Counts.Namespaces)
	assert.Equal(t, 1, resp.Data.Verify.Checked)
}
