package commands

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dotcommander/kvsh/internal/interp"
)

// NewSchemaCmd describes the CLI and the session vocabulary as JSON, for
// scripts that drive kvsh. root is walked for command and flag schemas.
func NewSchemaCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print CLI flag schemas and session commands as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			type resp struct {
				Commands []commandArgSchema `json:"commands"`
				Session  []sessionCommand   `json:"session"`
			}
			schemas := make([]commandArgSchema, 0)
			collectCommandSchemas(root, &schemas)
			return printSuccess(cmd, resp{Commands: schemas, Session: sessionCommands()})
		},
	}
}

type sessionCommand struct {
	Name  string `json:"name"`
	Usage string `json:"usage"`
}

func sessionCommands() []sessionCommand {
	// Usage lookups never touch storage.
	in := interp.New(nil)
	out := make([]sessionCommand, 0)
	for _, name := range in.Names() {
		usage, _ := in.Usage(name)
		out = append(out, sessionCommand{Name: name, Usage: usage})
	}
	return out
}

type commandArgSchema struct {
	Command     string         `json:"command"`
	Description string         `json:"description,omitempty"`
	ArgsSchema  map[string]any `json:"args_schema"`
}

func collectCommandSchemas(cmd *cobra.Command, out *[]commandArgSchema) {
	if !cmd.Hidden && cmd.Name() != "schema" && cmd.Name() != "help" {
		*out = append(*out, buildCommandSchema(cmd))
	}
	for _, child := range cmd.Commands() {
		collectCommandSchemas(child, out)
	}
}

func buildCommandSchema(cmd *cobra.Command) commandArgSchema {
	properties := map[string]any{}
	required := make([]string, 0)
	seen := map[string]bool{}

	addFlag := func(f *pflag.Flag) {
		if f.Hidden || seen[f.Name] {
			return
		}
		seen[f.Name] = true

		flagSchema := map[string]any{
			"type":        normalizeFlagType(f.Value.Type()),
			"description": f.Usage,
		}
		if f.DefValue != "" {
			flagSchema["default"] = typedFlagDefault(f.Value.Type(), f.DefValue)
		}
		if enumValues := parseEnumValues(f.Usage); len(enumValues) > 0 {
			flagSchema["enum"] = enumValues
		}
		properties[f.Name] = flagSchema

		if isRequiredFlag(f) {
			required = append(required, f.Name)
		}
	}

	cmd.InheritedFlags().VisitAll(addFlag)
	cmd.NonInheritedFlags().VisitAll(addFlag)

	argsSchema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sort.Strings(required)
		argsSchema["required"] = required
	}

	return commandArgSchema{
		Command:     cmd.CommandPath(),
		Description: cmd.Short,
		ArgsSchema:  argsSchema,
	}
}

func normalizeFlagType(flagType string) string {
	switch flagType {
	case "int", "int64", "int32", "uint", "uint64", "uint32":
		return "integer"
	case "bool":
		return "boolean"
	default:
		return "string"
	}
}

func typedFlagDefault(flagType, raw string) any {
	switch flagType {
	case "bool":
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	case "int", "int64", "int32", "uint", "uint64", "uint32":
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return raw
}

func isRequiredFlag(f *pflag.Flag) bool {
	if vals, ok := f.Annotations[cobra.BashCompOneRequiredFlag]; ok && len(vals) > 0 && vals[0] == "true" {
		return true
	}
	return strings.Contains(strings.ToLower(f.Usage), "(required)")
}

// parseEnumValues pulls choices out of usage text written as
// "Label: a|b|c" or "Label (a, b, c)".
func parseEnumValues(usage string) []string {
	usage = strings.TrimSpace(usage)
	if usage == "" {
		return nil
	}

	if idx := strings.Index(usage, ":"); idx >= 0 {
		if cand := strings.TrimSpace(usage[idx+1:]); strings.Contains(cand, "|") {
			return normalizeEnumParts(strings.Split(cand, "|"))
		}
	}

	open, end := strings.LastIndex(usage, "("), strings.LastIndex(usage, ")")
	if open >= 0 && end > open {
		cand := usage[open+1 : end]
		if strings.Contains(strings.ToLower(cand), "e.g.") {
			return nil
		}
		if strings.Contains(cand, ",") {
			return normalizeEnumParts(strings.Split(cand, ","))
		}
	}
	return nil
}

func normalizeEnumParts(parts []string) []string {
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(p, "[]"))
		if p == "" || strings.ContainsAny(p, ". $") {
			continue
		}
		values = append(values, p)
	}
	if len(values) < 2 {
		return nil
	}
	return values
}
