package interp

import (
	"strings"

	"github.com/dotcommander/kvsh/internal/models"
)

// Command is one parsed input line.
type Command struct {
	Name string
	Args []string
	Raw  string
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// tokenize splits a line on whitespace. The first token is the command name,
// lowercased; the rest are arguments verbatim.
func tokenize(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{Raw: line}, models.NewParseError(line, "empty command")
	}
	return Command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
		Raw:  line,
	}, nil
}

// Parse tokenizes line and checks it against the command table: the name must
// be known and the argument count within the command's arity.
func (in *Interpreter) Parse(line string) (Command, *commandSpec, error) {
	cmd, err := tokenize(line)
	if err != nil {
		return cmd, nil, err
	}

	spec, ok := in.lookup[cmd.Name]
	if !ok {
		return cmd, nil, models.NewParseError(line, "unknown command %q", cmd.Name)
	}
	if len(cmd.Args) < spec.minArgs || (spec.maxArgs >= 0 && len(cmd.Args) > spec.maxArgs) {
		return cmd, nil, models.NewParseError(line, "usage: %s", spec.usage())
	}
	// Canonical name, so aliases dispatch identically.
	cmd.Name = spec.name
	return cmd, spec, nil
}
