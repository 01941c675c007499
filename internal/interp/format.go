package interp

import (
	"fmt"
	"strings"

	"github.com/dotcommander/kvsh/internal/output"
)

// Format selects how responses are rendered. It implements pflag.Value so it
// can back the --format flag directly.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func (f *Format) String() string {
	if *f == "" {
		return string(FormatText)
	}
	return string(*f)
}

func (f *Format) Set(s string) error {
	switch v := Format(strings.ToLower(strings.TrimSpace(s))); v {
	case FormatText, FormatJSON:
		*f = v
		return nil
	default:
		return fmt.Errorf("invalid format %q (want text or json)", s)
	}
}

func (f *Format) Type() string { return "format" }

// Render produces the single output line for one command. In text mode an
// error becomes "error: <message>"; in JSON mode both outcomes use the
// output envelope.
func Render(f Format, resp Response, err error) string {
	if f != FormatJSON {
		if err != nil {
			return "error: " + oneLine(err.Error())
		}
		return oneLine(resp.Text)
	}

	env := output.Success(resp.Data)
	if err != nil {
		env = output.Error(err)
	} else if resp.Data == nil && resp.Text != "" {
		env.Data = map[string]string{"message": resp.Text}
	}
	line, merr := output.Line(env)
	if merr != nil {
		// Data is always built from plain values, so this only trips on a bug.
		line, _ = output.Line(output.Error(merr))
	}
	return line
}

// oneLine keeps values with embedded newlines from breaking the
// one-response-per-line contract.
func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	r := strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}
