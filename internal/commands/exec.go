package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/kvsh/internal/app"
	"github.com/dotcommander/kvsh/internal/interp"
)

func newExecCmd(format *interp.Format) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command line...>",
		Short: "Run one session command and exit",
		Long: `Run one session command without entering the interactive loop. The words
are joined with single spaces and parsed exactly like a typed line. Put "--"
before the command when a value starts with a dash.`,
		Example: `  kvsh exec put greeting hello world
  kvsh exec get greeting
  kvsh --ns books exec list
  kvsh --format json exec -- put delta -1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			line := strings.Join(args, " ")

			opts, err := interpOptions(cmd, app.EffectiveSessionSettings())
			if err != nil {
				return startupError(cmd, *format, err)
			}
			a, err := openStore(ctx)
			if err != nil {
				return startupError(cmd, *format, err)
			}
			defer func() { _ = a.Close() }()

			resp, err := interp.New(a, opts...).Interpret(ctx, line)
			if _, werr := fmt.Fprintln(cmd.OutOrStdout(), interp.Render(*format, resp, err)); werr != nil {
				return werr
			}
			if err != nil {
				return printedError{err: err}
			}
			return nil
		},
	}
	return cmd
}
