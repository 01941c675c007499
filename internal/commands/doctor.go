package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dotcommander/kvsh/internal/app"
	"github.com/dotcommander/kvsh/internal/store"
)

func NewDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database connectivity and record checksums",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dbPath, dbSource, err := app.ResolveDBPathDetailed()
			if err != nil {
				return cmdErr(err)
			}

			type resp struct {
				DBPath        string              `json:"db_path"`
				DBSource      string              `json:"db_source"`
				DBOK          bool                `json:"db_ok"`
				DBErr         string              `json:"db_error,omitempty"`
				SchemaVersion int64               `json:"schema_version,omitempty"`
				SchemaLatest  int64               `json:"schema_latest,omitempty"`
				Counts        *store.StatusCounts `json:"counts,omitempty"`
				Diagnostics   []store.Diagnostic  `json:"diagnostics"`
				Hint          string              `json:"hint,omitempty"`
			}
			out := resp{DBPath: dbPath, DBSource: dbSource, Diagnostics: []store.Diagnostic{}}

			a, err := store.Open(ctx, dbPath)
			if err != nil {
				out.DBErr = err.Error()
				out.Hint = "If this is running in a sandboxed environment, set db_path to a writable location or use --db-path."
				return printSuccess(cmd, out)
			}
			defer func() { _ = a.Close() }()
			out.DBOK = true

			if out.SchemaVersion, out.SchemaLatest, err = store.SchemaVersion(a.DB()); err != nil {
				return cmdErr(err)
			}
			if out.Counts, err = a.GetStatusCounts(ctx); err != nil {
				return cmdErr(err)
			}
			diags, err := a.RunDiagnostics(ctx)
			if err != nil {
				return cmdErr(err)
			}
			if diags != nil {
				out.Diagnostics = diags
			}
			return printSuccess(cmd, out)
		},
	}

	return cmd
}
