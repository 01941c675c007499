package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotcommander/kvsh/internal/app"
	"github.com/dotcommander/kvsh/internal/store"
)

// NewStatusCmd reports where the store lives, what it holds and which
// session settings are in effect.
func NewStatusCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show database location, contents and effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, check)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Also verify every record checksum")
	return cmd
}

func runStatus(cmd *cobra.Command, check bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dbPath, dbSource, err := app.ResolveDBPathDetailed()
	if err != nil {
		return cmdErr(err)
	}

	type dbInfo struct {
		Path      string `json:"path"`
		Source    string `json:"source"`
		OK        bool   `json:"ok"`
		SizeBytes *int64 `json:"size_bytes,omitempty"`
		Error     string `json:"error,omitempty"`
	}
	type resp struct {
		DB       dbInfo              `json:"db"`
		Settings app.SessionSettings `json:"settings"`
		Counts   *store.StatusCounts `json:"counts,omitempty"`
		Verify   *store.VerifyReport `json:"verify,omitempty"`
		Hint     string              `json:"hint,omitempty"`
	}

	result := resp{
		DB:       dbInfo{Path: dbPath, Source: dbSource},
		Settings: app.EffectiveSessionSettings(),
	}

	a, err := store.Open(ctx, dbPath)
	if err != nil {
		result.DB.Error = err.Error()
		result.Hint = "set db_path to a writable location or use --db-path"
		return printSuccess(cmd, result)
	}
	defer func() { _ = a.Close() }()
	result.DB.OK = true

	if !app.IsMemoryPath(dbPath) {
		if stat, err := os.Stat(dbPath); err == nil {
			size := stat.Size()
			result.DB.SizeBytes = &size
		}
	}

	if result.Counts, err = a.GetStatusCounts(ctx); err != nil {
		return cmdErr(err)
	}

	if check {
		report, err := a.Verify(ctx)
		if err != nil {
			return cmdErr(err)
		}
		result.Verify = &report
	}

	return printSuccess(cmd, result)
}
