package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/kvsh/internal/app"
	"github.com/dotcommander/kvsh/internal/interp"
	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/internal/session"
	"github.com/dotcommander/kvsh/internal/store"
	"github.com/dotcommander/kvsh/pkg/cache"
)

// Execute runs the CLI application. SIGINT and SIGTERM cancel the running
// command; the returned error then wraps context.Canceled.
func Execute(version string) error {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(version, level)
	err := root.ExecuteContext(ctx)
	if err != nil {
		var pe printedError
		if !errors.As(err, &pe) && !errors.Is(err, context.Canceled) {
			slog.Error("command failed", "error", err.Error())
		}
	}
	return err
}

// NewRootCmd builds the command tree. level, when non-nil, is lowered to
// debug by --verbose.
func NewRootCmd(version string, level *slog.LevelVar) *cobra.Command {
	format := interp.FormatText

	root := &cobra.Command{
		Use:   "kvsh",
		Short: "Interactive key/value shell over an embedded SQLite file",
		Long: `kvsh reads one command per line from standard input and answers with one
line on standard output. Type help inside the session for the command list.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				type resp struct {
					Version string `json:"version"`
				}
				return printSuccess(cmd, resp{Version: version})
			}
			noHistory, _ := cmd.Flags().GetBool("no-history")
			return runSession(cmd, format, noHistory)
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A read-only or missing HOME only costs the default config file.
			if err := app.EnsureConfigDir(); err != nil {
				slog.Warn("config dir unavailable, using defaults", "error", err.Error())
			}

			// Wire --db-path into app-level resolver.
			if dbPath, err := cmd.Flags().GetString("db-path"); err == nil && dbPath != "" {
				app.SetDBPathOverride(dbPath)
			}

			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && level != nil {
				level.Set(slog.LevelDebug)
			}
			return nil
		},
	}

	root.PersistentFlags().String("db-path", "", "Override database path (default: $KVSH_DB_PATH, then config.yaml)")
	root.PersistentFlags().Var(&format, "format", "Response format: text|json")
	root.PersistentFlags().String("ns", "", "Namespace record commands start in (default: config namespace, then \"default\")")
	root.PersistentFlags().Bool("verbose", false, "Log debug details to stderr")
	root.Flags().Bool("no-history", false, "Do not record commands in the history table")
	root.Flags().BoolP("version", "v", false, "version for kvsh")

	root.AddCommand(newExecCmd(&format))
	root.AddCommand(NewDBCmd())
	root.AddCommand(NewDoctorCmd())
	root.AddCommand(NewStatusCmd())
	root.AddCommand(NewSchemaCmd(root))

	return root
}

// storeOptions builds the adapter options the configured settings ask for.
func storeOptions(cfg app.SessionSettings) []store.Option {
	if cfg.CacheSize <= 0 {
		return nil
	}
	return []store.Option{
		store.WithCache(cache.NewLRU[models.Record](cfg.CacheSize, cache.WithTTL(cfg.CacheTTL))),
	}
}

// interpOptions builds the interpreter options from settings and the --ns
// flag. An unusable namespace name is a parse error.
func interpOptions(cmd *cobra.Command, cfg app.SessionSettings) ([]interp.Option, error) {
	ns := cfg.Namespace
	if flag, _ := cmd.Flags().GetString("ns"); flag != "" {
		ns = flag
	}
	if err := store.ValidateNamespace(ns); err != nil {
		return nil, models.NewParseError("--ns "+ns, "--ns: %v", err)
	}
	return []interp.Option{
		interp.WithListLimit(cfg.ListLimit),
		interp.WithHistoryLimit(cfg.HistoryLimit),
		interp.WithNamespace(ns),
	}, nil
}

// startupError prints err the way the session prints a failed line, on
// stderr, so a session that never started still ends with one error line.
func startupError(cmd *cobra.Command, format interp.Format, err error) error {
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), interp.Render(format, interp.Response{}, err))
	return cmdErr(err)
}

func runSession(cmd *cobra.Command, format interp.Format, noHistory bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dbPath, err := resolveDBPath()
	if err != nil {
		return startupError(cmd, format, err)
	}
	cfg := app.EffectiveSessionSettings()
	opts, err := interpOptions(cmd, cfg)
	if err != nil {
		return startupError(cmd, format, err)
	}

	s, err := session.Open(ctx, dbPath,
		session.WithStoreOptions(storeOptions(cfg)...),
		session.WithPrompt(cfg.Prompt),
		session.WithHistory(cfg.History && !noHistory),
		session.WithFormat(format),
		session.WithLogger(slog.Default()),
		session.WithInterpreterOptions(opts...),
	)
	if err != nil {
		return startupError(cmd, format, err)
	}
	defer func() { _ = s.Close() }()

	slog.Debug("session opened", "db_path", dbPath)
	if err := s.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return cmdErr(err)
	}
	return nil
}
