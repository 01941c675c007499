package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dotcommander/kvsh/internal/app"
	"github.com/dotcommander/kvsh/internal/models"
	"github.com/dotcommander/kvsh/internal/output"
	"github.com/dotcommander/kvsh/internal/store"
)

type printedError struct {
	err error
}

func (e printedError) Error() string {
	// Intentionally hide the original error: the response line is the output.
	return "error already printed"
}

func (e printedError) Unwrap() error { return e.err }

// resolveDBPath reports a path that cannot be resolved or prepared as a
// connection failure: no store can be opened without it.
func resolveDBPath() (string, error) {
	dbPath, err := app.GetDBPath()
	if err != nil {
		return "", &models.ConnectionError{Path: dbPath, Err: err}
	}
	return dbPath, nil
}

func openStore(ctx context.Context) (*store.Adapter, error) {
	dbPath, err := resolveDBPath()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, dbPath, storeOptions(app.EffectiveSessionSettings())...)
}

func withStore(cmd *cobra.Command, fn func(ctx context.Context, a *store.Adapter) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openStore(ctx)
	if err != nil {
		return cmdErr(err)
	}
	defer func() { _ = a.Close() }()

	if err := fn(ctx, a); err != nil {
		return cmdErr(err)
	}
	return nil
}

func cmdErr(err error) error {
	if err == nil {
		return nil
	}
	var pe printedError
	if errors.As(err, &pe) {
		return err
	}
	attrs := []any{"error", err.Error()}
	type recoverable interface {
		ErrorCode() string
		Context() map[string]string
	}
	var detailed recoverable
	if errors.As(err, &detailed) {
		attrs = append(attrs, "error_code", detailed.ErrorCode())
		for k, v := range detailed.Context() {
			attrs = append(attrs, k, v)
		}
	}
	slog.Error("command error", attrs...)
	return printedError{err: err}
}

func printSuccess(cmd *cobra.Command, data any) error {
	cfg := output.DefaultConfig()
	cfg.Writer = cmd.OutOrStdout()
	return output.PrintWith(cfg, output.Success(data))
}
