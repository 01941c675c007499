package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dotcommander/kvsh/internal/app"
	"github.com/dotcommander/kvsh/internal/models"
)

// defaultBusyTimeoutMS is the SQLite busy_timeout in milliseconds.
// Override with KVSH_BUSY_TIMEOUT_MS for environments with high contention.
const defaultBusyTimeoutMS = 5000

// Open establishes the connection to the store at path, creating the file and
// schema when missing. Any failure is reported as *models.ConnectionError and
// leaves no connection open.
func Open(ctx context.Context, path string, opts ...Option) (*Adapter, error) {
	db, err := initDB(ctx, path)
	if err != nil {
		return nil, &models.ConnectionError{Path: path, Err: err}
	}

	a := &Adapter{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// initDB opens the database with SQLite + WAL mode and runs migrations.
func initDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	if _, err := app.EnsureDBDir(dbPath); err != nil {
		return nil, err
	}

	// modernc.org/sqlite is strict about DSNs. Use a file: URI with mode=rwc
	// so the database can be created/written consistently across platforms.
	db, err := sql.Open("sqlite", normalizeSQLiteDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One session, one connection. Idle connections are never recycled, which
	// also keeps a private :memory: database alive for the adapter's lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	busyTimeout := defaultBusyTimeoutMS
	if v := os.Getenv("KVSH_BUSY_TIMEOUT_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			busyTimeout = parsed
		}
	}

	// busy_timeout goes first so the remaining pragmas wait on locks.
	// synchronous=NORMAL is crash safe under WAL; only the last checkpoint is at risk.
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	if !app.IsMemoryPath(dbPath) {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if err := RetryWithBackoff(ctx, func() error {
			_, err := db.ExecContext(ctx, pragma)
			return err
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := RetryWithBackoff(ctx, func() error { return MigrateDB(db, dbPath) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func normalizeSQLiteDSN(dbPath string) string {
	// Support an explicit file: DSN as-is.
	if strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}

	// Private in-memory database; not shared between adapters.
	if dbPath == ":memory:" {
		return "file::memory:"
	}

	// Escape the path so '#', '?' and '%' stay part of the filename.
	// mode=rwc => read/write/create. Without this, some environments open read-only.
	dsn := &url.URL{Scheme: "file", OmitHost: true, Path: filepath.ToSlash(dbPath), RawQuery: "mode=rwc"}
	return dsn.String()
}
