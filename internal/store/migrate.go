package store

import (
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/dotcommander/kvsh/internal/app"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// MigrateDB runs all pending migrations with a file lock to prevent concurrent
// migration races. For in-memory databases the lock is skipped.
func MigrateDB(db *sql.DB, dbPath string) error {
	if !app.IsMemoryPath(dbPath) && !strings.HasPrefix(dbPath, "file:") {
		release, err := acquireMigrationLock(dbPath)
		defer release()
		if err != nil {
			return fmt.Errorf("migration lock: %w", err)
		}
	}
	return RunMigrations(db)
}

// configureGoose points goose at the embedded migrations.
//
// goose uses "sqlite3" as its dialect name regardless of the underlying driver.
// We use modernc.org/sqlite (registered as "sqlite"), but goose's dialect
// controls SQL generation, not the driver name.
func configureGoose() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetVerbose(false) // keep stdout for session responses
	goose.SetLogger(goose.NopLogger())
	return goose.SetDialect("sqlite3")
}

// RunMigrations runs all pending migrations using goose.
func RunMigrations(db *sql.DB) error {
	if err := configureGoose(); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// SchemaVersion returns the current and latest migration versions.
// current comes from goose_db_version; latest is the highest version
// in the embedded migration files. Returns (0, latest, nil) for a fresh DB.
func SchemaVersion(db *sql.DB) (current int64, latest int64, err error) {
	if err := configureGoose(); err != nil {
		return 0, 0, fmt.Errorf("set dialect: %w", err)
	}

	current, err = goose.GetDBVersion(db)
	if err != nil {
		// Fresh DB with no goose_db_version table: treat as version 0
		current = 0
	}

	latest, err = latestMigrationVersion()
	if err != nil {
		return current, 0, fmt.Errorf("determine latest version: %w", err)
	}
	return current, latest, nil
}

// latestMigrationVersion reads the embedded migrations directory and returns
// the highest version number found.
func latestMigrationVersion() (int64, error) {
	entries, err := embedMigrations.ReadDir("migrations")
	if err != nil {
		return 0, fmt.Errorf("read migrations dir: %w", err)
	}
	var max int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		// "00002_history.sql" -> 2
		name := e.Name()
		idx := strings.IndexByte(name, '_')
		if idx <= 0 {
			continue
		}
		v, err := strconv.ParseInt(name[:idx], 10, 64)
		if err != nil {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max, nil
}
