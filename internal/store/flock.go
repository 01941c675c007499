package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// migrationLockSuffix names the advisory lock file kept beside a database.
const migrationLockSuffix = ".migrate.lock"

// acquireMigrationLock serializes schema setup between kvsh processes that
// open the same fresh file. It blocks until no other process holds the lock.
// release is never nil and may be called more than once.
func acquireMigrationLock(dbPath string) (release func(), err error) {
	release = func() {}

	lockPath := dbPath + migrationLockSuffix
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return release, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // G304: lockPath is derived from the configured dbPath
	if err != nil {
		return release, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}
	fd := int(f.Fd()) //nolint:gosec // G115: file descriptors fit in int

	for {
		err = syscall.Flock(fd, syscall.LOCK_EX)
		if !errors.Is(err, syscall.EINTR) {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return release, fmt.Errorf("lock %s: %w", lockPath, err)
	}

	var released bool
	return func() {
		if released {
			return
		}
		released = true
		_ = syscall.Flock(fd, syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
