package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvDBPath names the environment variable that overrides the database path.
const EnvDBPath = "KVSH_DB_PATH"

// GetDBPath resolves the database path.
// Order of precedence:
// 1) CLI override (e.g. --db-path)
// 2) Environment variable: KVSH_DB_PATH
// 3) config.yaml: db_path
// 4) Default: ~/.config/kvsh/kvsh.db
// Ensures the parent directory exists for file-backed paths.
func GetDBPath() (string, error) {
	path, _, err := ResolveDBPathDetailed()
	return path, err
}

// ResolveDBPathDetailed returns the resolved DB path along with the source of that decision.
func ResolveDBPathDetailed() (path string, source string, err error) {
	if override := getDBPathOverride(); override != "" {
		resolved, ensureErr := EnsureDBDir(override)
		return resolved, "cli(--db-path)", ensureErr
	}
	if envPath := os.Getenv(EnvDBPath); envPath != "" {
		resolved, ensureErr := EnsureDBDir(envPath)
		return resolved, "env(" + EnvDBPath + ")", ensureErr
	}

	// Config file order must match LoadSettings.
	configPaths, err := settingsPaths()
	if err != nil {
		return "", "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	for _, p := range configPaths {
		s, loadErr := loadSettingsFile(p)
		if loadErr == nil {
			if s.DBPath != "" {
				resolved, ensureErr := EnsureDBDir(expandHome(s.DBPath))
				return resolved, fmt.Sprintf("config(%s)", p), ensureErr
			}
			continue
		}
		if errors.Is(loadErr, os.ErrNotExist) {
			continue
		}
		return "", "", fmt.Errorf("failed to load config %s: %w", p, loadErr)
	}

	configDir, err := ConfigDir()
	if err != nil {
		return "", "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	resolved, err := EnsureDBDir(filepath.Join(configDir, "kvsh.db"))
	return resolved, "default(~/.config/kvsh/kvsh.db)", err
}

// EnsureDBDir creates the parent directory of dbPath. In-memory and file: URI
// paths are returned untouched. dbPath is returned even on failure so callers
// can name it.
func EnsureDBDir(dbPath string) (string, error) {
	if IsMemoryPath(dbPath) || strings.HasPrefix(dbPath, "file:") {
		return dbPath, nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return dbPath, fmt.Errorf("failed to create database directory: %w", err)
	}
	return dbPath, nil
}

// IsMemoryPath reports whether dbPath names an in-memory database.
func IsMemoryPath(dbPath string) bool {
	return strings.Contains(dbPath, ":memory:")
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
