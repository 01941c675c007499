package app

import (
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.config/kvsh/ on all platforms.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kvsh"), nil
}

// EnsureConfigDir creates the config directory and default config.yaml if missing.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	configFile := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return os.WriteFile(configFile, []byte(defaultConfig), 0600)
	}
	return nil
}

const defaultConfig = `# kvsh configuration
# Run: kvsh --help

# Optional: override the SQLite database location.
# Can also be set via KVSH_DB_PATH or --db-path.
# db_path: ~/.config/kvsh/kvsh.db

# prompt: "kvsh> "
# history: true
# cache_size: 256
# cache_ttl: 5m
# list_limit: 1000
# history_limit: 10

# Namespace record commands start in; switch inside a session with: use <name>
# namespace: default
`
