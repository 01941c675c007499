package app

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings represents configuration loaded from config.yaml.
// Field names match snake_case YAML keys.
type Settings struct {
	DBPath    string `yaml:"db_path"`
	Prompt    string `yaml:"prompt"`
	History   *bool  `yaml:"history"`
	CacheSize int    `yaml:"cache_size"`
	CacheTTL  string `yaml:"cache_ttl"`
	ListLimit int    `yaml:"list_limit"`

	HistoryLimit int    `yaml:"history_limit"`
	Namespace    string `yaml:"namespace"`
}

// SessionSettings are effective runtime values used by the interactive session.
type SessionSettings struct {
	Prompt    string        `json:"prompt"`
	History   bool          `json:"history"`
	CacheSize int           `json:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl"`
	ListLimit int           `json:"list_limit"`

	HistoryLimit int    `json:"history_limit"`
	Namespace    string `json:"namespace"`
}

const (
	defaultPrompt    = "kvsh> "
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
	defaultListLimit = 1000

	defaultHistoryLimit = 10
	defaultNamespace    = "default"

	maxCacheSize    = 100000
	maxListLimit    = 100000
	maxHistoryLimit = 1000
)

// EffectiveSessionSettings returns validated session settings with defaults.
// Invalid or missing config values fall back to safe defaults.
func EffectiveSessionSettings() SessionSettings {
	cfg := SessionSettings{
		Prompt:    defaultPrompt,
		History:   true,
		CacheSize: defaultCacheSize,
		CacheTTL:  defaultCacheTTL,
		ListLimit: defaultListLimit,

		HistoryLimit: defaultHistoryLimit,
		Namespace:    defaultNamespace,
	}

	s, err := LoadSettings()
	if err != nil {
		return cfg
	}

	if s.Prompt != "" {
		cfg.Prompt = s.Prompt
	}
	if s.History != nil {
		cfg.History = *s.History
	}
	// cache_size: 0 keeps the default; a negative value disables the cache.
	if s.CacheSize != 0 {
		cfg.CacheSize = s.CacheSize
	}
	if s.CacheTTL != "" {
		if d, err := time.ParseDuration(s.CacheTTL); err == nil && d > 0 {
			cfg.CacheTTL = d
		}
	}
	if s.ListLimit > 0 {
		cfg.ListLimit = s.ListLimit
	}
	if s.HistoryLimit > 0 {
		cfg.HistoryLimit = s.HistoryLimit
	}
	if s.Namespace != "" {
		cfg.Namespace = s.Namespace
	}

	if cfg.CacheSize < 0 {
		cfg.CacheSize = 0
	}
	if cfg.CacheSize > maxCacheSize {
		cfg.CacheSize = maxCacheSize
	}
	if cfg.ListLimit > maxListLimit {
		cfg.ListLimit = maxListLimit
	}
	if cfg.HistoryLimit > maxHistoryLimit {
		cfg.HistoryLimit = maxHistoryLimit
	}

	return cfg
}

// settingsOnce, settings, settingsErr implement the sync.Once lazy-load singleton for config.
// dbPathOverrideMu and dbPathOverride implement a mutex-protected process-wide override for CLI --db-path.
//
//nolint:gochecknoglobals // sync.Once singleton + RWMutex override are intentional process-wide state
var (
	settingsOnce sync.Once
	settings     Settings
	settingsErr  error

	dbPathOverrideMu sync.RWMutex
	dbPathOverride   string
)

// SetDBPathOverride sets a process-wide database path override.
// Intended for CLI flag support (e.g. --db-path).
func SetDBPathOverride(path string) {
	dbPathOverrideMu.Lock()
	dbPathOverride = path
	dbPathOverrideMu.Unlock()
}

func getDBPathOverride() string {
	dbPathOverrideMu.RLock()
	v := dbPathOverride
	dbPathOverrideMu.RUnlock()
	return v
}

// settingsPaths lists config files in lookup order:
// 1) ~/.config/kvsh/config.yaml
// 2) /etc/kvsh/config.yaml
// 3) ./config.yaml (lowest priority; allows repo-local overrides if desired)
func settingsPaths() ([]string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(string(os.PathSeparator), "etc", "kvsh", "config.yaml"),
		"config.yaml",
	}, nil
}

// LoadSettings loads configuration once; the first config file found wins.
// Environment variables are handled separately.
func LoadSettings() (Settings, error) {
	settingsOnce.Do(func() {
		settings = Settings{}

		paths, err := settingsPaths()
		if err != nil {
			settingsErr = err
			return
		}
		for _, p := range paths {
			s, err := loadSettingsFile(p)
			if err == nil {
				settings = s
				return
			}
			if !errors.Is(err, os.ErrNotExist) {
				settingsErr = err
				return
			}
		}
	})
	return settings, settingsErr
}

func loadSettingsFile(path string) (Settings, error) {
	b, err := os.ReadFile(path) //nolint:gosec // G304: config paths are fixed lookup locations
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}
