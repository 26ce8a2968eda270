// Package config loads ctx's on-disk configuration and applies
// environment variable overrides, the way the teacher's config package
// layers viper over a JSON file plus env vars (see SPEC_FULL.md §9).
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config is the complete ctx configuration.
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	// CacheDir overrides the default cache root ($HOME/.ctx). Overridden
	// by the CTX_CACHE_DIR environment variable (spec §6).
	CacheDir string `json:"cacheDir" mapstructure:"cacheDir"`

	// RowCap is the hard maximum number of rows the SQL executor returns
	// (spec §4.H). Overridden by CTX_ROW_CAP.
	RowCap int `json:"rowCap" mapstructure:"rowCap"`

	// WatchDebounceMs is the coalescing window for file-watch events
	// (spec §4.I). Overridden by CTX_WATCH_DEBOUNCE_MS.
	WatchDebounceMs int `json:"watchDebounceMs" mapstructure:"watchDebounceMs"`

	// CacheIdleSaveMs is the idle window after which the indexer
	// persists its cache following an incremental update (spec §4.E).
	CacheIdleSaveMs int `json:"cacheIdleSaveMs" mapstructure:"cacheIdleSaveMs"`

	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Bindings registers the language-specific producers the core has
	// no opinion on (spec §9 DESIGN NOTES: "capability record
	// LanguageBinding"). Empty by default; a project supplies its own
	// via <root>/.ctx/config.json.
	Bindings []BindingConfig `json:"bindings" mapstructure:"bindings"`
}

// BindingConfig names one external SCIP producer: a marker file that
// identifies a package root, the command that produces SCIP bytes for
// one file at a time, and the dependency-lock file (if any) whose
// change marks the registry's external indexes stale.
type BindingConfig struct {
	Language           string   `json:"language" mapstructure:"language"`
	MarkerFile         string   `json:"markerFile" mapstructure:"markerFile"`
	Extensions         []string `json:"extensions" mapstructure:"extensions"`
	Command            string   `json:"command" mapstructure:"command"`
	Args               []string `json:"args" mapstructure:"args"`
	DependencyLockFile string   `json:"dependencyLockFile" mapstructure:"dependencyLockFile"`
}

// LoggingConfig mirrors internal/logging.Config in JSON-friendly form.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

const currentVersion = 1

// DefaultConfig returns ctx's built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:         currentVersion,
		CacheDir:        "",
		RowCap:          10000,
		WatchDebounceMs: 200,
		CacheIdleSaveMs: 500,
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads <root>/.ctx/config.json via viper, falling back to
// DefaultConfig when no file is present, then applies environment
// variable overrides.
func Load(root string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, ".ctx"))

	var cfg *Config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		cfg = DefaultConfig()
	} else {
		cfg = DefaultConfig()
		if err := v.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies the environment variables listed in
// SPEC_FULL.md §9: CTX_CACHE_DIR, CTX_LOG_LEVEL, CTX_LOG_FORMAT,
// CTX_ROW_CAP, CTX_WATCH_DEBOUNCE_MS.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CTX_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("CTX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CTX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("CTX_ROW_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RowCap = n
		}
	}
	if v := os.Getenv("CTX_WATCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WatchDebounceMs = n
		}
	}
}

// Save writes the configuration to <root>/.ctx/config.json.
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".ctx")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// CacheRoot resolves the external-cache root: CacheDir if set, else
// $HOME/.ctx (spec §6).
func (c *Config) CacheRoot() (string, error) {
	if c.CacheDir != "" {
		return c.CacheDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ctx"), nil
}
