// Package config loads the promptstore configuration file and applies
// defaults and environment overrides. Configuration is an explicit value
// handed to callers; there is no ambient global.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the filename the CLI looks for in the working
	// directory when --config is not given.
	DefaultConfigFile = "promptstore.yaml"

	// EnvDatabasePath overrides the configured database path when set.
	EnvDatabasePath = "PROMPTSTORE_DB"

	// DefaultDatabasePath is used when neither the configuration file nor
	// the environment names one.
	DefaultDatabasePath = "prompts.db"
)

// Config is the full promptstore configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Legacy     LegacyConfig     `yaml:"legacy"`
	Report     ReportConfig     `yaml:"report"`
	Log        LogConfig        `yaml:"log"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MigrationsConfig selects the migration source. An empty Dir means the
// scripts embedded in the binary.
type MigrationsConfig struct {
	Dir string `yaml:"dir"`
}

// LegacyConfig names the two on-disk legacy prompt directories: the original
// flat library and the package-local one that superseded it.
type LegacyConfig struct {
	OldDir string `yaml:"old_dir"`
	NewDir string `yaml:"new_dir"`
}

// ReportConfig controls where the validation report is written. An empty
// Path places it next to the database.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// LogConfig tunes CLI logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: DefaultDatabasePath},
		Legacy: LegacyConfig{
			OldDir: "prompts",
			NewDir: filepath.Join("prometheus_prompt_generator", "prompts"),
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Load reads the configuration at path and layers it over Default, then
// applies environment overrides. A missing file is not an error: defaults
// apply. Unknown keys in the file are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}

// applyEnv layers process-environment overrides on top of file values.
func (c *Config) applyEnv() {
	if path := os.Getenv(EnvDatabasePath); path != "" {
		c.Database.Path = path
	}
}

// ReportPath resolves where the validation report should land for the given
// database path, honoring an explicit configuration first.
func (c *Config) ReportPath(dbPath string) string {
	if c.Report.Path != "" {
		return c.Report.Path
	}
	return filepath.Join(filepath.Dir(dbPath), "schema_validation_report.md")
}
