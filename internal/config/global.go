// Package config loads tracectl settings from the tracectl home directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variables read by the config layer.
const (
	EnvHome          = "TRACECTL_HOME"
	EnvSession       = "TRACECTL_SESSION"
	EnvMI            = "TRACECTL_MI"
	EnvRetentionDays = "TRACECTL_DEBUG_RETENTION_DAYS"
)

const (
	configFile   = "config.yaml"
	databaseFile = "sessions.db"
	debugDir     = "debug"
)

// GlobalConfig holds settings from <home>/config.yaml.
type GlobalConfig struct {
	Debug   DebugConfig   `yaml:"debug"`
	Session SessionConfig `yaml:"session"`
	MI      MIConfig      `yaml:"mi"`
}

// DebugConfig controls the debug log files.
type DebugConfig struct {
	// Disabled turns off debug files entirely.
	Disabled      bool `yaml:"disabled"`
	RetentionDays int  `yaml:"retention_days"`
	// MaxFileSizeMB caps one debug file before a numbered segment starts.
	// 0 uses the logger default.
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// SessionConfig controls session lookup.
type SessionConfig struct {
	// Default is used when neither --session, TRACECTL_SESSION nor the rc
	// file names a session.
	Default string `yaml:"default"`
	// Database overrides <home>/sessions.db.
	Database string `yaml:"database"`
}

// MIConfig sets the machine interface default.
type MIConfig struct {
	// Format enables the structured report when non-empty ("xml").
	Format string `yaml:"format"`
}

// DefaultGlobalConfig returns the built-in defaults.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Debug: DebugConfig{RetentionDays: 14},
	}
}

// Dir returns the tracectl home: override if set, else $TRACECTL_HOME, else
// ~/.tracectl.
func Dir(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(EnvHome); env != "" {
		return env
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tracectl")
	}
	return filepath.Join(homeDir, ".tracectl")
}

// LoadGlobal reads <dir>/config.yaml and applies environment overrides. A
// missing file yields the defaults.
func LoadGlobal(dir string) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	data, err := os.ReadFile(filepath.Join(dir, configFile))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", configFile, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("reading %s: %w", configFile, err)
	}

	if mi := os.Getenv(EnvMI); mi != "" {
		cfg.MI.Format = mi
	}
	if days := os.Getenv(EnvRetentionDays); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			cfg.Debug.RetentionDays = n
		}
	}
	return cfg, nil
}

// DatabasePath returns the session store location for home dir.
func (c *GlobalConfig) DatabasePath(dir string) string {
	if c.Session.Database != "" {
		if filepath.IsAbs(c.Session.Database) {
			return c.Session.Database
		}
		return filepath.Join(dir, c.Session.Database)
	}
	return filepath.Join(dir, databaseFile)
}

// DebugMaxFileSize returns the debug segment cap in bytes, 0 for the default.
func (c *GlobalConfig) DebugMaxFileSize() int64 {
	if c.Debug.MaxFileSizeMB <= 0 {
		return 0
	}
	return int64(c.Debug.MaxFileSizeMB) << 20
}

// DebugDir returns the debug log directory, or "" when disabled.
func (c *GlobalConfig) DebugDir(dir string) string {
	if c.Debug.Disabled {
		return ""
	}
	return filepath.Join(dir, debugDir)
}
