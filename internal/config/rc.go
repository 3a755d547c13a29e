package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const rcFile = "rc.yaml"

// ErrNoSession is returned when no current session can be determined.
var ErrNoSession = errors.New("no session specified and no current session set (use --session or create one)")

// RC is the per-user state file holding the current session.
type RC struct {
	Session string `yaml:"session"`
}

// LoadRC reads <dir>/rc.yaml. A missing file yields an empty RC.
func LoadRC(dir string) (*RC, error) {
	rc := &RC{}
	data, err := os.ReadFile(filepath.Join(dir, rcFile))
	if errors.Is(err, os.ErrNotExist) {
		return rc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rcFile, err)
	}
	if err := yaml.Unmarshal(data, rc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rcFile, err)
	}
	return rc, nil
}

// SaveRC writes rc to <dir>/rc.yaml through a temporary file.
func SaveRC(dir string, rc *RC) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := yaml.Marshal(rc)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rcFile, err)
	}

	path := filepath.Join(dir, rcFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rcFile, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing %s: %w", rcFile, err)
	}
	return nil
}

// CurrentSession resolves the session to act on when --session is absent:
// $TRACECTL_SESSION, then the rc file, then session.default from cfg.
func CurrentSession(dir string, cfg *GlobalConfig) (string, error) {
	if env := os.Getenv(EnvSession); env != "" {
		return env, nil
	}
	rc, err := LoadRC(dir)
	if err != nil {
		return "", err
	}
	if rc.Session != "" {
		return rc.Session, nil
	}
	if cfg != nil && cfg.Session.Default != "" {
		return cfg.Session.Default, nil
	}
	return "", ErrNoSession
}
