package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadGlobal(t *testing.T) {
	dir := t.TempDir()
	content := `
debug:
  retention_days: 3
  max_file_size_mb: 2
session:
  default: nightly
  database: state/db.sqlite
mi:
  format: xml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	cfg, err := LoadGlobal(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Debug.RetentionDays)
	assert.Equal(t, int64(2<<20), cfg.DebugMaxFileSize())
	assert.Equal(t, "nightly", cfg.Session.Default)
	assert.Equal(t, "xml", cfg.MI.Format)
	assert.Equal(t, filepath.Join(dir, "state", "db.sqlite"), cfg.DatabasePath(dir))
	assert.Equal(t, filepath.Join(dir, "debug"), cfg.DebugDir(dir))
}

func TestLoadGlobal_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadGlobal(dir)
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.Debug.RetentionDays)
	assert.Zero(t, cfg.DebugMaxFileSize())
	assert.Empty(t, cfg.MI.Format)
	assert.Equal(t, filepath.Join(dir, "sessions.db"), cfg.DatabasePath(dir))
}

func TestLoadGlobal_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvMI, "xml")
	t.Setenv(EnvRetentionDays, "2")

	cfg, err := LoadGlobal(dir)
	require.NoError(t, err)
	assert.Equal(t, "xml", cfg.MI.Format)
	assert.Equal(t, 2, cfg.Debug.RetentionDays)
}

func TestLoadGlobal_Malformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("debug: [\n"), 0644))

	cfg, err := LoadGlobal(dir)
	assert.Error(t, err)
	assert.NotNil(t, cfg, "defaults are still returned")
}

func TestDebugDir_Disabled(t *testing.T) {
	cfg := DefaultGlobalConfig()
	cfg.Debug.Disabled = true
	assert.Empty(t, cfg.DebugDir("/tmp/x"))
}

func TestDir(t *testing.T) {
	assert.Equal(t, "/explicit", Dir("/explicit"))

	t.Setenv(EnvHome, "/from-env")
	assert.Equal(t, "/from-env", Dir(""))

	t.Setenv(EnvHome, "")
	t.Setenv("HOME", "/home/tester")
	assert.Equal(t, filepath.Join("/home/tester", ".tracectl"), Dir(""))
}
