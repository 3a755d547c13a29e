package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRC_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	rc, err := LoadRC(dir)
	require.NoError(t, err)
	assert.Empty(t, rc.Session)

	require.NoError(t, SaveRC(dir, &RC{Session: "s1"}))
	rc, err = LoadRC(dir)
	require.NoError(t, err)
	assert.Equal(t, "s1", rc.Session)
}

func TestCurrentSession(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvSession, "")

	_, err := CurrentSession(dir, DefaultGlobalConfig())
	assert.ErrorIs(t, err, ErrNoSession)

	cfg := DefaultGlobalConfig()
	cfg.Session.Default = "fallback"
	got, err := CurrentSession(dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)

	require.NoError(t, SaveRC(dir, &RC{Session: "from-rc"}))
	got, err = CurrentSession(dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-rc", got)

	t.Setenv(EnvSession, "from-env")
	got, err = CurrentSession(dir, cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
}
