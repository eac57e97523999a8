package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultsWithoutFile(t *testing.T) {
	require.NoError(t, SetConfigPath(t.TempDir()))
	Reload()

	cfg := Get()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.HasCredentials())
}

func TestGetLoadsFile(t *testing.T) {
	dir := t.TempDir()
	raw := `{"email": "user@example.com", "password": "hunter2", "log_level": "debug", "debug": true}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(raw), 0644))

	require.NoError(t, SetConfigPath(dir))
	Reload()

	cfg := Get()
	assert.Equal(t, "user@example.com", cfg.Email)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, dir, cfg.Path)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SetConfigPath(dir))
	Reload()

	cfg := Get()
	cfg.Email = "user@example.com"
	cfg.RateLimit = "200/minute"
	require.NoError(t, cfg.Save())

	Reload()
	reloaded := Get()
	assert.Equal(t, "user@example.com", reloaded.Email)
	assert.Equal(t, "200/minute", reloaded.RateLimit)
}

func TestSetConfigPathCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	require.NoError(t, SetConfigPath(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
