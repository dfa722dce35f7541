package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROUTE_CONFIG_PATH", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	home, err := homedir.Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".route-tracker"), cfg.LocalPath)
	assert.Equal(t, "http://localhost:8080", cfg.RemoteURL)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.AutosaveDelay)
	assert.Equal(t, "@every 15s", cfg.ProbeSchedule)
	assert.Equal(t, "EUR", cfg.DefaultCurrency)
	assert.Equal(t, StoreMemory, cfg.StoreMode)
	assert.Equal(t, "default", cfg.Scope)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := []byte("remote:\n  url: http://sync.example.com/\nautosave:\n  delay: 1s\nserver:\n  store: sqlite\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".route-tracker.yaml"), content, 0o644))
	t.Setenv("ROUTE_CONFIG_PATH", dir)
	t.Setenv("ROUTE_CURRENCY_DEFAULT", "chf")
	t.Setenv("ROUTE_AUTOSAVE_DELAY", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://sync.example.com", cfg.RemoteURL)
	assert.Equal(t, 750*time.Millisecond, cfg.AutosaveDelay, "env wins over file")
	assert.Equal(t, StoreSQLite, cfg.StoreMode)
	assert.Equal(t, "CHF", cfg.DefaultCurrency)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ROUTE_CONFIG_PATH", t.TempDir())
	t.Setenv("ROUTE_SERVER_STORE", "cassandra")
	t.Setenv("ROUTE_REMOTE_TIMEOUT", "0s")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
	assert.Contains(t, err.Error(), "remote.timeout")
}
