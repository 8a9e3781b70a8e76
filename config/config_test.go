package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, ":9090", cfg.MetricsAddress)
	require.FileExists(t, path)

	// The persisted default loads back identically.
	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("DevFaucet = true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.DevFaucet)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, "local", cfg.Environment)
	require.Equal(t, 100, cfg.LogMaxSizeMB)
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("ListenAddr = \":8080\"\n"), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "unknown config key")
	require.ErrorContains(t, err, "ListenAddr")
}

func TestLoadRejectsSharedAddresses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := "ListenAddress = \":8080\"\nMetricsAddress = \":8080\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := Load(path)
	require.ErrorContains(t, err, "MetricsAddress")
}
