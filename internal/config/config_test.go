package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDaemonDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadDaemon(dir)
	require.NoError(t, err)
	require.Equal(t, configVersion, cfg.Version)
	require.False(t, cfg.LogJSON)
}

func TestLoadDaemonEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MNEMOSYNE_LOG_JSON", "1")
	cfg, err := LoadDaemon(dir)
	require.NoError(t, err)
	require.True(t, cfg.LogJSON)
}

func TestSaveAndLoadDaemonRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultDaemon()
	cfg.MetricsAddr = "127.0.0.1:9090"
	require.NoError(t, SaveDaemon(dir, cfg))

	loaded, err := LoadDaemon(dir)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9090", loaded.MetricsAddr)
}

func TestLoadDaemonRejectsUnsupportedVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "daemon.yaml"), []byte("version: \"99\"\n"), 0o600))
	_, err := LoadDaemon(dir)
	require.Error(t, err)
}

func TestDefaultRepositoryMatchesTierDefaults(t *testing.T) {
	cfg := DefaultRepository()
	require.Equal(t, 1, cfg.HotWindowHours)
	require.Equal(t, 3, cfg.WarmWindowDays)
	require.Equal(t, 15, cfg.ColdCompressionLevel)
}

func TestLoadRepositoryEnvOverridesColdLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MNEMOSYNE_COLD_LEVEL", "9")
	cfg, err := LoadRepository(dir)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.ColdCompressionLevel)
}

func TestSaveAndLoadRepositoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultRepository()
	cfg.MaxFileSizeBytes = 4096
	require.NoError(t, SaveRepository(dir, cfg))

	loaded, err := LoadRepository(dir)
	require.NoError(t, err)
	require.Equal(t, int64(4096), loaded.MaxFileSizeBytes)
}
