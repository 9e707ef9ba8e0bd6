package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	d := Default()
	assert.Equal(t, TransportAuto, d.Transport)
	assert.True(t, d.Autostart)
	assert.Equal(t, 16000, d.MaxContextSize)
	assert.Equal(t, 200, d.MaxList)
	assert.Equal(t, 3000, d.BundleSourceCap)
	assert.Equal(t, "symbols.sqlite", d.DBFile)
	assert.Equal(t, 16, d.ReferencesTopN)
	assert.Equal(t, 300, d.WatcherDebounceMS)
}

func TestLoadReturnsDefaultsWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()
	require.NoError(t, os.Chdir(dir))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysPartialFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { require.NoError(t, os.Chdir(wd)) }()
	require.NoError(t, os.Chdir(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ct.toml"),
		[]byte("transport = \"tcp\"\nmax_context_size = 5000\n"), 0644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, 5000, cfg.MaxContextSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, 200, cfg.MaxList)
	assert.True(t, cfg.Autostart)
}

func TestDBPathPrefersExplicitDBDir(t *testing.T) {
	cfg := Default()
	cfg.DBDir = "/var/ct"
	assert.Equal(t, filepath.Join("/var/ct", "symbols.sqlite"), cfg.DBPath("blake3:deadbeef"))
}

func TestDBPathFallsBackToCacheDir(t *testing.T) {
	cfg := Default()
	path := cfg.DBPath("blake3:deadbeef")
	assert.Contains(t, path, "blake3:deadbeef")
	assert.Equal(t, "symbols.sqlite", filepath.Base(path))
}
