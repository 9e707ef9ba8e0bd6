// Package config loads ct.toml and supplies every default the Daemon Core
// and Query Client need when a key is absent.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Transport names the IPC backend a workspace's daemon/client pair uses.
type Transport string

const (
	TransportAuto Transport = "auto"
	TransportUnix Transport = "unix"
	TransportPipe Transport = "pipe"
	TransportTCP  Transport = "tcp"
)

// Config is the ct.toml shape. Every field has a default, so a missing file
// or a partially specified one both produce a usable configuration.
type Config struct {
	Transport         Transport `toml:"transport"`
	Autostart         bool      `toml:"autostart"`
	SocketPath        string    `toml:"socket_path"`
	PipeName          string    `toml:"pipe_name"`
	TCPAddr           string    `toml:"tcp_addr"`
	AllowFullContext  bool      `toml:"allow_full_context"`
	WorkspaceAllow    []string  `toml:"workspace_allow"`
	MaxContextSize    int       `toml:"max_context_size"`
	MaxList           int       `toml:"max_list"`
	BundleSourceCap   int       `toml:"bundle_source_cap"`
	DBDir             string    `toml:"db_dir"`
	DBFile            string    `toml:"db_file"`
	ReferencesTopN    int       `toml:"references_top_n"`
	MaxMemMB          int       `toml:"max_mem_mb"`
	BenchQueries      int       `toml:"bench_queries"`
	BenchDurationS    int       `toml:"bench_duration_s"`
	WatcherDebounceMS int       `toml:"watcher_debounce_ms"`
}

// Default returns the configuration every key defaults to when ct.toml is
// absent or omits that key.
func Default() Config {
	return Config{
		Transport:         TransportAuto,
		Autostart:         true,
		SocketPath:        "/tmp/ctd.sock",
		PipeName:          `\\.\pipe\ctd`,
		TCPAddr:           "127.0.0.1:48732",
		AllowFullContext:  false,
		MaxContextSize:    16000,
		MaxList:           200,
		BundleSourceCap:   3000,
		DBFile:            "symbols.sqlite",
		ReferencesTopN:    16,
		MaxMemMB:          512,
		BenchQueries:      200,
		BenchDurationS:    5,
		WatcherDebounceMS: 300,
	}
}

// Load reads ct.toml from the current working directory, overlaying its
// keys onto Default. A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()
	data, err := os.ReadFile("ct.toml")
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DBPath resolves the per-workspace symbol store path: db_dir/db_file when
// db_dir is set, otherwise CacheDir(fingerprint)/db_file.
func (c Config) DBPath(workspaceFingerprint string) string {
	if c.DBDir != "" {
		return filepath.Join(c.DBDir, c.DBFile)
	}
	return filepath.Join(c.CacheDir(workspaceFingerprint), c.DBFile)
}

// CacheDir is the per-user, per-workspace cache directory, OS-appropriate
// via os.UserCacheDir with a ".ct" fallback when unavailable.
func (c Config) CacheDir(workspaceFingerprint string) string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = ".ct"
	} else {
		base = filepath.Join(base, "ct")
	}
	return filepath.Join(base, workspaceFingerprint)
}
