// Command ctd is the indexing daemon: it opens a workspace's Symbol Store,
// runs one full indexing cycle, then (unless --once) serves find/doc/ls/
// export/reindex/status/diag/bench requests until it receives SIGINT or
// SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ct-tools/ctd/internal/config"
	"github.com/ct-tools/ctd/internal/ctid"
	"github.com/ct-tools/ctd/internal/ctlog"
	"github.com/ct-tools/ctd/internal/daemon"
	"github.com/ct-tools/ctd/internal/docjson"
	"github.com/ct-tools/ctd/internal/store"
	"github.com/ct-tools/ctd/internal/transport"
	"github.com/ct-tools/ctd/internal/watcher"
)

var (
	workspacePath  string
	features       []string
	target         string
	transportFlag  string
	once           bool
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "ctd",
	Short: "ctd - indexing daemon for a Rust workspace",
	RunE:  runDaemon,
}

func init() {
	rootCmd.Flags().StringVar(&workspacePath, "idx", ".", "workspace root to index")
	rootCmd.Flags().StringArrayVar(&features, "features", nil, "cargo feature to enable (repeatable)")
	rootCmd.Flags().StringVar(&target, "target", "", "cargo target triple")
	rootCmd.Flags().StringVar(&transportFlag, "transport", "", "transport override: auto|unix|pipe|tcp")
	rootCmd.Flags().BoolVar(&once, "once", false, "run one indexing cycle then exit")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "debug|info|warn|error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ctd:", err)
		os.Exit(6)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := ctlog.New(logLevel)

	workspaceRoot, err := filepath.Abs(workspacePath)
	if err != nil {
		return fmt.Errorf("resolve workspace root: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if transportFlag != "" {
		cfg.Transport = config.Transport(transportFlag)
	}

	fingerprint := ctid.WorkspaceFingerprint(workspaceRoot)

	dbPath := cfg.DBPath(fingerprint)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open symbol store: %w", err)
	}

	kind := transport.Resolve(transport.Kind(cfg.Transport))
	addr := addrFor(kind, cfg, fingerprint)

	d := daemon.New(daemon.Options{
		Store:                st,
		Config:               cfg,
		Log:                  log,
		WorkspaceRoot:        workspaceRoot,
		WorkspaceFingerprint: fingerprint,
		TransportKind:        kind,
		MetadataCommand:      "cargo",
		Adapter:              docjson.Adapter{},
		Features:             features,
		Target:               target,
	})

	stats, diags, err := d.RunInitialIndex(ctx)
	if err != nil {
		d.Close()
		return fmt.Errorf("initial index: %w", err)
	}
	log.Info("initial index complete",
		"crates", stats.CratesIndexed, "files", stats.FilesIndexed, "symbols", stats.SymbolsIndexed)
	for _, diag := range diags {
		log.Warn("index diagnostic", "crate", diag.Crate, "message", diag.Message)
	}

	if once {
		d.Close()
		return nil
	}

	w, err := watcher.New(watcher.Options{Root: workspaceRoot})
	if err != nil {
		d.Close()
		return fmt.Errorf("start file watcher: %w", err)
	}
	w.Start()
	d.AttachWatcher(w)

	srv, err := daemon.NewServer(d, kind, addr)
	if err != nil {
		d.Close()
		return fmt.Errorf("start listener: %w", err)
	}
	log.Info("daemon listening", "transport", string(kind), "addr", addr)

	err = srv.Serve(ctx)
	d.Close()
	return err
}

func addrFor(kind transport.Kind, cfg config.Config, fingerprint string) string {
	switch kind {
	case transport.KindTCP:
		if cfg.TCPAddr != "" {
			return cfg.TCPAddr
		}
		return transport.DefaultTCPAddr
	case transport.KindPipe:
		return transport.SocketName(fingerprint)
	default:
		if cfg.SocketPath != "" && cfg.SocketPath != config.Default().SocketPath {
			return cfg.SocketPath
		}
		return filepath.Join(filepath.Dir(cfg.SocketPath), transport.SocketName(fingerprint))
	}
}
