// Package daemon is the Daemon Core: shared mutex-guarded state, the
// per-command handler matrix, and the startup/shutdown sequence described
// in spec.md §4.8.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/ct-tools/ctd/internal/config"
	"github.com/ct-tools/ctd/internal/ctid"
	"github.com/ct-tools/ctd/internal/ctlog"
	"github.com/ct-tools/ctd/internal/docjson"
	"github.com/ct-tools/ctd/internal/indexer"
	"github.com/ct-tools/ctd/internal/store"
	"github.com/ct-tools/ctd/internal/transport"
	"github.com/ct-tools/ctd/internal/watcher"
)

// ToolVersion is reported verbatim in `diag`.
const ToolVersion = ctid.ToolVersion

// Daemon is the single shared-state object every connection's handlers
// read and mutate through mu, per spec.md §5's "shared resource policy".
type Daemon struct {
	mu sync.Mutex

	store                *store.Store
	watcher              *watcher.Watcher
	cfg                  config.Config
	log                  ctlog.Logger
	metrics              *Metrics
	workspaceRoot        string
	workspaceFingerprint string
	transportKind        transport.Kind
	metadataCmd          string
	adapter              docjson.Adapter

	lastIndexDuration time.Duration
	indexTimestamp    time.Time
	lastFeatures      []string
	lastTarget        string
}

// Options configures a new Daemon.
type Options struct {
	Store                *store.Store
	Watcher              *watcher.Watcher
	Config               config.Config
	Log                  ctlog.Logger
	WorkspaceRoot        string
	WorkspaceFingerprint string
	TransportKind        transport.Kind
	MetadataCommand      string
	Adapter              docjson.Adapter
	Features             []string
	Target               string
}

// New builds a Daemon ready to dispatch requests. The caller is expected
// to have already run one indexing cycle (per spec.md §4.8's startup
// sequence) before serving requests.
func New(opts Options) *Daemon {
	return &Daemon{
		store:                opts.Store,
		watcher:              opts.Watcher,
		cfg:                  opts.Config,
		log:                  opts.Log,
		metrics:              NewMetrics(),
		workspaceRoot:        opts.WorkspaceRoot,
		workspaceFingerprint: opts.WorkspaceFingerprint,
		transportKind:        opts.TransportKind,
		metadataCmd:          opts.MetadataCommand,
		adapter:              opts.Adapter,
		lastFeatures:         opts.Features,
		lastTarget:           opts.Target,
		indexTimestamp:       time.Now(),
	}
}

// RunInitialIndex runs one indexing cycle before the daemon starts serving
// requests, recording its duration/timestamp for `diag`.
func (d *Daemon) RunInitialIndex(ctx context.Context) (indexer.Stats, []indexer.Diagnostic, error) {
	d.mu.Lock()
	features, target := d.lastFeatures, d.lastTarget
	d.mu.Unlock()
	return d.runIndex(ctx, features, target, "", "", false)
}

// runIndex runs an indexing cycle without holding mu for the duration of
// the (potentially slow) indexer.Run call, per spec.md §4.8's instruction
// to release the mutex while computing whenever possible. runIndex acquires
// mu only to record the result; callers read the features/target carried
// from the previous cycle before calling it.
func (d *Daemon) runIndex(ctx context.Context, features []string, target, module, structName string, includeDerives bool) (indexer.Stats, []indexer.Diagnostic, error) {
	start := time.Now()
	stats, diags, err := indexer.Run(ctx, d.store, d.workspaceRoot, indexer.Options{
		MetadataCommand: d.metadataCmd,
		Adapter:         d.adapter,
		Features:        features,
		Target:          target,
		Module:          module,
		Struct:          structName,
		IncludeDerives:  includeDerives,
	})
	elapsed := time.Since(start)

	d.mu.Lock()
	d.lastIndexDuration = elapsed
	d.indexTimestamp = time.Now()
	if err == nil {
		d.lastFeatures = features
		d.lastTarget = target
	}
	d.mu.Unlock()

	return stats, diags, err
}

// AttachWatcher wires a running Watcher into the daemon after the initial
// indexing cycle, since the watcher only needs to exist once the daemon
// starts serving requests.
func (d *Daemon) AttachWatcher(w *watcher.Watcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.watcher = w
}

// Close releases the store and watcher, matching §4.8's shutdown order:
// Watcher first, store last.
func (d *Daemon) Close() {
	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.store != nil {
		_ = d.store.Close()
	}
}
