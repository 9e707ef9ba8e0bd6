package daemon

import (
	"context"
	"runtime"
	"time"

	"github.com/ct-tools/ctd/internal/protocol"
)

func (d *Daemon) handleDiag(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	crates, files, symbols, err := d.store.Counts(ctx)
	if err != nil {
		return mapStoreError(requestID, err)
	}
	schemaVersion, err := d.store.SchemaVersion()
	if err != nil {
		return mapStoreError(requestID, err)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	d.mu.Lock()
	lastIndexDuration := d.lastIndexDuration
	indexTimestamp := d.indexTimestamp
	features := d.lastFeatures
	target := d.lastTarget
	cfg := d.cfg
	d.mu.Unlock()

	return success(requestID, DiagResult{
		DBPath:                    cfg.DBPath(d.workspaceFingerprint),
		SchemaVersion:             schemaVersion,
		ToolVersion:               ToolVersion,
		ProtocolVersionsSupported: []uint32{protocol.Version},
		WorkspaceRoot:             d.workspaceRoot,
		WorkspaceFingerprint:      d.workspaceFingerprint,
		CrateCount:                crates,
		FileCount:                 files,
		SymbolCount:               symbols,
		MemFootprintBytes:         mem.Alloc,
		LastIndexDurationMS:       lastIndexDuration.Milliseconds(),
		IndexTimestamp:            indexTimestamp.Format(time.RFC3339),
		Features:                  features,
		Target:                    target,
		DaemonHot:                 true,
		Transport:                 string(d.transportKind),
	})
}
