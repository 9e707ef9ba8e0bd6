package daemon

import (
	"context"

	"github.com/ct-tools/ctd/internal/protocol"
)

func (d *Daemon) handleReindex(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	d.mu.Lock()
	features, target := cmd.Features, cmd.Target
	if features == nil {
		features = d.lastFeatures
	}
	if target == "" {
		target = d.lastTarget
	}
	d.mu.Unlock()

	stats, diags, err := d.runIndex(ctx, features, target, cmd.Module, cmd.Struct, cmd.IncludeDerives)
	if err != nil {
		return mapStoreError(requestID, err)
	}

	messages := make([]string, 0, len(diags))
	for _, diag := range diags {
		messages = append(messages, diag.Crate+": "+diag.Message)
	}

	return success(requestID, ReindexResult{
		CratesIndexed:  stats.CratesIndexed,
		FilesIndexed:   stats.FilesIndexed,
		SymbolsIndexed: stats.SymbolsIndexed,
		Diagnostics:    messages,
	})
}
