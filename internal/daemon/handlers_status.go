package daemon

import (
	"context"
	"errors"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
)

func (d *Daemon) handleStatus(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	if !validVis(cmd.Vis) {
		return protocol.Error(requestID, protocol.ErrInvalidArg, errors.New("vis must be public, private, or all"))
	}

	counts, err := d.store.StatusCounts(ctx, store.StatusCountsOpts{Vis: normalizeVis(cmd.Vis)})
	if err != nil {
		return mapStoreError(requestID, err)
	}

	var items []SymbolView
	if cmd.All {
		d.mu.Lock()
		limit := d.cfg.MaxList
		d.mu.Unlock()

		symbols, err := d.store.StatusItems(ctx, store.StatusItemsOpts{
			Vis:           normalizeVis(cmd.Vis),
			Unimplemented: cmd.Unimplemented,
			Todo:          cmd.Todo,
			Limit:         limit,
		})
		if err != nil {
			return mapStoreError(requestID, err)
		}
		items = make([]SymbolView, 0, len(symbols))
		for _, sym := range symbols {
			items = append(items, fullView(sym, cmd.IncludeDocs))
		}
	}

	return success(requestID, StatusResult{Counts: counts, Items: items})
}
