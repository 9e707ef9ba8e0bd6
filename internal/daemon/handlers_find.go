package daemon

import (
	"context"
	"errors"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
)

func (d *Daemon) handleFind(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	if cmd.Name == "" && cmd.Path == "" {
		return protocol.Error(requestID, protocol.ErrInvalidArg, errors.New("find requires name or path"))
	}
	if !validVis(cmd.Vis) {
		return protocol.Error(requestID, protocol.ErrInvalidArg, errors.New("vis must be public, private, or all"))
	}

	if cmd.Path != "" {
		sym, err := d.store.FindByPath(ctx, cmd.Path)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return success(requestID, FindResult{Items: []SymbolView{}})
			}
			return mapStoreError(requestID, err)
		}
		return success(requestID, FindResult{Items: []SymbolView{viewFor(sym, cmd)}})
	}

	d.mu.Lock()
	limit := d.cfg.MaxList
	d.mu.Unlock()

	symbols, err := d.store.FindByName(ctx, cmd.Name, store.FindByNameOpts{
		Kind:          cmd.Kind,
		Vis:           normalizeVis(cmd.Vis),
		Unimplemented: cmd.Unimplemented,
		Todo:          cmd.Todo,
		Limit:         limit,
	})
	if err != nil {
		return mapStoreError(requestID, err)
	}

	items := make([]SymbolView, 0, len(symbols))
	for _, sym := range symbols {
		items = append(items, viewFor(sym, cmd))
	}
	return success(requestID, FindResult{Items: items})
}

func viewFor(sym store.Symbol, cmd protocol.Command) SymbolView {
	if cmd.All {
		return fullView(sym, cmd.IncludeDocs)
	}
	return slimView(sym)
}
