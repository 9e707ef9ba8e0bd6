package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
)

// parseExpansion reads a run of '>' (descend to children) and/or '<'
// (ascend to parents) characters into depths. An empty string means no
// expansion; any other rune is rejected.
func parseExpansion(expansion string) (childDepth, parentDepth int, err error) {
	for _, r := range expansion {
		switch r {
		case '>':
			childDepth++
		case '<':
			parentDepth++
		default:
			return 0, 0, fmt.Errorf("invalid expansion character %q", r)
		}
	}
	return childDepth, parentDepth, nil
}

func (d *Daemon) handleLs(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	if cmd.Path == "" {
		return protocol.Error(requestID, protocol.ErrInvalidArg, errors.New("ls requires path"))
	}
	childDepth, parentDepth, err := parseExpansion(cmd.Expansion)
	if err != nil {
		return protocol.Error(requestID, protocol.ErrInvalidArg, err)
	}

	root, err := d.store.FindByPath(ctx, cmd.Path)
	if err != nil {
		return mapStoreError(requestID, err)
	}

	items := []SymbolView{viewFor(root, cmd)}

	frontier := []store.Symbol{root}
	for level := 0; level < childDepth && len(frontier) > 0; level++ {
		var next []store.Symbol
		for _, sym := range frontier {
			children, err := d.store.Children(ctx, sym.CanonicalPath)
			if err != nil {
				return mapStoreError(requestID, err)
			}
			for _, c := range children {
				items = append(items, viewFor(c, cmd))
				next = append(next, c)
			}
		}
		frontier = next
	}

	cur := root
	for level := 0; level < parentDepth; level++ {
		parent, ok, err := d.store.Parent(ctx, cur.CanonicalPath)
		if err != nil {
			return mapStoreError(requestID, err)
		}
		if !ok {
			break
		}
		items = append(items, viewFor(parent, cmd))
		cur = parent
	}

	if cmd.ImplParents && root.Kind == store.KindMethod {
		blocks, err := d.store.ImplBlocksContaining(ctx, root.FileID, root.SpanStart, root.SpanEnd)
		if err != nil {
			return mapStoreError(requestID, err)
		}
		for _, b := range blocks {
			items = append(items, SymbolView{
				Path:      b.ForPath,
				Kind:      store.KindImpl,
				SpanStart: b.LineStart,
				SpanEnd:   b.LineEnd,
			})
		}
	}

	return success(requestID, LsResult{Items: items})
}
