package daemon

import (
	"context"
	"errors"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
)

// handleExport assembles a symbol's context bundle by breadth-first
// traversal of its immediate children, its outgoing reference edges, and
// any impl blocks it participates in, then checks the serialized size
// against max_context_size before returning it.
func (d *Daemon) handleExport(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	if cmd.Path == "" {
		return protocol.Error(requestID, protocol.ErrInvalidArg, errors.New("export requires path"))
	}

	root, err := d.store.FindByPath(ctx, cmd.Path)
	if err != nil {
		return mapStoreError(requestID, err)
	}

	d.mu.Lock()
	topN := d.cfg.ReferencesTopN
	maxContext := d.cfg.MaxContextSize
	d.mu.Unlock()

	children, err := d.store.Children(ctx, root.CanonicalPath)
	if err != nil {
		return mapStoreError(requestID, err)
	}
	childViews := make([]SymbolView, 0, len(children))
	for _, c := range children {
		childViews = append(childViews, fullView(c, cmd.IncludeDocs))
	}

	refs, err := d.store.ReferencesBySource(ctx, root.SymbolID, topN)
	if err != nil {
		return mapStoreError(requestID, err)
	}
	externRefs := make([]string, 0, len(refs))
	for _, r := range refs {
		externRefs = append(externRefs, r.TargetPath)
	}

	implRanges := []ImplRange{}
	if root.Kind == store.KindMethod || root.Kind == store.KindImpl {
		blocks, err := d.store.ImplBlocksContaining(ctx, root.FileID, root.SpanStart, root.SpanEnd)
		if err != nil {
			return mapStoreError(requestID, err)
		}
		for _, b := range blocks {
			implRanges = append(implRanges, ImplRange{
				ForPath: b.ForPath, TraitPath: b.TraitPath,
				LineStart: b.LineStart, LineEnd: b.LineEnd,
			})
		}
	}

	bundle := Bundle{
		Symbol:     fullView(root, true),
		Children:   childViews,
		ExternRefs: externRefs,
		ImplRanges: implRanges,
		Order:      "bfs",
		Invariants: Invariants{Range1BasedInclusive: true},
	}

	resp := success(requestID, bundle)
	if maxContext > 0 && len(resp.Data) >= maxContext {
		return protocol.Decision(requestID, "bundle exceeds max_context_size", len(resp.Data),
			[]string{"path", "summary"})
	}
	return resp
}
