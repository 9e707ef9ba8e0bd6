package daemon

import (
	"context"
	"errors"

	"github.com/ct-tools/ctd/internal/protocol"
)

func (d *Daemon) handleDoc(ctx context.Context, requestID string, cmd protocol.Command) protocol.Response {
	if cmd.Path == "" {
		return protocol.Error(requestID, protocol.ErrInvalidArg, errors.New("doc requires path"))
	}
	sym, err := d.store.FindByPath(ctx, cmd.Path)
	if err != nil {
		return mapStoreError(requestID, err)
	}
	return success(requestID, DocResult{Symbol: DocSymbol{
		Path:      sym.CanonicalPath,
		Signature: sym.Signature,
		Docs:      sym.Docs,
	}})
}
