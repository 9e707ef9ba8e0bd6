package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
)

// Dispatch decodes, routes, and times one request, annotating the result
// with metrics.elapsed_ms per spec.md §4.8's request-handling contract.
func (d *Daemon) Dispatch(ctx context.Context, req protocol.Request) protocol.Response {
	start := time.Now()
	resp := d.route(ctx, req)
	elapsed := time.Since(start)
	d.metrics.Record(req.Cmd.Op, elapsed)

	resp.RequestID = req.RequestID
	resp.ProtocolVersion = protocol.Version
	if resp.Err == "" {
		if resp.Metrics == nil {
			resp.Metrics = &protocol.Metrics{}
		}
		resp.Metrics.ElapsedMS = uint64(elapsed.Milliseconds())
		resp.Metrics.Bytes = len(resp.Data)
	}
	return resp
}

func (d *Daemon) route(ctx context.Context, req protocol.Request) protocol.Response {
	cmd := req.Cmd
	switch cmd.Op {
	case "find":
		return d.handleFind(ctx, req.RequestID, cmd)
	case "doc":
		return d.handleDoc(ctx, req.RequestID, cmd)
	case "ls":
		return d.handleLs(ctx, req.RequestID, cmd)
	case "export":
		return d.handleExport(ctx, req.RequestID, cmd)
	case "reindex":
		return d.handleReindex(ctx, req.RequestID, cmd)
	case "status":
		return d.handleStatus(ctx, req.RequestID, cmd)
	case "diag":
		return d.handleDiag(ctx, req.RequestID, cmd)
	case "bench":
		return d.handleBench(ctx, req.RequestID, cmd)
	default:
		return protocol.Error(req.RequestID, protocol.ErrProtocol, fmt.Errorf("unknown command %q", cmd.Op))
	}
}

// success is a small helper wrapping protocol.Success's marshal error into
// an INTERNAL_ERROR envelope, since a handler constructing its own payload
// struct cannot fail to marshal in practice but the boundary still must be
// handled.
func success(requestID string, data interface{}) protocol.Response {
	resp, err := protocol.Success(requestID, data)
	if err != nil {
		return protocol.Error(requestID, protocol.ErrInternal, err)
	}
	return resp
}

func mapStoreError(requestID string, err error) protocol.Response {
	if errors.Is(err, store.ErrNotFound) {
		return protocol.Error(requestID, protocol.ErrNotFound, err)
	}
	if errors.Is(err, store.ErrSchemaMismatch) {
		return protocol.Error(requestID, protocol.ErrIndexMismatch, err)
	}
	return protocol.Error(requestID, protocol.ErrInternal, err)
}

func validVis(vis string) bool {
	switch vis {
	case "", "public", "private", "all":
		return true
	default:
		return false
	}
}

// normalizeVis maps the wire "all" synonym (meaning no visibility filter)
// onto the empty string queries.go already treats as unfiltered.
func normalizeVis(vis string) string {
	if vis == "all" {
		return ""
	}
	return vis
}
