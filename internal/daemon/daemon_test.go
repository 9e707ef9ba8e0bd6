package daemon

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ct-tools/ctd/internal/config"
	"github.com/ct-tools/ctd/internal/ctid"
	"github.com/ct-tools/ctd/internal/ctlog"
	"github.com/ct-tools/ctd/internal/protocol"
	"github.com/ct-tools/ctd/internal/store"
	"github.com/ct-tools/ctd/internal/transport"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.sqlite")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.MaxList = 200

	return New(Options{
		Store:                st,
		Config:               cfg,
		Log:                  ctlog.Discard(),
		WorkspaceRoot:        "/tmp/workspace",
		WorkspaceFingerprint: "blake3:deadbeef",
		TransportKind:        transport.KindUnix,
	})
}

// seedSymbol inserts one crate/file/symbol fixture and returns the inserted
// Symbol as the store would return it from a lookup.
func seedSymbol(t *testing.T, d *Daemon, path, name string, kind store.Kind, vis store.Visibility, status store.Status) store.Symbol {
	t.Helper()
	ctx := context.Background()
	tx, err := d.store.Begin(ctx)
	require.NoError(t, err)

	crateID, err := tx.InsertCrate(ctx, store.Crate{
		Name: "demo", Version: "0.1.0", RootPath: ".", PackageID: "demo-0.1.0",
		Fingerprint: ctid.CrateFingerprint("demo", "0.1.0", "demo-0.1.0"),
	})
	require.NoError(t, err)

	content := []byte("fn demo() {}")
	fileID, err := tx.InsertFile(ctx, store.File{
		CrateID: crateID, Path: "src/lib.rs", Digest: ctid.FileDigest(content),
	})
	require.NoError(t, err)

	sig := "fn " + name + "() -> _"
	symID := ctid.SymbolID(path, string(kind), ctid.FileDigest(content), 1, 2)
	_, err = tx.InsertSymbol(ctx, store.Symbol{
		SymbolID: symID, CrateID: crateID, FileID: fileID, CanonicalPath: path,
		Name: name, Kind: kind, Visibility: vis, Signature: sig, Docs: "docs for " + name,
		Status: status, SpanStart: 1, SpanEnd: 2, DefHash: ctid.DefHash(sig),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	sym, err := d.store.FindByPath(ctx, path)
	require.NoError(t, err)
	return sym
}

func TestHandleFindRequiresNameOrPath(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "find"},
		RequestID:       "r1",
		ProtocolVersion: protocol.Version,
	})
	assert.True(t, resp.IsError())
	assert.Equal(t, protocol.ErrInvalidArg, resp.ErrCode)
}

func TestHandleFindByNameReturnsSlimViewByDefault(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::compute", "compute", store.KindFn, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "find", Name: "comp"},
		RequestID:       "r2",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var result FindResult
	require.NoError(t, unmarshalData(resp, &result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, "demo::compute", result.Items[0].Path)
	assert.Empty(t, result.Items[0].Signature)
}

func TestHandleFindAllReturnsFullView(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::compute", "compute", store.KindFn, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "find", Name: "comp", All: true},
		RequestID:       "r3",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var result FindResult
	require.NoError(t, unmarshalData(resp, &result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, "fn compute() -> _", result.Items[0].Signature)
}

func TestHandleDocRequiresPath(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "doc"},
		RequestID:       "r4",
		ProtocolVersion: protocol.Version,
	})
	assert.True(t, resp.IsError())
	assert.Equal(t, protocol.ErrInvalidArg, resp.ErrCode)
}

func TestHandleDocNotFound(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "doc", Path: "demo::missing"},
		RequestID:       "r5",
		ProtocolVersion: protocol.Version,
	})
	assert.True(t, resp.IsError())
	assert.Equal(t, protocol.ErrNotFound, resp.ErrCode)
}

func TestHandleLsExpandsChildrenByDepth(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo", "demo", store.KindModule, store.VisPublic, store.StatusImplemented)
	seedSymbol(t, d, "demo::widget", "widget", store.KindStruct, store.VisPublic, store.StatusImplemented)
	seedSymbol(t, d, "demo::widget::field", "field", store.KindField, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "ls", Path: "demo", Expansion: ">>"},
		RequestID:       "r6",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var result LsResult
	require.NoError(t, unmarshalData(resp, &result))
	paths := map[string]bool{}
	for _, item := range result.Items {
		paths[item.Path] = true
	}
	assert.True(t, paths["demo"])
	assert.True(t, paths["demo::widget"])
	assert.True(t, paths["demo::widget::field"])
}

func TestHandleLsRejectsInvalidExpansion(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo", "demo", store.KindModule, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "ls", Path: "demo", Expansion: "x"},
		RequestID:       "r7",
		ProtocolVersion: protocol.Version,
	})
	assert.True(t, resp.IsError())
	assert.Equal(t, protocol.ErrInvalidArg, resp.ErrCode)
}

func TestHandleExportProducesBundleWithChildren(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::widget", "widget", store.KindStruct, store.VisPublic, store.StatusImplemented)
	seedSymbol(t, d, "demo::widget::field", "field", store.KindField, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "export", Path: "demo::widget"},
		RequestID:       "r8",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var bundle Bundle
	require.NoError(t, unmarshalData(resp, &bundle))
	assert.Equal(t, "demo::widget", bundle.Symbol.Path)
	require.Len(t, bundle.Children, 1)
	assert.Equal(t, "bfs", bundle.Order)
	assert.True(t, bundle.Invariants.Range1BasedInclusive)
}

func TestHandleExportReturnsDecisionWhenOverBudget(t *testing.T) {
	d := newTestDaemon(t)
	d.cfg.MaxContextSize = 1
	seedSymbol(t, d, "demo::widget", "widget", store.KindStruct, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "export", Path: "demo::widget"},
		RequestID:       "r9",
		ProtocolVersion: protocol.Version,
	})
	assert.True(t, resp.IsDecisionRequired())
	assert.NotEmpty(t, resp.DecisionRequired.Options)
}

func TestHandleStatusCountsAndItems(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::a", "a", store.KindFn, store.VisPublic, store.StatusImplemented)
	seedSymbol(t, d, "demo::b", "b", store.KindFn, store.VisPublic, store.StatusTodo)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "status", All: true},
		RequestID:       "r10",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var result StatusResult
	require.NoError(t, unmarshalData(resp, &result))
	assert.Equal(t, 2, result.Counts.Total)
	assert.Equal(t, 1, result.Counts.Implemented)
	assert.Equal(t, 1, result.Counts.Todo)
	// With no status flags, items follow the StatusFilter default: implemented only.
	assert.Len(t, result.Items, 1)
}

func TestHandleDiagReportsCountsAndIdentity(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::a", "a", store.KindFn, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "diag"},
		RequestID:       "r11",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var result DiagResult
	require.NoError(t, unmarshalData(resp, &result))
	assert.Equal(t, 1, result.CrateCount)
	assert.Equal(t, 1, result.FileCount)
	assert.Equal(t, 1, result.SymbolCount)
	assert.Equal(t, "/tmp/workspace", result.WorkspaceRoot)
	assert.True(t, result.DaemonHot)
}

func TestHandleBenchRunsRequestedQueries(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::a", "a", store.KindFn, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "bench", Queries: 5},
		RequestID:       "r12",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())

	var result BenchResult
	require.NoError(t, unmarshalData(resp, &result))
	assert.Equal(t, 5, result.Queries)
}

func TestDispatchUnknownCommandIsProtocolError(t *testing.T) {
	d := newTestDaemon(t)
	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "bogus"},
		RequestID:       "r13",
		ProtocolVersion: protocol.Version,
	})
	assert.True(t, resp.IsError())
	assert.Equal(t, protocol.ErrProtocol, resp.ErrCode)
}

func TestDispatchAnnotatesMetrics(t *testing.T) {
	d := newTestDaemon(t)
	seedSymbol(t, d, "demo::a", "a", store.KindFn, store.VisPublic, store.StatusImplemented)

	resp := d.Dispatch(context.Background(), protocol.Request{
		Cmd:             protocol.Command{Op: "doc", Path: "demo::a"},
		RequestID:       "r14",
		ProtocolVersion: protocol.Version,
	})
	require.False(t, resp.IsError())
	require.NotNil(t, resp.Metrics)
	assert.GreaterOrEqual(t, resp.Metrics.Bytes, 0)
}

func unmarshalData(resp protocol.Response, out interface{}) error {
	return json.Unmarshal(resp.Data, out)
}
