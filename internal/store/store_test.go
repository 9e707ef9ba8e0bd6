package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ct-tools/ctd/internal/ctid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertFixtureCrateAndFile(t *testing.T, ctx context.Context, tx *Tx) (int64, int64) {
	t.Helper()
	crateID, err := tx.InsertCrate(ctx, Crate{
		Name: "demo", Version: "0.1.0", RootPath: ".", PackageID: "demo-0.1.0",
		Fingerprint: ctid.CrateFingerprint("demo", "0.1.0", "demo-0.1.0"),
	})
	require.NoError(t, err)

	fileID, err := tx.InsertFile(ctx, File{
		CrateID: crateID, Path: "src/lib.rs", Digest: ctid.FileDigest([]byte("fn foo() {}")),
	})
	require.NoError(t, err)
	return crateID, fileID
}

func TestOpenCreatesSchemaAndRecordsVersion(t *testing.T) {
	s := openTestStore(t)
	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestOpenRejectsStaleSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.setMeta("schema_version", "0"))
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestInsertSymbolRoundTripsSymbolID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	crateID, fileID := insertFixtureCrateAndFile(t, ctx, tx)

	digest := ctid.FileDigest([]byte("fn foo() {}"))
	symID := ctid.SymbolID("demo::foo", "fn", digest, 1, 3)

	_, err = tx.InsertSymbol(ctx, Symbol{
		SymbolID: symID, CrateID: crateID, FileID: fileID,
		CanonicalPath: "demo::foo", Name: "foo", Kind: KindFn, Visibility: VisPublic,
		Signature: "pub fn foo() -> _", Status: StatusImplemented,
		SpanStart: 1, SpanEnd: 3, DefHash: ctid.DefHash("pub fn foo() -> _"),
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := s.FindByPath(ctx, "demo::foo")
	require.NoError(t, err)
	assert.Equal(t, symID, got.SymbolID)

	recomputed := ctid.SymbolID(got.CanonicalPath, string(got.Kind), digest, got.SpanStart, got.SpanEnd)
	assert.Equal(t, got.SymbolID, recomputed)
}

func TestInsertSymbolRejectsDuplicateSymbolID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	crateID, fileID := insertFixtureCrateAndFile(t, ctx, tx)

	symID := ctid.SymbolID("demo::foo", "fn", "blake3:deadbeef", 1, 3)
	sym := Symbol{
		SymbolID: symID, CrateID: crateID, FileID: fileID,
		CanonicalPath: "demo::foo", Name: "foo", Kind: KindFn, Visibility: VisPublic,
		Signature: "pub fn foo() -> _", Status: StatusImplemented,
		SpanStart: 1, SpanEnd: 3, DefHash: "blake3:abc",
	}
	_, err = tx.InsertSymbol(ctx, sym)
	require.NoError(t, err)

	sym.CanonicalPath = "demo::bar"
	_, err = tx.InsertSymbol(ctx, sym)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSymbolIDCollision)
}

func TestStatusCountsSumsToTotal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	crateID, fileID := insertFixtureCrateAndFile(t, ctx, tx)

	statuses := []Status{StatusImplemented, StatusImplemented, StatusUnimplemented, StatusTodo}
	for i, st := range statuses {
		digest := ctid.FileDigest([]byte{byte(i)})
		path := "demo::fn" + string(rune('a'+i))
		symID := ctid.SymbolID(path, "fn", digest, uint32(i+1), uint32(i+2))
		_, err := tx.InsertSymbol(ctx, Symbol{
			SymbolID: symID, CrateID: crateID, FileID: fileID,
			CanonicalPath: path, Name: path, Kind: KindFn, Visibility: VisPublic,
			Signature: "pub fn f() -> _", Status: st,
			SpanStart: uint32(i + 1), SpanEnd: uint32(i + 2), DefHash: "blake3:x",
		})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	counts, err := s.StatusCounts(ctx, StatusCountsOpts{})
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, counts.Total, counts.Implemented+counts.Unimplemented+counts.Todo)
	assert.Equal(t, 2, counts.Implemented)
	assert.Equal(t, 1, counts.Unimplemented)
	assert.Equal(t, 1, counts.Todo)
}

func TestFindByPathMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FindByPath(context.Background(), "demo::nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStatusFilterMatrix(t *testing.T) {
	truth := true
	cases := []struct {
		name          string
		unimplemented *bool
		todo          *bool
		wantFiltered  bool
		wantStatus    Status
	}{
		{"both true means no filter", &truth, &truth, false, ""},
		{"unimplemented only", &truth, nil, true, StatusUnimplemented},
		{"todo only", nil, &truth, true, StatusTodo},
		{"neither set defaults to implemented", nil, nil, true, StatusImplemented},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, filtered := StatusFilter(tc.unimplemented, tc.todo)
			assert.Equal(t, tc.wantFiltered, filtered)
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestFindByNameIsCaseInsensitiveSubstring(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	crateID, fileID := insertFixtureCrateAndFile(t, ctx, tx)

	digest := ctid.FileDigest([]byte("fn ParseConfig() {}"))
	symID := ctid.SymbolID("demo::ParseConfig", "fn", digest, 1, 2)
	_, err = tx.InsertSymbol(ctx, Symbol{
		SymbolID: symID, CrateID: crateID, FileID: fileID,
		CanonicalPath: "demo::ParseConfig", Name: "ParseConfig", Kind: KindFn, Visibility: VisPublic,
		Signature: "pub fn ParseConfig() -> _", Status: StatusImplemented,
		SpanStart: 1, SpanEnd: 2, DefHash: "blake3:y",
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	results, err := s.FindByName(ctx, "parseconf", FindByNameOpts{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ParseConfig", results[0].Name)
}
