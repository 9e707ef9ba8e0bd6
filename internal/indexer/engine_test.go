package indexer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ct-tools/ctd/internal/docjson"
	"github.com/ct-tools/ctd/internal/store"
)

func TestDetectStatusFindsUnimplementedMacro(t *testing.T) {
	content := []byte("fn a() {}\nfn broken() {\n    unimplemented!()\n}\n")
	status := detectStatus(content, 2, 4)
	assert.Equal(t, store.StatusUnimplemented, status)
}

func TestDetectStatusFindsTodoMarker(t *testing.T) {
	content := []byte("fn a() {}\nfn stub() {\n    // TODO: fill in\n}\n")
	status := detectStatus(content, 2, 4)
	assert.Equal(t, store.StatusTodo, status)
}

func TestDetectStatusFindsTodoMacro(t *testing.T) {
	content := []byte("fn a() {}\nfn stub() {\n    todo!()\n}\n")
	status := detectStatus(content, 2, 4)
	assert.Equal(t, store.StatusTodo, status)
}

func TestDetectStatusDefaultsToImplemented(t *testing.T) {
	content := []byte("fn a() {}\nfn real() {\n    1 + 1\n}\n")
	status := detectStatus(content, 2, 4)
	assert.Equal(t, store.StatusImplemented, status)
}

func TestDetectStatusHandlesMissingContent(t *testing.T) {
	assert.Equal(t, store.StatusImplemented, detectStatus(nil, 1, 1))
}

func TestDetectStatusHandlesOutOfRangeSpan(t *testing.T) {
	content := []byte("fn a() {}\n")
	assert.Equal(t, store.StatusImplemented, detectStatus(content, 50, 60))
}

func TestRenderSignatureFunctionWithQualifiersAndArgs(t *testing.T) {
	inner := FunctionInner{
		Decl: FnDecl{
			Inputs: [][2]json.RawMessage{
				{json.RawMessage(`"self"`), json.RawMessage(`{}`)},
				{json.RawMessage(`"n"`), json.RawMessage(`{}`)},
			},
		},
		Header: FunctionHeader{IsAsync: true},
	}
	payload, err := json.Marshal(inner)
	require.NoError(t, err)

	sig := renderSignature(store.KindFn, "compute", "function", payload)
	assert.Equal(t, "async fn compute(self, n) -> _", sig)
}

func TestRenderSignatureStructWithGenerics(t *testing.T) {
	inner := StructInner{Generics: Generics{Params: []GenericParamDef{{Name: "T"}, {Name: "'a"}}}}
	payload, err := json.Marshal(inner)
	require.NoError(t, err)

	sig := renderSignature(store.KindStruct, "Widget", "struct", payload)
	assert.Equal(t, "struct Widget<T>", sig)
}

func TestRenderSignatureUnsafeTrait(t *testing.T) {
	inner := TraitInner{IsUnsafe: true}
	payload, err := json.Marshal(inner)
	require.NoError(t, err)

	sig := renderSignature(store.KindTrait, "Alloc", "trait", payload)
	assert.Equal(t, "unsafe trait Alloc", sig)
}

func TestRenderSignatureConstAndStatic(t *testing.T) {
	assert.Equal(t, "const MAX: _", renderSignature(store.KindConst, "MAX", "constant", json.RawMessage(`{}`)))

	mutStatic, err := json.Marshal(StaticInner{IsMutable: true})
	require.NoError(t, err)
	assert.Equal(t, "mut static COUNTER: _", renderSignature(store.KindStatic, "COUNTER", "static", mutStatic))
}

func TestRenderSignatureImplAndBareNames(t *testing.T) {
	assert.Equal(t, "impl", renderSignature(store.KindImpl, "", "impl", nil))
	assert.Equal(t, "Variant1", renderSignature(store.KindVariant, "Variant1", "variant", nil))
	assert.Equal(t, "x", renderSignature(store.KindField, "x", "struct_field", nil))
}

func TestDeriveMethodsFilterListIsComplete(t *testing.T) {
	for _, name := range []string{
		"clone", "clone_from", "fmt", "eq", "ne", "partial_cmp", "cmp", "hash",
		"serialize", "deserialize", "default", "from", "into", "try_from",
		"try_into", "as_ref", "as_mut", "borrow", "borrow_mut", "to_owned",
		"to_string", "drop", "deref", "deref_mut",
	} {
		assert.Truef(t, deriveMethods[name], "expected %q to be a filtered derive method", name)
	}
	assert.False(t, deriveMethods["compute"])
}

func TestKindForPromotesTraitMethodsToMethodKind(t *testing.T) {
	implCtx := map[DocID]implEntry{"fn1": {implID: "impl1"}}

	kind, isFn := kindFor("function", "fn1", implCtx)
	assert.Equal(t, store.KindMethod, kind)
	assert.True(t, isFn)

	kind, isFn = kindFor("function", "fn2", implCtx)
	assert.Equal(t, store.KindFn, kind)
	assert.True(t, isFn)
}

func TestBuildPathMapExcludesForeignCrateEntries(t *testing.T) {
	blob := DocBlob{
		Paths: map[DocID]ItemSummary{
			"local":   {CrateID: 0, Path: []string{"mycrate", "widget"}},
			"foreign": {CrateID: 7, Path: []string{"other", "thing"}},
		},
	}
	pathMap := buildPathMap(blob)
	assert.Contains(t, pathMap, DocID("local"))
	assert.NotContains(t, pathMap, DocID("foreign"))
}

func TestBuildImplContextLinksChildrenToTraitImpl(t *testing.T) {
	implInner, err := json.Marshal(ImplInner{
		ForType: Type{ResolvedPath: &ResolvedPath{ID: "struct1", Name: "Widget"}},
		Trait:   &TraitReference{ID: "trait1", Name: "Display"},
		Items:   []DocID{"fn1"},
	})
	require.NoError(t, err)

	blob := DocBlob{
		Index: map[DocID]Item{
			"impl1": {CrateID: 0, Inner: map[string]json.RawMessage{"impl": implInner}},
		},
	}
	ctx := buildImplContext(blob)
	entry, ok := ctx["fn1"]
	require.True(t, ok)
	assert.Equal(t, DocID("impl1"), entry.implID)
	require.NotNil(t, entry.traitID)
	assert.Equal(t, DocID("trait1"), *entry.traitID)
}

func TestCanonicalPathForTraitMethodUsesImplContext(t *testing.T) {
	implInner, err := json.Marshal(ImplInner{
		ForType: Type{ResolvedPath: &ResolvedPath{ID: "struct1", Name: "Widget"}},
		Trait:   &TraitReference{ID: "trait1", Name: "Display"},
		Items:   []DocID{"fn1"},
	})
	require.NoError(t, err)

	blob := DocBlob{
		Index: map[DocID]Item{
			"impl1": {CrateID: 0, Inner: map[string]json.RawMessage{"impl": implInner}},
		},
	}
	pathMap := map[DocID][]string{
		"trait1": {"core", "fmt", "Display"},
	}
	implCtx := buildImplContext(blob)

	path, diag := canonicalPathFor("fn1", Item{Name: strPtr("fmt")}, "fmt", blob, pathMap, implCtx, "mycrate")
	assert.Equal(t, "mycrate::Widget::core::fmt::Display::fmt", path)
	assert.Empty(t, diag)
}

func TestCanonicalPathForUsesPathMapWhenPresent(t *testing.T) {
	pathMap := map[DocID][]string{"s1": {"mycrate", "widget", "Widget"}}
	path, diag := canonicalPathFor("s1", Item{Name: strPtr("Widget")}, "Widget", DocBlob{}, pathMap, nil, "mycrate")
	assert.Equal(t, "mycrate::widget::Widget", path)
	assert.Empty(t, diag)
}

func TestCanonicalPathForFallsBackAndEmitsDiagnostic(t *testing.T) {
	path, diag := canonicalPathFor("unknown", Item{Name: strPtr("Ghost")}, "Ghost", DocBlob{}, nil, nil, "mycrate")
	assert.Equal(t, "mycrate::Ghost", path)
	assert.NotEmpty(t, diag)
}

func TestMatchesFilterModuleAndStructScoping(t *testing.T) {
	assert.True(t, matchesFilter("mycrate::widget::Widget::new", "", ""))
	assert.True(t, matchesFilter("mycrate::widget::Widget::new", "mycrate::widget", ""))
	assert.False(t, matchesFilter("mycrate::other::Thing::new", "mycrate::widget", ""))
	assert.True(t, matchesFilter("mycrate::widget::Widget::new", "mycrate::widget", "Widget"))
	assert.False(t, matchesFilter("mycrate::widget::Other::new", "mycrate::widget", "Widget"))
	assert.True(t, matchesFilter("mycrate::widget::Widget::new", "", "Widget"))
}

func strPtr(s string) *string { return &s }

// TestRunEndToEndEmptyWorkspace exercises the full pipeline against fake
// metadata and extractor binaries standing in for cargo and the external
// doc extractor, matching the fake-script style used in docjson's tests.
func TestRunEndToEndEmptyWorkspace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fakes are posix-only")
	}
	workspace := t.TempDir()
	binDir := t.TempDir()

	metadataScript := filepath.Join(binDir, "cargo")
	metadataJSON := `{"workspace_members":[],"packages":[]}`
	require.NoError(t, os.WriteFile(metadataScript,
		[]byte("#!/bin/sh\necho '"+metadataJSON+"'\n"), 0755))

	dbPath := filepath.Join(t.TempDir(), "symbols.sqlite")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	stats, diags, err := Run(context.Background(), st, workspace, Options{
		MetadataCommand: metadataScript,
		Adapter:         docjson.Adapter{},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.CratesIndexed)
	assert.Empty(t, diags)
}

func TestRunSinglePackageIndexesSymbols(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fakes are posix-only")
	}
	workspace := t.TempDir()
	binDir := t.TempDir()

	srcDir := filepath.Join(workspace, "src")
	require.NoError(t, os.MkdirAll(srcDir, 0755))
	libRs := filepath.Join(srcDir, "lib.rs")
	require.NoError(t, os.WriteFile(libRs, []byte("pub fn compute() -> i32 {\n    42\n}\n"), 0644))

	metadataScript := filepath.Join(binDir, "cargo")
	metadataJSON := `{"workspace_members":["mycrate 0.1.0"],"packages":[` +
		`{"id":"mycrate 0.1.0","name":"mycrate","version":"0.1.0","manifest_path":"` +
		filepath.Join(workspace, "Cargo.toml") + `"}]}`
	require.NoError(t, os.WriteFile(metadataScript, []byte("#!/bin/sh\necho '"+metadataJSON+"'\n"), 0755))

	docDir := filepath.Join(workspace, "target", "doc")
	require.NoError(t, os.MkdirAll(docDir, 0755))

	item := map[string]any{
		"id":         "0:1",
		"crate_id":   0,
		"name":       "compute",
		"span":       map[string]any{"filename": "src/lib.rs", "begin": []int{1, 0}, "end": []int{3, 1}},
		"visibility": "public",
		"docs":       nil,
		"inner": map[string]any{
			"function": map[string]any{
				"decl":     map[string]any{"inputs": []any{}},
				"generics": map[string]any{"params": []any{}},
				"header":   map[string]any{"is_const": false, "is_async": false, "is_unsafe": false},
			},
		},
	}
	blob := map[string]any{
		"root": "0:0",
		"index": map[string]any{
			"0:1": item,
		},
		"paths": map[string]any{
			"0:1": map[string]any{"crate_id": 0, "path": []string{"mycrate", "compute"}, "kind": "function"},
		},
	}
	blobBytes, err := json.Marshal(blob)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "mycrate.json"), blobBytes, 0644))

	extractScript := filepath.Join(binDir, "extract_docs")
	require.NoError(t, os.WriteFile(extractScript, []byte("#!/bin/sh\nexit 0\n"), 0755))

	dbPath := filepath.Join(t.TempDir(), "symbols.sqlite")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	stats, _, err := Run(context.Background(), st, workspace, Options{
		MetadataCommand: metadataScript,
		Adapter:         docjson.Adapter{Command: extractScript},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CratesIndexed)
	assert.Equal(t, 1, stats.SymbolsIndexed)

	found, err := st.FindByPath(context.Background(), "mycrate::compute")
	require.NoError(t, err)
	assert.Equal(t, "fn compute() -> _", found.Signature)
	assert.Equal(t, store.StatusImplemented, found.Status)
	assert.Equal(t, store.VisPublic, found.Visibility)
}
