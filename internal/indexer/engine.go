// Package indexer is the Indexing Engine: workspace discovery, per-package
// doc extraction, symbol/relationship synthesis, and persistence into the
// Symbol Store, all inside one transaction per index cycle.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ct-tools/ctd/internal/ctid"
	"github.com/ct-tools/ctd/internal/docjson"
	"github.com/ct-tools/ctd/internal/store"
)

// deriveMethods is the fixed set of common derived/trait-bridge method
// names skipped by default, carried byte-for-byte from rustdoc_parser.rs's
// DERIVE_METHODS.
var deriveMethods = map[string]bool{
	"clone": true, "clone_from": true, "fmt": true, "eq": true, "ne": true,
	"partial_cmp": true, "cmp": true, "hash": true, "serialize": true,
	"deserialize": true, "default": true, "from": true, "into": true,
	"try_from": true, "try_into": true, "as_ref": true, "as_mut": true,
	"borrow": true, "borrow_mut": true, "to_owned": true, "to_string": true,
	"drop": true, "deref": true, "deref_mut": true,
}

// Options configures one indexing cycle.
type Options struct {
	// MetadataCommand is the binary used for workspace discovery, default
	// "cargo".
	MetadataCommand string
	Adapter         docjson.Adapter
	Features        []string
	Target          string
	Module          string
	Struct          string
	IncludeDerives  bool
}

// Stats summarizes one completed index cycle.
type Stats struct {
	CratesIndexed  int
	FilesIndexed   int
	SymbolsIndexed int
}

// Diagnostic is a non-fatal note surfaced during indexing (e.g. a
// canonical-path fallback search), not an error.
type Diagnostic struct {
	Crate   string
	Message string
}

// Run executes one full indexing cycle against workspaceRoot, discovering
// members, extracting and parsing each package's doc-JSON, and writing
// everything inside a single transaction. Any per-package failure rolls
// back the whole cycle, per the fatal-per-package policy in §4.6.9.
func Run(ctx context.Context, st *store.Store, workspaceRoot string, opts Options) (Stats, []Diagnostic, error) {
	members, err := DiscoverMembers(ctx, opts.MetadataCommand, workspaceRoot)
	if err != nil {
		return Stats{}, nil, fmt.Errorf("discover workspace members: %w", err)
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		return Stats{}, nil, fmt.Errorf("begin index cycle: %w", err)
	}

	var stats Stats
	var diags []Diagnostic
	for _, member := range members {
		crateStats, crateDiags, err := indexCrate(ctx, tx, workspaceRoot, member, opts)
		if err != nil {
			_ = tx.Rollback()
			return Stats{}, nil, fmt.Errorf("package %s: %w", member.Name, err)
		}
		stats.CratesIndexed++
		stats.FilesIndexed += crateStats.FilesIndexed
		stats.SymbolsIndexed += crateStats.SymbolsIndexed
		diags = append(diags, crateDiags...)
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, nil, fmt.Errorf("commit index cycle: %w", err)
	}
	return stats, diags, nil
}

type implEntry struct {
	implID  DocID
	traitID *DocID
}

func indexCrate(ctx context.Context, tx *store.Tx, workspaceRoot string, member Member, opts Options) (Stats, []Diagnostic, error) {
	var stats Stats
	var diags []Diagnostic

	crateFingerprint := ctid.CrateFingerprint(member.Name, member.Version, member.PackageID)
	crateID, err := tx.InsertCrate(ctx, store.Crate{
		Name: member.Name, Version: member.Version, RootPath: member.RootPath,
		PackageID: member.PackageID, Fingerprint: crateFingerprint,
	})
	if err != nil {
		return stats, nil, fmt.Errorf("insert crate: %w", err)
	}

	extraArgs := extractorArgs(opts)
	artifactPath, err := opts.Adapter.ExtractWithArgs(ctx, workspaceRoot, member.Name, extraArgs)
	if err != nil {
		return stats, nil, fmt.Errorf("extract docs: %w", err)
	}

	raw, err := os.ReadFile(artifactPath)
	if err != nil {
		return stats, nil, fmt.Errorf("read doc blob %s: %w", artifactPath, err)
	}
	var blob DocBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return stats, nil, fmt.Errorf("parse doc blob for %s: %w", member.Name, err)
	}

	pathMap := buildPathMap(blob)
	implCtx := buildImplContext(blob)

	fileIDs := make(map[string]int64)
	fileContents := make(map[string][]byte)

	getFileID := func(relPath string) (int64, []byte, error) {
		if id, ok := fileIDs[relPath]; ok {
			return id, fileContents[relPath], nil
		}
		absPath := filepath.Join(member.RootPath, relPath)
		content, readErr := os.ReadFile(absPath)
		digest := ctid.Missing
		if readErr == nil {
			digest = ctid.FileDigest(content)
		}
		id, err := tx.InsertFile(ctx, store.File{CrateID: crateID, Path: relPath, Digest: digest})
		if err != nil {
			return 0, nil, fmt.Errorf("insert file %s: %w", relPath, err)
		}
		fileIDs[relPath] = id
		fileContents[relPath] = content
		stats.FilesIndexed++
		return id, content, nil
	}

	// Sort ids for deterministic iteration so error messages and insert
	// order are reproducible across runs.
	ids := make([]DocID, 0, len(blob.Index))
	for id := range blob.Index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		item := blob.Index[id]
		if item.CrateID != 0 {
			continue
		}
		variant, payload, ok := singleVariant(item.Inner)
		if !ok {
			continue
		}

		if variant == "impl" {
			if err := indexImplBlock(ctx, tx, getFileID, pathMap, id, item, payload); err != nil {
				return stats, nil, fmt.Errorf("impl block: %w", err)
			}
			continue
		}

		kind, isFn := kindFor(variant, id, implCtx)
		if kind == "" {
			continue
		}

		name := item.itemName()
		if isFn && !opts.IncludeDerives && deriveMethods[name] {
			continue
		}

		canonicalPath, diag := canonicalPathFor(id, item, name, blob, pathMap, implCtx, member.Name)
		if diag != "" {
			diags = append(diags, Diagnostic{Crate: member.Name, Message: diag})
		}
		if !matchesFilter(canonicalPath, opts.Module, opts.Struct) {
			continue
		}

		signature := renderSignature(kind, name, variant, payload)

		var spanStart, spanEnd uint32 = 1, 1
		var fileID int64
		var content []byte
		if item.Span != nil {
			spanStart, spanEnd = uint32(item.Span.Begin[0]), uint32(item.Span.End[0])
			fid, c, err := getFileID(item.Span.Filename)
			if err != nil {
				return stats, nil, err
			}
			fileID, content = fid, c
		} else {
			fid, c, err := getFileID("src/lib.rs")
			if err != nil {
				return stats, nil, err
			}
			fileID, content = fid, c
		}

		digest := ctid.Missing
		if content != nil {
			digest = ctid.FileDigest(content)
		}

		status := store.StatusImplemented
		if kind == store.KindFn || kind == store.KindMethod {
			status = detectStatus(content, spanStart, spanEnd)
		}

		visibility := store.VisPrivate
		if item.IsPublic() {
			visibility = store.VisPublic
		}

		symID := ctid.SymbolID(canonicalPath, string(kind), digest, spanStart, spanEnd)
		defHash := ctid.DefHash(signature)

		docs := ""
		if item.Docs != nil {
			docs = *item.Docs
		}

		_, err := tx.InsertSymbol(ctx, store.Symbol{
			SymbolID: symID, CrateID: crateID, FileID: fileID,
			CanonicalPath: canonicalPath, Name: name, Kind: kind, Visibility: visibility,
			Signature: signature, Docs: docs, Status: status,
			SpanStart: spanStart, SpanEnd: spanEnd, DefHash: defHash,
		})
		if err != nil {
			return stats, nil, fmt.Errorf("insert symbol %s: %w", canonicalPath, err)
		}
		stats.SymbolsIndexed++

		if err := indexReferences(ctx, tx, symID, fileID, spanStart, spanEnd, variant, payload, pathMap); err != nil {
			return stats, nil, fmt.Errorf("index references for %s: %w", canonicalPath, err)
		}
	}

	return stats, diags, nil
}

// indexReferences records a source-symbol-to-target-path edge for every
// resolved type composing a struct's fields or a function's parameter and
// return types. Reference extraction never follows a type graph, only
// records one edge per occurrence, so cyclic type definitions (a struct
// referencing itself) cannot cause a loop.
func indexReferences(
	ctx context.Context, tx *store.Tx,
	sourceSymbolID string, fileID int64, spanStart, spanEnd uint32,
	variant string, payload json.RawMessage, pathMap map[DocID][]string,
) error {
	var targets []string
	switch variant {
	case "struct_field":
		var f StructFieldInner
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil
		}
		if f.Type.ResolvedPath != nil {
			targets = append(targets, resolveTypeName(f.Type, pathMap))
		}
	case "function":
		var fn FunctionInner
		if err := json.Unmarshal(payload, &fn); err != nil {
			return nil
		}
		for _, pair := range fn.Decl.Inputs {
			var t Type
			if err := json.Unmarshal(pair[1], &t); err == nil && t.ResolvedPath != nil {
				targets = append(targets, resolveTypeName(t, pathMap))
			}
		}
		if fn.Decl.Output != nil && fn.Decl.Output.ResolvedPath != nil {
			targets = append(targets, resolveTypeName(*fn.Decl.Output, pathMap))
		}
	}

	for _, target := range targets {
		if err := tx.InsertReference(ctx, store.Reference{
			SourceSymbolID: sourceSymbolID, TargetPath: target, FileID: fileID,
			SpanStart: spanStart, SpanEnd: spanEnd,
		}); err != nil {
			return err
		}
	}
	return nil
}

func extractorArgs(opts Options) []string {
	var args []string
	for _, f := range opts.Features {
		args = append(args, "--feature", f)
	}
	if opts.Target != "" {
		args = append(args, "--target", opts.Target)
	}
	return args
}

// singleVariant extracts the one key/value pair an externally tagged enum
// must carry.
func singleVariant(inner map[string]json.RawMessage) (string, json.RawMessage, bool) {
	for k, v := range inner {
		return k, v, true
	}
	return "", nil, false
}

// kindFor maps a doc-JSON inner variant name to a store.Kind. Functions
// become "method" when the id is reachable through an impl/trait context,
// "fn" otherwise. isFn reports whether the derive-method filter applies.
func kindFor(variant string, id DocID, implCtx map[DocID]implEntry) (store.Kind, bool) {
	switch variant {
	case "module":
		return store.KindModule, false
	case "struct":
		return store.KindStruct, false
	case "enum":
		return store.KindEnum, false
	case "trait":
		return store.KindTrait, false
	case "function":
		if _, ok := implCtx[id]; ok {
			return store.KindMethod, true
		}
		return store.KindFn, true
	case "struct_field":
		return store.KindField, false
	case "variant":
		return store.KindVariant, false
	case "type_alias":
		return store.KindTypeAlias, false
	case "constant":
		return store.KindConst, false
	case "static":
		return store.KindStatic, false
	default:
		return "", false
	}
}

func buildPathMap(blob DocBlob) map[DocID][]string {
	pathMap := make(map[DocID][]string, len(blob.Paths))
	for id, summary := range blob.Paths {
		if summary.CrateID == 0 {
			pathMap[id] = summary.Path
		}
	}
	return pathMap
}

// buildImplContext scans every impl item and enumerates its child items,
// recording which impl (and, for trait impls, which trait) each child
// belongs to.
func buildImplContext(blob DocBlob) map[DocID]implEntry {
	ctx := make(map[DocID]implEntry)
	for id, item := range blob.Index {
		if item.CrateID != 0 {
			continue
		}
		raw, ok := item.Inner["impl"]
		if !ok {
			continue
		}
		var impl ImplInner
		if err := json.Unmarshal(raw, &impl); err != nil {
			continue
		}
		var traitID *DocID
		if impl.Trait != nil {
			tid := impl.Trait.ID
			traitID = &tid
		}
		for _, childID := range impl.Items {
			ctx[childID] = implEntry{implID: id, traitID: traitID}
		}
	}
	return ctx
}

func indexImplBlock(
	ctx context.Context, tx *store.Tx,
	getFileID func(string) (int64, []byte, error),
	pathMap map[DocID][]string,
	id DocID, item Item, payload json.RawMessage,
) error {
	var impl ImplInner
	if err := json.Unmarshal(payload, &impl); err != nil {
		return fmt.Errorf("decode impl %s: %w", id, err)
	}

	forPath := resolveTypeName(impl.ForType, pathMap)
	traitPath := ""
	if impl.Trait != nil {
		if segs, ok := pathMap[impl.Trait.ID]; ok {
			traitPath = strings.Join(segs, "::")
		} else {
			traitPath = impl.Trait.Name
		}
	}

	var lineStart, lineEnd uint32 = 1, 1
	var fileID int64
	if item.Span != nil {
		lineStart, lineEnd = uint32(item.Span.Begin[0]), uint32(item.Span.End[0])
		fid, _, err := getFileID(item.Span.Filename)
		if err != nil {
			return err
		}
		fileID = fid
	}

	_, err := tx.InsertImplBlock(ctx, store.ImplBlock{
		FileID: fileID, ForPath: forPath, TraitPath: traitPath,
		LineStart: lineStart, LineEnd: lineEnd,
	})
	return err
}

// canonicalPathFor implements the §4.6.4 rule. diag is non-empty only when
// neither the path_map nor a last-segment search found the item and the
// `<package>::<name>` fallback was used, for diagnostic surfacing.
func canonicalPathFor(
	id DocID, item Item, name string, blob DocBlob,
	pathMap map[DocID][]string, implCtx map[DocID]implEntry, packageName string,
) (string, string) {
	if entry, ok := implCtx[id]; ok {
		implItem, ok := blob.Index[entry.implID]
		if ok {
			if raw, ok := implItem.Inner["impl"]; ok {
				var impl ImplInner
				if err := json.Unmarshal(raw, &impl); err == nil {
					forType := resolveTypeName(impl.ForType, pathMap)
					if entry.traitID != nil {
						traitPath := ""
						if segs, ok := pathMap[*entry.traitID]; ok {
							traitPath = strings.Join(segs, "::")
						} else if impl.Trait != nil {
							traitPath = impl.Trait.Name
						}
						return fmt.Sprintf("%s::%s::%s::%s", packageName, forType, traitPath, name), ""
					}
					return fmt.Sprintf("%s::%s::%s", packageName, forType, name), ""
				}
			}
		}
	}

	if segs, ok := pathMap[id]; ok {
		return strings.Join(segs, "::"), ""
	}

	for _, segs := range pathMap {
		if len(segs) > 0 && segs[len(segs)-1] == name {
			return strings.Join(segs, "::"), ""
		}
	}

	fallback := fmt.Sprintf("%s::%s", packageName, name)
	return fallback, fmt.Sprintf("no path_map entry for %q (id=%s); used fallback %q", name, id, fallback)
}

func resolveTypeName(t Type, pathMap map[DocID][]string) string {
	if t.ResolvedPath != nil {
		if segs, ok := pathMap[t.ResolvedPath.ID]; ok {
			return strings.Join(segs, "::")
		}
	}
	return t.DisplayName()
}

func matchesFilter(path, module, structName string) bool {
	if module == "" && structName == "" {
		return true
	}
	if module != "" && !strings.HasPrefix(path, module) {
		return false
	}
	if structName != "" {
		if module != "" {
			expected := module + "::" + structName
			if !strings.HasPrefix(path, expected) {
				return false
			}
		} else if !strings.Contains(path, "::"+structName) {
			return false
		}
	}
	return true
}

// renderSignature implements §4.6.5's normalized, never-source-excerpt
// renderings.
func renderSignature(kind store.Kind, name, variant string, payload json.RawMessage) string {
	switch kind {
	case store.KindModule:
		return "mod " + name
	case store.KindStruct:
		var s StructInner
		_ = json.Unmarshal(payload, &s)
		return fmt.Sprintf("struct %s%s", name, generics(s.Generics))
	case store.KindEnum:
		var e EnumInner
		_ = json.Unmarshal(payload, &e)
		return fmt.Sprintf("enum %s%s", name, generics(e.Generics))
	case store.KindTrait:
		var t TraitInner
		_ = json.Unmarshal(payload, &t)
		unsafePrefix := ""
		if t.IsUnsafe {
			unsafePrefix = "unsafe "
		}
		return fmt.Sprintf("%strait %s%s", unsafePrefix, name, generics(t.Generics))
	case store.KindFn, store.KindMethod:
		var f FunctionInner
		_ = json.Unmarshal(payload, &f)
		var qualifiers strings.Builder
		if f.Header.IsConst {
			qualifiers.WriteString("const ")
		}
		if f.Header.IsAsync {
			qualifiers.WriteString("async ")
		}
		if f.Header.IsUnsafe {
			qualifiers.WriteString("unsafe ")
		}
		args := strings.Join(f.Decl.ArgNames(), ", ")
		return fmt.Sprintf("%sfn %s%s(%s) -> _", qualifiers.String(), name, generics(f.Generics), args)
	case store.KindTypeAlias:
		var a TypeAliasInner
		_ = json.Unmarshal(payload, &a)
		return fmt.Sprintf("type %s%s", name, generics(a.Generics))
	case store.KindConst:
		return fmt.Sprintf("const %s: _", name)
	case store.KindStatic:
		var s StaticInner
		_ = json.Unmarshal(payload, &s)
		mutPrefix := ""
		if s.IsMutable {
			mutPrefix = "mut "
		}
		return fmt.Sprintf("%sstatic %s: _", mutPrefix, name)
	case store.KindImpl:
		return "impl"
	case store.KindVariant, store.KindField:
		return name
	default:
		return name
	}
}

func generics(g Generics) string {
	names := g.ParamNames()
	if len(names) == 0 {
		return ""
	}
	return "<" + strings.Join(names, ", ") + ">"
}

// detectStatus implements §4.6.6, defaulting to implemented when content
// is unreadable or the span is out of range.
func detectStatus(content []byte, spanStart, spanEnd uint32) store.Status {
	if content == nil {
		return store.StatusImplemented
	}
	lines := strings.Split(string(content), "\n")
	if spanStart < 1 || int(spanStart) > len(lines) {
		return store.StatusImplemented
	}
	end := int(spanEnd)
	if end > len(lines) {
		end = len(lines)
	}
	body := strings.Join(lines[spanStart-1:end], "\n")

	if strings.Contains(body, "unimplemented!") {
		return store.StatusUnimplemented
	}
	if strings.Contains(body, "todo!") || strings.Contains(body, "TODO") || strings.Contains(body, "FIXME") {
		return store.StatusTodo
	}
	return store.StatusImplemented
}
