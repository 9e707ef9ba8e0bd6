package daemon

import "github.com/ct-tools/ctd/internal/store"

// SymbolView is the wire shape of one symbol in a find/ls/status response.
// When a handler's `all` flag is false, only Path/SpanStart/SpanEnd are
// populated, matching spec.md §4.8's find table.
type SymbolView struct {
	Path      string       `json:"path"`
	Name      string       `json:"name,omitempty"`
	Kind      store.Kind   `json:"kind,omitempty"`
	Vis       store.Visibility `json:"vis,omitempty"`
	Signature string       `json:"signature,omitempty"`
	Docs      string       `json:"docs,omitempty"`
	Status    store.Status `json:"status,omitempty"`
	SpanStart uint32       `json:"span_start"`
	SpanEnd   uint32       `json:"span_end"`
}

func fullView(sym store.Symbol, includeDocs bool) SymbolView {
	v := SymbolView{
		Path: sym.CanonicalPath, Name: sym.Name, Kind: sym.Kind, Vis: sym.Visibility,
		Signature: sym.Signature, Status: sym.Status,
		SpanStart: sym.SpanStart, SpanEnd: sym.SpanEnd,
	}
	if includeDocs {
		v.Docs = sym.Docs
	}
	return v
}

func slimView(sym store.Symbol) SymbolView {
	return SymbolView{Path: sym.CanonicalPath, SpanStart: sym.SpanStart, SpanEnd: sym.SpanEnd}
}

// FindResult is the `find` response payload.
type FindResult struct {
	Items []SymbolView `json:"items"`
}

// DocSymbol is the symbol carried by a `doc` response.
type DocSymbol struct {
	Path      string `json:"path"`
	Signature string `json:"signature"`
	Docs      string `json:"docs,omitempty"`
}

// DocResult is the `doc` response payload.
type DocResult struct {
	Symbol DocSymbol `json:"symbol"`
}

// LsResult is the `ls` response payload.
type LsResult struct {
	Items []SymbolView `json:"items"`
}

// Bundle is the `export` response payload.
type Bundle struct {
	Symbol       SymbolView   `json:"symbol"`
	Children     []SymbolView `json:"children"`
	ExternRefs   []string     `json:"extern_refs"`
	ImplRanges   []ImplRange  `json:"impl_ranges"`
	Order        string       `json:"order"`
	Invariants   Invariants   `json:"invariants"`
}

type ImplRange struct {
	ForPath   string `json:"for_path"`
	TraitPath string `json:"trait_path,omitempty"`
	LineStart uint32 `json:"line_start"`
	LineEnd   uint32 `json:"line_end"`
}

type Invariants struct {
	Range1BasedInclusive bool `json:"range_1_based_inclusive"`
}

// StatusResult is the `status` response payload.
type StatusResult struct {
	Counts store.StatusCounts `json:"counts"`
	Items  []SymbolView       `json:"items"`
}

// ReindexResult is the `reindex` response payload.
type ReindexResult struct {
	CratesIndexed  int      `json:"crates_indexed"`
	FilesIndexed   int      `json:"files_indexed"`
	SymbolsIndexed int      `json:"symbols_indexed"`
	Diagnostics    []string `json:"diagnostics,omitempty"`
}

// DiagResult is the `diag` response payload, matching spec.md §6's field
// list.
type DiagResult struct {
	DBPath                   string   `json:"db_path"`
	SchemaVersion            int      `json:"schema_version"`
	ToolVersion              string   `json:"tool_version"`
	ProtocolVersionsSupported []uint32 `json:"protocol_versions_supported"`
	WorkspaceRoot            string   `json:"workspace_root"`
	WorkspaceFingerprint     string   `json:"workspace_fingerprint"`
	CrateCount               int      `json:"crate_count"`
	FileCount                int      `json:"file_count"`
	SymbolCount              int      `json:"symbol_count"`
	MemFootprintBytes        uint64   `json:"mem_footprint_bytes"`
	LastIndexDurationMS      int64    `json:"last_index_duration_ms"`
	IndexTimestamp           string   `json:"index_timestamp"`
	RustcHash                string   `json:"rustc_hash,omitempty"`
	Features                 []string `json:"features,omitempty"`
	Target                   string   `json:"target,omitempty"`
	DaemonHot                bool     `json:"daemon_hot"`
	Transport                string   `json:"transport"`
}

// BenchResult is the `bench` response payload.
type BenchResult struct {
	Queries     int          `json:"queries"`
	Throughput  float64      `json:"throughput_qps"`
	Latency     LatencyStats `json:"latency"`
}
