// Package store is the embedded relational symbol store: one SQLite file
// per workspace, schema migration, CRUD, and the query primitives the
// daemon's handlers read from.
package store

// Visibility is a Symbol's or ImplBlock member's exposure.
type Visibility string

const (
	VisPublic  Visibility = "public"
	VisPrivate Visibility = "private"
)

// Status is the implementation-completeness classification of a Symbol.
type Status string

const (
	StatusImplemented   Status = "implemented"
	StatusUnimplemented Status = "unimplemented"
	StatusTodo          Status = "todo"
)

// Kind enumerates the symbol kinds the indexer can produce.
type Kind string

const (
	KindModule     Kind = "module"
	KindStruct     Kind = "struct"
	KindEnum       Kind = "enum"
	KindTrait      Kind = "trait"
	KindFn         Kind = "fn"
	KindMethod     Kind = "method"
	KindField      Kind = "field"
	KindVariant    Kind = "variant"
	KindTypeAlias  Kind = "type_alias"
	KindConst      Kind = "const"
	KindStatic     Kind = "static"
	KindImpl       Kind = "impl"
)

// Crate is a buildable unit discovered within a workspace. Called "Package"
// in the data model; the table and Go type are named Crate to match the
// vocabulary the rest of this codebase's domain (and the original source)
// uses.
type Crate struct {
	ID          int64
	Name        string
	Version     string
	RootPath    string
	PackageID   string
	Fingerprint string
}

// File is a source file belonging to exactly one Crate.
type File struct {
	ID      int64
	CrateID int64
	Path    string
	Digest  string
}

// Symbol is the atomic indexed entity.
type Symbol struct {
	ID            int64
	SymbolID      string // canonical lowercase hex, 32 chars (16 bytes)
	CrateID       int64
	FileID        int64
	CanonicalPath string
	Name          string
	Kind          Kind
	Visibility    Visibility
	Signature     string
	Docs          string
	Status        Status
	SpanStart     uint32
	SpanEnd       uint32
	DefHash       string
}

// ImplBlock is a polymorphic-implementation region in source.
type ImplBlock struct {
	ID        int64
	FileID    int64
	ForPath   string
	TraitPath string // empty means inherent impl
	LineStart uint32
	LineEnd   uint32
}

// Reference is a symbol-to-target-path edge, used for expansion queries.
type Reference struct {
	ID             int64
	SourceSymbolID string
	TargetPath     string
	FileID         int64
	SpanStart      uint32
	SpanEnd        uint32
}

// StatusCounts summarizes the implementation-status breakdown of a query.
type StatusCounts struct {
	Total         int `json:"total"`
	Implemented   int `json:"implemented"`
	Unimplemented int `json:"unimplemented"`
	Todo          int `json:"todo"`
}
