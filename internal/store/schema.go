package store

// CurrentSchemaVersion is the schema version this build requires. Opening a
// store whose meta.schema_version is lower fails with ErrSchemaMismatch.
const CurrentSchemaVersion = 1

// schemaV1 is the full DDL for schema version 1. There is no migration
// framework yet; a schemaV2 constant plus an ALTER-driven step function
// would be added here if a second version were ever needed.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crates (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	version     TEXT NOT NULL,
	root_path   TEXT NOT NULL,
	package_id  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	UNIQUE(package_id)
);

CREATE TABLE IF NOT EXISTS files (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	crate_id INTEGER NOT NULL REFERENCES crates(id),
	path     TEXT NOT NULL,
	digest   TEXT NOT NULL,
	UNIQUE(crate_id, path)
);

CREATE TABLE IF NOT EXISTS symbols (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol_id      BLOB NOT NULL,
	crate_id       INTEGER NOT NULL REFERENCES crates(id),
	file_id        INTEGER NOT NULL REFERENCES files(id),
	canonical_path TEXT NOT NULL,
	name           TEXT NOT NULL,
	kind           TEXT NOT NULL,
	visibility     TEXT NOT NULL,
	signature      TEXT NOT NULL,
	docs           TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	span_start     INTEGER NOT NULL,
	span_end       INTEGER NOT NULL,
	def_hash       TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_symbols_symbol_id ON symbols(symbol_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols(canonical_path);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_visibility ON symbols(visibility);
CREATE INDEX IF NOT EXISTS idx_symbols_status ON symbols(status);

CREATE TABLE IF NOT EXISTS impls (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	file_id    INTEGER NOT NULL REFERENCES files(id),
	for_path   TEXT NOT NULL,
	trait_path TEXT NOT NULL DEFAULT '',
	line_start INTEGER NOT NULL,
	line_end   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_impls_for_path ON impls(for_path);

CREATE TABLE IF NOT EXISTS symbol_references (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	source_symbol_id BLOB NOT NULL,
	target_path      TEXT NOT NULL,
	file_id          INTEGER NOT NULL REFERENCES files(id),
	span_start       INTEGER NOT NULL,
	span_end         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refs_source ON symbol_references(source_symbol_id);
CREATE INDEX IF NOT EXISTS idx_refs_target ON symbol_references(target_path);
`
