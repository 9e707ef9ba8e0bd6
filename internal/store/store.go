package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// ErrSchemaMismatch is returned by Open when the on-disk schema version is
// older than CurrentSchemaVersion.
var ErrSchemaMismatch = errors.New("store: schema version mismatch")

// ErrNotFound is returned by exact-match lookups that miss.
var ErrNotFound = errors.New("store: not found")

// ErrSymbolIDCollision is returned when a symbol_id already exists; a
// collision is treated as a bug rather than an upsert opportunity.
var ErrSymbolIDCollision = errors.New("store: symbol_id collision")

// Store owns the single SQLite connection for one workspace's index.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the symbol store at path, applying the
// durability pragmas append-heavy indexing needs: WAL journaling, relaxed
// synchronous commit, in-memory temp storage, a moderate mmap window, and
// foreign-key enforcement. If the store already has rows in meta but an
// older schema_version than this build requires, Open fails with
// ErrSchemaMismatch rather than silently reading a stale layout.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3 %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA mmap_size=30000000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	version, ok, err := s.metaInt("schema_version")
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}
	if !ok {
		if err := s.setMeta("schema_version", strconv.Itoa(CurrentSchemaVersion)); err != nil {
			return fmt.Errorf("write schema_version: %w", err)
		}
		return nil
	}
	if version < CurrentSchemaVersion {
		return fmt.Errorf("%w: on-disk version %d, require %d", ErrSchemaMismatch, version, CurrentSchemaVersion)
	}
	return nil
}

func (s *Store) metaInt(key string) (int, bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("meta %q is not an integer: %w", key, err)
	}
	return n, true, nil
}

func (s *Store) setMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// SchemaVersion returns the schema_version recorded in meta.
func (s *Store) SchemaVersion() (int, error) {
	v, ok, err := s.metaInt("schema_version")
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: meta.schema_version unset", ErrSchemaMismatch)
	}
	return v, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is an IMMEDIATE transaction: every indexing cycle runs inside exactly
// one, so readers never observe a half-written view.
type Tx struct {
	tx *sql.Tx
}

// Begin starts an IMMEDIATE transaction. The DSN's _txlock=immediate makes
// go-sqlite3 issue BEGIN IMMEDIATE itself when database/sql opens the
// connection's transaction, so there is nothing left to upgrade here.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction. Calling Rollback after a successful
// Commit is a no-op error from database/sql that callers may ignore.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func symbolIDToBlob(hexID string) ([]byte, error) {
	b, err := hex.DecodeString(hexID)
	if err != nil {
		return nil, fmt.Errorf("symbol_id %q is not valid hex: %w", hexID, err)
	}
	return b, nil
}

func symbolIDFromBlob(b []byte) string {
	return hex.EncodeToString(b)
}

// InsertCrate inserts (or, on a repeat package_id, reuses) a Crate row and
// returns its row id.
func (t *Tx) InsertCrate(ctx context.Context, c Crate) (int64, error) {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO crates(name, version, root_path, package_id, fingerprint)
		 VALUES(?, ?, ?, ?, ?)
		 ON CONFLICT(package_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			root_path = excluded.root_path,
			fingerprint = excluded.fingerprint`,
		c.Name, c.Version, c.RootPath, c.PackageID, c.Fingerprint,
	)
	if err != nil {
		return 0, fmt.Errorf("insert crate %s: %w", c.Name, err)
	}
	// An upsert that takes the UPDATE branch leaves last_insert_rowid
	// untouched, so the id is always looked up by the unique package_id.
	var id int64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM crates WHERE package_id = ?`, c.PackageID,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve crate id for %s: %w", c.PackageID, err)
	}
	return id, nil
}

// InsertFile inserts (or reuses) a File row and returns its row id.
func (t *Tx) InsertFile(ctx context.Context, f File) (int64, error) {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO files(crate_id, path, digest) VALUES(?, ?, ?)
		 ON CONFLICT(crate_id, path) DO UPDATE SET digest = excluded.digest`,
		f.CrateID, f.Path, f.Digest,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file %s: %w", f.Path, err)
	}
	var id int64
	if err := t.tx.QueryRowContext(ctx,
		`SELECT id FROM files WHERE crate_id = ? AND path = ?`, f.CrateID, f.Path,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve file id for %s: %w", f.Path, err)
	}
	return id, nil
}

// InsertSymbol inserts a Symbol row idempotently. A second insert of the
// same symbol_id within the same store is rejected with
// ErrSymbolIDCollision, matching the invariant that symbol_id collisions
// are a bug, not a legitimate update path.
func (t *Tx) InsertSymbol(ctx context.Context, sym Symbol) (int64, error) {
	idBlob, err := symbolIDToBlob(sym.SymbolID)
	if err != nil {
		return 0, err
	}

	var existing int64
	err = t.tx.QueryRowContext(ctx, `SELECT id FROM symbols WHERE symbol_id = ?`, idBlob).Scan(&existing)
	switch {
	case err == nil:
		return 0, fmt.Errorf("%w: %s", ErrSymbolIDCollision, sym.SymbolID)
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("check symbol_id collision: %w", err)
	}

	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO symbols(
			symbol_id, crate_id, file_id, canonical_path, name, kind,
			visibility, signature, docs, status, span_start, span_end, def_hash
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		idBlob, sym.CrateID, sym.FileID, sym.CanonicalPath, sym.Name, string(sym.Kind),
		string(sym.Visibility), sym.Signature, sym.Docs, string(sym.Status),
		sym.SpanStart, sym.SpanEnd, sym.DefHash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert symbol %s: %w", sym.CanonicalPath, err)
	}
	return res.LastInsertId()
}

// InsertImplBlock inserts an ImplBlock row and returns its row id.
func (t *Tx) InsertImplBlock(ctx context.Context, b ImplBlock) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO impls(file_id, for_path, trait_path, line_start, line_end)
		 VALUES(?, ?, ?, ?, ?)`,
		b.FileID, b.ForPath, b.TraitPath, b.LineStart, b.LineEnd,
	)
	if err != nil {
		return 0, fmt.Errorf("insert impl block for %s: %w", b.ForPath, err)
	}
	return res.LastInsertId()
}

// InsertReference inserts a Reference edge.
func (t *Tx) InsertReference(ctx context.Context, r Reference) error {
	idBlob, err := symbolIDToBlob(r.SourceSymbolID)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO symbol_references(source_symbol_id, target_path, file_id, span_start, span_end)
		 VALUES(?, ?, ?, ?, ?)`,
		idBlob, r.TargetPath, r.FileID, r.SpanStart, r.SpanEnd,
	)
	if err != nil {
		return fmt.Errorf("insert reference %s -> %s: %w", r.SourceSymbolID, r.TargetPath, err)
	}
	return nil
}
