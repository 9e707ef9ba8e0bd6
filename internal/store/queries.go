package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// StatusFilter resolves the (unimplemented?, todo?) query flags into the
// status predicate matrix used by both `find` and `status`:
//
//	(unimplemented=true, todo=true) -> no filter at all ("show both")
//	(unimplemented=true, _)         -> unimplemented only
//	(_, todo=true)                  -> todo only
//	else                            -> implemented only
//
// A nil *bool is treated as false/absent. Only both flags set removes the
// filter; giving no status flags selects implemented symbols.
func StatusFilter(unimplemented, todo *bool) (status Status, filtered bool) {
	u := unimplemented != nil && *unimplemented
	t := todo != nil && *todo
	switch {
	case u && t:
		return "", false
	case u:
		return StatusUnimplemented, true
	case t:
		return StatusTodo, true
	default:
		return StatusImplemented, true
	}
}

func visClause(vis string, args *[]any) string {
	switch vis {
	case "public", "private":
		*args = append(*args, vis)
		return " AND visibility = ?"
	default:
		return ""
	}
}

// FindByNameOpts bundles the optional filters for FindByName.
type FindByNameOpts struct {
	Kind          string
	Vis           string
	Unimplemented *bool
	Todo          *bool
	Limit         int
}

// FindByName performs a case-insensitive substring match on name, ordered
// by (name, path, span_start).
func (s *Store) FindByName(ctx context.Context, pattern string, opts FindByNameOpts) ([]Symbol, error) {
	query := `SELECT id, symbol_id, crate_id, file_id, canonical_path, name, kind,
		visibility, signature, docs, status, span_start, span_end, def_hash
		FROM symbols WHERE name LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(pattern) + "%"}

	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, opts.Kind)
	}
	query += visClause(opts.Vis, &args)

	if status, filtered := StatusFilter(opts.Unimplemented, opts.Todo); filtered {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY name COLLATE NOCASE, canonical_path, span_start"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return s.querySymbols(ctx, query, args...)
}

// FindByPath performs an exact canonical_path lookup.
func (s *Store) FindByPath(ctx context.Context, path string) (Symbol, error) {
	symbols, err := s.querySymbols(ctx,
		`SELECT id, symbol_id, crate_id, file_id, canonical_path, name, kind,
			visibility, signature, docs, status, span_start, span_end, def_hash
		 FROM symbols WHERE canonical_path = ? LIMIT 1`, path)
	if err != nil {
		return Symbol{}, err
	}
	if len(symbols) == 0 {
		return Symbol{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return symbols[0], nil
}

// StatusCountsOpts bundles the optional visibility filter for StatusCounts.
type StatusCountsOpts struct {
	Vis string
}

// StatusCounts returns the implemented/unimplemented/todo breakdown.
func (s *Store) StatusCounts(ctx context.Context, opts StatusCountsOpts) (StatusCounts, error) {
	query := `SELECT status, COUNT(*) FROM symbols WHERE 1=1`
	var args []any
	query += visClause(opts.Vis, &args)
	query += " GROUP BY status"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("status_counts query: %w", err)
	}
	defer rows.Close()

	var counts StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return StatusCounts{}, fmt.Errorf("scan status_counts row: %w", err)
		}
		counts.Total += n
		switch Status(status) {
		case StatusImplemented:
			counts.Implemented = n
		case StatusUnimplemented:
			counts.Unimplemented = n
		case StatusTodo:
			counts.Todo = n
		}
	}
	if err := rows.Err(); err != nil {
		return StatusCounts{}, fmt.Errorf("iterate status_counts rows: %w", err)
	}
	return counts, nil
}

// StatusItemsOpts bundles the filters for StatusItems.
type StatusItemsOpts struct {
	Vis           string
	Unimplemented *bool
	Todo          *bool
	Limit         int
}

// StatusItems returns symbols matching the status-predicate matrix.
func (s *Store) StatusItems(ctx context.Context, opts StatusItemsOpts) ([]Symbol, error) {
	query := `SELECT id, symbol_id, crate_id, file_id, canonical_path, name, kind,
		visibility, signature, docs, status, span_start, span_end, def_hash
		FROM symbols WHERE 1=1`
	var args []any
	query += visClause(opts.Vis, &args)

	if status, filtered := StatusFilter(opts.Unimplemented, opts.Todo); filtered {
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY name COLLATE NOCASE, canonical_path, span_start"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	return s.querySymbols(ctx, query, args...)
}

// Counts reports the crate/file/symbol row totals used by `diag`.
func (s *Store) Counts(ctx context.Context) (crates, files, symbols int, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crates`).Scan(&crates); err != nil {
		return 0, 0, 0, fmt.Errorf("count crates: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&files); err != nil {
		return 0, 0, 0, fmt.Errorf("count files: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&symbols); err != nil {
		return 0, 0, 0, fmt.Errorf("count symbols: %w", err)
	}
	return crates, files, symbols, nil
}

func (s *Store) querySymbols(ctx context.Context, query string, args ...any) ([]Symbol, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symbols: %w", err)
	}
	defer rows.Close()

	var out []Symbol
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate symbol rows: %w", err)
	}
	return out, nil
}

func scanSymbol(rows *sql.Rows) (Symbol, error) {
	var sym Symbol
	var idBlob []byte
	var kind, vis, status string
	if err := rows.Scan(
		&sym.ID, &idBlob, &sym.CrateID, &sym.FileID, &sym.CanonicalPath, &sym.Name,
		&kind, &vis, &sym.Signature, &sym.Docs, &status, &sym.SpanStart, &sym.SpanEnd, &sym.DefHash,
	); err != nil {
		return Symbol{}, fmt.Errorf("scan symbol row: %w", err)
	}
	sym.SymbolID = symbolIDFromBlob(idBlob)
	sym.Kind = Kind(kind)
	sym.Visibility = Visibility(vis)
	sym.Status = Status(status)
	return sym, nil
}

func escapeLike(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(pattern)
}

// Children returns the symbols whose canonical_path is exactly one "::"
// segment below path, ordered by canonical_path. Deeper expansion depths
// are built by the caller iterating this one level at a time.
func (s *Store) Children(ctx context.Context, path string) ([]Symbol, error) {
	prefix := path + "::"
	symbols, err := s.querySymbols(ctx,
		`SELECT id, symbol_id, crate_id, file_id, canonical_path, name, kind,
			visibility, signature, docs, status, span_start, span_end, def_hash
		 FROM symbols WHERE canonical_path LIKE ? ESCAPE '\'
		 ORDER BY canonical_path`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, err
	}
	segments := strings.Count(prefix, "::")
	out := make([]Symbol, 0, len(symbols))
	for _, sym := range symbols {
		if strings.Count(sym.CanonicalPath, "::") == segments {
			out = append(out, sym)
		}
	}
	return out, nil
}

// Parent returns the symbol one canonical_path segment above path, if any
// exists in the store. A path with no "::" has no parent.
func (s *Store) Parent(ctx context.Context, path string) (Symbol, bool, error) {
	idx := strings.LastIndex(path, "::")
	if idx < 0 {
		return Symbol{}, false, nil
	}
	sym, err := s.FindByPath(ctx, path[:idx])
	if errors.Is(err, ErrNotFound) {
		return Symbol{}, false, nil
	}
	if err != nil {
		return Symbol{}, false, err
	}
	return sym, true, nil
}

// ReferencesBySource returns up to limit reference edges recorded for a
// symbol, ordered by span_start.
func (s *Store) ReferencesBySource(ctx context.Context, sourceSymbolID string, limit int) ([]Reference, error) {
	idBlob, err := symbolIDToBlob(sourceSymbolID)
	if err != nil {
		return nil, err
	}
	query := `SELECT id, source_symbol_id, target_path, file_id, span_start, span_end
		FROM symbol_references WHERE source_symbol_id = ? ORDER BY span_start`
	args := []any{idBlob}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	var out []Reference
	for rows.Next() {
		var r Reference
		var srcBlob []byte
		if err := rows.Scan(&r.ID, &srcBlob, &r.TargetPath, &r.FileID, &r.SpanStart, &r.SpanEnd); err != nil {
			return nil, fmt.Errorf("scan reference row: %w", err)
		}
		r.SourceSymbolID = symbolIDFromBlob(srcBlob)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference rows: %w", err)
	}
	return out, nil
}

// ImplBlocksContaining returns every ImplBlock whose line range contains
// the given file/span, used to resolve a method's "impl parent".
func (s *Store) ImplBlocksContaining(ctx context.Context, fileID int64, spanStart, spanEnd uint32) ([]ImplBlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, for_path, trait_path, line_start, line_end
		 FROM impls WHERE file_id = ? AND line_start <= ? AND line_end >= ?
		 ORDER BY line_start`, fileID, spanStart, spanEnd)
	if err != nil {
		return nil, fmt.Errorf("query impl blocks: %w", err)
	}
	defer rows.Close()

	var out []ImplBlock
	for rows.Next() {
		var b ImplBlock
		if err := rows.Scan(&b.ID, &b.FileID, &b.ForPath, &b.TraitPath, &b.LineStart, &b.LineEnd); err != nil {
			return nil, fmt.Errorf("scan impl block row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate impl block rows: %w", err)
	}
	return out, nil
}
