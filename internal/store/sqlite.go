package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// SQLiteStore is the embedded backend: a docs table keyed by path and an
// FTS5 table sharing its rowid. WAL mode lets searches run while the
// indexer writes.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	opts   Options
	closed bool
}

var _ Backend = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS docs (
	id       INTEGER PRIMARY KEY,
	path     TEXT NOT NULL UNIQUE,
	source   TEXT NOT NULL,
	mtime_ms REAL NOT NULL,
	size     INTEGER NOT NULL,
	title    TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS docs_mtime ON docs(mtime_ms DESC);
CREATE INDEX IF NOT EXISTS docs_source ON docs(source);

-- rowid = docs.id
CREATE VIRTUAL TABLE IF NOT EXISTS fts USING fts5(
	path,
	title,
	content,
	tokenize='unicode61'
);
`

// checkSQLiteIntegrity runs a quick check on an existing database file.
// A missing file is fine; it will be created.
func checkSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick_check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// moveAside renames a corrupt database and its WAL files out of the way.
func moveAside(path string) error {
	suffix := fmt.Sprintf(".corrupt-%d", time.Now().Unix())
	if err := os.Rename(path, path+suffix); err != nil && !os.IsNotExist(err) {
		return err
	}
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	return nil
}

// NewSQLiteStore opens or creates the database at path. An empty path or
// ":memory:" gives a private in-memory database for tests.
func NewSQLiteStore(path string, opts Options) (*SQLiteStore, error) {
	memory := path == "" || path == ":memory:"

	var dsn string
	if memory {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, lexerrors.New(lexerrors.ErrCodeFilePermission, "cannot create data directory", err).
				WithDetail("dir", dir)
		}

		if validErr := checkSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite store corrupted, moving aside",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if err := moveAside(path); err != nil {
				return nil, lexerrors.New(lexerrors.ErrCodeCorruptIndex, "store is corrupted and cannot be moved aside", err).
					WithDetail("path", path)
			}
		}

		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
	}
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, opts: opts.withDefaults()}, nil
}

// Name implements Backend.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Path returns the database file, or "" for an in-memory store.
func (s *SQLiteStore) Path() string { return s.path }

// Upsert writes the document row and its FTS row in one transaction.
// The docs id for a path never changes, so the FTS row is replaced in place.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO docs(path, source, mtime_ms, size, title) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			source = excluded.source,
			mtime_ms = excluded.mtime_ms,
			size = excluded.size,
			title = excluded.title
		RETURNING id`,
		doc.Path, doc.Source, doc.MtimeMs, doc.Size, doc.Title).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.Path, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM fts WHERE rowid = ?`, id); err != nil {
		return fmt.Errorf("failed to clear fts row %s: %w", doc.Path, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO fts(rowid, path, title, content) VALUES (?, ?, ?, ?)`,
		id, doc.Path, doc.Title, doc.Content); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.Path, err)
	}

	return tx.Commit()
}

// Search implements Backend. ModeFTS ranks with bm25 and falls back to
// a substring match when nothing matches; ModeLike goes straight to the
// substring match.
func (s *SQLiteStore) Search(ctx context.Context, q Query) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	q.Limit = clampLimit(q.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)
	if q.Mode == ModeLike {
		return s.searchLike(ctx, q)
	}

	match := ftsMatchExpr(q)
	if match == "" {
		return s.searchLike(ctx, q)
	}

	resp, err := s.searchFTS(ctx, q, match)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			slog.Debug("fts query rejected, using substring match",
				slog.String("query", q.Text),
				slog.String("error", err.Error()))
			return s.searchLike(ctx, q)
		}
		return nil, err
	}
	if resp.Total == 0 {
		return s.searchLike(ctx, q)
	}
	return resp, nil
}

// ftsMatchExpr quotes each term as an FTS5 string so user input cannot
// inject query syntax. Adjacent strings are ANDed.
func ftsMatchExpr(q Query) string {
	terms := q.Terms
	if len(terms) == 0 {
		terms = strings.Fields(q.Text)
	}
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		parts = append(parts, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(parts, " ")
}

func (s *SQLiteStore) searchFTS(ctx context.Context, q Query, match string) (*Response, error) {
	w := s.opts.Weights
	query := fmt.Sprintf(`
		SELECT d.path, d.source, d.title,
		       snippet(fts, 2, '%s', '%s', ' … ', %d) AS snip,
		       bm25(fts, %g, %g, %g) AS score
		FROM fts JOIN docs d ON d.id = fts.rowid
		WHERE fts MATCH ?`,
		MarkOpen, MarkClose, s.opts.SnippetTokens, w.Path, w.Title, w.Content)
	args := []any{match}
	if q.Source != "" {
		query += ` AND d.source = ?`
		args = append(args, q.Source)
	}
	query += ` ORDER BY score LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer rows.Close()

	resp := &Response{Facets: map[string]int{}, Results: []Hit{}, Backend: s.Name()}
	for rows.Next() {
		var h Hit
		var score float64
		if err := rows.Scan(&h.Path, &h.Source, &h.Title, &h.Snippet, &score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		// bm25() is negative with lower = better.
		h.Rank = -score
		resp.Results = append(resp.Results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	facetRows, err := s.db.QueryContext(ctx, `
		SELECT d.source, COUNT(*)
		FROM fts JOIN docs d ON d.id = fts.rowid
		WHERE fts MATCH ?
		GROUP BY d.source`, match)
	if err != nil {
		return nil, fmt.Errorf("facet query failed: %w", err)
	}
	defer facetRows.Close()
	for facetRows.Next() {
		var source string
		var n int
		if err := facetRows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan facet: %w", err)
		}
		resp.Facets[source] = n
		if q.Source == "" || q.Source == source {
			resp.Total += n
		}
	}
	return resp, facetRows.Err()
}

// searchLike matches the whole query as a case-insensitive substring of
// the content. Folding happens in Go because SQLite's lower() only
// handles ASCII.
func (s *SQLiteStore) searchLike(ctx context.Context, q Query) (*Response, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	resp := &Response{Facets: map[string]int{}, Results: []Hit{}, Backend: s.Name()}
	if needle == "" {
		return resp, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.path, d.source, d.title, fts.content
		FROM fts JOIN docs d ON d.id = fts.rowid
		ORDER BY d.id`)
	if err != nil {
		return nil, fmt.Errorf("substring search failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h Hit
		var content string
		if err := rows.Scan(&h.Path, &h.Source, &h.Title, &content); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if !ContainsFold(content, needle) {
			continue
		}
		resp.Facets[h.Source]++
		if q.Source != "" && q.Source != h.Source {
			continue
		}
		resp.Total++
		if len(resp.Results) < q.Limit {
			h.Snippet = Snippet(content, []string{needle}, s.opts.SnippetChars)
			resp.Results = append(resp.Results, h)
		}
	}
	return resp, rows.Err()
}

// GetByPath implements Backend.
func (s *SQLiteStore) GetByPath(ctx context.Context, path string) (*StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var doc StoredDocument
	var text sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.path, d.source, d.mtime_ms, d.size, d.title, fts.content
		FROM docs d LEFT JOIN fts ON fts.rowid = d.id
		WHERE d.path = ?`, path).
		Scan(&doc.ID, &doc.Path, &doc.Source, &doc.MtimeMs, &doc.Size, &doc.Title, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	doc.Text = text.String
	return &doc, nil
}

// Record implements Backend.
func (s *SQLiteStore) Record(ctx context.Context, path string) (*DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	var rec DocumentRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, source, mtime_ms, size, title FROM docs WHERE path = ?`, path).
		Scan(&rec.ID, &rec.Path, &rec.Source, &rec.MtimeMs, &rec.Size, &rec.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return &rec, nil
}

// CountsBySource implements Backend.
func (s *SQLiteStore) CountsBySource(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM docs GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// List implements Backend.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, source, mtime_ms, size, title FROM docs ORDER BY mtime_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	out := []DocumentRecord{}
	for rows.Next() {
		var rec DocumentRecord
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Source, &rec.MtimeMs, &rec.Size, &rec.Title); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

var errClosed = lexerrors.New(lexerrors.ErrCodeNetworkUnavailable, "store is closed", nil)
