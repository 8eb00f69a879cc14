// Package store provides the ranked full-text backends documents are
// written to and searched from: SQLite FTS5 (default), Bleve, and a
// remote Meilisearch index.
package store

import (
	"context"
	"strings"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// Mode selects how a query is matched.
type Mode string

const (
	// ModeFTS ranks with the backend's full-text index and falls back to a
	// substring scan when the ranked query yields nothing.
	ModeFTS Mode = "fts"
	// ModeLike matches the query as a case-insensitive substring only.
	ModeLike Mode = "like"
	// ModeScan bypasses the stores and scans cached files in memory.
	ModeScan Mode = "scan"
)

// ParseMode maps a request parameter to a Mode. Empty means ModeFTS.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFTS:
		return ModeFTS, nil
	case ModeLike:
		return ModeLike, nil
	case ModeScan:
		return ModeScan, nil
	default:
		return "", lexerrors.ValidationError("mode must be one of fts, like, scan", nil).
			WithDetail("mode", s)
	}
}

// Document is one extracted file as written by the indexer.
type Document struct {
	Path    string
	Source  string
	MtimeMs float64
	Size    int64
	Title   string
	Content string
}

// DocumentRecord is the stored metadata of a document. ID is a surrogate
// key that stays the same across re-upserts of the same path.
type DocumentRecord struct {
	ID      int64   `json:"id,omitempty"`
	Path    string  `json:"path"`
	Source  string  `json:"source"`
	MtimeMs float64 `json:"mtimeMs"`
	Size    int64   `json:"size"`
	Title   string  `json:"title"`
}

// StoredDocument is a record with its indexed text.
type StoredDocument struct {
	DocumentRecord
	Text string `json:"text"`
}

// Query is a normalized search request. Terms are the lowercased query
// words; Text is the trimmed raw query.
type Query struct {
	Text   string
	Terms  []string
	Source string
	Limit  int
	Mode   Mode
}

// Hit is one ranked search result. Higher Rank is better.
type Hit struct {
	Path    string  `json:"path"`
	Source  string  `json:"source"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	Rank    float64 `json:"rank"`
}

// Response is a page of hits plus totals over the whole match set.
// Total counts matches under the source filter; Facets counts matches
// per source ignoring the filter.
type Response struct {
	Total   int            `json:"total"`
	Facets  map[string]int `json:"facets"`
	Results []Hit          `json:"results"`
	// Backend names the tier that answered.
	Backend string `json:"backend,omitempty"`
}

// Stats summarizes a backend's contents.
type Stats struct {
	Documents int            `json:"docs"`
	BySource  map[string]int `json:"bySource"`
}

// Backend is a ranked full-text store. Implementations are safe for
// concurrent use.
type Backend interface {
	// Name identifies the backend in logs and responses.
	Name() string
	// Upsert inserts or replaces the document stored under doc.Path.
	Upsert(ctx context.Context, doc *Document) error
	// Search runs q and returns ranked hits with snippets.
	Search(ctx context.Context, q Query) (*Response, error)
	// GetByPath returns the stored document or an ErrCodeDocumentNotFound error.
	GetByPath(ctx context.Context, path string) (*StoredDocument, error)
	// Record returns the stored metadata for path without its text, or an
	// ErrCodeDocumentNotFound error.
	Record(ctx context.Context, path string) (*DocumentRecord, error)
	// CountsBySource returns the number of stored documents per source.
	CountsBySource(ctx context.Context) (map[string]int, error)
	// List returns up to limit records, most recently modified first.
	List(ctx context.Context, limit int) ([]DocumentRecord, error)
	Close() error
}

// NotFound returns the error backends report for an unknown path.
func NotFound(path string) error {
	return lexerrors.New(lexerrors.ErrCodeDocumentNotFound, "document is not in the index", nil).
		WithDetail("path", path)
}

// IsNotFound reports whether err means the path is not stored.
func IsNotFound(err error) bool {
	return lexerrors.HasCode(err, lexerrors.ErrCodeDocumentNotFound)
}

// Unavailable returns the error for a backend that cannot be reached.
func Unavailable(backend string, cause error) error {
	return lexerrors.New(lexerrors.ErrCodeNetworkUnavailable, backend+" backend is unavailable", cause)
}

// IsUnavailable reports whether err means the backend cannot serve requests.
func IsUnavailable(err error) bool {
	return lexerrors.HasCode(err, lexerrors.ErrCodeNetworkUnavailable)
}

// IndexingDisabled returns the error for a write with no backend enabled.
func IndexingDisabled() error {
	return lexerrors.New(lexerrors.ErrCodeIndexingDisabled, "indexing is disabled", nil).
		WithSuggestion("Enable index.enable_fts or configure remote.url")
}

// IsIndexingDisabled reports whether err means no backend accepts writes.
func IsIndexingDisabled(err error) bool {
	return lexerrors.HasCode(err, lexerrors.ErrCodeIndexingDisabled)
}

// StatsOf builds Stats from a backend's per-source counts.
func StatsOf(ctx context.Context, b Backend) (*Stats, error) {
	counts, err := b.CountsBySource(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return &Stats{Documents: total, BySource: counts}, nil
}

// Terms lowercases and splits a query on whitespace, keeping at most max
// terms. max <= 0 keeps all.
func Terms(text string, max int) []string {
	fields := strings.Fields(strings.ToLower(text))
	if max > 0 && len(fields) > max {
		fields = fields[:max]
	}
	return fields
}

func clampLimit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
