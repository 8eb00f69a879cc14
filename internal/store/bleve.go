package store

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	"github.com/blevesearch/bleve/v2/search/query"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// legalAnalyzerName splits on Unicode word boundaries and lowercases.
const legalAnalyzerName = "legal_text"

// maxSourceFacets bounds the number of distinct sources reported.
const maxSourceFacets = 1000

// BleveStore is an embedded backend on a Bleve index. Documents are keyed
// by path.
type BleveStore struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	opts   Options
	closed bool
}

var _ Backend = (*BleveStore)(nil)

// bleveDocument is the indexed shape of a Document.
type bleveDocument struct {
	Path    string  `json:"path"`
	Source  string  `json:"source"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	MtimeMs float64 `json:"mtimeMs"`
	Size    float64 `json:"size"`
}

// validateBleveIntegrity checks the index metadata before opening.
func validateBleveIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	data, err := os.ReadFile(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isBleveCorruption(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveStore opens or creates a Bleve index at path. An empty path
// gives an in-memory index.
func NewBleveStore(path string, opts Options) (*BleveStore, error) {
	m, err := newBleveMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, lexerrors.New(lexerrors.ErrCodeFilePermission, "cannot create data directory", err)
		}

		if validErr := validateBleveIntegrity(path); validErr != nil {
			slog.Warn("bleve store corrupted, clearing",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, lexerrors.New(lexerrors.ErrCodeCorruptIndex, "bleve index corrupted and cannot be cleared", rmErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, m)
		} else if isBleveCorruption(err) {
			slog.Warn("bleve store open failed, recreating",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return nil, lexerrors.New(lexerrors.ErrCodeCorruptIndex, "bleve index corrupted and cannot be cleared", rmErr)
			}
			idx, err = bleve.New(path, m)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open bleve index: %w", err)
	}

	return &BleveStore{index: idx, path: path, opts: opts.withDefaults()}, nil
}

func newBleveMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	err := im.AddCustomAnalyzer(legalAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add analyzer: %w", err)
	}
	im.DefaultAnalyzer = legalAnalyzerName

	text := bleve.NewTextFieldMapping()
	text.Analyzer = legalAnalyzerName
	text.Store = true
	text.IncludeTermVectors = true

	keyword := bleve.NewKeywordFieldMapping()
	keyword.Store = true

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("path", text)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("content", text)
	doc.AddFieldMappingsAt("source", keyword)
	doc.AddFieldMappingsAt("mtimeMs", numeric)
	doc.AddFieldMappingsAt("size", numeric)
	im.DefaultMapping = doc

	return im, nil
}

// Name implements Backend.
func (b *BleveStore) Name() string { return "bleve" }

// Upsert implements Backend. Indexing under an existing ID replaces it.
func (b *BleveStore) Upsert(_ context.Context, doc *Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed
	}

	err := b.index.Index(doc.Path, bleveDocument{
		Path:    doc.Path,
		Source:  doc.Source,
		Title:   doc.Title,
		Content: doc.Content,
		MtimeMs: doc.MtimeMs,
		Size:    float64(doc.Size),
	})
	if err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.Path, err)
	}
	return nil
}

// Search implements Backend.
func (b *BleveStore) Search(ctx context.Context, q Query) (*Response, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	q.Limit = clampLimit(q.Limit, b.opts.DefaultLimit, b.opts.MaxLimit)
	terms := q.Terms
	if len(terms) == 0 {
		terms = Terms(q.Text, 0)
	}
	if len(terms) == 0 {
		return &Response{Facets: map[string]int{}, Results: []Hit{}, Backend: b.Name()}, nil
	}

	if q.Mode != ModeLike {
		resp, err := b.run(ctx, q, b.rankedQuery(terms), terms)
		if err != nil {
			return nil, err
		}
		if resp.Total > 0 {
			return resp, nil
		}
	}
	return b.searchLike(ctx, q)
}

// rankedQuery requires every term to match path, title or content, with
// per-field boosts.
func (b *BleveStore) rankedQuery(terms []string) query.Query {
	w := b.opts.Weights
	conj := bleve.NewConjunctionQuery()
	for _, t := range terms {
		disj := bleve.NewDisjunctionQuery()
		for field, boost := range map[string]float64{"path": w.Path, "title": w.Title, "content": w.Content} {
			mq := bleve.NewMatchQuery(t)
			mq.SetField(field)
			mq.SetBoost(boost)
			disj.AddQuery(mq)
		}
		conj.AddQuery(disj)
	}
	return conj
}

// likePageSize is how many stored documents one substring pass reads
// per request.
const likePageSize = 500

// searchLike matches the whole query as a case-insensitive substring of
// the stored content. The analyzed field drops punctuation and spaces, so
// citations such as "2019/1234" or "3. HD" need the raw text.
func (b *BleveStore) searchLike(ctx context.Context, q Query) (*Response, error) {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	resp := &Response{Facets: map[string]int{}, Results: []Hit{}, Backend: b.Name()}
	if needle == "" {
		return resp, nil
	}

	for from := 0; ; from += likePageSize {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), likePageSize, from, false)
		req.Fields = []string{"source", "title", "content"}
		req.SortBy([]string{"_id"})

		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("substring search failed: %w", err)
		}
		for _, hit := range res.Hits {
			content := fieldString(hit, "content")
			if !ContainsFold(content, needle) {
				continue
			}
			source := fieldString(hit, "source")
			resp.Facets[source]++
			if q.Source != "" && q.Source != source {
				continue
			}
			resp.Total++
			if len(resp.Results) < q.Limit {
				resp.Results = append(resp.Results, Hit{
					Path:    hit.ID,
					Source:  source,
					Title:   fieldString(hit, "title"),
					Snippet: Snippet(content, []string{needle}, b.opts.SnippetChars),
				})
			}
		}
		if len(res.Hits) < likePageSize {
			return resp, nil
		}
	}
}

func (b *BleveStore) run(ctx context.Context, q Query, main query.Query, terms []string) (*Response, error) {
	filtered := main
	if q.Source != "" {
		tq := bleve.NewTermQuery(q.Source)
		tq.SetField("source")
		filtered = bleve.NewConjunctionQuery(main, tq)
	}

	req := bleve.NewSearchRequest(filtered)
	req.Size = q.Limit
	req.Fields = []string{"path", "source", "title", "content"}
	req.Highlight = bleve.NewHighlightWithStyle(html.Name)
	req.Highlight.AddField("content")

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	resp := &Response{
		Total:   int(res.Total),
		Facets:  map[string]int{},
		Results: make([]Hit, 0, len(res.Hits)),
		Backend: b.Name(),
	}
	for _, hit := range res.Hits {
		h := Hit{
			Path:   fieldString(hit, "path"),
			Source: fieldString(hit, "source"),
			Title:  fieldString(hit, "title"),
			Rank:   hit.Score,
		}
		if frags := hit.Fragments["content"]; len(frags) > 0 {
			h.Snippet = strings.Join(frags, " … ")
		} else {
			h.Snippet = Snippet(fieldString(hit, "content"), terms, b.opts.SnippetChars)
		}
		resp.Results = append(resp.Results, h)
	}

	facets, err := b.facets(ctx, main)
	if err != nil {
		return nil, err
	}
	resp.Facets = facets
	return resp, nil
}

// facets counts matches of q per source, ignoring any source filter.
func (b *BleveStore) facets(ctx context.Context, q query.Query) (map[string]int, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = 0
	req.AddFacet("source", bleve.NewFacetRequest("source", maxSourceFacets))

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("facet query failed: %w", err)
	}
	out := map[string]int{}
	if fr, ok := res.Facets["source"]; ok && fr.Terms != nil {
		for _, tf := range fr.Terms.Terms() {
			out[tf.Term] = tf.Count
		}
	}
	return out, nil
}

// GetByPath implements Backend.
func (b *BleveStore) GetByPath(ctx context.Context, path string) (*StoredDocument, error) {
	hit, err := b.byID(ctx, path, []string{"*"})
	if err != nil {
		return nil, err
	}
	return &StoredDocument{DocumentRecord: recordFromHit(hit), Text: fieldString(hit, "content")}, nil
}

// Record implements Backend.
func (b *BleveStore) Record(ctx context.Context, path string) (*DocumentRecord, error) {
	hit, err := b.byID(ctx, path, []string{"path", "source", "title", "mtimeMs", "size"})
	if err != nil {
		return nil, err
	}
	rec := recordFromHit(hit)
	return &rec, nil
}

func (b *BleveStore) byID(ctx context.Context, path string, fields []string) (*search.DocumentMatch, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	req := bleve.NewSearchRequest(bleve.NewDocIDQuery([]string{path}))
	req.Size = 1
	req.Fields = fields
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, NotFound(path)
	}
	return res.Hits[0], nil
}

// CountsBySource implements Backend.
func (b *BleveStore) CountsBySource(ctx context.Context) (map[string]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}
	return b.facets(ctx, bleve.NewMatchAllQuery())
}

// List implements Backend.
func (b *BleveStore) List(ctx context.Context, limit int) ([]DocumentRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, errClosed
	}

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = limit
	req.Fields = []string{"path", "source", "title", "mtimeMs", "size"}
	req.SortBy([]string{"-mtimeMs"})

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	out := make([]DocumentRecord, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, recordFromHit(hit))
	}
	return out, nil
}

// Close implements Backend. Idempotent.
func (b *BleveStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func recordFromHit(hit *search.DocumentMatch) DocumentRecord {
	return DocumentRecord{
		ID:      stableID(hit.ID),
		Path:    hit.ID,
		Source:  fieldString(hit, "source"),
		Title:   fieldString(hit, "title"),
		MtimeMs: fieldFloat(hit, "mtimeMs"),
		Size:    int64(fieldFloat(hit, "size")),
	}
}

// stableID derives a positive surrogate key from a path.
func stableID(path string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return int64(h.Sum64() & (1<<63 - 1))
}

func fieldString(hit *search.DocumentMatch, name string) string {
	s, _ := hit.Fields[name].(string)
	return s
}

func fieldFloat(hit *search.DocumentMatch, name string) float64 {
	f, _ := hit.Fields[name].(float64)
	return f
}
