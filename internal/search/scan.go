package search

import (
	"context"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/Aman-CERP/lexindex/internal/crawler"
	"github.com/Aman-CERP/lexindex/internal/extract"
	"github.com/Aman-CERP/lexindex/internal/store"
)

// Scan scoring constants.
const (
	maxCountPerTerm  = 20
	pointsPerHit     = 2
	lengthPenaltyPer = 200000
)

// RecordSource supplies the crawled files the scan tier reads.
type RecordSource interface {
	Records(ctx context.Context) []crawler.FileRecord
}

// Extractor reads a crawled file. Implementations cache by mtime.
type Extractor interface {
	Extract(ctx context.Context, rec crawler.FileRecord) (*extract.Result, error)
}

// ScanOptions bounds the in-memory scan.
type ScanOptions struct {
	// Candidates is the number of files considered per query.
	Candidates int
	// MaxScored stops the scan once this many files have matched.
	MaxScored    int
	SnippetChars int
	DefaultLimit int
	MaxLimit     int
}

func (o ScanOptions) withDefaults() ScanOptions {
	if o.Candidates <= 0 {
		o.Candidates = 2000
	}
	if o.MaxScored <= 0 {
		o.MaxScored = 200
	}
	if o.SnippetChars <= 0 {
		o.SnippetChars = store.DefaultSnippetChars
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 20
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 50
	}
	return o
}

// ScanBackend is the last tier of the chain. It extracts crawled files on
// demand and scores them by term frequency. It never writes.
type ScanBackend struct {
	records   RecordSource
	extractor Extractor
	opts      ScanOptions
}

var _ store.Backend = (*ScanBackend)(nil)

// NewScanBackend creates a ScanBackend.
func NewScanBackend(records RecordSource, extractor Extractor, opts ScanOptions) *ScanBackend {
	return &ScanBackend{records: records, extractor: extractor, opts: opts.withDefaults()}
}

// Name implements store.Backend.
func (s *ScanBackend) Name() string { return "scan" }

// Upsert is a no-op; the scan reads files directly.
func (s *ScanBackend) Upsert(context.Context, *store.Document) error { return nil }

// Score rates text against lowercased terms: two points per occurrence,
// at most twenty occurrences per term, minus one point per 200,000
// characters.
func Score(text string, terms []string) int {
	if text == "" {
		return 0
	}
	score := 0
	for _, n := range store.CountFold(text, terms, maxCountPerTerm) {
		score += n * pointsPerHit
	}
	return score - utf8.RuneCountInString(text)/lengthPenaltyPer
}

type scored struct {
	hit   store.Hit
	score int
}

// Search implements store.Backend. Facets count the scored files.
func (s *ScanBackend) Search(ctx context.Context, q store.Query) (*store.Response, error) {
	terms := q.Terms
	if len(terms) == 0 {
		terms = store.Terms(q.Text, 0)
	}
	limit := clampLimit(q.Limit, s.opts.DefaultLimit, s.opts.MaxLimit)

	var matches []scored
	considered := 0
	for _, rec := range s.records.Records(ctx) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if q.Source != "" && rec.Source != q.Source {
			continue
		}
		if considered >= s.opts.Candidates {
			break
		}
		considered++

		res, err := s.extractor.Extract(ctx, rec)
		if err != nil || res == nil || res.Text == "" {
			continue
		}
		score := Score(res.Text, terms)
		if score <= 0 {
			continue
		}
		matches = append(matches, scored{
			hit: store.Hit{
				Path:    rec.Path,
				Source:  rec.Source,
				Title:   res.Title,
				Snippet: store.Snippet(res.Text, terms, s.opts.SnippetChars),
				Rank:    float64(score),
			},
			score: score,
		})
		if len(matches) >= s.opts.MaxScored {
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	resp := &store.Response{Total: len(matches), Facets: map[string]int{}, Results: []store.Hit{}}
	for i, m := range matches {
		resp.Facets[m.hit.Source]++
		if i < limit {
			resp.Results = append(resp.Results, m.hit)
		}
	}
	slog.Debug("scan search",
		slog.Int("considered", considered),
		slog.Int("matched", len(matches)))
	return resp, nil
}

func (s *ScanBackend) find(ctx context.Context, path string) (crawler.FileRecord, bool) {
	for _, rec := range s.records.Records(ctx) {
		if rec.Path == path {
			return rec, true
		}
	}
	return crawler.FileRecord{}, false
}

// GetByPath extracts a crawled file.
func (s *ScanBackend) GetByPath(ctx context.Context, path string) (*store.StoredDocument, error) {
	rec, ok := s.find(ctx, path)
	if !ok {
		return nil, store.NotFound(path)
	}
	res, err := s.extractor.Extract(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &store.StoredDocument{DocumentRecord: recordOf(rec, res.Title), Text: res.Text}, nil
}

// Record returns the crawl metadata of path. Title is left empty to avoid
// an extraction.
func (s *ScanBackend) Record(ctx context.Context, path string) (*store.DocumentRecord, error) {
	rec, ok := s.find(ctx, path)
	if !ok {
		return nil, store.NotFound(path)
	}
	r := recordOf(rec, "")
	return &r, nil
}

// CountsBySource counts crawled files per source.
func (s *ScanBackend) CountsBySource(ctx context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, rec := range s.records.Records(ctx) {
		out[rec.Source]++
	}
	return out, nil
}

// List returns crawled files, newest first.
func (s *ScanBackend) List(ctx context.Context, limit int) ([]store.DocumentRecord, error) {
	recs := append([]crawler.FileRecord(nil), s.records.Records(ctx)...)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].MtimeMs > recs[j].MtimeMs })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]store.DocumentRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, recordOf(rec, ""))
	}
	return out, nil
}

// Close implements store.Backend.
func (s *ScanBackend) Close() error { return nil }

func recordOf(rec crawler.FileRecord, title string) store.DocumentRecord {
	return store.DocumentRecord{
		Path:    rec.Path,
		Source:  rec.Source,
		MtimeMs: rec.MtimeMs,
		Size:    rec.Size,
		Title:   title,
	}
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
