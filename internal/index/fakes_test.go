package index

import (
	"context"
	"sync"

	"github.com/Aman-CERP/lexindex/internal/crawler"
	"github.com/Aman-CERP/lexindex/internal/extract"
	"github.com/Aman-CERP/lexindex/internal/store"
)

type fakeCrawler struct {
	mu      sync.Mutex
	records []crawler.FileRecord
	calls   int
	// block, when set, is waited on before returning.
	block chan struct{}
}

func (c *fakeCrawler) Crawl(ctx context.Context, _ []crawler.Root) []crawler.FileRecord {
	c.mu.Lock()
	c.calls++
	block := c.block
	recs := append([]crawler.FileRecord(nil), c.records...)
	c.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}
	return recs
}

func (c *fakeCrawler) set(recs ...crawler.FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = recs
}

type fakeExtractor struct {
	mu        sync.Mutex
	calls     map[string]int
	ExtractFn func(rec crawler.FileRecord) (*extract.Result, error)
}

func (e *fakeExtractor) Extract(_ context.Context, rec crawler.FileRecord) (*extract.Result, error) {
	e.mu.Lock()
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[rec.Path]++
	e.mu.Unlock()
	if e.ExtractFn != nil {
		return e.ExtractFn(rec)
	}
	return &extract.Result{Title: "title " + rec.Path, Text: "text of " + rec.Path}, nil
}

func (e *fakeExtractor) count(path string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[path]
}

// memStore keeps one record per path, like the real backends.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]store.Document
	upserts  int
	disabled bool
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]store.Document{}}
}

func (s *memStore) Enabled() bool { return !s.disabled }

func (s *memStore) Upsert(_ context.Context, doc *store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Path] = *doc
	s.upserts++
	return nil
}

func (s *memStore) Record(_ context.Context, path string) (*store.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[path]
	if !ok {
		return nil, store.NotFound(path)
	}
	return &store.DocumentRecord{Path: d.Path, Source: d.Source, MtimeMs: d.MtimeMs, Size: d.Size, Title: d.Title}, nil
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

func (s *memStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}
