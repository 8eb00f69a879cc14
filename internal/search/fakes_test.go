package search

import (
	"context"
	"errors"
	"sync"

	"github.com/Aman-CERP/lexindex/internal/crawler"
	"github.com/Aman-CERP/lexindex/internal/extract"
	"github.com/Aman-CERP/lexindex/internal/store"
)

type fakeBackend struct {
	name     string
	SearchFn func(q store.Query) (*store.Response, error)
	GetFn    func(path string) (*store.StoredDocument, error)
	ListFn   func(limit int) ([]store.DocumentRecord, error)
	ftsOnly  bool
	mu       sync.Mutex
	queries  []store.Query
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) SupportsMode(m store.Mode) bool { return !f.ftsOnly || m == store.ModeFTS }

func (f *fakeBackend) Upsert(context.Context, *store.Document) error { return nil }

func (f *fakeBackend) Search(_ context.Context, q store.Query) (*store.Response, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.SearchFn != nil {
		return f.SearchFn(q)
	}
	return &store.Response{Total: 1, Results: []store.Hit{{Path: "/" + f.name}}}, nil
}

func (f *fakeBackend) GetByPath(_ context.Context, path string) (*store.StoredDocument, error) {
	if f.GetFn != nil {
		return f.GetFn(path)
	}
	return nil, store.NotFound(path)
}

func (f *fakeBackend) Record(_ context.Context, path string) (*store.DocumentRecord, error) {
	return nil, store.NotFound(path)
}

func (f *fakeBackend) CountsBySource(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeBackend) List(_ context.Context, limit int) ([]store.DocumentRecord, error) {
	if f.ListFn != nil {
		return f.ListFn(limit)
	}
	return nil, errors.New("list not supported")
}

func (f *fakeBackend) Close() error { return nil }

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func down(name string) *fakeBackend {
	return &fakeBackend{name: name, SearchFn: func(store.Query) (*store.Response, error) {
		return nil, store.Unavailable(name, errors.New("connection refused"))
	}}
}

type staticRecords []crawler.FileRecord

func (s staticRecords) Records(context.Context) []crawler.FileRecord { return s }

// mapExtractor serves text from memory keyed by path.
type mapExtractor struct {
	texts map[string]string
	mu    sync.Mutex
	calls int
}

func (m *mapExtractor) Extract(_ context.Context, rec crawler.FileRecord) (*extract.Result, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	text, ok := m.texts[rec.Path]
	if !ok {
		return nil, errors.New("unreadable")
	}
	return &extract.Result{Title: "T " + rec.Path, Text: text}, nil
}
