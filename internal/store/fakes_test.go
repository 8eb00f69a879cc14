package store

import "context"

// fakeBackend is a Backend whose behavior is set per test.
type fakeBackend struct {
	name        string
	UpsertFn    func(ctx context.Context, doc *Document) error
	SearchFn    func(ctx context.Context, q Query) (*Response, error)
	GetByPathFn func(ctx context.Context, path string) (*StoredDocument, error)
	RecordFn    func(ctx context.Context, path string) (*DocumentRecord, error)
	upserts     []string
	closed      bool
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Upsert(ctx context.Context, doc *Document) error {
	f.upserts = append(f.upserts, doc.Path)
	if f.UpsertFn != nil {
		return f.UpsertFn(ctx, doc)
	}
	return nil
}

func (f *fakeBackend) Search(ctx context.Context, q Query) (*Response, error) {
	if f.SearchFn != nil {
		return f.SearchFn(ctx, q)
	}
	return &Response{Facets: map[string]int{}}, nil
}

func (f *fakeBackend) GetByPath(ctx context.Context, path string) (*StoredDocument, error) {
	if f.GetByPathFn != nil {
		return f.GetByPathFn(ctx, path)
	}
	return nil, NotFound(path)
}

func (f *fakeBackend) Record(ctx context.Context, path string) (*DocumentRecord, error) {
	if f.RecordFn != nil {
		return f.RecordFn(ctx, path)
	}
	return nil, NotFound(path)
}

func (f *fakeBackend) CountsBySource(context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeBackend) List(context.Context, int) ([]DocumentRecord, error) {
	return nil, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}
