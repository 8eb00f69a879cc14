package store

import (
	"context"
	"errors"
	"log/slog"
)

// IndexStore combines the embedded backend of record with an optional
// remote mirror. Writes go to both; a failed remote write is logged and
// does not fail the upsert. Either side may be nil.
type IndexStore struct {
	embedded Backend
	remote   Backend
}

// NewIndexStore creates an IndexStore.
func NewIndexStore(embedded, remote Backend) *IndexStore {
	return &IndexStore{embedded: embedded, remote: remote}
}

// Embedded returns the embedded backend, or nil.
func (s *IndexStore) Embedded() Backend { return s.embedded }

// Remote returns the remote backend, or nil.
func (s *IndexStore) Remote() Backend { return s.remote }

// Chain returns the configured backends in query preference order:
// remote first, then embedded.
func (s *IndexStore) Chain() []Backend {
	var out []Backend
	if s.remote != nil {
		out = append(out, s.remote)
	}
	if s.embedded != nil {
		out = append(out, s.embedded)
	}
	return out
}

// Enabled reports whether any backend accepts writes.
func (s *IndexStore) Enabled() bool {
	return s.embedded != nil || s.remote != nil
}

// Upsert writes doc to the embedded backend and mirrors it to the remote.
// Only an embedded failure is returned; with no embedded backend the
// remote error is returned instead. With neither it is an
// ErrCodeIndexingDisabled error.
func (s *IndexStore) Upsert(ctx context.Context, doc *Document) error {
	if !s.Enabled() {
		return IndexingDisabled()
	}
	if s.embedded != nil {
		if err := s.embedded.Upsert(ctx, doc); err != nil {
			return err
		}
	}
	if s.remote == nil {
		return nil
	}
	if err := s.remote.Upsert(ctx, doc); err != nil {
		if s.embedded == nil {
			return err
		}
		slog.Warn("remote upsert failed",
			slog.String("path", doc.Path),
			slog.String("error", err.Error()))
	}
	return nil
}

// Record returns the stored metadata for path from the backend of record.
func (s *IndexStore) Record(ctx context.Context, path string) (*DocumentRecord, error) {
	switch {
	case s.embedded != nil:
		return s.embedded.Record(ctx, path)
	case s.remote != nil:
		return s.remote.Record(ctx, path)
	default:
		return nil, NotFound(path)
	}
}

// Counts returns per-source document counts from the backend of record.
func (s *IndexStore) Counts(ctx context.Context) (map[string]int, error) {
	switch {
	case s.embedded != nil:
		return s.embedded.CountsBySource(ctx)
	case s.remote != nil:
		return s.remote.CountsBySource(ctx)
	default:
		return map[string]int{}, nil
	}
}

// Close closes both backends.
func (s *IndexStore) Close() error {
	var errs []error
	if s.remote != nil {
		errs = append(errs, s.remote.Close())
	}
	if s.embedded != nil {
		errs = append(errs, s.embedded.Close())
	}
	return errors.Join(errs...)
}
