package extract

import (
	"context"
	"path/filepath"
)

// LegacyDocStrategy marks binary .doc files as indexed-but-unextracted.
// The placeholder text makes the skip visible in search results and
// document fetches.
type LegacyDocStrategy struct{}

// Extract implements Strategy.
func (LegacyDocStrategy) Extract(_ context.Context, path string) (*Result, error) {
	return &Result{
		Title:       filepath.Base(path),
		Text:        UnsupportedDocMarker,
		Unsupported: true,
	}, nil
}
