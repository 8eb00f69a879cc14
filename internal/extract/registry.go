package extract

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// Registry maps lowercased extensions to strategies. Extensions without
// a registered strategy use the fallback.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	fallback   Strategy
}

// NewRegistry creates a registry. A nil fallback rejects unknown formats
// with ErrCodeUnsupportedFormat.
func NewRegistry(fallback Strategy) *Registry {
	if fallback == nil {
		fallback = StrategyFunc(rejectUnsupported)
	}
	return &Registry{
		strategies: make(map[string]Strategy),
		fallback:   fallback,
	}
}

// Register binds s to each extension (with or without the leading dot).
func (r *Registry) Register(s Strategy, exts ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range exts {
		r.strategies[normalizeExt(ext)] = s
	}
}

// Lookup returns the strategy for ext and whether it was registered.
func (r *Registry) Lookup(ext string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.strategies[normalizeExt(ext)]; ok {
		return s, true
	}
	return r.fallback, false
}

// Extensions lists the registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.strategies))
	for ext := range r.strategies {
		out = append(out, ext)
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func rejectUnsupported(_ context.Context, path string) (*Result, error) {
	return nil, lexerrors.New(lexerrors.ErrCodeUnsupportedFormat,
		"unsupported format "+filepath.Ext(path), nil)
}
