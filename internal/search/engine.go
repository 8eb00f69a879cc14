// Package search answers queries by walking an ordered chain of backends:
// the remote index when reachable, then the embedded index, then an
// in-memory scan of the crawled files.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
	"github.com/Aman-CERP/lexindex/internal/store"
	"github.com/Aman-CERP/lexindex/internal/telemetry"
)

// Request is a search as received from a caller.
type Request struct {
	Query  string
	Source string
	Limit  int
	Mode   store.Mode
}

// Options configures an Engine.
type Options struct {
	// MaxTerms caps the number of query terms. Defaults to 8.
	MaxTerms     int
	DefaultLimit int
	MaxLimit     int
	ListDefault  int
	ListMax      int
	// Recorder, when set, receives one event per answered search.
	Recorder Recorder
}

// Recorder collects query statistics.
type Recorder interface {
	Record(telemetry.QueryEvent)
}

func (o Options) withDefaults() Options {
	if o.MaxTerms <= 0 {
		o.MaxTerms = 8
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 20
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 50
	}
	if o.ListDefault <= 0 {
		o.ListDefault = 100
	}
	if o.ListMax <= 0 {
		o.ListMax = 500
	}
	return o
}

// Engine is the query entry point shared by the API, MCP and CLI.
type Engine struct {
	chain []store.Backend
	scan  store.Backend
	opts  Options
}

// NewEngine creates an Engine over chain, tried in order, with scan as the
// final tier. Nil backends are dropped; scan may be nil.
func NewEngine(chain []store.Backend, scan store.Backend, opts Options) *Engine {
	e := &Engine{scan: scan, opts: opts.withDefaults()}
	for _, b := range chain {
		if b != nil {
			e.chain = append(e.chain, b)
		}
	}
	return e
}

// Backends returns the chain including the scan tier.
func (e *Engine) Backends() []store.Backend {
	out := append([]store.Backend(nil), e.chain...)
	if e.scan != nil {
		out = append(out, e.scan)
	}
	return out
}

// modeCapable is implemented by backends that only honor some modes.
type modeCapable interface {
	SupportsMode(store.Mode) bool
}

func supports(b store.Backend, m store.Mode) bool {
	if mc, ok := b.(modeCapable); ok {
		return mc.SupportsMode(m)
	}
	return true
}

// Normalize validates req and turns it into a backend query.
func (e *Engine) Normalize(req Request) (store.Query, error) {
	text := strings.TrimSpace(req.Query)
	if text == "" {
		return store.Query{}, lexerrors.New(lexerrors.ErrCodeQueryEmpty, "q parameter is required", nil)
	}
	mode := req.Mode
	if mode == "" {
		mode = store.ModeFTS
	}
	limit := req.Limit
	switch {
	case limit <= 0:
		limit = e.opts.DefaultLimit
	case limit > e.opts.MaxLimit:
		limit = e.opts.MaxLimit
	}
	return store.Query{
		Text:   text,
		Terms:  store.Terms(text, e.opts.MaxTerms),
		Source: strings.ToLower(strings.TrimSpace(req.Source)),
		Limit:  limit,
		Mode:   mode,
	}, nil
}

// Search runs req against the first backend that answers. A backend
// error moves on to the next tier; when every tier fails the result is
// empty rather than an error. Only an invalid request is an error.
func (e *Engine) Search(ctx context.Context, req Request) (*store.Response, error) {
	q, err := e.Normalize(req)
	if err != nil {
		return nil, err
	}

	var tiers []store.Backend
	if q.Mode != store.ModeScan {
		for _, b := range e.chain {
			if supports(b, q.Mode) {
				tiers = append(tiers, b)
			}
		}
	}
	if e.scan != nil {
		tiers = append(tiers, e.scan)
	}

	began := time.Now()
	for _, b := range tiers {
		start := time.Now()
		resp, err := b.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logTierFailure(b, err)
			continue
		}
		resp.Backend = b.Name()
		if resp.Facets == nil {
			resp.Facets = map[string]int{}
		}
		if resp.Results == nil {
			resp.Results = []store.Hit{}
		}
		slog.Debug("search answered",
			slog.String("backend", b.Name()),
			slog.String("mode", string(q.Mode)),
			slog.Int("total", resp.Total),
			slog.Duration("duration", time.Since(start)))
		e.record(q, resp, began)
		return resp, nil
	}
	resp := &store.Response{Facets: map[string]int{}, Results: []store.Hit{}}
	e.record(q, resp, began)
	return resp, nil
}

func (e *Engine) record(q store.Query, resp *store.Response, began time.Time) {
	if e.opts.Recorder == nil {
		return
	}
	e.opts.Recorder.Record(telemetry.QueryEvent{
		Query:   q.Text,
		Mode:    string(q.Mode),
		Source:  q.Source,
		Backend: resp.Backend,
		Total:   resp.Total,
		Latency: time.Since(began),
	})
}

// GetByPath returns the first stored copy of path along the chain.
func (e *Engine) GetByPath(ctx context.Context, path string) (*store.StoredDocument, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, lexerrors.New(lexerrors.ErrCodeInvalidPath, "path parameter is required", nil)
	}
	for _, b := range e.Backends() {
		doc, err := b.GetByPath(ctx, path)
		if err == nil {
			return doc, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !store.IsNotFound(err) {
			logTierFailure(b, err)
		}
	}
	return nil, store.NotFound(path)
}

// ListLimit clamps a list limit.
func (e *Engine) ListLimit(n int) int {
	switch {
	case n <= 0:
		return e.opts.ListDefault
	case n > e.opts.ListMax:
		return e.opts.ListMax
	}
	return n
}

// List returns recent documents, newest first, from the first tier that
// answers.
func (e *Engine) List(ctx context.Context, limit int) ([]store.DocumentRecord, error) {
	limit = e.ListLimit(limit)
	for _, b := range e.Backends() {
		recs, err := b.List(ctx, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logTierFailure(b, err)
			continue
		}
		return recs, nil
	}
	return []store.DocumentRecord{}, nil
}

func logTierFailure(b store.Backend, err error) {
	level := slog.LevelWarn
	if store.IsUnavailable(err) {
		level = slog.LevelDebug
	}
	slog.Log(context.Background(), level, "backend failed, trying next",
		slog.String("backend", b.Name()),
		slog.String("error", err.Error()))
}
