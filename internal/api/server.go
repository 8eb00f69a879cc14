// Package api serves search, document fetch, listing and reindex control
// over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/search"
	"github.com/Aman-CERP/lexindex/internal/store"
	"github.com/Aman-CERP/lexindex/internal/telemetry"
)

// Searcher answers queries.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*store.Response, error)
	GetByPath(ctx context.Context, path string) (*store.StoredDocument, error)
	List(ctx context.Context, limit int) ([]store.DocumentRecord, error)
}

// Reindexer controls the reindex job.
type Reindexer interface {
	State() index.IndexState
	TriggerReindex(force bool) (index.IndexState, bool)
}

// Counter reports stored documents per source.
type Counter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

// StatsSource reports in-process query statistics.
type StatsSource interface {
	Snapshot() telemetry.Snapshot
}

// Options configures a Server.
type Options struct {
	EnableOCR    bool
	EnableRemote bool
	// MountPrefix serves the API a second time under this path.
	MountPrefix string
	// RateLimitPerMin bounds /search per client. Zero disables it.
	RateLimitPerMin int
	// Stats enables GET /stats when set.
	Stats StatsSource
}

// Server is the HTTP API.
type Server struct {
	searcher  Searcher
	reindexer Reindexer
	counter   Counter
	opts      Options
	limiter   *clientLimiter
	policy    *bluemonday.Policy
}

// New creates a Server. counter may be nil.
func New(searcher Searcher, reindexer Reindexer, counter Counter, opts Options) *Server {
	s := &Server{
		searcher:  searcher,
		reindexer: reindexer,
		counter:   counter,
		opts:      opts,
		policy:    snippetPolicy(),
	}
	if opts.RateLimitPerMin > 0 {
		s.limiter = newClientLimiter(opts.RateLimitPerMin, time.Now)
	}
	return s
}

// snippetPolicy keeps highlight tags and strips all other markup.
func snippetPolicy() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AllowElements("mark")
	return p
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(noSniff)

	s.routes(r)
	if s.opts.MountPrefix != "" && s.opts.MountPrefix != "/" {
		r.Route(s.opts.MountPrefix, s.routes)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	return r
}

func (s *Server) routes(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.With(s.rateLimit).Get("/search", s.handleSearch)
	r.Get("/doc", s.handleDoc)
	r.Get("/list", s.handleList)
	r.Get("/index-status", s.handleStatus)
	r.Post("/reindex", s.handleReindex)
	if s.opts.Stats != nil {
		r.Get("/stats", s.handleStats)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http api listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
