// Package index runs the reindex job: crawl the roots, extract each file
// and upsert it into the stores, one run at a time.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/lexindex/internal/crawler"
	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
	"github.com/Aman-CERP/lexindex/internal/extract"
	"github.com/Aman-CERP/lexindex/internal/store"
)

// Crawler lists the files under the roots.
type Crawler interface {
	Crawl(ctx context.Context, roots []crawler.Root) []crawler.FileRecord
}

// Extractor turns a file into text.
type Extractor interface {
	Extract(ctx context.Context, rec crawler.FileRecord) (*extract.Result, error)
}

// Store receives extracted documents. A store that is not Enabled has no
// backend to write to.
type Store interface {
	Enabled() bool
	Upsert(ctx context.Context, doc *store.Document) error
	Record(ctx context.Context, path string) (*store.DocumentRecord, error)
}

// Options configures an Indexer.
type Options struct {
	Roots []crawler.Root
	// Workers bounds concurrent extractions. Defaults to 4.
	Workers int
	// DataDir holds the cross-process lock. Empty disables it.
	DataDir string
	// OnProgress is called after every file with the current state. It may
	// be called from several workers at once.
	OnProgress func(IndexState)
}

// Indexer owns the reindex job and its run state.
type Indexer struct {
	crawler   Crawler
	extractor Extractor
	store     Store
	opts      Options
	lock      *RunLock
	state     *RunState

	recMu   sync.RWMutex
	records []crawler.FileRecord
	crawled bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	timerMu sync.Mutex
	timer   *time.Timer
}

// New creates an Indexer.
func New(c Crawler, e Extractor, s Store, opts Options) (*Indexer, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	lock, err := NewRunLock(opts.DataDir)
	if err != nil {
		return nil, err
	}
	state := newRunState()
	if !s.Enabled() {
		state.s.Phase = PhaseDisabled
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		crawler:   c,
		extractor: e,
		store:     s,
		opts:      opts,
		lock:      lock,
		state:     state,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// State returns a snapshot of the run state.
func (ix *Indexer) State() IndexState {
	return ix.state.Snapshot()
}

// Roots returns the configured roots.
func (ix *Indexer) Roots() []crawler.Root {
	return ix.opts.Roots
}

// errRunning is returned when a reindex is already in progress.
func errRunning(holder string) error {
	e := lexerrors.New(lexerrors.ErrCodeReindexRunning, "reindex already running", nil)
	if holder != "" {
		e = e.WithDetail("holder", holder)
	}
	return e
}

// IsRunning reports whether err means another run holds the job.
func IsRunning(err error) bool {
	return lexerrors.HasCode(err, lexerrors.ErrCodeReindexRunning)
}

// claim takes the in-process guard and then the cross-process lock.
func (ix *Indexer) claim() error {
	if !ix.store.Enabled() {
		return store.IndexingDisabled()
	}
	if !ix.state.tryStart() {
		return errRunning("")
	}
	ok, err := ix.lock.TryLock()
	if err != nil {
		ix.state.abort()
		return lexerrors.Wrap(lexerrors.ErrCodeIndexFailed, fmt.Errorf("take reindex lock: %w", err))
	}
	if !ok {
		ix.state.abort()
		return errRunning(ix.lock.Path())
	}
	return nil
}

// Run reindexes synchronously. It returns an ErrCodeReindexRunning error
// when a run is already in progress here or in another process, and an
// ErrCodeIndexingDisabled error when no backend is enabled.
func (ix *Indexer) Run(ctx context.Context, force bool) (IndexState, error) {
	if err := ix.claim(); err != nil {
		return ix.State(), err
	}
	ix.execute(ctx, force)
	return ix.State(), nil
}

// TriggerReindex starts a background run and reports whether it started.
// When a run is already in progress, or indexing is disabled, nothing is
// started and the current state is returned; the latter reports
// PhaseDisabled.
func (ix *Indexer) TriggerReindex(force bool) (IndexState, bool) {
	if ix.ctx.Err() != nil {
		return ix.State(), false
	}
	if err := ix.claim(); err != nil {
		if !IsRunning(err) && !store.IsIndexingDisabled(err) {
			slog.Warn("reindex not started", slog.String("error", err.Error()))
		}
		return ix.State(), false
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ix.execute(ix.ctx, force)
	}()
	return ix.State(), true
}

// ScheduleStartup triggers a non-forced run after delay.
func (ix *Indexer) ScheduleStartup(delay time.Duration) {
	ix.timerMu.Lock()
	defer ix.timerMu.Unlock()
	if ix.timer != nil {
		ix.timer.Stop()
	}
	ix.timer = time.AfterFunc(delay, func() {
		if _, started := ix.TriggerReindex(false); !started {
			slog.Debug("startup reindex skipped")
		}
	})
}

// Wait blocks until background runs finish.
func (ix *Indexer) Wait() {
	ix.wg.Wait()
}

// Close cancels any background run and waits for it to stop.
func (ix *Indexer) Close() error {
	ix.timerMu.Lock()
	if ix.timer != nil {
		ix.timer.Stop()
	}
	ix.timerMu.Unlock()
	ix.cancel()
	ix.wg.Wait()
	return nil
}

// Records returns the files seen by the last crawl. Before any run has
// crawled, the roots are crawled once on demand.
func (ix *Indexer) Records(ctx context.Context) []crawler.FileRecord {
	ix.recMu.RLock()
	if ix.crawled {
		out := ix.records
		ix.recMu.RUnlock()
		return out
	}
	ix.recMu.RUnlock()

	recs := ix.crawler.Crawl(ctx, ix.opts.Roots)
	ix.setRecords(recs)
	return recs
}

func (ix *Indexer) setRecords(recs []crawler.FileRecord) {
	ix.recMu.Lock()
	ix.records = recs
	ix.crawled = true
	ix.recMu.Unlock()
}

// execute runs one claimed reindex. The run state is always released.
func (ix *Indexer) execute(ctx context.Context, force bool) {
	runID := uuid.NewString()
	ix.state.begin(runID, force)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			ix.state.setError(fmt.Sprintf("reindex panicked: %v", r))
			slog.Error("reindex panicked",
				slog.String("run_id", runID),
				slog.Any("panic", r))
		}
		if err := ix.lock.Unlock(); err != nil {
			slog.Warn("release reindex lock", slog.String("error", err.Error()))
		}
		ix.state.finish()
		s := ix.state.Snapshot()
		slog.Info("reindex finished",
			slog.String("run_id", runID),
			slog.Int("total", s.Total),
			slog.Int("indexed", s.Indexed),
			slog.Int("errors", s.Errors),
			slog.Duration("duration", time.Since(start)))
		ix.progress()
	}()

	slog.Info("reindex started",
		slog.String("run_id", runID),
		slog.Bool("force", force),
		slog.Int("roots", len(ix.opts.Roots)))

	recs := ix.crawler.Crawl(ctx, ix.opts.Roots)
	ix.setRecords(recs)
	ix.state.setTotal(len(recs))
	ix.progress()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Workers)
	for _, rec := range recs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ix.indexOne(gctx, rec, force)
			ix.progress()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		ix.state.setError("reindex cancelled")
	}
}

// indexOne extracts and upserts a single file. Failures are counted and
// never stop the run.
func (ix *Indexer) indexOne(ctx context.Context, rec crawler.FileRecord, force bool) {
	defer func() {
		if r := recover(); r != nil {
			ix.state.addError()
			slog.Warn("indexing file panicked",
				slog.String("path", rec.Path),
				slog.Any("panic", r))
		}
	}()

	if !force {
		stored, err := ix.store.Record(ctx, rec.Path)
		if err == nil && stored.MtimeMs == rec.MtimeMs {
			ix.state.addIndexed()
			slog.Debug("unchanged, skipped", slog.String("path", rec.Path))
			return
		}
	}

	res, err := ix.extractor.Extract(ctx, rec)
	if err != nil {
		ix.state.addError()
		slog.Warn("extract failed",
			slog.String("path", rec.Path),
			slog.String("source", rec.Source),
			slog.String("error", err.Error()))
		return
	}

	doc := &store.Document{
		Path:    rec.Path,
		Source:  rec.Source,
		MtimeMs: rec.MtimeMs,
		Size:    rec.Size,
		Title:   res.Title,
		Content: res.Text,
	}
	if err := ix.store.Upsert(ctx, doc); err != nil {
		ix.state.addError()
		slog.Warn("upsert failed",
			slog.String("path", rec.Path),
			slog.String("error", err.Error()))
		return
	}
	ix.state.addIndexed()
}

// progress reports the current state. A panicking callback is logged and
// does not affect the run.
func (ix *Indexer) progress() {
	if ix.opts.OnProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("progress callback panicked", slog.Any("panic", r))
		}
	}()
	ix.opts.OnProgress(ix.state.Snapshot())
}
