package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/lexindex/internal/crawler"
)

// Operation is the kind of change observed on a path.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent is one observed change. Path is absolute.
type FileEvent struct {
	Path      string
	Source    string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Filter decides which paths matter. *crawler.Crawler implements it.
type Filter interface {
	Admits(root crawler.Root, path string) bool
	ExcludedDir(root crawler.Root, path string) bool
	Crawl(ctx context.Context, roots []crawler.Root) []crawler.FileRecord
}

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period before a batch is emitted.
	Debounce time.Duration
	// PollInterval is the re-crawl period when fsnotify is unavailable.
	PollInterval time.Duration
	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the stock watcher settings.
func DefaultOptions() Options {
	return Options{
		Debounce:     2 * time.Second,
		PollInterval: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	return o
}

// Watcher observes a set of document roots.
type Watcher struct {
	roots     []crawler.Root
	filter    Filter
	opts      Options
	fsw       *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

// New creates a Watcher. It falls back to polling when fsnotify cannot be
// initialized.
func New(roots []crawler.Root, filter Filter, opts Options) (*Watcher, error) {
	if filter == nil {
		return nil, errors.New("watcher filter is required")
	}
	opts = opts.withDefaults()
	w := &Watcher{
		roots:     cleanRoots(roots),
		filter:    filter,
		opts:      opts,
		debouncer: NewDebouncer(opts.Debounce),
		stopCh:    make(chan struct{}),
	}
	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify unavailable, polling instead", slog.String("error", err.Error()))
		} else {
			w.fsw = fsw
		}
	}
	return w, nil
}

func cleanRoots(roots []crawler.Root) []crawler.Root {
	out := make([]crawler.Root, 0, len(roots))
	for _, r := range roots {
		if abs, err := filepath.Abs(r.Path); err == nil {
			r.Path = abs
		}
		out = append(out, r)
	}
	return out
}

// Mode reports "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Events delivers debounced batches. Closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Start watches until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w.fsw == nil {
		return w.poll(ctx)
	}

	watched := 0
	for _, root := range w.roots {
		if info, err := os.Stat(root.Path); err != nil || !info.IsDir() {
			slog.Warn("not watching missing root", slog.String("path", root.Path))
			continue
		}
		watched += w.addTree(root, root.Path)
	}
	slog.Info("watching document roots",
		slog.Int("roots", len(w.roots)),
		slog.Int("directories", watched))

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// addTree adds dir and every non-pruned directory below it.
func (w *Watcher) addTree(root crawler.Root, dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != root.Path && w.filter.ExcludedDir(root, path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			slog.Debug("cannot watch directory", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		n++
		return nil
	})
	return n
}

// rootOf returns the deepest root containing path.
func (w *Watcher) rootOf(path string) (crawler.Root, bool) {
	var best crawler.Root
	found := false
	for _, r := range w.roots {
		if path == r.Path || strings.HasPrefix(path, r.Path+string(filepath.Separator)) {
			if !found || len(r.Path) > len(best.Path) {
				best, found = r, true
			}
		}
	}
	return best, found
}

func (w *Watcher) handle(ev fsnotify.Event) {
	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	root, ok := w.rootOf(ev.Name)
	if !ok {
		return
	}
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		if w.filter.ExcludedDir(root, ev.Name) {
			return
		}
		if op == OpCreate {
			w.addTree(root, ev.Name)
		}
	} else if !w.filter.Admits(root, ev.Name) {
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      ev.Name,
		Source:    crawler.NormalizeSource(root.Source),
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// Stop releases the watcher. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
