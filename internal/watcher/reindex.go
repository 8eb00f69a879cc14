package watcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/lexindex/internal/index"
)

// Reindexer starts a background reindex. *index.Indexer implements it.
type Reindexer interface {
	TriggerReindex(force bool) (index.IndexState, bool)
}

// Run starts w and triggers an incremental reindex after every debounced
// batch. A batch that arrives while a run is in progress is retried each
// debounce window until a run starts. Run returns when ctx ends.
func Run(ctx context.Context, w *Watcher, r Reindexer) error {
	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	var retry <-chan time.Time
	pending := false
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			slog.Info("document changes detected",
				slog.Int("events", len(batch)),
				slog.String("first", batch[0].Path))
			pending = true
		case <-retry:
			retry = nil
		}

		if !pending {
			continue
		}
		state, started := r.TriggerReindex(false)
		if started || state.Phase == index.PhaseDisabled {
			if !started {
				slog.Warn("indexing is disabled, ignoring watched changes")
			}
			pending = false
			retry = nil
			continue
		}
		slog.Debug("reindex already running, deferring watched changes")
		retry = time.After(w.opts.Debounce)
	}
}
