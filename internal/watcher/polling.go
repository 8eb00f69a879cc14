package watcher

import (
	"context"
	"time"

	"github.com/Aman-CERP/lexindex/internal/crawler"
)

type snapshot map[string]crawler.FileRecord

func (w *Watcher) crawl(ctx context.Context) snapshot {
	recs := w.filter.Crawl(ctx, w.roots)
	s := make(snapshot, len(recs))
	for _, r := range recs {
		s[r.Path] = r
	}
	return s
}

// poll re-crawls the roots every PollInterval and emits the differences.
func (w *Watcher) poll(ctx context.Context) error {
	prev := w.crawl(ctx)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			cur := w.crawl(ctx)
			for _, ev := range diff(prev, cur) {
				w.debouncer.Add(ev)
			}
			prev = cur
		}
	}
}

func diff(prev, cur snapshot) []FileEvent {
	now := time.Now()
	var events []FileEvent
	for path, rec := range cur {
		old, ok := prev[path]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: path, Source: rec.Source, Operation: OpCreate, Timestamp: now})
		case old.MtimeMs != rec.MtimeMs || old.Size != rec.Size:
			events = append(events, FileEvent{Path: path, Source: rec.Source, Operation: OpModify, Timestamp: now})
		}
	}
	for path, rec := range prev {
		if _, ok := cur[path]; !ok {
			events = append(events, FileEvent{Path: path, Source: rec.Source, Operation: OpDelete, Timestamp: now})
		}
	}
	return events
}
