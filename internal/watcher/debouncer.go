package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer collects events and emits them as one batch once no new event
// has arrived for the window. Events for the same path are merged:
//   - CREATE then MODIFY stays CREATE
//   - CREATE then DELETE drops the path
//   - DELETE then CREATE becomes MODIFY
//   - anything else keeps the latest operation
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]FileEvent
	order   []string
	timer   *time.Timer
	out     chan []FileEvent
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]FileEvent),
		out:     make(chan []FileEvent, 8),
	}
}

// Add records an event and restarts the quiet window.
func (d *Debouncer) Add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	prev, seen := d.pending[ev.Path]
	switch {
	case !seen:
		d.pending[ev.Path] = ev
		d.order = append(d.order, ev.Path)
	case prev.Operation == OpCreate && ev.Operation == OpModify:
		// still new
	case prev.Operation == OpCreate && ev.Operation == OpDelete:
		delete(d.pending, ev.Path)
	case prev.Operation == OpDelete && ev.Operation == OpCreate:
		ev.Operation = OpModify
		d.pending[ev.Path] = ev
	default:
		d.pending[ev.Path] = ev
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		d.order = d.order[:0]
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, p := range d.order {
		if ev, ok := d.pending[p]; ok {
			batch = append(batch, ev)
			delete(d.pending, p)
		}
	}
	d.order = d.order[:0]

	select {
	case d.out <- batch:
	default:
		slog.Warn("watcher batch dropped, consumer is behind", slog.Int("events", len(batch)))
	}
}

// Output delivers batches in arrival order of their first event.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.out
}

// Stop discards pending events and closes Output. Safe to call twice.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.out)
}
