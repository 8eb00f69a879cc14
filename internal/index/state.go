package index

import (
	"sync"
	"time"
)

// Phase is the stage of a reindex run.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseCrawling Phase = "crawling"
	PhaseIndexing Phase = "indexing"
	// PhaseDisabled means no backend is enabled and runs never start.
	PhaseDisabled Phase = "disabled"
)

// IndexState is an immutable snapshot of the reindex job. Times are Unix
// milliseconds; zero means never.
type IndexState struct {
	Running      bool   `json:"running"`
	Phase        Phase  `json:"phase"`
	RunID        string `json:"runId,omitempty"`
	Force        bool   `json:"force"`
	Total        int    `json:"total"`
	Indexed      int    `json:"indexed"`
	Errors       int    `json:"errors"`
	LastRunStart int64  `json:"lastRunStart"`
	LastRunEnd   int64  `json:"lastRunEnd"`
	LastError    string `json:"lastError,omitempty"`
}

// RunState tracks the reindex job. Only the Indexer mutates it; everyone
// else reads snapshots.
type RunState struct {
	mu  sync.RWMutex
	s   IndexState
	now func() time.Time
}

func newRunState() *RunState {
	return &RunState{s: IndexState{Phase: PhaseIdle}, now: time.Now}
}

// tryStart claims the job. It returns false if a run is in progress.
func (r *RunState) tryStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s.Running {
		return false
	}
	r.s.Running = true
	return true
}

// abort releases a claim that never began a run.
func (r *RunState) abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Running = false
	r.s.Phase = PhaseIdle
}

// begin resets the counters for a new run.
func (r *RunState) begin(runID string, force bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s = IndexState{
		Running:      true,
		Phase:        PhaseCrawling,
		RunID:        runID,
		Force:        force,
		LastRunStart: r.now().UnixMilli(),
		LastRunEnd:   r.s.LastRunEnd,
	}
}

func (r *RunState) setTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Total = n
	r.s.Phase = PhaseIndexing
}

func (r *RunState) addIndexed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Indexed++
}

func (r *RunState) addError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Errors++
}

func (r *RunState) setError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.LastError = msg
}

// finish ends the run. It must run on every exit path.
func (r *RunState) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Running = false
	r.s.Phase = PhaseIdle
	r.s.LastRunEnd = r.now().UnixMilli()
}

// Snapshot returns a copy of the current state.
func (r *RunState) Snapshot() IndexState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.s
}

// Processed is the number of files finished in the current run.
func (s IndexState) Processed() int {
	return s.Indexed + s.Errors
}
