package index

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/lexindex/internal/crawler"
	"github.com/Aman-CERP/lexindex/internal/extract"
	"github.com/Aman-CERP/lexindex/internal/store"
)

func rec(path string, mtime float64) crawler.FileRecord {
	return crawler.FileRecord{Path: path, Source: "mevzuat", MtimeMs: mtime, Size: 10}
}

func newTestIndexer(t *testing.T, c *fakeCrawler, e *fakeExtractor, s *memStore, opts Options) *Indexer {
	t.Helper()
	ix, err := New(c, e, s, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func TestRun_IndexesEveryFile(t *testing.T) {
	// Given three crawled files
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/b.txt", 2), rec("/c.txt", 3))
	s := newMemStore()
	ix := newTestIndexer(t, c, &fakeExtractor{}, s, Options{DataDir: t.TempDir()})

	// When a run completes
	state, err := ix.Run(context.Background(), false)

	// Then every file is stored and the counters add up
	require.NoError(t, err)
	assert.False(t, state.Running)
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Equal(t, 3, state.Total)
	assert.Equal(t, 3, state.Indexed)
	assert.Equal(t, 0, state.Errors)
	assert.NotEmpty(t, state.RunID)
	assert.GreaterOrEqual(t, state.LastRunEnd, state.LastRunStart)
	assert.Equal(t, 3, s.len())
}

func TestRun_IsIdempotent(t *testing.T) {
	// Given a corpus that was already indexed once
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/b.txt", 2))
	e := &fakeExtractor{}
	s := newMemStore()
	ix := newTestIndexer(t, c, e, s, Options{})
	_, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	// When the unchanged corpus is reindexed
	state, err := ix.Run(context.Background(), false)

	// Then nothing is extracted or written again, but files count as indexed
	require.NoError(t, err)
	assert.Equal(t, 2, state.Indexed)
	assert.Equal(t, 1, e.count("/a.txt"))
	assert.Equal(t, 2, s.upsertCount())
	assert.Equal(t, 2, s.len())
}

func TestRun_ReindexesChangedMtime(t *testing.T) {
	// Given an indexed file
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/b.txt", 2))
	e := &fakeExtractor{}
	s := newMemStore()
	ix := newTestIndexer(t, c, e, s, Options{})
	_, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	// When one file's mtime changes
	c.set(rec("/a.txt", 5), rec("/b.txt", 2))
	_, err = ix.Run(context.Background(), false)
	require.NoError(t, err)

	// Then only that file is re-extracted and it keeps one record
	assert.Equal(t, 2, e.count("/a.txt"))
	assert.Equal(t, 1, e.count("/b.txt"))
	stored, err := s.Record(context.Background(), "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.MtimeMs)
	assert.Equal(t, 2, s.len())
}

func TestRun_ForceReextracts(t *testing.T) {
	// Given an indexed corpus
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1))
	e := &fakeExtractor{}
	ix := newTestIndexer(t, c, e, newMemStore(), Options{})
	_, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	// When a forced run happens
	state, err := ix.Run(context.Background(), true)

	// Then unchanged files are extracted again
	require.NoError(t, err)
	assert.True(t, state.Force)
	assert.Equal(t, 2, e.count("/a.txt"))
}

func TestRun_CountsFailuresAndContinues(t *testing.T) {
	// Given one corrupt file among good ones
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/bad.pdf", 1), rec("/c.txt", 1))
	e := &fakeExtractor{ExtractFn: func(r crawler.FileRecord) (*extract.Result, error) {
		if r.Path == "/bad.pdf" {
			return nil, errors.New("corrupt")
		}
		return &extract.Result{Title: r.Path, Text: "ok"}, nil
	}}
	s := newMemStore()
	ix := newTestIndexer(t, c, e, s, Options{})

	// When the run completes
	state, err := ix.Run(context.Background(), false)

	// Then the failure is counted and the others are indexed
	require.NoError(t, err)
	assert.Equal(t, 2, state.Indexed)
	assert.Equal(t, 1, state.Errors)
	assert.Equal(t, 2, s.len())
}

func TestRun_NeverStuckAfterPanic(t *testing.T) {
	// Given an extractor that panics on one file
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/boom.txt", 1))
	e := &fakeExtractor{ExtractFn: func(r crawler.FileRecord) (*extract.Result, error) {
		if r.Path == "/boom.txt" {
			panic("boom")
		}
		return &extract.Result{Text: "ok"}, nil
	}}
	ix := newTestIndexer(t, c, e, newMemStore(), Options{DataDir: t.TempDir()})

	// When the run completes
	state, err := ix.Run(context.Background(), false)

	// Then the job is released and can run again
	require.NoError(t, err)
	assert.False(t, state.Running)
	assert.Equal(t, 1, state.Errors)
	_, err = ix.Run(context.Background(), false)
	require.NoError(t, err)
}

func TestTriggerReindex_SingleFlight(t *testing.T) {
	// Given a run blocked in the crawl phase
	c := &fakeCrawler{block: make(chan struct{})}
	c.set(rec("/a.txt", 1))
	ix := newTestIndexer(t, c, &fakeExtractor{}, newMemStore(), Options{DataDir: t.TempDir()})
	state, started := ix.TriggerReindex(false)
	require.True(t, started)
	assert.True(t, state.Running)

	// When a second run is requested concurrently
	var wg sync.WaitGroup
	results := make(chan bool, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := ix.TriggerReindex(true)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	// Then none of them start, and a synchronous run is refused too
	for ok := range results {
		assert.False(t, ok)
	}
	_, err := ix.Run(context.Background(), false)
	assert.True(t, IsRunning(err))
	assert.True(t, ix.State().Running)

	close(c.block)
	ix.Wait()
	assert.False(t, ix.State().Running)
	c.mu.Lock()
	assert.Equal(t, 1, c.calls)
	c.mu.Unlock()
}

func TestRun_RefusedWhileAnotherProcessHoldsLock(t *testing.T) {
	// Given the data dir lock held elsewhere
	dir := t.TempDir()
	other := flock.New(filepath.Join(dir, LockFileName))
	ok, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = other.Unlock() }()

	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1))
	ix := newTestIndexer(t, c, &fakeExtractor{}, newMemStore(), Options{DataDir: dir})

	// When a run is attempted
	_, err = ix.Run(context.Background(), false)

	// Then it is refused without crawling and the state is idle
	assert.True(t, IsRunning(err))
	assert.False(t, ix.State().Running)
	assert.Equal(t, 0, c.calls)

	// And once released the run proceeds
	require.NoError(t, other.Unlock())
	_, err = ix.Run(context.Background(), false)
	require.NoError(t, err)
}

func TestScheduleStartup_TriggersOnce(t *testing.T) {
	// Given a short startup delay
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1))
	s := newMemStore()
	ix := newTestIndexer(t, c, &fakeExtractor{}, s, Options{})

	// When the delay elapses
	ix.ScheduleStartup(10 * time.Millisecond)

	// Then a run indexes the corpus
	require.Eventually(t, func() bool {
		st := ix.State()
		return !st.Running && st.LastRunEnd > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, s.len())
}

func TestClose_CancelsBackgroundRun(t *testing.T) {
	// Given a run blocked in the crawl
	c := &fakeCrawler{block: make(chan struct{})}
	ix, err := New(c, &fakeExtractor{}, newMemStore(), Options{})
	require.NoError(t, err)
	_, started := ix.TriggerReindex(false)
	require.True(t, started)

	// When the indexer closes
	require.NoError(t, ix.Close())

	// Then the run is released and no new run starts
	assert.False(t, ix.State().Running)
	_, started = ix.TriggerReindex(false)
	assert.False(t, started)
}

func TestRecords_CrawlsOnceBeforeFirstRun(t *testing.T) {
	// Given no run yet
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1))
	ix := newTestIndexer(t, c, &fakeExtractor{}, newMemStore(), Options{})

	// When records are requested twice
	first := ix.Records(context.Background())
	second := ix.Records(context.Background())

	// Then the roots are crawled once
	assert.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.calls)
}

func TestOnProgress_ReportsEveryFile(t *testing.T) {
	// Given a progress callback
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/b.txt", 1))
	var mu sync.Mutex
	var seen []IndexState
	ix := newTestIndexer(t, c, &fakeExtractor{}, newMemStore(), Options{
		OnProgress: func(s IndexState) {
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
		},
	})

	// When a run completes
	_, err := ix.Run(context.Background(), false)
	require.NoError(t, err)

	// Then the last report is the finished state
	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	assert.False(t, last.Running)
	assert.Equal(t, 2, last.Processed())
}

func TestOnProgress_PanicDoesNotStopRun(t *testing.T) {
	// Given a progress callback that panics on every call
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1), rec("/b.txt", 2))
	s := newMemStore()
	ix := newTestIndexer(t, c, &fakeExtractor{}, s, Options{
		OnProgress: func(IndexState) { panic("render failed") },
	})

	// When a run completes
	state, err := ix.Run(context.Background(), false)

	// Then every file is indexed and the job is released
	require.NoError(t, err)
	assert.Equal(t, 2, state.Indexed)
	assert.Equal(t, 0, state.Errors)
	assert.False(t, state.Running)
	assert.Empty(t, state.LastError)
	assert.Equal(t, 2, s.len())
}

func TestRun_DisabledStoreNeverCrawls(t *testing.T) {
	// Given a store with no backend enabled
	c := &fakeCrawler{}
	c.set(rec("/a.txt", 1))
	e := &fakeExtractor{}
	s := newMemStore()
	s.disabled = true
	ix := newTestIndexer(t, c, e, s, Options{DataDir: t.TempDir()})

	// When a run is requested directly and in the background
	state, err := ix.Run(context.Background(), false)
	triggered, started := ix.TriggerReindex(false)

	// Then nothing runs and the state says why
	require.Error(t, err)
	assert.True(t, store.IsIndexingDisabled(err))
	assert.False(t, started)
	assert.Equal(t, PhaseDisabled, state.Phase)
	assert.Equal(t, PhaseDisabled, triggered.Phase)
	assert.False(t, triggered.Running)
	assert.Equal(t, 0, c.calls)
	assert.Equal(t, 0, e.count("/a.txt"))
	assert.Equal(t, 0, s.upsertCount())
}
