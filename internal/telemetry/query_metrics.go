// Package telemetry keeps in-process query statistics: which modes and
// tiers answer, frequent terms, queries that found nothing, and latency.
// Nothing leaves the process.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket maps a duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered search.
type QueryEvent struct {
	Query   string
	Mode    string
	Source  string
	Backend string
	Total   int
	Latency time.Duration
}

// ring is a fixed-capacity FIFO that evicts the oldest entry.
type ring[T any] struct {
	items []T
	head  int
	size  int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) add(v T) {
	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

// newestFirst returns the contents, most recent first.
func (r *ring[T]) newestFirst() []T {
	out := make([]T, 0, r.size)
	for i := 1; i <= r.size; i++ {
		out = append(out, r.items[(r.head-i+len(r.items))%len(r.items)])
	}
	return out
}

// Terms lowercases a query and keeps words of three or more runes.
func Terms(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len([]rune(w)) >= 3 {
			out = append(out, w)
		}
	}
	return out
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the statistics.
type Snapshot struct {
	TotalQueries        int64                   `json:"totalQueries"`
	ZeroResultCount     int64                   `json:"zeroResultCount"`
	ExactRepeatCount    int64                   `json:"exactRepeatCount"`
	ByMode              map[string]int64        `json:"byMode"`
	ByBackend           map[string]int64        `json:"byBackend"`
	BySource            map[string]int64        `json:"bySource"`
	TopTerms            []TermCount             `json:"topTerms"`
	ZeroResultQueries   []string                `json:"zeroResultQueries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latencyDistribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage is the share of queries that found nothing.
func (s Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config sizes the bounded collections.
type Config struct {
	TopTermsCapacity      int
	ZeroResultsCapacity   int
	RecentQueriesCapacity int
	TopTermsReported      int
}

// DefaultConfig returns the stock capacities.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      200,
		ZeroResultsCapacity:   50,
		RecentQueriesCapacity: 500,
		TopTermsReported:      20,
	}
}

// QueryMetrics aggregates QueryEvents. Safe for concurrent use.
type QueryMetrics struct {
	mu sync.Mutex

	cfg         Config
	total       int64
	zero        int64
	repeats     int64
	byMode      map[string]int64
	byBackend   map[string]int64
	bySource    map[string]int64
	latencies   map[LatencyBucket]int64
	terms       *lru.Cache[string, int64]
	recent      *lru.Cache[string, struct{}]
	zeroQueries *ring[string]
	since       time.Time
}

// New creates QueryMetrics. Zero capacities take defaults.
func New(cfg Config) *QueryMetrics {
	d := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = d.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = d.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = d.RecentQueriesCapacity
	}
	if cfg.TopTermsReported <= 0 {
		cfg.TopTermsReported = d.TopTermsReported
	}
	// lru.New only fails on a non-positive size.
	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)
	return &QueryMetrics{
		cfg:         cfg,
		byMode:      map[string]int64{},
		byBackend:   map[string]int64{},
		bySource:    map[string]int64{},
		latencies:   map[LatencyBucket]int64{},
		terms:       terms,
		recent:      recent,
		zeroQueries: newRing[string](cfg.ZeroResultsCapacity),
		since:       time.Now(),
	}
}

// Record adds one event.
func (m *QueryMetrics) Record(ev QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	m.byMode[ev.Mode]++
	if ev.Backend != "" {
		m.byBackend[ev.Backend]++
	}
	if ev.Source != "" {
		m.bySource[ev.Source]++
	}
	m.latencies[LatencyToBucket(ev.Latency)]++

	for _, t := range Terms(ev.Query) {
		n, _ := m.terms.Get(t)
		m.terms.Add(t, n+1)
	}

	key := strings.Join(strings.Fields(strings.ToLower(ev.Query)), " ") + "\x00" + ev.Source
	if m.recent.Contains(key) {
		m.repeats++
	}
	m.recent.Add(key, struct{}{})

	if ev.Total == 0 {
		m.zero++
		m.zeroQueries.add(ev.Query)
	}
}

// Snapshot copies the current statistics.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		TotalQueries:        m.total,
		ZeroResultCount:     m.zero,
		ExactRepeatCount:    m.repeats,
		ByMode:              copyCounts(m.byMode),
		ByBackend:           copyCounts(m.byBackend),
		BySource:            copyCounts(m.bySource),
		ZeroResultQueries:   m.zeroQueries.newestFirst(),
		LatencyDistribution: make(map[LatencyBucket]int64, len(m.latencies)),
		Since:               m.since,
	}
	for k, v := range m.latencies {
		s.LatencyDistribution[k] = v
	}

	for _, t := range m.terms.Keys() {
		if n, ok := m.terms.Peek(t); ok {
			s.TopTerms = append(s.TopTerms, TermCount{Term: t, Count: n})
		}
	}
	sort.SliceStable(s.TopTerms, func(i, j int) bool {
		if s.TopTerms[i].Count != s.TopTerms[j].Count {
			return s.TopTerms[i].Count > s.TopTerms[j].Count
		}
		return s.TopTerms[i].Term < s.TopTerms[j].Term
	})
	if len(s.TopTerms) > m.cfg.TopTermsReported {
		s.TopTerms = s.TopTerms[:m.cfg.TopTermsReported]
	}
	return s
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
