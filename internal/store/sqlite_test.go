package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore("", DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, b Backend, docs ...*Document) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, b.Upsert(context.Background(), d))
	}
}

func legalCorpus() []*Document {
	return []*Document{
		{Path: "/corpus/mevzuat/tbk.txt", Source: "mevzuat", MtimeMs: 100, Size: 10,
			Title: "Türk Borçlar Kanunu", Content: "Kira sözleşmesi ve kira bedeli ile kira süresi düzenlenir."},
		{Path: "/corpus/yargi/karar1.txt", Source: "yargi", MtimeMs: 300, Size: 20,
			Title: "Yargıtay 3. HD", Content: "Davacı kira alacağının tahsilini talep etmiştir."},
		{Path: "/corpus/yargi/karar2.txt", Source: "yargi", MtimeMs: 200, Size: 30,
			Title: "Yargıtay 9. HD", Content: "İşçinin kıdem tazminatı talebi kabul edilmiştir."},
	}
}

func TestSQLiteStore_SearchRanksAndHighlights(t *testing.T) {
	// Given: a small legal corpus
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	// When: searching for "kira"
	resp, err := s.Search(context.Background(), Query{Text: "kira", Terms: []string{"kira"}, Limit: 10})

	// Then: both matching documents come back with marked snippets
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, map[string]int{"mevzuat": 1, "yargi": 1}, resp.Facets)
	for _, h := range resp.Results {
		assert.Contains(t, strings.ToLower(h.Snippet), "<mark>kira")
	}
	// And: the document mentioning kira three times ranks first
	assert.Equal(t, "/corpus/mevzuat/tbk.txt", resp.Results[0].Path)
	assert.Greater(t, resp.Results[0].Rank, resp.Results[1].Rank)
}

func TestSQLiteStore_SourceFilterKeepsFacets(t *testing.T) {
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	resp, err := s.Search(context.Background(), Query{Text: "kira", Source: "yargi", Limit: 10})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "yargi", resp.Results[0].Source)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, map[string]int{"mevzuat": 1, "yargi": 1}, resp.Facets)
}

func TestSQLiteStore_TotalCountsBeyondLimit(t *testing.T) {
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	resp, err := s.Search(context.Background(), Query{Text: "kira", Limit: 1})

	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, 2, resp.Total)
}

func TestSQLiteStore_SubstringFallback(t *testing.T) {
	// Given: a word only present as part of a longer token
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	// When: the ranked query finds nothing
	resp, err := s.Search(context.Background(), Query{Text: "tazmina", Limit: 10})

	// Then: the substring scan finds it
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/corpus/yargi/karar2.txt", resp.Results[0].Path)
	assert.Contains(t, resp.Results[0].Snippet, "<mark>tazmina</mark>tı")
	assert.Equal(t, map[string]int{"yargi": 1}, resp.Facets)
}

func TestSQLiteStore_LikeModeFoldsUnicodeCase(t *testing.T) {
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	resp, err := s.Search(context.Background(), Query{Text: "İŞÇİNİN", Mode: ModeLike, Limit: 10})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Zero(t, resp.Results[0].Rank)
}

func TestSQLiteStore_QuerySyntaxIsInert(t *testing.T) {
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	tests := []string{`"kira`, `kira OR`, `NEAR(kira`, `kira*`, `-kira`, `title:kira`}
	for _, q := range tests {
		t.Run(q, func(t *testing.T) {
			_, err := s.Search(context.Background(), Query{Text: q, Terms: strings.Fields(q), Limit: 10})
			assert.NoError(t, err)
		})
	}
}

func TestSQLiteStore_ReupsertKeepsOneRecord(t *testing.T) {
	// Given: a stored document
	s := newTestSQLite(t)
	ctx := context.Background()
	doc := &Document{Path: "/corpus/a.txt", Source: "mevzuat", MtimeMs: 1, Title: "A", Content: "eski içerik"}
	seed(t, s, doc)
	before, err := s.Record(ctx, doc.Path)
	require.NoError(t, err)

	// When: the same path is upserted with new content
	seed(t, s, &Document{Path: "/corpus/a.txt", Source: "mevzuat", MtimeMs: 2, Title: "A2", Content: "yeni içerik"})

	// Then: one record with the same id and the new content
	after, err := s.GetByPath(ctx, doc.Path)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, 2.0, after.MtimeMs)
	assert.Equal(t, "yeni içerik", after.Text)

	counts, err := s.CountsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"mevzuat": 1}, counts)

	resp, err := s.Search(ctx, Query{Text: "eski", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSQLiteStore_GetByPathUnknown(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetByPath(context.Background(), "/nope.txt")
	assert.True(t, IsNotFound(err))

	_, err = s.Record(context.Background(), "/nope.txt")
	assert.True(t, IsNotFound(err))
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	s := newTestSQLite(t)
	seed(t, s, legalCorpus()...)

	recs, err := s.List(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "/corpus/yargi/karar1.txt", recs[0].Path)
	assert.Equal(t, "/corpus/yargi/karar2.txt", recs[1].Path)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexindex.db")
	s, err := NewSQLiteStore(path, DefaultOptions())
	require.NoError(t, err)
	seed(t, s, legalCorpus()...)
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path, DefaultOptions())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	counts, err := reopened.CountsBySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"mevzuat": 1, "yargi": 2}, counts)
}

func TestSQLiteStore_CorruptFileMovedAside(t *testing.T) {
	// Given: garbage where the database should be
	dir := t.TempDir()
	path := filepath.Join(dir, "lexindex.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("not a database ", 100)), 0o644))

	// When: opening
	s, err := NewSQLiteStore(path, DefaultOptions())

	// Then: a fresh store is created and the bad file kept for inspection
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	counts, err := s.CountsBySource(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSQLiteStore_ClosedIsUnavailable(t *testing.T) {
	s, err := NewSQLiteStore("", DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Search(context.Background(), Query{Text: "kira"})
	assert.True(t, IsUnavailable(err))
}
