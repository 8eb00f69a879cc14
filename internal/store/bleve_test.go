package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBleve(t *testing.T) *BleveStore {
	t.Helper()
	b, err := NewBleveStore("", DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBleveStore_SearchWithFacets(t *testing.T) {
	// Given: the legal corpus in a Bleve index
	b := newTestBleve(t)
	seed(t, b, legalCorpus()...)

	// When: searching for "kira"
	resp, err := b.Search(context.Background(), Query{Text: "kira", Limit: 10})

	// Then: both documents match with highlighted fragments
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, map[string]int{"mevzuat": 1, "yargi": 1}, resp.Facets)
	require.Len(t, resp.Results, 2)
	for _, h := range resp.Results {
		assert.Contains(t, h.Snippet, "<mark>")
		assert.Greater(t, h.Rank, 0.0)
	}
}

func TestBleveStore_SourceFilter(t *testing.T) {
	b := newTestBleve(t)
	seed(t, b, legalCorpus()...)

	resp, err := b.Search(context.Background(), Query{Text: "kira", Source: "mevzuat", Limit: 10})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/corpus/mevzuat/tbk.txt", resp.Results[0].Path)
	assert.Equal(t, "Türk Borçlar Kanunu", resp.Results[0].Title)
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, map[string]int{"mevzuat": 1, "yargi": 1}, resp.Facets)
}

func TestBleveStore_SubstringFallback(t *testing.T) {
	b := newTestBleve(t)
	seed(t, b, legalCorpus()...)

	resp, err := b.Search(context.Background(), Query{Text: "tazmina", Limit: 10})

	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/corpus/yargi/karar2.txt", resp.Results[0].Path)
	assert.Contains(t, resp.Results[0].Snippet, "<mark>tazmina</mark>tı")
}

func TestEmbeddedStores_LikeMatchesCitationLiterals(t *testing.T) {
	citation := &Document{Path: "/corpus/yargi/karar3.txt", Source: "yargi", MtimeMs: 400, Size: 60,
		Title: "Yargıtay 3. HD", Content: "Yargıtay 3. HD, E. 2019/1234 K. 2020/55 sayılı kararı onandı."}
	backends := []struct {
		name string
		open func(*testing.T) Backend
	}{
		{"sqlite", func(t *testing.T) Backend { return newTestSQLite(t) }},
		{"bleve", func(t *testing.T) Backend { return newTestBleve(t) }},
	}
	queries := []struct {
		name string
		text string
	}{
		{"docket number", "2019/1234"},
		{"chamber", "3. HD"},
		{"lowercase chamber", "3. hd"},
		{"spans punctuation", "HD, E. 2019"},
	}

	for _, be := range backends {
		for _, tt := range queries {
			t.Run(be.name+" "+tt.name, func(t *testing.T) {
				// Given: the corpus plus a decision citing a docket number
				b := be.open(t)
				seed(t, b, append(legalCorpus(), citation)...)

				// When: the literal is searched as a substring
				resp, err := b.Search(context.Background(), Query{
					Text: tt.text, Terms: Terms(tt.text, 0), Mode: ModeLike, Limit: 10,
				})

				// Then: only the citing decision matches, with the literal marked
				require.NoError(t, err)
				assert.Equal(t, 1, resp.Total)
				assert.Equal(t, map[string]int{"yargi": 1}, resp.Facets)
				require.Len(t, resp.Results, 1)
				assert.Equal(t, citation.Path, resp.Results[0].Path)
				assert.Equal(t, citation.Title, resp.Results[0].Title)
				assert.Contains(t, strings.ToLower(resp.Results[0].Snippet),
					"<mark>"+strings.ToLower(tt.text)+"</mark>")
			})
		}
	}
}

func TestBleveStore_LikeSourceFilterKeepsFacets(t *testing.T) {
	// Given: "kira" occurs in both sources
	b := newTestBleve(t)
	seed(t, b, legalCorpus()...)

	// When: a like search is filtered to yargi
	resp, err := b.Search(context.Background(), Query{Text: "kira", Mode: ModeLike, Source: "yargi", Limit: 10})

	// Then: only yargi is counted, facets still cover both
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/corpus/yargi/karar1.txt", resp.Results[0].Path)
	assert.Equal(t, map[string]int{"mevzuat": 1, "yargi": 1}, resp.Facets)
}

func TestBleveStore_ReupsertAndGet(t *testing.T) {
	b := newTestBleve(t)
	ctx := context.Background()
	seed(t, b,
		&Document{Path: "/corpus/a.txt", Source: "mevzuat", MtimeMs: 1, Size: 3, Title: "A", Content: "eski"},
		&Document{Path: "/corpus/a.txt", Source: "mevzuat", MtimeMs: 2, Size: 4, Title: "A2", Content: "yeni"},
	)

	doc, err := b.GetByPath(ctx, "/corpus/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "yeni", doc.Text)
	assert.Equal(t, "A2", doc.Title)
	assert.Equal(t, int64(4), doc.Size)
	assert.Equal(t, stableID("/corpus/a.txt"), doc.ID)

	rec, err := b.Record(ctx, "/corpus/a.txt")
	require.NoError(t, err)
	assert.Equal(t, 2.0, rec.MtimeMs)

	counts, err := b.CountsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"mevzuat": 1}, counts)

	_, err = b.GetByPath(ctx, "/corpus/b.txt")
	assert.True(t, IsNotFound(err))
}

func TestBleveStore_ListNewestFirst(t *testing.T) {
	b := newTestBleve(t)
	seed(t, b, legalCorpus()...)

	recs, err := b.List(context.Background(), 3)

	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "/corpus/yargi/karar1.txt", recs[0].Path)
	assert.Equal(t, "/corpus/mevzuat/tbk.txt", recs[2].Path)
}

func TestOpenEmbedded(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{KindSQLite, KindBleve} {
		t.Run(kind, func(t *testing.T) {
			b, err := OpenEmbedded(dir, kind, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, kind, b.Name())
			require.NoError(t, b.Close())
		})
	}

	assert.Equal(t, filepath.Join(dir, "lexindex.db"), EmbeddedPath(dir, KindSQLite))
	assert.Equal(t, KindSQLite, DetectEmbedded(dir))

	_, err := OpenEmbedded(dir, "postgres", DefaultOptions())
	assert.Error(t, err)
}
