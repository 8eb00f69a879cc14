package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/search"
	"github.com/Aman-CERP/lexindex/internal/store"
)

type mockSearcher struct {
	SearchFn func(req search.Request) (*store.Response, error)
	GetFn    func(path string) (*store.StoredDocument, error)
	ListFn   func(limit int) ([]store.DocumentRecord, error)
	last     search.Request
}

func (m *mockSearcher) Search(_ context.Context, req search.Request) (*store.Response, error) {
	m.last = req
	if m.SearchFn != nil {
		return m.SearchFn(req)
	}
	return &store.Response{Facets: map[string]int{}}, nil
}

func (m *mockSearcher) GetByPath(_ context.Context, path string) (*store.StoredDocument, error) {
	if m.GetFn != nil {
		return m.GetFn(path)
	}
	return nil, store.NotFound(path)
}

func (m *mockSearcher) List(_ context.Context, limit int) ([]store.DocumentRecord, error) {
	if m.ListFn != nil {
		return m.ListFn(limit)
	}
	return nil, nil
}

type mockReindexer struct {
	state   index.IndexState
	started bool
	force   bool
}

func (m *mockReindexer) State() index.IndexState { return m.state }

func (m *mockReindexer) TriggerReindex(force bool) (index.IndexState, bool) {
	m.force = force
	return m.state, m.started
}

type mockCounter map[string]int

func (m mockCounter) Counts(context.Context) (map[string]int, error) { return m, nil }

func newTestServer(t *testing.T, s *mockSearcher, r *mockReindexer) *Server {
	t.Helper()
	srv, err := NewServer(s, r, mockCounter{"mevzuat": 2, "yargi": 1}, Options{EnableOCR: true})
	require.NoError(t, err)
	return srv
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	_, err := NewServer(nil, &mockReindexer{}, nil, Options{})
	assert.Error(t, err)
	_, err = NewServer(&mockSearcher{}, nil, nil, Options{})
	assert.Error(t, err)
}

func TestSearchLegal_ReturnsMarkdown(t *testing.T) {
	// Given a searcher with one highlighted hit
	s := &mockSearcher{SearchFn: func(search.Request) (*store.Response, error) {
		return &store.Response{
			Total:  3,
			Facets: map[string]int{"mevzuat": 1, "yargi": 2},
			Results: []store.Hit{{
				Path:    "/m/tbk.txt",
				Source:  "mevzuat",
				Title:   "Türk Borçlar Kanunu",
				Snippet: "…<mark>kira</mark> sözleşmesi…",
			}},
		}, nil
	}}
	srv := newTestServer(t, s, &mockReindexer{})

	// When calling search_legal
	result, err := srv.CallTool(context.Background(), "search_legal", map[string]any{
		"query":  "kira",
		"source": "mevzuat",
		"limit":  float64(5),
	})

	// Then markdown comes back with marks turned to bold
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok)
	assert.Contains(t, text, "## Search Results for \"kira\"")
	assert.Contains(t, text, "Showing 1 of 3 matches (mevzuat: 1, yargi: 2)")
	assert.Contains(t, text, "**kira** sözleşmesi")
	assert.Contains(t, text, "`/m/tbk.txt`")
	assert.Equal(t, search.Request{Query: "kira", Source: "mevzuat", Limit: 5, Mode: store.ModeFTS}, s.last)
}

func TestSearchLegal_DefaultsLimitToTen(t *testing.T) {
	s := &mockSearcher{}
	srv := newTestServer(t, s, &mockReindexer{})

	result, err := srv.CallTool(context.Background(), "search_legal", map[string]any{"query": "tahliye"})

	require.NoError(t, err)
	assert.Equal(t, 10, s.last.Limit)
	assert.Equal(t, "No results found for \"tahliye\"", result)
}

func TestSearchLegal_InvalidParams(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockReindexer{})
	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing query", nil},
		{"blank query", map[string]any{"query": "  "}},
		{"bad mode", map[string]any{"query": "kira", "mode": "fuzzy"}},
		{"wrong type", map[string]any{"query": 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CallTool(context.Background(), "search_legal", tt.args)

			var me *MCPError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, ErrCodeInvalidParams, me.Code)
		})
	}
}

func TestGetDocument_TruncatesAndMapsNotFound(t *testing.T) {
	s := &mockSearcher{GetFn: func(path string) (*store.StoredDocument, error) {
		if path != "/m/tbk.txt" {
			return nil, store.NotFound(path)
		}
		return &store.StoredDocument{
			DocumentRecord: store.DocumentRecord{Path: path, Source: "mevzuat", Title: "TBK"},
			Text:           "Madde 299 kira sözleşmesi",
		}, nil
	}}
	srv := newTestServer(t, s, &mockReindexer{})
	ctx := context.Background()

	// When fetching with a small budget
	result, err := srv.CallTool(ctx, "get_document", map[string]any{"path": "/m/tbk.txt", "max_chars": float64(9)})

	// Then the text is cut and marked
	require.NoError(t, err)
	assert.Contains(t, result, "# TBK")
	assert.Contains(t, result, "Madde 299")
	assert.NotContains(t, result, "kira")
	assert.Contains(t, result, "_[truncated]_")

	// And unknown paths map to the not-found code
	_, err = srv.CallTool(ctx, "get_document", map[string]any{"path": "/none.txt"})
	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeDocumentNotFound, me.Code)
}

func TestIndexStatus_ReportsCountsAndState(t *testing.T) {
	r := &mockReindexer{state: index.IndexState{Running: true, Total: 10, Indexed: 4}}
	srv := newTestServer(t, &mockSearcher{}, r)

	result, err := srv.CallTool(context.Background(), "index_status", nil)

	require.NoError(t, err)
	out, ok := result.(*IndexStatusOutput)
	require.True(t, ok)
	assert.Equal(t, 3, out.Docs)
	assert.True(t, out.EnableOCR)
	assert.True(t, out.IndexState.Running)
	assert.Equal(t, 4, out.IndexState.Indexed)
}

func TestReindex_ReportsAlreadyRunning(t *testing.T) {
	r := &mockReindexer{state: index.IndexState{Running: true}, started: false}
	srv := newTestServer(t, &mockSearcher{}, r)

	result, err := srv.CallTool(context.Background(), "reindex", map[string]any{"force": true})

	require.NoError(t, err)
	out := result.(*ReindexOutput)
	assert.False(t, out.Started)
	assert.Equal(t, "reindex already running", out.Message)
	assert.True(t, r.force)
}

func TestCallTool_UnknownTool(t *testing.T) {
	srv := newTestServer(t, &mockSearcher{}, &mockReindexer{})

	_, err := srv.CallTool(context.Background(), "search_code", nil)

	var me *MCPError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeMethodNotFound, me.Code)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", store.NotFound("/x"), ErrCodeDocumentNotFound},
		{"validation", lexerrors.ValidationError("bad", nil), ErrCodeInvalidParams},
		{"unavailable", store.Unavailable("meilisearch", errors.New("refused")), ErrCodeUnavailable},
		{"timeout", context.DeadlineExceeded, ErrCodeTimeout},
		{"plain", errors.New("disk I/O error at /secret/path"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me := MapError(tt.err)
			assert.Equal(t, tt.code, me.Code)
			assert.NotContains(t, me.Message, "/secret")
		})
	}
	assert.Nil(t, MapError(nil))
}

func TestMCPSession_ListsAndCallsTools(t *testing.T) {
	// Given the server connected over in-memory transports
	s := &mockSearcher{SearchFn: func(search.Request) (*store.Response, error) {
		return &store.Response{Total: 1, Facets: map[string]int{"yargi": 1}, Results: []store.Hit{{Path: "/y/k.txt", Source: "yargi", Snippet: "<mark>kira</mark>"}}}, nil
	}}
	srv := newTestServer(t, s, &mockReindexer{})
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = srv.MCPServer().Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer session.Close()

	// When listing tools
	list, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}

	// Then all five are registered
	assert.ElementsMatch(t, []string{"search_legal", "get_document", "list_documents", "index_status", "reindex"}, names)

	// When searching through the protocol
	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: "search_legal", Arguments: map[string]any{"query": "kira"}})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, tc.Text, "**kira**")

	// And an empty query is a tool error
	res, err = session.CallTool(ctx, &mcp.CallToolParams{Name: "search_legal", Arguments: map[string]any{"query": " "}})
	if err == nil {
		assert.True(t, res.IsError)
	}
}

func TestReindex_ReportsDisabledIndexing(t *testing.T) {
	r := &mockReindexer{state: index.IndexState{Phase: index.PhaseDisabled}}
	srv := newTestServer(t, &mockSearcher{}, r)

	result, err := srv.CallTool(context.Background(), "reindex", nil)

	require.NoError(t, err)
	out := result.(*ReindexOutput)
	assert.False(t, out.Started)
	assert.Contains(t, out.Message, "indexing is disabled")
}
