package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/search"
	"github.com/Aman-CERP/lexindex/internal/store"
	"github.com/Aman-CERP/lexindex/pkg/version"
)

// Searcher answers queries.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*store.Response, error)
	GetByPath(ctx context.Context, path string) (*store.StoredDocument, error)
	List(ctx context.Context, limit int) ([]store.DocumentRecord, error)
}

// Reindexer controls the reindex job.
type Reindexer interface {
	State() index.IndexState
	TriggerReindex(force bool) (index.IndexState, bool)
}

// Counter reports stored documents per source.
type Counter interface {
	Counts(ctx context.Context) (map[string]int, error)
}

// Options carries feature flags reported by index_status.
type Options struct {
	EnableOCR    bool
	EnableRemote bool
}

// Server is the MCP server. It bridges AI clients to the search engine.
type Server struct {
	mcp       *mcp.Server
	searcher  Searcher
	reindexer Reindexer
	counter   Counter
	opts      Options
	logger    *slog.Logger
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_legal",
		Description: "Keyword search over the indexed statutes (mevzuat) and court decisions (yargi). Returns ranked documents with highlighted snippets and per-source counts. Use get_document with a result path to read the full text.",
	},
	{
		Name:        "get_document",
		Description: "Fetch the extracted text of one document by the absolute path returned from search_legal or list_documents.",
	},
	{
		Name:        "list_documents",
		Description: "List indexed documents, most recently modified first.",
	},
	{
		Name:        "index_status",
		Description: "Report how many documents are indexed per source and whether a reindex is running.",
	},
	{
		Name:        "reindex",
		Description: "Start a background reindex of the document roots. Unchanged files are skipped unless force is set. Does nothing if a reindex is already running.",
	},
}

// NewServer creates an MCP server. counter may be nil.
func NewServer(searcher Searcher, reindexer Reindexer, counter Counter, opts Options) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("searcher is required")
	}
	if reindexer == nil {
		return nil, errors.New("reindexer is required")
	}
	s := &Server{
		searcher:  searcher,
		reindexer: reindexer,
		counter:   counter,
		opts:      opts,
		logger:    slog.Default(),
	}
	s.mcp = mcp.NewServer(&mcp.Implementation{Name: "lexindex", Version: version.Version}, nil)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns the registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpGetDocumentHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpListHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpIndexStatusHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[4].Name, Description: tools[4].Description}, s.mcpReindexHandler)
	s.logger.Debug("MCP tools registered", slog.Int("count", len(tools)))
}

// CallTool invokes a tool directly with decoded JSON arguments and
// returns its markdown or structured result.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_legal":
		var in SearchLegalInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.searchLegal(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(in.Query, out), nil
	case "get_document":
		var in GetDocumentInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.getDocument(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatDocument(out), nil
	case "list_documents":
		var in ListDocumentsInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.listDocuments(ctx, in)
	case "index_status":
		return s.indexStatus(ctx), nil
	case "reindex":
		var in ReindexInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.reindex(in), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError("arguments must be a JSON object")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError("invalid arguments: " + err.Error())
	}
	return nil
}

func (s *Server) searchLegal(ctx context.Context, in SearchLegalInput) (*SearchLegalOutput, error) {
	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}
	mode, err := store.ParseMode(in.Mode)
	if err != nil {
		return nil, MapError(err)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}

	start := time.Now()
	resp, err := s.searcher.Search(ctx, search.Request{
		Query:  in.Query,
		Source: in.Source,
		Limit:  limit,
		Mode:   mode,
	})
	if err != nil {
		s.logger.Warn("search_legal failed",
			slog.String("query", in.Query),
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	s.logger.Info("search_legal",
		slog.String("query", in.Query),
		slog.String("backend", resp.Backend),
		slog.Int("results", len(resp.Results)),
		slog.Duration("duration", time.Since(start)))

	return &SearchLegalOutput{
		Total:   resp.Total,
		Facets:  resp.Facets,
		Results: resp.Results,
		Backend: resp.Backend,
	}, nil
}

func (s *Server) getDocument(ctx context.Context, in GetDocumentInput) (*GetDocumentOutput, error) {
	p := strings.TrimSpace(in.Path)
	if p == "" {
		return nil, NewInvalidParamsError("path is required")
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	doc, err := s.searcher.GetByPath(ctx, p)
	if err != nil {
		return nil, MapError(err)
	}

	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = defaultDocChars
	}
	text, truncated := truncate(doc.Text, maxChars)
	return &GetDocumentOutput{
		Path:      doc.Path,
		Source:    doc.Source,
		Title:     doc.Title,
		Text:      text,
		Truncated: truncated,
	}, nil
}

func truncate(s string, n int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= n {
		return s, false
	}
	return string(runes[:n]), true
}

func (s *Server) listDocuments(ctx context.Context, in ListDocumentsInput) (*ListDocumentsOutput, error) {
	recs, err := s.searcher.List(ctx, in.Limit)
	if err != nil {
		return nil, MapError(err)
	}
	return &ListDocumentsOutput{Total: len(recs), Documents: recs}, nil
}

func (s *Server) indexStatus(ctx context.Context) *IndexStatusOutput {
	out := &IndexStatusOutput{
		BySource:            map[string]int{},
		EnableOCR:           s.opts.EnableOCR,
		EnableRemoteBackend: s.opts.EnableRemote,
		IndexState:          s.reindexer.State(),
	}
	if s.counter != nil {
		if counts, err := s.counter.Counts(ctx); err == nil {
			out.BySource = counts
			for _, n := range counts {
				out.Docs += n
			}
		}
	}
	return out
}

func (s *Server) reindex(in ReindexInput) *ReindexOutput {
	state, started := s.reindexer.TriggerReindex(in.Force)
	out := &ReindexOutput{Started: started, IndexState: state}
	switch {
	case started:
		out.Message = "reindex started"
	case state.Phase == index.PhaseDisabled:
		out.Message = "indexing is disabled: no backend is enabled"
	default:
		out.Message = "reindex already running"
	}
	return out
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchLegalInput) (
	*mcp.CallToolResult,
	*SearchLegalOutput,
	error,
) {
	out, err := s.searchLegal(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatSearchResults(in.Query, out)), out, nil
}

func (s *Server) mcpGetDocumentHandler(ctx context.Context, _ *mcp.CallToolRequest, in GetDocumentInput) (
	*mcp.CallToolResult,
	*GetDocumentOutput,
	error,
) {
	out, err := s.getDocument(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatDocument(out)), out, nil
}

func (s *Server) mcpListHandler(ctx context.Context, _ *mcp.CallToolRequest, in ListDocumentsInput) (
	*mcp.CallToolResult,
	*ListDocumentsOutput,
	error,
) {
	out, err := s.listDocuments(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	return nil, s.indexStatus(ctx), nil
}

func (s *Server) mcpReindexHandler(_ context.Context, _ *mcp.CallToolRequest, in ReindexInput) (
	*mcp.CallToolResult,
	*ReindexOutput,
	error,
) {
	return nil, s.reindex(in), nil
}

// Serve runs the server over the given transport until ctx ends.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("Starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio", "":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
