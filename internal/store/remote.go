package store

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// RemoteOptions configures the Meilisearch backend.
type RemoteOptions struct {
	URL    string
	APIKey string
	// Index is the index uid; default "legal".
	Index   string
	Timeout time.Duration
	// FailureThreshold consecutive failures open the circuit for ResetTimeout.
	FailureThreshold int
	ResetTimeout     time.Duration
	// CropWords bounds the cropped content snippet.
	CropWords    int
	DefaultLimit int
	MaxLimit     int
	Retry        lexerrors.RetryConfig
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// RemoteStore talks to a Meilisearch index over its REST API. Calls go
// through a circuit breaker so an unreachable server is skipped fast.
// Index creation and settings are applied once, on first use or by
// Bootstrap.
type RemoteStore struct {
	opts    RemoteOptions
	base    string
	client  *http.Client
	breaker *lexerrors.CircuitBreaker

	setupMu sync.Mutex
	ready   bool
}

var _ Backend = (*RemoteStore)(nil)

// meiliDocument is the stored shape. ID is the hex SHA-1 of the path,
// since Meilisearch ids cannot hold path separators.
type meiliDocument struct {
	ID      string  `json:"id"`
	Path    string  `json:"path"`
	Source  string  `json:"source"`
	Title   string  `json:"title"`
	Content string  `json:"content,omitempty"`
	MtimeMs float64 `json:"mtimeMs"`
	Size    int64   `json:"size"`
}

type meiliSettings struct {
	SearchableAttributes []string `json:"searchableAttributes"`
	DisplayedAttributes  []string `json:"displayedAttributes"`
	FilterableAttributes []string `json:"filterableAttributes"`
	SortableAttributes   []string `json:"sortableAttributes"`
	DistinctAttribute    string   `json:"distinctAttribute"`
}

var legalSettings = meiliSettings{
	SearchableAttributes: []string{"title", "content", "path"},
	DisplayedAttributes:  []string{"id", "path", "source", "title", "content", "mtimeMs", "size"},
	FilterableAttributes: []string{"source"},
	SortableAttributes:   []string{"mtimeMs", "size"},
	DistinctAttribute:    "path",
}

type meiliSearchRequest struct {
	Q                     string   `json:"q"`
	Limit                 int      `json:"limit"`
	Filter                string   `json:"filter,omitempty"`
	Facets                []string `json:"facets,omitempty"`
	Sort                  []string `json:"sort,omitempty"`
	AttributesToRetrieve  []string `json:"attributesToRetrieve,omitempty"`
	AttributesToCrop      []string `json:"attributesToCrop,omitempty"`
	CropLength            int      `json:"cropLength,omitempty"`
	AttributesToHighlight []string `json:"attributesToHighlight,omitempty"`
	HighlightPreTag       string   `json:"highlightPreTag,omitempty"`
	HighlightPostTag      string   `json:"highlightPostTag,omitempty"`
	ShowRankingScore      bool     `json:"showRankingScore,omitempty"`
}

type meiliHit struct {
	meiliDocument
	Formatted    *meiliDocument `json:"_formatted,omitempty"`
	RankingScore float64        `json:"_rankingScore"`
}

type meiliSearchResponse struct {
	Hits               []meiliHit                `json:"hits"`
	EstimatedTotalHits int                       `json:"estimatedTotalHits"`
	FacetDistribution  map[string]map[string]int `json:"facetDistribution"`
}

type meiliError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

var errRemoteNotFound = errors.New("remote resource not found")

// NewRemoteStore creates a client. It does not contact the server.
func NewRemoteStore(opts RemoteOptions) (*RemoteStore, error) {
	u, err := url.Parse(strings.TrimSpace(opts.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, lexerrors.ConfigError("remote url must be an absolute http(s) url", err).
			WithDetail("url", opts.URL)
	}
	if opts.Index == "" {
		opts.Index = "legal"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CropWords <= 0 {
		opts.CropWords = 40
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 50
	}
	if opts.Retry.Multiplier == 0 {
		opts.Retry = lexerrors.DefaultRetryConfig()
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &RemoteStore{
		opts:   opts,
		base:   strings.TrimRight(u.String(), "/"),
		client: client,
		breaker: lexerrors.NewCircuitBreaker("meilisearch",
			lexerrors.WithMaxFailures(opts.FailureThreshold),
			lexerrors.WithResetTimeout(opts.ResetTimeout)),
	}, nil
}

// Name implements Backend.
func (r *RemoteStore) Name() string { return "meilisearch" }

// Breaker exposes the circuit breaker state for status reporting.
func (r *RemoteStore) Breaker() *lexerrors.CircuitBreaker { return r.breaker }

// DocumentID returns the primary key stored for path.
func DocumentID(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// Ping checks the server's health endpoint.
func (r *RemoteStore) Ping(ctx context.Context) error {
	return r.do(ctx, http.MethodGet, "/health", nil, nil)
}

// EnsureIndex creates the index and applies its settings in a single
// attempt. It succeeds once; later calls are no-ops. Both requests only
// enqueue tasks: creating an index that exists fails its task, not the
// request, so an existing index needs no special case.
func (r *RemoteStore) EnsureIndex(ctx context.Context) error {
	r.setupMu.Lock()
	defer r.setupMu.Unlock()
	if r.ready {
		return nil
	}

	create := map[string]string{"uid": r.opts.Index, "primaryKey": "id"}
	if err := r.do(ctx, http.MethodPost, "/indexes", create, nil); err != nil {
		return err
	}
	if err := r.do(ctx, http.MethodPatch, r.indexPath("/settings"), legalSettings, nil); err != nil {
		return err
	}

	r.ready = true
	slog.Info("remote index ready", slog.String("index", r.opts.Index), slog.String("url", r.base))
	return nil
}

// Bootstrap runs EnsureIndex with retry and backoff. It gives up early
// once the circuit opens.
func (r *RemoteStore) Bootstrap(ctx context.Context) error {
	return lexerrors.Retry(ctx, r.opts.Retry, func() error {
		if !r.breaker.Allow() {
			e := lexerrors.New(lexerrors.ErrCodeNetworkUnavailable, "meilisearch circuit is open", lexerrors.ErrCircuitOpen)
			e.Retryable = false
			return e
		}
		return r.EnsureIndex(ctx)
	})
}

// Upsert implements Backend.
func (r *RemoteStore) Upsert(ctx context.Context, doc *Document) error {
	if err := r.EnsureIndex(ctx); err != nil {
		return err
	}
	body := []meiliDocument{{
		ID:      DocumentID(doc.Path),
		Path:    doc.Path,
		Source:  doc.Source,
		Title:   doc.Title,
		Content: doc.Content,
		MtimeMs: doc.MtimeMs,
		Size:    doc.Size,
	}}
	return r.do(ctx, http.MethodPost, r.indexPath("/documents?primaryKey=id"), body, nil)
}

// SupportsMode reports that only ranked queries go to the remote index.
func (r *RemoteStore) SupportsMode(m Mode) bool { return m == ModeFTS }

// Search implements Backend. The server ranks; content is cropped and
// highlighted server-side. Titles stay plain text as on the embedded
// backends.
func (r *RemoteStore) Search(ctx context.Context, q Query) (*Response, error) {
	if err := r.EnsureIndex(ctx); err != nil {
		return nil, err
	}

	req := meiliSearchRequest{
		Q:                     strings.TrimSpace(q.Text),
		Limit:                 clampLimit(q.Limit, r.opts.DefaultLimit, r.opts.MaxLimit),
		Facets:                []string{"source"},
		AttributesToCrop:      []string{"content"},
		CropLength:            r.opts.CropWords,
		AttributesToHighlight: []string{"content"},
		HighlightPreTag:       MarkOpen,
		HighlightPostTag:      MarkClose,
		ShowRankingScore:      true,
	}
	if q.Source != "" {
		req.Filter = "source = " + strconv.Quote(q.Source)
	}

	var res meiliSearchResponse
	if err := r.do(ctx, http.MethodPost, r.indexPath("/search"), req, &res); err != nil {
		return nil, err
	}

	resp := &Response{
		Total:   res.EstimatedTotalHits,
		Facets:  res.FacetDistribution["source"],
		Results: make([]Hit, 0, len(res.Hits)),
		Backend: r.Name(),
	}
	for _, h := range res.Hits {
		hit := Hit{Path: h.Path, Source: h.Source, Title: h.Title, Rank: h.RankingScore}
		if h.Formatted != nil {
			hit.Snippet = h.Formatted.Content
		}
		resp.Results = append(resp.Results, hit)
	}

	// Facets must ignore the source filter.
	if q.Source != "" {
		counts, err := r.facets(ctx, req.Q)
		if err != nil {
			return nil, err
		}
		resp.Facets = counts
	}
	if resp.Facets == nil {
		resp.Facets = map[string]int{}
	}
	return resp, nil
}

func (r *RemoteStore) facets(ctx context.Context, q string) (map[string]int, error) {
	var res meiliSearchResponse
	req := meiliSearchRequest{Q: q, Limit: 0, Facets: []string{"source"}}
	if err := r.do(ctx, http.MethodPost, r.indexPath("/search"), req, &res); err != nil {
		return nil, err
	}
	counts := res.FacetDistribution["source"]
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

// GetByPath implements Backend.
func (r *RemoteStore) GetByPath(ctx context.Context, path string) (*StoredDocument, error) {
	doc, err := r.document(ctx, path, "")
	if err != nil {
		return nil, err
	}
	return &StoredDocument{DocumentRecord: doc.record(), Text: doc.Content}, nil
}

// Record implements Backend.
func (r *RemoteStore) Record(ctx context.Context, path string) (*DocumentRecord, error) {
	doc, err := r.document(ctx, path, "id,path,source,title,mtimeMs,size")
	if err != nil {
		return nil, err
	}
	rec := doc.record()
	return &rec, nil
}

func (r *RemoteStore) document(ctx context.Context, path, fields string) (*meiliDocument, error) {
	if err := r.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	p := r.indexPath("/documents/" + DocumentID(path))
	if fields != "" {
		p += "?fields=" + url.QueryEscape(fields)
	}
	var doc meiliDocument
	err := r.do(ctx, http.MethodGet, p, nil, &doc)
	if errors.Is(err, errRemoteNotFound) {
		return nil, NotFound(path)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// CountsBySource implements Backend.
func (r *RemoteStore) CountsBySource(ctx context.Context) (map[string]int, error) {
	if err := r.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return r.facets(ctx, "")
}

// List implements Backend.
func (r *RemoteStore) List(ctx context.Context, limit int) ([]DocumentRecord, error) {
	if err := r.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	req := meiliSearchRequest{
		Limit:                limit,
		Sort:                 []string{"mtimeMs:desc"},
		AttributesToRetrieve: []string{"id", "path", "source", "title", "mtimeMs", "size"},
	}
	var res meiliSearchResponse
	if err := r.do(ctx, http.MethodPost, r.indexPath("/search"), req, &res); err != nil {
		return nil, err
	}
	out := make([]DocumentRecord, 0, len(res.Hits))
	for _, h := range res.Hits {
		out = append(out, h.record())
	}
	return out, nil
}

// Close releases idle connections.
func (r *RemoteStore) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

func (d meiliDocument) record() DocumentRecord {
	return DocumentRecord{
		ID:      stableID(d.Path),
		Path:    d.Path,
		Source:  d.Source,
		Title:   d.Title,
		MtimeMs: d.MtimeMs,
		Size:    d.Size,
	}
}

func (r *RemoteStore) indexPath(suffix string) string {
	return "/indexes/" + url.PathEscape(r.opts.Index) + suffix
}

// do sends one request. Transport errors and 5xx responses count against
// the circuit breaker and come back as unavailable; 4xx responses are
// rejections and leave the breaker alone.
func (r *RemoteStore) do(ctx context.Context, method, path string, body, out any) error {
	if !r.breaker.Allow() {
		return Unavailable(r.Name(), lexerrors.ErrCircuitOpen)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.opts.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.breaker.RecordFailure()
		return Unavailable(r.Name(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		r.breaker.RecordFailure()
		return Unavailable(r.Name(), fmt.Errorf("%s %s: %s", method, path, readMeiliError(resp)))
	case resp.StatusCode == http.StatusNotFound:
		r.breaker.RecordSuccess()
		return errRemoteNotFound
	case resp.StatusCode >= 400:
		r.breaker.RecordSuccess()
		msg := readMeiliError(resp)
		return lexerrors.New(lexerrors.ErrCodeRemoteRejected, "meilisearch rejected the request", errors.New(msg)).
			WithDetail("status", strconv.Itoa(resp.StatusCode))
	}

	r.breaker.RecordSuccess()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func readMeiliError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var me meiliError
	if json.Unmarshal(data, &me) == nil && me.Message != "" {
		return me.Code + ": " + me.Message
	}
	return resp.Status
}
