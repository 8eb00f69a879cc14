package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/search"
	"github.com/Aman-CERP/lexindex/internal/store"
	"github.com/Aman-CERP/lexindex/internal/telemetry"
	"github.com/Aman-CERP/lexindex/pkg/version"
)

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type searchBody struct {
	OK      bool           `json:"ok"`
	Total   int            `json:"total"`
	Facets  map[string]int `json:"facets"`
	Results []store.Hit    `json:"results"`
	Backend string         `json:"backend,omitempty"`
}

type docBody struct {
	OK      bool    `json:"ok"`
	Path    string  `json:"path"`
	Source  string  `json:"source"`
	Title   string  `json:"title"`
	MtimeMs float64 `json:"mtimeMs"`
	Text    string  `json:"text"`
}

type listBody struct {
	OK      bool                   `json:"ok"`
	Total   int                    `json:"total"`
	Results []store.DocumentRecord `json:"results"`
}

type statusCounts struct {
	Docs     int            `json:"docs"`
	Indexed  int            `json:"indexed"`
	BySource map[string]int `json:"bySource"`
}

type statusBody struct {
	OK                  bool             `json:"ok"`
	EnableOCR           bool             `json:"enableOcr"`
	EnableRemoteBackend bool             `json:"enableRemoteBackend"`
	Counts              statusCounts     `json:"counts"`
	IndexState          index.IndexState `json:"indexState"`
}

type statsBody struct {
	OK bool `json:"ok"`
	telemetry.Snapshot
	ZeroResultRate float64 `json:"zeroResultRate"`
}

type reindexBody struct {
	OK         bool             `json:"ok"`
	Started    bool             `json:"started"`
	Message    string           `json:"message,omitempty"`
	IndexState index.IndexState `json:"indexState"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", slog.String("error", err.Error()))
	}
}

// writeError reports err without its cause chain.
func writeError(w http.ResponseWriter, err error) {
	status := lexerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Warn("request failed", slog.Any("error", lexerrors.FormatForLog(err)))
	}
	writeJSON(w, status, errorBody{Error: lexerrors.PublicMessage(err)})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": version.Short()})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode, err := store.ParseMode(q.Get("mode"))
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.searcher.Search(r.Context(), search.Request{
		Query:  q.Get("q"),
		Source: q.Get("source"),
		Limit:  limit,
		Mode:   mode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	hits := make([]store.Hit, len(resp.Results))
	for i, h := range resp.Results {
		h.Snippet = s.policy.Sanitize(h.Snippet)
		hits[i] = h
	}
	writeJSON(w, http.StatusOK, searchBody{
		OK:      true,
		Total:   resp.Total,
		Facets:  resp.Facets,
		Results: hits,
		Backend: resp.Backend,
	})
}

func (s *Server) handleDoc(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimSpace(r.URL.Query().Get("path"))
	if p == "" {
		writeError(w, lexerrors.New(lexerrors.ErrCodeInvalidPath, "path parameter is required", nil))
		return
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}

	doc, err := s.searcher.GetByPath(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docBody{
		OK:      true,
		Path:    doc.Path,
		Source:  doc.Source,
		Title:   doc.Title,
		MtimeMs: doc.MtimeMs,
		Text:    doc.Text,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.searcher.List(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody{OK: true, Total: len(recs), Results: recs})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.reindexer.State()
	counts := statusCounts{Indexed: state.Indexed, BySource: map[string]int{}}
	if s.counter != nil {
		bySource, err := s.counter.Counts(r.Context())
		if err != nil {
			slog.Debug("status counts unavailable", slog.String("error", err.Error()))
		} else {
			counts.BySource = bySource
			for _, n := range bySource {
				counts.Docs += n
			}
		}
	}
	writeJSON(w, http.StatusOK, statusBody{
		OK:                  true,
		EnableOCR:           s.opts.EnableOCR,
		EnableRemoteBackend: s.opts.EnableRemote,
		Counts:              counts,
		IndexState:          state,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	snap := s.opts.Stats.Snapshot()
	writeJSON(w, http.StatusOK, statsBody{
		OK:             true,
		Snapshot:       snap,
		ZeroResultRate: snap.ZeroResultPercentage(),
	})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	force := boolParam(r.URL.Query().Get("force"))
	if !force && r.Header.Get("Content-Type") == "application/json" && r.ContentLength != 0 {
		var body struct {
			Force any `json:"force"`
		}
		r.Body = http.MaxBytesReader(w, r.Body, 4096)
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			force = boolParam(jsonScalar(body.Force))
		}
	}

	state, started := s.reindexer.TriggerReindex(force)
	if !started && state.Phase == index.PhaseDisabled {
		writeError(w, store.IndexingDisabled())
		return
	}
	if !started {
		writeJSON(w, http.StatusAccepted, reindexBody{
			OK:         true,
			Message:    "reindex already running",
			IndexState: state,
		})
		return
	}
	writeJSON(w, http.StatusOK, reindexBody{OK: true, Started: true, IndexState: state})
}

func intParam(v, name string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, lexerrors.ValidationError(name+" must be an integer", nil).WithDetail(name, v)
	}
	return n, nil
}

func boolParam(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func jsonScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
