package mcp

import (
	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/store"
)

// SearchLegalInput is the search_legal tool input.
type SearchLegalInput struct {
	Query  string `json:"query" jsonschema:"keywords to search for in statutes and case law"`
	Source string `json:"source,omitempty" jsonschema:"restrict to one source, e.g. mevzuat or yargi"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10, at most 50"`
	Mode   string `json:"mode,omitempty" jsonschema:"fts (ranked, default), like (substring) or scan (read files directly)"`
}

// SearchLegalOutput is the structured search_legal result.
type SearchLegalOutput struct {
	Total   int            `json:"total"`
	Facets  map[string]int `json:"facets"`
	Results []store.Hit    `json:"results"`
	Backend string         `json:"backend"`
}

// GetDocumentInput is the get_document tool input.
type GetDocumentInput struct {
	Path     string `json:"path" jsonschema:"absolute path of the document, as returned by search_legal"`
	MaxChars int    `json:"max_chars,omitempty" jsonschema:"truncate the text to this many characters, default 20000"`
}

// GetDocumentOutput is the get_document result.
type GetDocumentOutput struct {
	Path      string `json:"path"`
	Source    string `json:"source"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// ListDocumentsInput is the list_documents tool input.
type ListDocumentsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of documents, default 100, at most 500"`
}

// ListDocumentsOutput is the list_documents result.
type ListDocumentsOutput struct {
	Total     int                    `json:"total"`
	Documents []store.DocumentRecord `json:"documents"`
}

// IndexStatusInput takes no parameters.
type IndexStatusInput struct{}

// IndexStatusOutput is the index_status result.
type IndexStatusOutput struct {
	Docs                int              `json:"docs"`
	BySource            map[string]int   `json:"bySource"`
	EnableOCR           bool             `json:"enableOcr"`
	EnableRemoteBackend bool             `json:"enableRemoteBackend"`
	IndexState          index.IndexState `json:"indexState"`
}

// ReindexInput is the reindex tool input.
type ReindexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"re-extract files whose modification time is unchanged"`
}

// ReindexOutput is the reindex result.
type ReindexOutput struct {
	Started    bool             `json:"started"`
	Message    string           `json:"message"`
	IndexState index.IndexState `json:"indexState"`
}

// defaultDocChars bounds get_document text so one call cannot flood the
// client's context.
const defaultDocChars = 20000
