package mcp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Aman-CERP/lexindex/internal/store"
)

// FormatSearchResults renders hits as markdown. Highlight tags become
// bold markers.
func FormatSearchResults(query string, out *SearchLegalOutput) string {
	if len(out.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Showing %d of %d match", len(out.Results), out.Total)
	if out.Total != 1 {
		sb.WriteString("es")
	}
	if facets := formatFacets(out.Facets); facets != "" {
		sb.WriteString(" (" + facets + ")")
	}
	sb.WriteString("\n\n")

	for i, h := range out.Results {
		title := h.Title
		if title == "" {
			title = h.Path
		}
		fmt.Fprintf(&sb, "### %d. %s\n", i+1, markToBold(title))
		fmt.Fprintf(&sb, "`%s` · %s\n\n", h.Path, h.Source)
		if h.Snippet != "" {
			sb.WriteString("> " + markToBold(h.Snippet) + "\n\n")
		}
	}
	return sb.String()
}

func formatFacets(facets map[string]int) string {
	if len(facets) == 0 {
		return ""
	}
	keys := make([]string, 0, len(facets))
	for k := range facets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, facets[k]))
	}
	return strings.Join(parts, ", ")
}

var markReplacer = strings.NewReplacer(store.MarkOpen, "**", store.MarkClose, "**")

func markToBold(s string) string {
	return markReplacer.Replace(s)
}

// FormatDocument renders a document as markdown.
func FormatDocument(out *GetDocumentOutput) string {
	var sb strings.Builder
	title := out.Title
	if title == "" {
		title = out.Path
	}
	fmt.Fprintf(&sb, "# %s\n\n`%s` · %s\n\n", title, out.Path, out.Source)
	sb.WriteString(out.Text)
	if out.Truncated {
		sb.WriteString("\n\n_[truncated]_")
	}
	return sb.String()
}
