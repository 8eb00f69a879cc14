// Package output formats search results, documents and status for the
// terminal, with colors when stdout is a TTY.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/store"
)

// Writer provides formatted output for the CLI.
type Writer struct {
	out    io.Writer
	color  bool
	styles Styles
}

// New creates a Writer that colors output when out is a terminal and
// NO_COLOR is unset.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

// NewWithColor creates a Writer with color explicitly on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	w := &Writer{out: out, color: color, styles: NoColorStyles()}
	if color {
		w.styles = DefaultStyles(lipgloss.NewRenderer(out))
	}
	return w
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// Status prints a message with an icon.
// Write errors are ignored for console output.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message.
func (w *Writer) Success(msg string) {
	w.Status("✅", w.styles.Success.Render(msg))
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", w.styles.Warning.Render(msg))
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", w.styles.Error.Render(msg))
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Highlight replaces <mark> spans with the mark style, or with ** when
// color is off.
func (w *Writer) Highlight(s string) string {
	var sb strings.Builder
	for {
		i := strings.Index(s, store.MarkOpen)
		if i < 0 {
			break
		}
		rest := s[i+len(store.MarkOpen):]
		j := strings.Index(rest, store.MarkClose)
		if j < 0 {
			break
		}
		sb.WriteString(s[:i])
		if w.color {
			sb.WriteString(w.styles.Mark.Render(rest[:j]))
		} else {
			sb.WriteString("**" + rest[:j] + "**")
		}
		s = rest[j+len(store.MarkClose):]
	}
	sb.WriteString(s)
	return sb.String()
}

// SearchResults prints a result page.
func (w *Writer) SearchResults(query string, resp *store.Response) {
	if resp == nil || len(resp.Results) == 0 {
		_, _ = fmt.Fprintf(w.out, "No results found for %q\n", query)
		return
	}
	_, _ = fmt.Fprintf(w.out, "%s %s\n",
		w.styles.Header.Render(fmt.Sprintf("%d of %d", len(resp.Results), resp.Total)),
		w.styles.Label.Render(fmt.Sprintf("(%s, via %s)", FormatCounts(resp.Facets), resp.Backend)))

	for i, h := range resp.Results {
		title := h.Title
		if title == "" {
			title = h.Path
		}
		_, _ = fmt.Fprintf(w.out, "\n%2d. %s  %s\n", i+1,
			w.styles.Title.Render(w.Highlight(title)),
			w.styles.Source.Render(h.Source))
		_, _ = fmt.Fprintf(w.out, "    %s\n", w.styles.Path.Render(h.Path))
		if h.Snippet != "" {
			_, _ = fmt.Fprintf(w.out, "    %s\n", w.Highlight(h.Snippet))
		}
	}
}

// Document prints a stored document.
func (w *Writer) Document(doc *store.StoredDocument) {
	title := doc.Title
	if title == "" {
		title = doc.Path
	}
	_, _ = fmt.Fprintf(w.out, "%s  %s\n%s\n\n%s\n",
		w.styles.Header.Render(title),
		w.styles.Source.Render(doc.Source),
		w.styles.Path.Render(doc.Path),
		doc.Text)
}

// IndexStatus prints document counts and the reindex state.
func (w *Writer) IndexStatus(counts map[string]int, st index.IndexState) {
	total := 0
	for _, n := range counts {
		total += n
	}
	_, _ = fmt.Fprintf(w.out, "%s %d (%s)\n", w.styles.Header.Render("Documents:"), total, FormatCounts(counts))

	switch {
	case st.Running:
		_, _ = fmt.Fprintf(w.out, "%s %s %d/%d, %d errors\n",
			w.styles.Header.Render("Reindex:"), st.Phase, st.Processed(), st.Total, st.Errors)
	case st.LastRunEnd > 0:
		_, _ = fmt.Fprintf(w.out, "%s idle, last run indexed %d of %d with %d errors\n",
			w.styles.Header.Render("Reindex:"), st.Indexed, st.Total, st.Errors)
	default:
		_, _ = fmt.Fprintf(w.out, "%s never run in this process\n", w.styles.Header.Render("Reindex:"))
	}
	if st.LastError != "" {
		w.Warning(st.LastError)
	}
}

// FormatCounts renders per-source counts as "a: 1, b: 2" sorted by name.
func FormatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}
