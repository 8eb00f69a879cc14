package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// TextStrategy reads plain text and Markdown as UTF-8.
// The title is the first non-empty line.
type TextStrategy struct{}

// Extract implements Strategy.
func (TextStrategy) Extract(_ context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := normalizeText(string(data))
	title := firstLine(text)
	if title == "" {
		title = filepath.Base(path)
	}
	return &Result{Title: title, Text: text}, nil
}

// normalizeText repairs invalid UTF-8, drops a byte order mark and NULs,
// and converts line endings to \n.
func normalizeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// firstLine returns the first non-empty line, trimmed and cut to
// MaxTitleRunes.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return truncateRunes(line, MaxTitleRunes)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
