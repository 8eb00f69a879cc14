package store

import (
	"strings"
	"unicode"
)

// Highlight tags wrap matched terms in snippets.
const (
	MarkOpen  = "<mark>"
	MarkClose = "</mark>"
)

// DefaultSnippetChars is the snippet window in characters.
const DefaultSnippetChars = 240

// Snippet returns a window of text around the first occurrence of the
// first term that occurs, with whitespace collapsed and every term
// occurrence wrapped in <mark>. The window starts a quarter of its width
// before the match. Matching is case-insensitive. With no match the
// window starts at the beginning of text.
func Snippet(text string, terms []string, window int) string {
	if text == "" {
		return ""
	}
	if window <= 0 {
		window = DefaultSnippetChars
	}

	runes := []rune(text)
	lower := lowerRunes(runes)
	needles := lowerTerms(terms)

	start := 0
	for _, n := range needles {
		if i := indexRunes(lower, n, 0); i >= 0 {
			start = max(0, i-window/4)
			break
		}
	}
	end := min(len(runes), start+window)

	seg := collapseSpace(runes[start:end])
	return Mark(string(seg), terms)
}

// Mark wraps every case-insensitive occurrence of terms in text with
// <mark> tags. Overlapping occurrences are merged into one span.
func Mark(text string, terms []string) string {
	needles := lowerTerms(terms)
	if text == "" || len(needles) == 0 {
		return text
	}
	runes := []rune(text)
	lower := lowerRunes(runes)

	marked := make([]bool, len(runes))
	for _, n := range needles {
		for i := indexRunes(lower, n, 0); i >= 0; i = indexRunes(lower, n, i+len(n)) {
			for j := i; j < i+len(n); j++ {
				marked[j] = true
			}
		}
	}

	var sb strings.Builder
	in := false
	for i, r := range runes {
		if marked[i] && !in {
			sb.WriteString(MarkOpen)
			in = true
		} else if !marked[i] && in {
			sb.WriteString(MarkClose)
			in = false
		}
		sb.WriteRune(r)
	}
	if in {
		sb.WriteString(MarkClose)
	}
	return sb.String()
}

// ContainsFold reports whether text contains needle ignoring case.
// needle must already be lowercased.
func ContainsFold(text, needle string) bool {
	if needle == "" {
		return true
	}
	return indexRunes(lowerRunes([]rune(text)), []rune(needle), 0) >= 0
}

// CountFold counts non-overlapping case-insensitive occurrences of each
// needle in text, stopping at limit per needle. Needles must be lowercased.
func CountFold(text string, needles []string, limit int) []int {
	lower := lowerRunes([]rune(text))
	counts := make([]int, len(needles))
	for k, n := range needles {
		nr := []rune(n)
		if len(nr) == 0 {
			continue
		}
		for i := indexRunes(lower, nr, 0); i >= 0 && counts[k] < limit; i = indexRunes(lower, nr, i+len(nr)) {
			counts[k]++
		}
	}
	return counts
}

// lowerRunes lowercases rune by rune so indexes line up with the input.
func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func lowerTerms(terms []string) [][]rune {
	out := make([][]rune, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		out = append(out, lowerRunes([]rune(t)))
	}
	return out
}

func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j, r := range needle {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func collapseSpace(rs []rune) []rune {
	out := make([]rune, 0, len(rs))
	space := false
	for _, r := range rs {
		if unicode.IsSpace(r) {
			space = len(out) > 0
			continue
		}
		if space {
			out = append(out, ' ')
			space = false
		}
		out = append(out, r)
	}
	return out
}
