package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMark(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		terms []string
		want  string
	}{
		{"single term", "Kira bedeli", []string{"kira"}, "<mark>Kira</mark> bedeli"},
		{"every occurrence", "kira ve KİRA", []string{"kira"}, "<mark>kira</mark> ve <mark>KİRA</mark>"},
		{"overlapping terms merge", "sözleşmesi", []string{"söz", "sözleşme"}, "<mark>sözleşme</mark>si"},
		{"no terms", "metin", nil, "metin"},
		{"blank term ignored", "metin", []string{" "}, "metin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mark(tt.text, tt.terms))
		})
	}
}

func TestSnippet_WindowAroundFirstMatch(t *testing.T) {
	// Given: a match far into a long text
	text := strings.Repeat("a ", 500) + "kira bedeli" + strings.Repeat(" b", 500)

	// When: taking a 240 character snippet
	got := Snippet(text, []string{"kira"}, 240)

	// Then: the window starts 60 characters before the match
	plain := strings.NewReplacer(MarkOpen, "", MarkClose, "").Replace(got)
	assert.Contains(t, got, "<mark>kira</mark> bedeli")
	assert.Equal(t, 60, strings.Index(plain, "kira"))
	assert.LessOrEqual(t, len([]rune(plain)), 240)
}

func TestSnippet_UsesFirstTermThatOccurs(t *testing.T) {
	text := "başlangıç " + strings.Repeat("x", 300) + " tahliye"

	got := Snippet(text, []string{"yok", "tahliye"}, 100)

	assert.True(t, strings.HasSuffix(got, "<mark>tahliye</mark>"))
}

func TestSnippet_NoMatchStartsAtBeginning(t *testing.T) {
	got := Snippet("ilk   satır\n\nikinci", []string{"yok"}, 240)

	assert.Equal(t, "ilk satır ikinci", got)
}

func TestCountFold(t *testing.T) {
	text := strings.Repeat("Kira ", 30) + "tahliye"

	got := CountFold(text, []string{"kira", "tahliye", "yok"}, 20)

	assert.Equal(t, []int{20, 1, 0}, got)
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"kira", "tespit"}, Terms("  KİRA\ttespit ", 8))
	assert.Len(t, Terms("a b c d e f g h i j", 8), 8)
	assert.Empty(t, Terms("   ", 8))
}
