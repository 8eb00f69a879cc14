package store

// Weights are per-column BM25 weights for path, title and content.
type Weights struct {
	Path    float64
	Title   float64
	Content float64
}

// Options tune ranking and snippets for the embedded backends.
type Options struct {
	// SnippetChars is the substring-match snippet window.
	SnippetChars int
	// SnippetTokens is the FTS5 snippet() token budget.
	SnippetTokens int
	Weights       Weights
	// DefaultLimit applies when a query carries no limit.
	DefaultLimit int
	MaxLimit     int
}

// DefaultOptions returns the stock ranking and snippet settings.
func DefaultOptions() Options {
	return Options{
		SnippetChars:  DefaultSnippetChars,
		SnippetTokens: 32,
		Weights:       Weights{Path: 1.2, Title: 0.75, Content: 1.0},
		DefaultLimit:  20,
		MaxLimit:      50,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SnippetChars <= 0 {
		o.SnippetChars = d.SnippetChars
	}
	if o.SnippetTokens <= 0 {
		o.SnippetTokens = d.SnippetTokens
	}
	if o.Weights == (Weights{}) {
		o.Weights = d.Weights
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = d.DefaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = d.MaxLimit
	}
	return o
}
