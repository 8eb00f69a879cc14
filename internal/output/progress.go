package output

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Aman-CERP/lexindex/internal/index"
)

// Progress renders reindex progress as a bar. The bar is created on the
// first update that knows the file total.
type Progress struct {
	out   io.Writer
	color bool

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

// NewProgress creates a progress renderer writing to out.
func NewProgress(out io.Writer, color bool) *Progress {
	return &Progress{out: out, color: color}
}

// Update advances the bar. It matches index.Options.OnProgress and is
// safe to call from several workers.
func (p *Progress) Update(st index.IndexState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st.Total <= 0 {
		return
	}
	if p.bar == nil {
		desc := "Indexing"
		theme := progressbar.Theme{Saucer: "=", SaucerHead: ">", SaucerPadding: " ", BarStart: "[", BarEnd: "]"}
		if p.color {
			desc = "[cyan]Indexing[reset]"
			theme.Saucer = "[green]=[reset]"
			theme.SaucerHead = "[green]>[reset]"
		}
		p.bar = progressbar.NewOptions(st.Total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionEnableColorCodes(p.color),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionSetTheme(theme),
		)
	}
	_ = p.bar.Set(st.Processed())
}

// Finish completes the bar if one was drawn.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		_, _ = io.WriteString(p.out, "\n")
	}
}
