// Package extract turns crawled files into plain text and a title.
//
// Formats are dispatched through a Registry keyed by extension. Scanned
// PDFs and images go through the Rasterizer and OCREngine ports, which
// wrap external tools in production and are faked in tests.
package extract

import (
	"context"
)

// Result is the extracted form of one file.
type Result struct {
	Title string
	Text  string
	// OCR is set when Text came from optical character recognition.
	OCR bool
	// Unsupported is set when the format is known but not extractable;
	// Text then holds a readable placeholder.
	Unsupported bool
}

// Strategy extracts one family of formats.
type Strategy interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, path string) (*Result, error)

// Extract calls f.
func (f StrategyFunc) Extract(ctx context.Context, path string) (*Result, error) {
	return f(ctx, path)
}

// Rasterizer renders PDF pages to images.
type Rasterizer interface {
	// Rasterize writes one image per page of pdfPath into outDir and
	// returns their paths in page order.
	Rasterize(ctx context.Context, pdfPath, outDir string, dpi int) ([]string, error)
}

// OCREngine recognizes text in an encoded image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// MaxTitleRunes bounds titles taken from document text.
const MaxTitleRunes = 200

// UnsupportedDocMarker is the text stored for legacy .doc files.
const UnsupportedDocMarker = "(.doc metin çıkarma desteklenmiyor)"
