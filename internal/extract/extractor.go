package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/lexindex/internal/crawler"
	lexerrors "github.com/Aman-CERP/lexindex/internal/errors"
)

// Options configures an Extractor.
type Options struct {
	// EnableOCR registers image formats and allows the PDF fallback.
	EnableOCR bool
	// EnablePDFOCR enables the scanned-PDF fallback (requires EnableOCR).
	EnablePDFOCR    bool
	MinPDFTextChars int
	RasterDPI       int
	OCRPageWorkers  int
	CacheSize       int
	Rasterizer      Rasterizer
	OCR             OCREngine
}

// Extractor dispatches files to format strategies and caches results by
// path and mtime.
type Extractor struct {
	registry *Registry
	cache    *ContentCache
}

// New creates an Extractor with the standard strategies registered.
func New(opts Options) (*Extractor, error) {
	cache, err := NewContentCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(nil)
	reg.Register(TextStrategy{}, ".txt", ".md", ".markdown")
	reg.Register(DocxStrategy{}, ".docx")
	reg.Register(LegacyDocStrategy{}, ".doc")
	reg.Register(NewPDFStrategy(PDFOptions{
		OCR:          opts.EnableOCR && opts.EnablePDFOCR,
		Rasterizer:   opts.Rasterizer,
		Engine:       opts.OCR,
		MinTextChars: opts.MinPDFTextChars,
		DPI:          opts.RasterDPI,
		PageWorkers:  opts.OCRPageWorkers,
	}), ".pdf")
	if opts.EnableOCR {
		reg.Register(ImageStrategy{Engine: opts.OCR}, crawler.ImageExtensions...)
	}

	return &Extractor{registry: reg, cache: cache}, nil
}

// NewWithRegistry creates an Extractor over a caller-built registry.
func NewWithRegistry(reg *Registry, cacheSize int) (*Extractor, error) {
	cache, err := NewContentCache(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Extractor{registry: reg, cache: cache}, nil
}

// Registry exposes the strategy registry so callers can add formats.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Cache exposes the content cache.
func (e *Extractor) Cache() *ContentCache {
	return e.cache
}

// Extract returns the text and title of rec. A cached result with the
// same mtime is returned without touching the file. Failures, including
// panics inside a strategy, come back as errors and nothing is cached.
func (e *Extractor) Extract(ctx context.Context, rec crawler.FileRecord) (res *Result, err error) {
	if cached, ok := e.cache.Get(rec.Path, rec.MtimeMs); ok {
		return cached, nil
	}

	strategy, _ := e.registry.Lookup(rec.Ext())
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = lexerrors.New(lexerrors.ErrCodeExtractFailed, "extractor panicked", fmt.Errorf("%v", r)).
				WithDetail("path", rec.Path)
		}
		if err != nil {
			slog.Warn("extraction failed",
				slog.String("path", rec.Path),
				slog.String("error", err.Error()))
		}
	}()

	res, err = strategy.Extract(ctx, rec.Path)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, lexerrors.New(lexerrors.ErrCodeExtractFailed, "extractor returned no result", nil)
	}

	e.cache.Put(rec.Path, rec.MtimeMs, res)
	slog.Debug("extracted",
		slog.String("path", rec.Path),
		slog.Int("chars", len(res.Text)),
		slog.Bool("ocr", res.OCR),
		slog.Duration("duration", time.Since(start)))

	out := *res
	return &out, nil
}
