package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/lexindex/internal/config"
	"github.com/Aman-CERP/lexindex/internal/crawler"
	"github.com/Aman-CERP/lexindex/internal/extract"
	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/search"
	"github.com/Aman-CERP/lexindex/internal/store"
	"github.com/Aman-CERP/lexindex/internal/telemetry"
)

// app is the wired component graph every command runs against.
type app struct {
	cfg       *config.Config
	roots     []crawler.Root
	crawler   *crawler.Crawler
	extractor *extract.Extractor
	stores    *store.IndexStore
	remote    *store.RemoteStore
	indexer   *index.Indexer
	engine    *search.Engine
	metrics   *telemetry.QueryMetrics
}

// newApp builds the crawler, extractor, stores, indexer and search engine
// from cfg. onProgress may be nil.
func newApp(cfg *config.Config, onProgress func(index.IndexState)) (*app, error) {
	a := &app{cfg: cfg, metrics: telemetry.New(telemetry.DefaultConfig())}
	for _, r := range cfg.Roots {
		a.roots = append(a.roots, crawler.Root{Path: r.Path, Source: r.Source})
	}
	if len(a.roots) == 0 {
		slog.Warn("no document roots configured or found")
	}

	var err error
	a.crawler, err = crawler.New(crawler.Options{
		MaxRecords:       cfg.Crawl.MaxFiles,
		MaxFileSize:      cfg.MaxFileSizeBytes(),
		ExcludeDirs:      cfg.Crawl.ExcludeDirs,
		ExcludePathParts: cfg.Crawl.ExcludePathParts,
		ExcludeGlobs:     cfg.Crawl.ExcludeGlobs,
		IgnoreFile:       cfg.Crawl.IgnoreFile,
		EnableOCR:        cfg.Extract.EnableOCR,
	})
	if err != nil {
		return nil, err
	}

	a.extractor, err = extract.New(extract.Options{
		EnableOCR:       cfg.Extract.EnableOCR,
		EnablePDFOCR:    cfg.Extract.EnablePDFOCR,
		MinPDFTextChars: cfg.Extract.MinPDFTextChars,
		RasterDPI:       cfg.Extract.RasterDPI,
		OCRPageWorkers:  cfg.Extract.OCRPageWorkers,
		CacheSize:       cfg.Extract.CacheSize,
		Rasterizer: extract.PdftoppmRasterizer{
			Binary:  cfg.Extract.RasterizerPath,
			Timeout: cfg.ToolTimeout(),
		},
		OCR: extract.TesseractEngine{
			Binary:    cfg.Extract.TesseractPath,
			Languages: cfg.Extract.OCRLanguages,
			Timeout:   cfg.ToolTimeout(),
		},
	})
	if err != nil {
		return nil, err
	}

	var embedded store.Backend
	if cfg.Index.EnableFTS {
		embedded, err = store.OpenEmbedded(cfg.Index.DataDir, cfg.Index.Backend, store.Options{
			SnippetChars:  cfg.Search.SnippetChars,
			SnippetTokens: cfg.Search.SnippetTokens,
			Weights: store.Weights{
				Path:    cfg.Search.BM25.Path,
				Title:   cfg.Search.BM25.Title,
				Content: cfg.Search.BM25.Content,
			},
			DefaultLimit: cfg.Search.DefaultLimit,
			MaxLimit:     cfg.Search.MaxLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Index.Backend, err)
		}
	}

	var remote store.Backend
	if cfg.Remote.Enabled() {
		a.remote, err = store.NewRemoteStore(store.RemoteOptions{
			URL:              cfg.Remote.URL,
			APIKey:           cfg.Remote.APIKey,
			Index:            cfg.Remote.Index,
			Timeout:          cfg.RemoteTimeout(),
			FailureThreshold: cfg.Remote.FailureThreshold,
			ResetTimeout:     cfg.RemoteResetTimeout(),
			DefaultLimit:     cfg.Search.DefaultLimit,
			MaxLimit:         cfg.Search.MaxLimit,
		})
		if err != nil {
			if embedded != nil {
				_ = embedded.Close()
			}
			return nil, err
		}
		remote = a.remote
	}
	a.stores = store.NewIndexStore(embedded, remote)

	a.indexer, err = index.New(a.crawler, a.extractor, a.stores, index.Options{
		Roots:      a.roots,
		Workers:    cfg.Index.Workers,
		DataDir:    cfg.Index.DataDir,
		OnProgress: onProgress,
	})
	if err != nil {
		_ = a.stores.Close()
		return nil, err
	}

	scan := search.NewScanBackend(a.indexer, a.extractor, search.ScanOptions{
		Candidates:   cfg.Search.ScanCandidates,
		MaxScored:    cfg.Search.ScanMaxResults,
		SnippetChars: cfg.Search.SnippetChars,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	})
	a.engine = search.NewEngine(a.stores.Chain(), scan, search.Options{
		MaxTerms:     cfg.Search.MaxTerms,
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		ListDefault:  cfg.Search.ListDefaultLimit,
		ListMax:      cfg.Search.ListMaxLimit,
		Recorder:     a.metrics,
	})

	slog.Debug("app wired",
		slog.Int("roots", len(a.roots)),
		slog.Bool("fts", embedded != nil),
		slog.Bool("remote", a.remote != nil),
		slog.Int("tiers", len(a.engine.Backends())))
	return a, nil
}

// bootstrapRemote prepares the remote index in the background. Failure
// only means queries skip the remote tier until it recovers.
func (a *app) bootstrapRemote(ctx context.Context) {
	if a.remote == nil {
		return
	}
	go func() {
		if err := a.remote.Bootstrap(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("remote backend bootstrap failed", slog.String("error", err.Error()))
		}
	}()
}

// Close stops background indexing and closes the stores.
func (a *app) Close() error {
	_ = a.indexer.Close()
	return a.stores.Close()
}
