package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/api"
	"github.com/Aman-CERP/lexindex/internal/config"
	"github.com/Aman-CERP/lexindex/internal/watcher"
)

type serveOptions struct {
	addr      string
	watch     bool
	noStartup bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP search API",
		Long: `Start the HTTP search API. A background reindex starts shortly after
the server comes up; searches are answered from the scan tier until the
index is populated.

Endpoints: /health, /search, /doc, /list, /index-status, /reindex, /stats, also
mounted under the configured prefix (default /legal).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := g.startLogging(cfg, false); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default: server.addr)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reindex when files under the roots change")
	cmd.Flags().BoolVar(&opts.noStartup, "no-startup-index", false, "Skip the reindex scheduled at startup")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions) error {
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.bootstrapRemote(ctx)
	if !opts.noStartup {
		a.indexer.ScheduleStartup(cfg.StartupDelay())
	}
	if opts.watch || cfg.Index.Watch {
		startWatcher(ctx, a)
	}

	addr := opts.addr
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := api.New(a.engine, a.indexer, a.stores, api.Options{
		EnableOCR:       cfg.Extract.EnableOCR,
		EnableRemote:    a.remote != nil,
		MountPrefix:     cfg.Server.MountPrefix,
		RateLimitPerMin: cfg.Search.RateLimitPerMin,
		Stats:           a.metrics,
	})
	err = srv.ListenAndServe(ctx, addr)

	snap := a.metrics.Snapshot()
	slog.Info("query stats",
		slog.Int64("queries", snap.TotalQueries),
		slog.Int64("zero_results", snap.ZeroResultCount),
		slog.Int64("repeats", snap.ExactRepeatCount))
	return err
}

// startWatcher runs the root watcher until ctx ends.
func startWatcher(ctx context.Context, a *app) {
	w, err := watcher.New(a.roots, a.crawler, watcher.Options{Debounce: a.cfg.WatchDebounce()})
	if err != nil {
		slog.Warn("watch mode disabled", slog.String("error", err.Error()))
		return
	}
	slog.Info("watch mode enabled", slog.String("mode", w.Mode()), slog.Duration("debounce", a.cfg.WatchDebounce()))
	go func() {
		if err := watcher.Run(ctx, w, a.indexer); err != nil {
			slog.Warn("watcher stopped", slog.String("error", err.Error()))
		}
	}()
}
