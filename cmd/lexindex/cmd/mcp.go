package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/mcp"
)

func newMCPCmd(g *globalOptions) *cobra.Command {
	var noStartup bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
search_legal, get_document, list_documents, index_status and reindex
tools. Logs go to a file so stdout carries only protocol messages.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := g.startLogging(cfg, true); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			a.bootstrapRemote(ctx)
			if !noStartup {
				a.indexer.ScheduleStartup(cfg.StartupDelay())
			}
			if cfg.Index.Watch {
				startWatcher(ctx, a)
			}

			srv, err := mcp.NewServer(a.engine, a.indexer, a.stores, mcp.Options{
				EnableOCR:    cfg.Extract.EnableOCR,
				EnableRemote: a.remote != nil,
			})
			if err != nil {
				return err
			}
			return srv.Serve(ctx, "stdio")
		},
	}

	cmd.Flags().BoolVar(&noStartup, "no-startup-index", false, "Skip the reindex scheduled at startup")
	return cmd
}
