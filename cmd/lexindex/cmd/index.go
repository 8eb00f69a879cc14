package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/output"
)

func newIndexCmd(g *globalOptions) *cobra.Command {
	var force bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Crawl the roots and index every document",
		Long: `Crawl the configured roots and index every admitted document in the
foreground. Files whose modification time matches the stored record are
skipped unless --force is given.

Exits with an error if another process is already reindexing.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := g.cliLogging(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := output.New(cmd.OutOrStdout())
			var progress *output.Progress
			var onProgress func(index.IndexState)
			if !noProgress {
				progress = output.NewProgress(cmd.ErrOrStderr(), output.IsTTY(cmd.ErrOrStderr()))
				onProgress = progress.Update
			}

			a, err := newApp(cfg, onProgress)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if a.remote != nil {
				if err := a.remote.Bootstrap(ctx); err != nil {
					out.Warningf("remote backend unavailable, indexing locally only: %v", err)
				}
			}

			start := time.Now()
			state, err := a.indexer.Run(ctx, force)
			if progress != nil {
				progress.Finish()
			}
			if err != nil {
				if index.IsRunning(err) {
					out.Warning("A reindex is already running in another process")
				}
				return err
			}

			out.Successf("Indexed %d of %d documents in %s", state.Indexed, state.Total, time.Since(start).Round(time.Millisecond))
			if state.Errors > 0 {
				out.Warningf("%d files could not be indexed (see log for details)", state.Errors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-extract files even when unchanged")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw a progress bar")
	return cmd
}
