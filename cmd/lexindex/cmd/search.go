package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/output"
	"github.com/Aman-CERP/lexindex/internal/search"
	"github.com/Aman-CERP/lexindex/internal/store"
)

type searchOptions struct {
	source     string
	limit      int
	mode       string
	jsonOutput bool
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search the indexed documents and print ranked results with highlighted
snippets.

Modes: fts (ranked full-text, default), like (substring), scan (read the
files directly, works before the first index run).

Examples:
  lexindex search "kira bedeli"
  lexindex search tahliye --source yargi --limit 5
  lexindex search "fazla mesai" --mode scan --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := g.cliLogging(cfg); err != nil {
				return err
			}
			mode, err := store.ParseMode(opts.mode)
			if err != nil {
				return err
			}

			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			query := strings.Join(args, " ")
			resp, err := a.engine.Search(cmd.Context(), search.Request{
				Query:  query,
				Source: opts.source,
				Limit:  opts.limit,
				Mode:   mode,
			})
			if err != nil {
				return err
			}

			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			output.New(cmd.OutOrStdout()).SearchResults(query, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Restrict to one source (e.g. mevzuat, yargi)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.default_limit)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "fts", "Match mode: fts, like, scan")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
