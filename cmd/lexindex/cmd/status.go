package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/index"
	"github.com/Aman-CERP/lexindex/internal/output"
)

// statusReport is the JSON shape of `lexindex status --json`.
type statusReport struct {
	Roots      []rootStatus     `json:"roots"`
	Backend    string           `json:"backend"`
	EnableFTS  bool             `json:"enableFts"`
	DataDir    string           `json:"dataDir"`
	Docs       int              `json:"docs"`
	BySource   map[string]int   `json:"bySource"`
	Remote     *remoteStatus    `json:"remote,omitempty"`
	IndexState index.IndexState `json:"indexState"`
}

type rootStatus struct {
	Path   string `json:"path"`
	Source string `json:"source"`
}

type remoteStatus struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

func newStatusCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show indexed document counts and backend health",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := g.cliLogging(cfg); err != nil {
				return err
			}
			a, err := newApp(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			report, err := buildStatus(cmd.Context(), a)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := output.New(cmd.OutOrStdout())
			for _, r := range report.Roots {
				out.Statusf("📁", "%s (%s)", r.Path, r.Source)
			}
			if !report.EnableFTS {
				out.Warning("Embedded full-text index is disabled (index.enable_fts: false)")
			} else {
				out.Statusf("🗄️ ", "%s store in %s", report.Backend, report.DataDir)
			}
			if report.Remote != nil {
				if report.Remote.Reachable {
					out.Successf("Meilisearch reachable at %s", report.Remote.URL)
				} else {
					out.Warningf("Meilisearch unreachable at %s: %s", report.Remote.URL, report.Remote.Error)
				}
			}
			out.IndexStatus(report.BySource, report.IndexState)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

func buildStatus(ctx context.Context, a *app) (*statusReport, error) {
	counts, err := a.stores.Counts(ctx)
	if err != nil {
		return nil, err
	}
	r := &statusReport{
		Backend:    a.cfg.Index.Backend,
		EnableFTS:  a.cfg.Index.EnableFTS,
		DataDir:    a.cfg.Index.DataDir,
		BySource:   counts,
		IndexState: a.indexer.State(),
	}
	for _, root := range a.roots {
		r.Roots = append(r.Roots, rootStatus{Path: root.Path, Source: root.Source})
	}
	for _, n := range counts {
		r.Docs += n
	}
	if a.remote != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		rs := &remoteStatus{URL: a.cfg.Remote.URL, Reachable: true}
		if err := a.remote.Ping(pingCtx); err != nil {
			rs.Reachable = false
			rs.Error = err.Error()
		}
		r.Remote = rs
	}
	return r, nil
}
