package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/config"
	"github.com/Aman-CERP/lexindex/internal/crawler"
	"github.com/Aman-CERP/lexindex/internal/output"
	"github.com/Aman-CERP/lexindex/internal/preflight"
)

type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check roots, data directory, OCR tools and backends",
		Long: `Check that lexindex can run here: roots are readable, the data
directory is writable with free space, OCR tools are on PATH when OCR is
enabled, the embedded index opens cleanly, and the remote backend answers.

Exits non-zero when a required check fails.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if err := g.cliLogging(cfg); err != nil {
				return err
			}

			var a *app
			defer func() {
				if a != nil {
					_ = a.Close()
				}
			}()
			checker := preflight.New(doctorOptions(cfg, &a))
			results := checker.RunAll(cmd.Context())
			report := doctorReport{Status: preflight.SummaryStatus(results), Checks: results}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printDoctor(output.New(cmd.OutOrStdout()), report, verbose)
			}
			if preflight.HasCriticalFailures(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")
	return cmd
}

// doctorOptions maps cfg onto checks. The index probe opens the app and
// stores it in *a for the remote probe.
func doctorOptions(cfg *config.Config, a **app) preflight.Options {
	opts := preflight.Options{ProbeTimeout: cfg.RemoteTimeout()}
	for _, r := range cfg.Roots {
		opts.Roots = append(opts.Roots, crawler.Root{Path: r.Path, Source: r.Source})
	}
	if cfg.Index.EnableFTS {
		opts.DataDir = cfg.Index.DataDir
	}
	if cfg.Extract.EnableOCR {
		opts.Tools = append(opts.Tools, preflight.Tool{
			Name: "tesseract", Binary: cfg.Extract.TesseractPath, Required: true,
		})
		if cfg.Extract.EnablePDFOCR {
			opts.Tools = append(opts.Tools, preflight.Tool{
				Name: "pdftoppm", Binary: cfg.Extract.RasterizerPath,
			})
		}
	}

	opts.Probes = append(opts.Probes, preflight.Probe{
		Name:     "index",
		Required: true,
		Run: func(ctx context.Context) (string, error) {
			opened, err := newApp(cfg, nil)
			if err != nil {
				return "", err
			}
			*a = opened
			if !cfg.Index.EnableFTS {
				return "embedded index disabled, scan tier only", nil
			}
			counts, err := opened.stores.Counts(ctx)
			if err != nil {
				return "", err
			}
			total := 0
			for _, n := range counts {
				total += n
			}
			return fmt.Sprintf("%s store opened, %d documents (%s)",
				cfg.Index.Backend, total, output.FormatCounts(counts)), nil
		},
	})

	if cfg.Remote.Enabled() {
		opts.Probes = append(opts.Probes, preflight.Probe{
			Name: "remote",
			Run: func(ctx context.Context) (string, error) {
				if *a == nil || (*a).remote == nil {
					return "", errors.New("remote backend not initialized")
				}
				if err := (*a).remote.Ping(ctx); err != nil {
					return "", err
				}
				return "Meilisearch reachable at " + cfg.Remote.URL, nil
			},
		})
	}
	return opts
}

func printDoctor(out *output.Writer, report doctorReport, verbose bool) {
	for _, r := range report.Checks {
		line := fmt.Sprintf("%s: %s", r.Name, r.Message)
		switch {
		case r.Status == preflight.StatusPass:
			out.Success(line)
		case r.IsCritical():
			out.Error(line)
		default:
			out.Warning(line)
		}
		if r.Details != "" && (verbose || r.Status != preflight.StatusPass) {
			out.Status("  ", r.Details)
		}
	}
	out.Newline()
	out.Statusf("🩺", "Status: %s", strings.ToUpper(report.Status))
}
