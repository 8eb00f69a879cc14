// Package cmd provides the CLI commands for lexindex.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/lexindex/internal/config"
	"github.com/Aman-CERP/lexindex/internal/logging"
	"github.com/Aman-CERP/lexindex/internal/profiling"
	"github.com/Aman-CERP/lexindex/pkg/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	debug      bool
	configPath string
	dir        string
	profile    profiling.Options

	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the lexindex CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&globalOptions{})
}

func newRootCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lexindex",
		Short: "Local full-text search over statutes and court decisions",
		Long: `lexindex crawls folders of legal documents (txt, md, pdf, docx, doc and,
with OCR, images), extracts their text, and serves ranked keyword search
with highlighted snippets over HTTP, MCP and the command line.

Run 'lexindex serve' in a directory with Mevzuat/ and Yargı/ folders, or
configure roots in lexindex.yaml.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("lexindex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file (default: ./lexindex.yaml)")
	cmd.PersistentFlags().StringVar(&g.dir, "dir", "", "Working directory for relative roots and .env (default: current)")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return g.startProfiling() }
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error { return g.finish() }

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newDocCmd(g))
	cmd.AddCommand(newMCPCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newDoctorCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command. Profiles and logs are flushed even when
// the command fails.
func Execute() error {
	g := &globalOptions{}
	err := newRootCmd(g).Execute()
	if ferr := g.finish(); err == nil {
		err = ferr
	}
	return err
}

func (g *globalOptions) startProfiling() error {
	if !g.profile.Enabled() {
		return nil
	}
	s, err := profiling.Start(g.profile)
	if err != nil {
		return err
	}
	g.profiler = s
	return nil
}

// finish stops profiling, then logging.
func (g *globalOptions) finish() error {
	err := g.profiler.Stop()
	g.profiler = nil
	g.stopLogging()
	return err
}

// workDir returns --dir or the current directory.
func (g *globalOptions) workDir() (string, error) {
	if g.dir != "" {
		return g.dir, nil
	}
	return os.Getwd()
}

// loadConfig loads configuration for the working directory.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	dir, err := g.workDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return config.Load(dir, g.configPath)
}

// startLogging installs the slog default for cfg. Commands that speak a
// protocol on stdout pass quiet to keep stderr clean and log to file.
func (g *globalOptions) startLogging(cfg *config.Config, quiet bool) error {
	lc := logging.DefaultConfig()
	if quiet {
		lc = logging.MCPConfig(cfg.Logging.Level)
	}
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	if cfg.Logging.File != "" {
		lc.FilePath = cfg.Logging.File
	}
	lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	lc.MaxFiles = cfg.Logging.MaxFiles
	if g.debug {
		lc.Level = "debug"
		if lc.FilePath == "" {
			lc.FilePath = logging.DefaultLogPath()
		}
	}

	cleanup, err := logging.SetupDefault(lc)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	g.loggingCleanup = cleanup
	slog.Debug("logging configured", slog.String("level", lc.Level), slog.String("file", lc.FilePath))
	return nil
}

func (g *globalOptions) stopLogging() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// cliLogging sets up logging for one-shot commands: warnings and above on
// stderr unless --debug.
func (g *globalOptions) cliLogging(cfg *config.Config) error {
	if !g.debug && cfg.Logging.File == "" {
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "text"
	}
	return g.startLogging(cfg, false)
}
