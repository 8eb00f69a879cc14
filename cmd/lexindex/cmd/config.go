package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/lexindex/internal/config"
	"github.com/Aman-CERP/lexindex/internal/output"
)

func newConfigCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage lexindex configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/lexindex/config.yaml)
  3. Project config (./lexindex.yaml or --config)
  4. Environment variables (LEXINDEX_*, plus ./.env)`,
		Example: `  # Write a project config with every default spelled out
  lexindex config init

  # Show the effective configuration
  lexindex config show`,
	}

	cmd.AddCommand(newConfigInitCmd(g))
	cmd.AddCommand(newConfigShowCmd(g))
	return cmd
}

func newConfigInitCmd(g *globalOptions) *cobra.Command {
	var force bool
	var user bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file with defaults",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path := config.GetUserConfigPath()
			if !user {
				dir, err := g.workDir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, config.ProjectFileName)
			}

			var backup string
			if force {
				b, err := config.BackupFile(path)
				if err != nil {
					return err
				}
				backup = b
			} else if exists(path) {
				out.Warning("Configuration already exists")
				out.Statusf("📁", "Location: %s", path)
				out.Status("💡", "Use --force to overwrite it (a backup is kept)")
				return nil
			}

			if err := config.WriteTemplate(path); err != nil {
				return err
			}
			out.Success("Created configuration")
			out.Statusf("📁", "Location: %s", path)
			if backup != "" {
				out.Statusf("💾", "Backup: %s", backup)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file after backing it up")
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of ./lexindex.yaml")
	return cmd
}

func newConfigShowCmd(g *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Remote.APIKey != "" {
				cfg.Remote.APIKey = "********"
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
