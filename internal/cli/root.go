package cli

import (
	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/config"
)

var (
	configPath string
	dbPath     string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "zine-landing",
	Short: "Zine landing page funnel with built-in A/B tests",
	Long: `zine-landing serves the zine landing funnel, assigns visitors to the
design and price experiments, tracks engagement, and collects waitlist
signups. Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'zine-landing serve').`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runServe, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./"+config.FileName+")")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides store.path)")
}

// loadConfig reads configuration, applies flag overrides and sets up
// logging before any command runs.
func loadConfig(cmd *cobra.Command, args []string) error {
	// init writes the config file, so it must not require one.
	if cmd.Name() == "init" {
		c := config.Defaults()
		cfg = &c
		return nil
	}

	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.Store.Path = dbPath
	}
	if err := config.InitLogger(c.Log); err != nil {
		return err
	}
	cfg = c
	return nil
}
