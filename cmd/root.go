package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/cli"
	"github.com/spendcap/spendcap/internal/config"
	"github.com/spendcap/spendcap/internal/store"
)

var (
	flagDB    string
	flagDays  int
	flagQuiet bool
)

var rootCmd = &cobra.Command{
	Use:   "spendcap",
	Short: "LLM spend tracking and limit enforcement",
	Long:  "Track token usage and cost across LLM sessions, enforce spend ceilings, and serve usage data locally.",
	RunE:  runUsage,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Database path (default: XDG data dir)")
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 30, "Time window in days")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress advisory output")
}

// loadAppConfig loads the config file, falling back to defaults so every
// command can run without one.
func loadAppConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		if !flagQuiet {
			cli.Errorf("config: %v (using defaults)", err)
		}
		return config.DefaultConfig()
	}
	return cfg
}

// openStore opens the database shared by all commands. The --db flag wins
// over the config file.
func openStore() (*store.Store, error) {
	path := flagDB
	if path == "" {
		path = loadAppConfig().DBPath()
	}
	return store.Open(path)
}
