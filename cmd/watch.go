package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/tui"
	"github.com/spendcap/spendcap/internal/tui/theme"
)

var flagWatchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live spend dashboard",
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&flagWatchInterval, "interval", 5*time.Second, "Refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(_ *cobra.Command, _ []string) error {
	cfg := loadAppConfig()
	theme.SetActive(cfg.Appearance.Theme)

	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return tui.Run(db, flagDays, flagWatchInterval)
}
