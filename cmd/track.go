package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/accounting"
	"github.com/spendcap/spendcap/internal/cli"
	"github.com/spendcap/spendcap/internal/pricing"
	"github.com/spendcap/spendcap/internal/usage"
)

var (
	flagTrackModel    string
	flagTrackProvider string
	flagTrackRefresh  bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Account LLM response payloads read from stdin",
	Long: `Reads one JSON response payload per line from stdin, accounts its token
usage and cost against the current session, and enforces configured limits.
Blank lines are skipped; malformed lines are reported and skipped.`,
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().StringVarP(&flagTrackModel, "model", "m", "", "Model for rate resolution (default from config)")
	trackCmd.Flags().StringVarP(&flagTrackProvider, "provider", "p", "", "Provider for rate resolution")
	trackCmd.Flags().BoolVar(&flagTrackRefresh, "refresh-pricing", false, "Fetch the latest model prices before tracking")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cfg := loadAppConfig()
	model := flagTrackModel
	if model == "" {
		model = cfg.General.Model
	}
	provider := flagTrackProvider
	if provider == "" {
		provider = cfg.General.Provider
	}

	registry := pricing.NewRegistry()
	if cfg.Pricing.File != "" {
		if err := registry.LoadFile(cfg.Pricing.File); err != nil {
			return fmt.Errorf("loading pricing file: %w", err)
		}
	}
	if flagTrackRefresh {
		fetcher := pricing.NewFetcher(cfg.Pricing.FeedURL)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := fetcher.Refresh(ctx, registry)
		cancel()
		if err != nil && !flagQuiet {
			cli.Errorf("pricing refresh failed: %v (using local rates)", err)
		}
	}

	// Every tracked call belongs to a session; start one if none is active.
	current, err := db.CurrentSession()
	if err != nil {
		return err
	}
	if current == nil {
		sess, err := db.CreateSession(model, provider, "")
		if err != nil {
			return err
		}
		if !flagQuiet {
			fmt.Fprintf(os.Stderr, "  Started session %s\n", sess.ID)
		}
	}

	handler := accounting.New(accounting.Options{
		ModelName: model,
		Provider:  provider,
		Lookup:    registry,
		Recorder:  db,
		Sessions:  db,
		Settings:  db,
		Quiet:     flagQuiet || !db.GetBool("show_cost", true),
	})

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var lineNo int
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var resp usage.Response
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			cli.Errorf("line %d: %v", lineNo, err)
			continue
		}

		handler.OnCallStart("")
		handler.OnCallEnd(&resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	if !flagQuiet {
		printStats(handler.GetStats())
	}
	return nil
}

func printStats(stats accounting.Stats) {
	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title: "SESSION",
		Rows: [][]string{
			{"Model", stats.Model},
			{"Requests", cli.FormatNumber(int64(stats.SuccessfulRequests))},
			{"Input tokens", cli.FormatNumber(int64(stats.Session.InputTokens))},
			{"Output tokens", cli.FormatNumber(int64(stats.Session.OutputTokens))},
			{"Total tokens", cli.FormatNumber(int64(stats.Session.Tokens))},
			{"Cost", cli.FormatUSD(stats.Session.Cost.InexactFloat64())},
			{"Duration", cli.FormatDuration(int64(stats.Session.Duration))},
		},
	}))
}
