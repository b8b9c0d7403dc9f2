package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/cli"
	"github.com/spendcap/spendcap/internal/report"
	"github.com/spendcap/spendcap/internal/store"
)

var flagUsageSession string

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Usage and cost summary",
	RunE:  runUsage,
}

func init() {
	usageCmd.Flags().StringVarP(&flagUsageSession, "session", "s", "", "Restrict to one session id")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if flagUsageSession != "" {
		return sessionUsage(db, flagUsageSession)
	}

	summary, models, days, err := report.Build(db, flagDays)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title: fmt.Sprintf("USAGE  Last %dd", flagDays),
		Rows: [][]string{
			{"Sessions", cli.FormatNumber(int64(summary.Sessions))},
			{"Requests", cli.FormatNumber(summary.Requests)},
			{"Input tokens", cli.FormatTokens(summary.InputTokens)},
			{"Output tokens", cli.FormatTokens(summary.OutputTokens)},
			{"Total tokens", cli.FormatTokens(summary.TotalTokens)},
			{"Cost", cli.FormatCost(summary.Cost)},
			{"Duration", cli.FormatDuration(int64(summary.DurationSecs))},
			{"Active days", cli.FormatNumber(int64(summary.ActiveDays))},
			{"Cost/day", cli.FormatCost(summary.CostPerDay)},
			{"Tokens/day", cli.FormatTokens(summary.TokensPerDay)},
		},
	}))

	if len(models) > 0 {
		rows := make([][]string, 0, len(models))
		for _, m := range models {
			rows = append(rows, []string{
				m.Model,
				cli.FormatNumber(m.Requests),
				cli.FormatTokens(m.InputTokens + m.OutputTokens),
				cli.FormatCost(m.Cost),
				cli.FormatPercent(m.Share),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "BY MODEL",
			Headers: []string{"Model", "Requests", "Tokens", "Cost", "Share"},
			Rows:    rows,
		}))
	}

	var dailyRows [][]string
	for _, d := range days {
		if d.Requests == 0 {
			continue
		}
		dailyRows = append(dailyRows, []string{
			d.Date.Format("2006-01-02"),
			cli.FormatNumber(d.Requests),
			cli.FormatTokens(d.InputTokens + d.OutputTokens),
			cli.FormatCost(d.Cost),
		})
	}
	if len(dailyRows) > 0 {
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "BY DAY",
			Headers: []string{"Day", "Requests", "Tokens", "Cost"},
			Rows:    dailyRows,
		}))
	}

	return nil
}

// sessionUsage prints totals and the model breakdown for one session.
func sessionUsage(db *store.Store, sessionID string) error {
	sess, err := db.GetSession(sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %q not found", sessionID)
	}

	totals, err := db.SessionUsage(sessionID)
	if err != nil {
		return err
	}
	models, err := db.UsageByModel(sessionID)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title: "SESSION " + sessionID,
		Rows: [][]string{
			{"Status", sess.Status},
			{"Started", sess.CreatedAt.Local().Format("Jan 02 15:04")},
			{"Requests", cli.FormatNumber(totals.Requests)},
			{"Input tokens", cli.FormatTokens(totals.InputTokens)},
			{"Output tokens", cli.FormatTokens(totals.OutputTokens)},
			{"Cost", cli.FormatUSD(totals.Cost)},
			{"Duration", cli.FormatDuration(int64(totals.Duration))},
		},
	}))

	if len(models) > 0 {
		rows := make([][]string, 0, len(models))
		for _, m := range report.Breakdown(models) {
			rows = append(rows, []string{
				m.Model,
				cli.FormatNumber(m.Requests),
				cli.FormatTokens(m.InputTokens + m.OutputTokens),
				cli.FormatCost(m.Cost),
				cli.FormatPercent(m.Share),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "BY MODEL",
			Headers: []string{"Model", "Requests", "Tokens", "Cost", "Share"},
			Rows:    rows,
		}))
	}

	return nil
}
