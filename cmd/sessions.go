package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spendcap/spendcap/internal/cli"
)

var (
	sessionsLimit  int
	sessionsOffset int

	newSessionModel    string
	newSessionProvider string
	newSessionName     string
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List tracked sessions",
	RunE:  runSessions,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new active session",
	RunE:  runSessionsNew,
}

var sessionsEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "Mark a session completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsEnd,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its records",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "l", 20, "Number of sessions to show")
	sessionsCmd.Flags().IntVar(&sessionsOffset, "offset", 0, "Pagination offset")

	sessionsNewCmd.Flags().StringVarP(&newSessionModel, "model", "m", "", "Model for the session")
	sessionsNewCmd.Flags().StringVarP(&newSessionProvider, "provider", "p", "", "Provider for the session")
	sessionsNewCmd.Flags().StringVar(&newSessionName, "name", "", "Display name")

	sessionsCmd.AddCommand(sessionsNewCmd)
	sessionsCmd.AddCommand(sessionsEndCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	sessions, total, err := db.ListSessions(sessionsLimit, sessionsOffset)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Println("\n  No sessions found.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		u, err := db.SessionUsage(s.ID)
		if err != nil {
			return err
		}
		name := s.DisplayName
		if name == "" {
			name = s.Model
		}
		rows = append(rows, []string{
			s.ID,
			s.CreatedAt.Local().Format("Jan 02 15:04"),
			s.Status,
			truncate(name, 28),
			cli.FormatTokens(u.InputTokens + u.OutputTokens),
			cli.FormatCost(u.Cost),
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   fmt.Sprintf("SESSIONS  showing %d of %d", len(sessions), total),
		Headers: []string{"ID", "Started", "Status", "Name", "Tokens", "Cost"},
		Rows:    rows,
	}))
	return nil
}

func runSessionsNew(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	cfg := loadAppConfig()
	model := newSessionModel
	if model == "" {
		model = cfg.General.Model
	}
	provider := newSessionProvider
	if provider == "" {
		provider = cfg.General.Provider
	}

	sess, err := db.CreateSession(model, provider, newSessionName)
	if err != nil {
		return err
	}
	fmt.Printf("  Started session %s (%s)\n", sess.ID, model)
	return nil
}

func runSessionsEnd(_ *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.EndSession(args[0]); err != nil {
		return err
	}
	fmt.Printf("  Ended session %s\n", args[0])
	return nil
}

func runSessionsDelete(_ *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.DeleteSession(args[0]); err != nil {
		return err
	}
	fmt.Printf("  Deleted session %s\n", args[0])
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
