// Package tui provides the live spend dashboard.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/spendcap/spendcap/internal/cli"
	"github.com/spendcap/spendcap/internal/report"
	"github.com/spendcap/spendcap/internal/store"
	"github.com/spendcap/spendcap/internal/tui/theme"
)

// dataMsg is sent when a store refresh completes.
type dataMsg struct {
	summary  report.Summary
	models   []report.ModelRow
	sessions []store.Session
}

// errMsg is sent when a store refresh fails.
type errMsg struct{ err error }

// tickMsg drives periodic refresh.
type tickMsg time.Time

// Model is the root Bubble Tea model for the watch dashboard.
type Model struct {
	db       *store.Store
	days     int
	interval time.Duration

	width  int
	height int

	spinner spinner.Model
	loaded  bool
	err     error

	summary     report.Summary
	models      []report.ModelRow
	sessions    []store.Session
	lastRefresh time.Time
}

// NewModel builds the dashboard model over an open store.
func NewModel(db *store.Store, days int, interval time.Duration) Model {
	if interval < 2*time.Second {
		interval = 5 * time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)

	return Model{
		db:       db,
		days:     days,
		interval: interval,
		spinner:  sp,
	}
}

// Run starts the dashboard and blocks until the user quits.
func Run(db *store.Store, days int, interval time.Duration) error {
	_, err := tea.NewProgram(NewModel(db, days, interval), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load, m.tick())
}

func (m Model) load() tea.Msg {
	summary, models, _, err := report.Build(m.db, m.days)
	if err != nil {
		return errMsg{err}
	}
	sessions, _, err := m.db.ListSessions(8, 0)
	if err != nil {
		return errMsg{err}
	}
	return dataMsg{summary: summary, models: models, sessions: sessions}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.load
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.load, m.tick())

	case dataMsg:
		m.loaded = true
		m.err = nil
		m.summary = msg.summary
		m.models = msg.models
		m.sessions = msg.sessions
		m.lastRefresh = time.Now()
		return m, nil

	case errMsg:
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	t := theme.Active

	title := lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Render("spendcap")
	sub := lipgloss.NewStyle().Foreground(t.TextMuted).
		Render(fmt.Sprintf("  last %d days", m.days))
	header := title + sub

	if m.err != nil {
		errLine := lipgloss.NewStyle().Foreground(t.Red).Render("error: " + m.err.Error())
		return header + "\n\n" + errLine + "\n\n" + m.footer()
	}
	if !m.loaded {
		return header + "\n\n" + m.spinner.View() + " loading...\n"
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	b.WriteString(m.statCards())
	b.WriteString("\n")
	if block := m.modelBlock(); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	if block := m.sessionBlock(); block != "" {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) statCards() string {
	t := theme.Active

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 2)
	label := lipgloss.NewStyle().Foreground(t.TextMuted)
	value := lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary)

	cards := []string{
		card.Render(label.Render("cost ") + value.Render(cli.FormatCost(m.summary.Cost))),
		card.Render(label.Render("tokens ") + value.Render(cli.FormatTokens(m.summary.TotalTokens))),
		card.Render(label.Render("requests ") + value.Render(cli.FormatNumber(m.summary.Requests))),
		card.Render(label.Render("sessions ") + value.Render(cli.FormatNumber(int64(m.summary.Sessions)))),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func (m Model) modelBlock() string {
	if len(m.models) == 0 {
		return ""
	}
	t := theme.Active

	heading := lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Render("Models")
	row := lipgloss.NewStyle().Foreground(t.TextMuted)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	n := len(m.models)
	if n > 5 {
		n = 5
	}
	for _, mr := range m.models[:n] {
		b.WriteString(row.Render(fmt.Sprintf("  %-42s %10s %8s  %s",
			mr.Model,
			cli.FormatCost(mr.Cost),
			cli.FormatTokens(mr.InputTokens+mr.OutputTokens),
			cli.FormatPercent(mr.Share))))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) sessionBlock() string {
	if len(m.sessions) == 0 {
		return ""
	}
	t := theme.Active

	heading := lipgloss.NewStyle().Bold(true).Foreground(t.TextPrimary).Render("Recent sessions")
	row := lipgloss.NewStyle().Foreground(t.TextMuted)
	active := lipgloss.NewStyle().Foreground(t.Green)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	for _, s := range m.sessions {
		status := row.Render(s.Status)
		if s.Status == "active" {
			status = active.Render(s.Status)
		}
		name := s.DisplayName
		if name == "" {
			name = s.ID
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			row.Render(s.CreatedAt.Local().Format("Jan 02 15:04")),
			status,
			row.Render(name)))
	}
	return b.String()
}

func (m Model) footer() string {
	t := theme.Active
	style := lipgloss.NewStyle().Foreground(t.TextDim)

	refreshed := ""
	if !m.lastRefresh.IsZero() {
		refreshed = "  refreshed " + m.lastRefresh.Format("15:04:05")
	}
	return style.Render("r refresh  q quit" + refreshed)
}
