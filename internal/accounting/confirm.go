package accounting

import (
	"github.com/charmbracelet/huh"
)

// TerminalConfirmer asks a yes/no question on the controlling terminal.
// It blocks until the user answers.
type TerminalConfirmer struct{}

// Confirm renders the question and returns the answer.
func (TerminalConfirmer) Confirm(message string, def bool) (bool, error) {
	answer := def
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(message).
			Affirmative("Continue").
			Negative("Exit").
			Value(&answer),
	))
	if err := form.Run(); err != nil {
		return false, err
	}
	return answer, nil
}
