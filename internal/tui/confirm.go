package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// ConfirmModel is a yes/no prompt. It defaults to no: destroying an
// environment should take a deliberate keypress.
type ConfirmModel struct {
	prompt    string
	done      bool
	confirmed bool
}

// NewConfirmModel creates a confirmation prompt.
func NewConfirmModel(prompt string) ConfirmModel {
	return ConfirmModel{prompt: prompt}
}

// Init implements tea.Model.
func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

// Update handles keypresses: y confirms, anything else declines.
func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "Y":
			m.done = true
			m.confirmed = true
		case "n", "N", "q", "esc", "enter", "ctrl+c":
			m.done = true
			m.confirmed = false
		default:
			return m, nil
		}
		return m, tea.Quit
	}
	return m, nil
}

// View renders the prompt.
func (m ConfirmModel) View() string {
	if m.done {
		if m.confirmed {
			return SuccessStyle.Render("yes") + "\n"
		}
		return MutedStyle.Render("no") + "\n"
	}
	return WarningStyle.Render(m.prompt) + " " + MutedStyle.Render("[y/N]") + " "
}

// IsConfirmed returns whether the user confirmed.
func (m ConfirmModel) IsConfirmed() bool {
	return m.confirmed
}

// Confirm runs an interactive yes/no prompt and returns the answer.
func Confirm(prompt string) (bool, error) {
	model, err := tea.NewProgram(NewConfirmModel(prompt)).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}

	confirm, ok := model.(ConfirmModel)
	if !ok {
		return false, fmt.Errorf("unexpected prompt model type %T", model)
	}
	return confirm.IsConfirmed(), nil
}
