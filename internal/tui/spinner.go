package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// DoneMsg finishes the spinner with a final status line.
type DoneMsg struct {
	Success bool
	Message string
}

// MessageMsg replaces the spinner message while the task runs.
type MessageMsg string

// SpinnerModel animates a spinner next to a status message until a
// DoneMsg arrives. Ctrl+C or q cancels.
type SpinnerModel struct {
	spinner      spinner.Model
	message      string
	done         bool
	success      bool
	finalMessage string
}

// NewSpinnerModel builds a spinner showing message.
func NewSpinnerModel(message string) SpinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return SpinnerModel{spinner: s, message: message}
}

// Init implements tea.Model.
func (m SpinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.done = true
			m.success = false
			m.finalMessage = "Cancelled"
			return m, tea.Quit
		}

	case MessageMsg:
		m.message = string(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.success = msg.Success
		m.finalMessage = msg.Message
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m SpinnerModel) View() string {
	if m.done {
		if m.finalMessage == "" {
			return ""
		}
		if m.success {
			return SuccessStyle.Render(StatusSuccess) + " " + m.finalMessage + "\n"
		}
		return ErrorStyle.Render(StatusError) + " " + m.finalMessage + "\n"
	}
	return m.spinner.View() + " " + m.message
}

// IsDone reports whether the spinner has finished.
func (m SpinnerModel) IsDone() bool {
	return m.done
}

// IsSuccess reports whether the task behind the spinner succeeded.
func (m SpinnerModel) IsSuccess() bool {
	return m.success
}

// RunSpinnerWithTask runs task while animating a spinner, then leaves
// the final status line on the terminal. Returns the task's error.
func RunSpinnerWithTask(message string, task func() error) error {
	p := tea.NewProgram(NewSpinnerModel(message))

	var taskErr error
	go func() {
		// Let at least one frame render before a fast task finishes.
		time.Sleep(50 * time.Millisecond)

		taskErr = task()
		if taskErr != nil {
			p.Send(DoneMsg{Success: false, Message: fmt.Sprintf("Failed: %v", taskErr)})
			return
		}
		p.Send(DoneMsg{Success: true, Message: "Complete"})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("spinner error: %w", err)
	}
	return taskErr
}
