// Package tui provides the terminal components the LaunchBay CLI uses:
// consistent styling, a progress spinner for orchestration passes and a
// confirmation prompt for destructive commands.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorPrimary = lipgloss.Color("33")
	ColorSuccess = lipgloss.Color("42")
	ColorError   = lipgloss.Color("196")
	ColorWarning = lipgloss.Color("214")
	ColorMuted   = lipgloss.Color("240")
)

var (
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	SpinnerStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
)

// Status markers. Plain ASCII so piped output stays readable.
const (
	StatusSuccess = "[OK]"
	StatusError   = "[ERR]"
	StatusInfo    = "[INFO]"
)

// RenderSuccess renders a success message with its marker.
func RenderSuccess(text string) string {
	return SuccessStyle.Render(StatusSuccess + " " + text)
}

// RenderError renders an error message with its marker.
func RenderError(text string) string {
	return ErrorStyle.Render(StatusError + " " + text)
}

// RenderInfo renders an informational message with its marker.
func RenderInfo(text string) string {
	return MutedStyle.Render(StatusInfo + " " + text)
}
