package ux

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles contains lipgloss styles for command output
type Styles struct {
	Title      lipgloss.Style
	Executed   lipgloss.Style
	Skipped    lipgloss.Style
	Muted      lipgloss.Style
	Error      lipgloss.Style
	Code       lipgloss.Style
	Suggestion lipgloss.Style
}

// NewStyles returns the default styles for output written to w. Color is
// dropped when w is not a terminal.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Executed: r.NewStyle().
			Foreground(lipgloss.Color("46")), // Green
		Skipped: r.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Muted: r.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Error: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Code: r.NewStyle().
			Foreground(lipgloss.Color("226")), // Yellow
		Suggestion: r.NewStyle().
			Foreground(lipgloss.Color("86")), // Cyan
	}
}
