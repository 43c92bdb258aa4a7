package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains lipgloss styles for notifications and listings
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Info    lipgloss.Style
	Muted   lipgloss.Style
	Badge   lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Info: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")), // Blue
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Badge: lipgloss.NewStyle().
			Background(lipgloss.Color("63")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
	}
}

// PlainStyles renders every style without colour, for pipes and NO_COLOR.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:   plain,
		Status:  plain,
		Error:   plain,
		Success: plain,
		Info:    plain,
		Muted:   plain,
		Badge:   plain,
	}
}
