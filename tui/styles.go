package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6b7280")
	destructive = lipgloss.Color("#e53935")
	border      = lipgloss.Color("#2a3850")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	helpStyle  = lipgloss.NewStyle().Foreground(muted)
	errorStyle = lipgloss.NewStyle().Foreground(destructive)

	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1).
			Width(28)
	dropTargetStyle = columnStyle.BorderForeground(accent)

	headerStyle   = lipgloss.NewStyle().Bold(true).MarginBottom(1)
	cardStyle     = lipgloss.NewStyle()
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	draggingStyle = lipgloss.NewStyle().Foreground(muted).Italic(true)

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(destructive).
			Padding(0, 1)
)
