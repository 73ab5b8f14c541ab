package ui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	orange  = lipgloss.Color("#FF6700")
	red     = lipgloss.Color("#FF0000")
	dark    = lipgloss.Color("#0A0E27")

	bannerStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true)

	titleStyle = lipgloss.NewStyle().
			Background(magenta).
			Foreground(dark).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(yellow)

	successStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(orange).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	highlightStyle = lipgloss.NewStyle().
			Foreground(magenta)

	barStyle = lipgloss.NewStyle().
			Foreground(green)

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#333333"))
)
