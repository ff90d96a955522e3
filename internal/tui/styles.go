package tui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	// Connection state colors
	streamingColor    = lipgloss.Color("10") // Green
	disconnectedColor = lipgloss.Color("8")  // Gray
	failedColor       = lipgloss.Color("9")  // Red
	pendingColor      = lipgloss.Color("11") // Yellow

	// UI colors
	headerBg   = lipgloss.Color("235")
	statusBg   = lipgloss.Color("236")
	helpBg     = lipgloss.Color("234")
	errorColor = lipgloss.Color("9")
	warnColor  = lipgloss.Color("11")
	dimColor   = lipgloss.Color("8")

	// Dyno name colors (for log lines)
	dynoColorList = []lipgloss.Color{
		lipgloss.Color("14"),  // Cyan
		lipgloss.Color("13"),  // Magenta
		lipgloss.Color("12"),  // Blue
		lipgloss.Color("11"),  // Yellow
		lipgloss.Color("10"),  // Green
		lipgloss.Color("208"), // Orange
		lipgloss.Color("207"), // Pink
		lipgloss.Color("159"), // Light blue
		lipgloss.Color("156"), // Light green
	}
)

// Styles
var (
	// Connection state styles
	streamingStyle = lipgloss.NewStyle().
			Foreground(streamingColor).
			Bold(true)

	disconnectedStyle = lipgloss.NewStyle().
				Foreground(disconnectedColor)

	failedStyle = lipgloss.NewStyle().
			Foreground(failedColor).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(pendingColor)

	// Header style
	headerStyle = lipgloss.NewStyle().
			Background(headerBg).
			Padding(0, 1)

	filterBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			MarginBottom(1)

	// Status bar style
	statusStyle = lipgloss.NewStyle().
			Background(statusBg).
			Padding(0, 1)

	// Help overlay style
	helpStyle = lipgloss.NewStyle().
			Background(helpBg).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	// Level styles
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("15")).
			Background(errorColor).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(warnColor).
			Bold(true)

	noticeErrStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// Dim style for timestamps
	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Dyno colors for log lines
	dynoColors []lipgloss.Style
)

func init() {
	for _, color := range dynoColorList {
		dynoColors = append(dynoColors, lipgloss.NewStyle().Foreground(color))
	}
}
