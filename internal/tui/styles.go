package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#7C3AED") // Purple
	UpColor        = lipgloss.Color("#26A69A") // Green
	DownColor      = lipgloss.Color("#EF5350") // Red
	SMAColor       = lipgloss.Color("#2962FF") // Blue
	BorderColor    = lipgloss.Color("#374151")
	TextColor      = lipgloss.Color("#F9FAFB")
	TextMutedColor = lipgloss.Color("#6B7280")
)

var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor)

	UpStyle    = lipgloss.NewStyle().Foreground(UpColor)
	DownStyle  = lipgloss.NewStyle().Foreground(DownColor)
	SMAStyle   = lipgloss.NewStyle().Foreground(SMAColor)
	AxisStyle  = lipgloss.NewStyle().Foreground(TextMutedColor)
	MutedStyle = lipgloss.NewStyle().Foreground(TextMutedColor)
	ValueStyle = lipgloss.NewStyle().Foreground(TextColor).Bold(true)
)

// candleStyle picks the color of a bar or volume column.
func candleStyle(up bool) lipgloss.Style {
	if up {
		return UpStyle
	}
	return DownStyle
}
