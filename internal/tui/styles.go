package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette shared by the export progress view
var (
	accent    = lipgloss.Color("#2563EB")
	accentEnd = lipgloss.Color("#06B6D4")
	ok        = lipgloss.Color("#10B981")
	warn      = lipgloss.Color("#F59E0B")
	fail      = lipgloss.Color("#EF4444")
	border    = lipgloss.Color("#6B7280")
	faint     = lipgloss.Color("#64748B")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8FAFC")).
			Background(accent).
			Padding(0, 2).
			MarginBottom(1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 2)

	HelpStyle    = lipgloss.NewStyle().Foreground(faint)
	HelpKeyStyle = lipgloss.NewStyle().Foreground(accentEnd).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ok)
	ErrorStyle   = lipgloss.NewStyle().Foreground(fail)
	WarningStyle = lipgloss.NewStyle().Foreground(warn)
	SpinnerStyle = lipgloss.NewStyle().Foreground(accent)
)

// RenderHelp renders a key and its description for a help bar
func RenderHelp(key, desc string) string {
	return HelpKeyStyle.Render(key) + HelpStyle.Render(" "+desc)
}
