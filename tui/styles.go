// ABOUTME: Defines lipgloss style constants for the chat layout, message roles, progress, and toasts.
// ABOUTME: Provides small helpers for labeled one-line fields used in result rendering.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Message roles
	UserLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	AssistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))

	// Live progress lines under an in-flight request
	ProgressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)

	// Errors and notices
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	ToastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("214")).
			Foreground(lipgloss.Color("214")).
			Padding(0, 1)

	// Result fields
	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	QueryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// Embed panel
	EmbedStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Conversation list
	ThreadStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ActiveThreadStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
)

// field renders one "Label  value" line for result detail views.
func field(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}
