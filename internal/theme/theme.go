package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailassist/internal/transcript"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a full-screen view.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ToastStyle renders transient error notices.
var ToastStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// ModeStyle returns the badge style for a context mode label.
func ModeStyle(mode string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch mode {
	case "search":
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGreen)
	}
}

// RoleLabelStyle returns the style for the speaker label of an entry.
func RoleLabelStyle(role transcript.Role) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch role {
	case transcript.RoleUser:
		return base.Foreground(ColorBlue)
	case transcript.RoleAssistant:
		return base.Foreground(ColorGreen)
	case transcript.RoleSystem:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// ContentStyle returns the body style for an entry. System entries are
// errors and render in red.
func ContentStyle(role transcript.Role) lipgloss.Style {
	if role == transcript.RoleSystem {
		return lipgloss.NewStyle().Foreground(ColorRed)
	}
	return lipgloss.NewStyle().Foreground(ColorWhite)
}
