package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// Theme defines the widget's colors. The severity colors match the
// badge renderer so the terminal view and the taskbar badge agree.
type Theme struct {
	Name string

	Text    string
	Muted   string
	Accent  string
	Normal  string
	Low     string
	High    string
	Warning string
}

// DefaultTheme is the built-in palette.
func DefaultTheme() Theme {
	return Theme{
		Name:    "default",
		Text:    "#e5e7eb",
		Muted:   "#9ca3af",
		Accent:  "#60a5fa",
		Normal:  "#4ade80",
		Low:     "#ef4444",
		High:    "#f97316",
		Warning: "#facc15",
	}
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),

		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		ValueNormal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Normal)).
			Bold(true),

		ValueLow: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Low)).
			Bold(true),

		ValueHigh: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.High)).
			Bold(true),

		ValueMuted: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Bold(true),

		Banner: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Faint(true),
	}
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Title lipgloss.Style
	Text  lipgloss.Style
	Muted lipgloss.Style

	ValueNormal lipgloss.Style
	ValueLow    lipgloss.Style
	ValueHigh   lipgloss.Style
	ValueMuted  lipgloss.Style

	Banner lipgloss.Style
	Help   lipgloss.Style
}

// valueStyle picks the style for the glucose number. Anything not
// fresh renders muted so an old number never looks reassuring.
func (s Styles) valueStyle(severity glucose.Severity, staleness glucose.Staleness) lipgloss.Style {
	if staleness != glucose.StalenessFresh {
		return s.ValueMuted
	}
	switch severity {
	case glucose.SeverityLow:
		return s.ValueLow
	case glucose.SeverityHigh:
		return s.ValueHigh
	case glucose.SeverityNormal:
		return s.ValueNormal
	default:
		return s.ValueMuted
	}
}
