package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mrcode/dexshare-widget/internal/engine"
	"github.com/mrcode/dexshare-widget/internal/glucose"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n  ")
	b.WriteString(m.styles.Title.Render("Dexcom Share"))
	b.WriteString("\n\n  ")
	b.WriteString(renderReading(m.display, m.styles))
	b.WriteString("\n  ")
	b.WriteString(renderAge(m.display, m.styles, m.now))
	b.WriteString("\n")

	if status := renderStatus(m.display, m.spin.View(), m.styles); status != "" {
		b.WriteString("\n  ")
		b.WriteString(status)
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n  ")
		b.WriteString(m.styles.Banner.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(m.styles.Help.Render("r refresh   u switch units   q quit"))
	b.WriteString("\n")

	out := b.String()
	if m.width > 0 {
		out = lipgloss.NewStyle().MaxWidth(m.width).Render(out)
	}
	return out
}

// renderReading draws the value line: number, unit, arrow and trend
// label, colored by severity and dimmed once the reading goes stale.
func renderReading(st engine.DisplayState, s Styles) string {
	if st.Reading == nil {
		return s.ValueMuted.Render("--") + "  " + s.Muted.Render("no reading yet")
	}

	style := s.valueStyle(st.Severity, st.Staleness)
	value := style.Render(glucose.FormatValue(st.Reading.Value, st.Unit))
	trend := st.Reading.Trend

	return fmt.Sprintf("%s  %s  %s",
		value,
		style.Render(trend.Arrow()),
		s.Muted.Render(trend.Label()))
}

// renderAge draws the freshness line under the value.
func renderAge(st engine.DisplayState, s Styles, now time.Time) string {
	if st.Reading == nil {
		return s.Muted.Render("waiting for the first poll")
	}

	age := formatAge(st.Reading.Age(now))
	switch st.Staleness {
	case glucose.StalenessStale:
		return s.Muted.Render("updated "+age) + " " + s.Banner.Render("(stale)")
	case glucose.StalenessExpired:
		return s.Muted.Render("updated "+age) + " " + s.Banner.Render("(expired)")
	default:
		return s.Muted.Render("updated " + age)
	}
}

// renderStatus draws the activity or error line, or nothing when the
// widget is idle and healthy.
func renderStatus(st engine.DisplayState, spinnerView string, s Styles) string {
	if st.State == engine.StatePolling {
		return spinnerView + " " + s.Muted.Render("checking for a new reading")
	}
	if banner := bannerFor(st.ErrorKind); banner != "" {
		return s.Banner.Render("! " + banner)
	}
	return ""
}

// bannerFor maps an error kind to the guidance shown under the value.
func bannerFor(kind engine.ErrorKind) string {
	switch kind {
	case engine.ErrorAuth:
		return `Sign-in rejected. Run "dexshare setup" to update credentials.`
	case engine.ErrorConnectivityDegraded:
		return "Trouble reaching Dexcom Share. Still retrying each minute."
	case engine.ErrorNoData:
		return "The service has no recent readings."
	case engine.ErrorConfig:
		return "Configuration problem. Check the config file and session."
	default:
		return ""
	}
}

// formatAge renders a reading age for the freshness line.
func formatAge(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	minutes := int(d.Minutes())
	if minutes == 1 {
		return "1 minute ago"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d minutes ago", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour ago"
	}
	return fmt.Sprintf("%d hours ago", hours)
}
