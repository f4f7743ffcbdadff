package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/moolen/primeline/internal/analysis"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("#00D4FF") // Cyan
	colorError   = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Width(14)

	numberStyle = lipgloss.NewStyle().
			Bold(true)

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError)
)

// Summary renders a compact styled digest of one report, one line per
// headline number. Used by listings where the full markdown report
// would be too loud.
func Summary(r *analysis.Report) string {
	var b strings.Builder

	title := "analysis"
	if r.SessionID != "" {
		title = "session " + r.SessionID
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	writeSummaryLine(&b, "events", fmt.Sprintf("%d", r.EventCount), numberStyle)
	writeSummaryLine(&b, "components", fmt.Sprintf("%d", r.ComponentCount), numberStyle)

	if r.Stats != nil {
		writeSummaryLine(&b, "error events", fmt.Sprintf("%d", r.Stats.ErrorEvents), numberStyle)
		writeSummaryLine(&b, "total weight", fmt.Sprintf("%.4g", r.Stats.TotalWeight), numberStyle)
		if len(r.Stats.Labels) > 0 {
			top := r.Stats.Labels[0]
			writeSummaryLine(&b, "top label", fmt.Sprintf("%s (%d)", top.Label, top.Count), numberStyle)
		}
	}

	if r.Anomalies != nil {
		style := numberStyle
		if r.Anomalies.Count > 0 {
			style = alertStyle
		}
		writeSummaryLine(&b, "anomalies", fmt.Sprintf("%d", r.Anomalies.Count), style)
	}

	if len(r.Skipped) > 0 {
		writeSummaryLine(&b, "skipped", fmt.Sprintf("%d", len(r.Skipped)), numberStyle)
	}

	return b.String()
}

func writeSummaryLine(b *strings.Builder, label, value string, style lipgloss.Style) {
	b.WriteString(labelStyle.Render(label) + " " + style.Render(value) + "\n")
}
