// Package report renders analysis results for the terminal: a markdown
// document built from the report sections, styled through glamour when
// stdout is a terminal, plus a compact lipgloss summary for listings.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/moolen/primeline/internal/analysis"
)

// maxMatrixSize bounds the transition matrix rendering. Larger matrices
// are summarized instead of tabulated.
const maxMatrixSize = 12

// maxSpectralPeaks bounds the spectral table to the strongest bins.
const maxSpectralPeaks = 8

// maxAnomalyIndices bounds the listed anomaly positions.
const maxAnomalyIndices = 20

// maxSingularValues bounds the listed singular value profile.
const maxSingularValues = 8

// Build produces the markdown document for one analysis report.
func Build(r *analysis.Report) string {
	var b strings.Builder

	if r.SessionID != "" {
		fmt.Fprintf(&b, "# Error analysis: session %s\n\n", r.SessionID)
	} else {
		b.WriteString("# Error analysis\n\n")
	}
	fmt.Fprintf(&b, "Generated %s. %d events across %d components.\n",
		r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), r.EventCount, r.ComponentCount)

	if r.Stats != nil {
		writeStats(&b, r.Stats)
	}
	if r.Anomalies != nil {
		writeAnomalies(&b, r.Anomalies)
	}
	if r.Spectral != nil {
		writeSpectral(&b, r.Spectral)
	}
	if r.Patterns != nil {
		writePatterns(&b, r.Patterns)
	}
	if r.Transitions != nil {
		writeTransitions(&b, r.Transitions)
	}
	if len(r.Skipped) > 0 {
		writeSkipped(&b, r.Skipped)
	}

	return b.String()
}

func writeStats(b *strings.Builder, s *analysis.StatsReport) {
	b.WriteString("\n## Statistics\n\n")
	fmt.Fprintf(b, "%d of %d events carry error labels, total log weight %.4g.\n",
		s.ErrorEvents, s.TotalEvents, s.TotalWeight)

	if len(s.Labels) > 0 {
		b.WriteString("\n| Label | Count |\n|---|---|\n")
		for _, lc := range s.Labels {
			fmt.Fprintf(b, "| %s | %d |\n", lc.Label, lc.Count)
		}
	}

	writeComponentTable(b, "Top callers", s.TopCallers)
	writeComponentTable(b, "Top callees", s.TopCallees)
}

func writeComponentTable(b *strings.Builder, title string, stats []analysis.ComponentStat) {
	if len(stats) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", title)
	b.WriteString("| Component | Events | Weight |\n|---|---|---|\n")
	for _, cs := range stats {
		fmt.Fprintf(b, "| %s | %d | %.4g |\n", cs.Component, cs.Events, cs.Weight)
	}
}

func writeAnomalies(b *strings.Builder, a *analysis.AnomalyReport) {
	b.WriteString("\n## Anomalies\n\n")
	if a.Count == 0 {
		fmt.Fprintf(b, "No events exceed the threshold %.4g (mean %.4g, stddev %.4g).\n",
			a.Threshold, a.Mean, a.StdDev)
		return
	}
	fmt.Fprintf(b, "%d events exceed the threshold %.4g (mean %.4g, stddev %.4g).\n",
		a.Count, a.Threshold, a.Mean, a.StdDev)

	shown := a.Indices
	if len(shown) > maxAnomalyIndices {
		shown = shown[:maxAnomalyIndices]
	}
	parts := make([]string, len(shown))
	for i, idx := range shown {
		parts[i] = fmt.Sprintf("%d", idx)
	}
	fmt.Fprintf(b, "\nEvent positions: %s", strings.Join(parts, ", "))
	if rest := len(a.Indices) - len(shown); rest > 0 {
		fmt.Fprintf(b, " and %d more", rest)
	}
	b.WriteString("\n")
}

func writeSpectral(b *strings.Builder, s *analysis.SpectralReport) {
	b.WriteString("\n## Spectral profile\n\n")
	fmt.Fprintf(b, "%d samples at %.4g s spacing.\n", s.SampleCount, s.SampleSpacing)
	if !s.Normalized {
		b.WriteString("The spectrum is all zero and left unnormalized.\n")
		return
	}

	peaks := append([]analysis.SpectralPoint(nil), s.Points...)
	sort.SliceStable(peaks, func(i, j int) bool { return peaks[i].Amplitude > peaks[j].Amplitude })
	if len(peaks) > maxSpectralPeaks {
		peaks = peaks[:maxSpectralPeaks]
	}
	if len(peaks) == 0 {
		return
	}

	b.WriteString("\n| Frequency (Hz) | Amplitude |\n|---|---|\n")
	for _, p := range peaks {
		fmt.Fprintf(b, "| %.4g | %.4g |\n", p.FrequencyHz, p.Amplitude)
	}
}

func writePatterns(b *strings.Builder, p *analysis.PatternReport) {
	b.WriteString("\n## Recurring patterns\n\n")
	fmt.Fprintf(b, "Singular value profile of the %dx%d time-by-pair matrix:\n\n", p.Rows, p.Cols)

	values := p.SingularValues
	if len(values) > maxSingularValues {
		values = values[:maxSingularValues]
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4g", v)
	}
	b.WriteString(strings.Join(parts, ", "))
	if rest := len(p.SingularValues) - len(values); rest > 0 {
		fmt.Fprintf(b, " and %d more", rest)
	}
	b.WriteString("\n")
}

func writeTransitions(b *strings.Builder, tr *analysis.TransitionReport) {
	b.WriteString("\n## Transitions\n\n")
	n := len(tr.Matrix)
	fmt.Fprintf(b, "%d observed transitions.\n", tr.Transitions)
	if n == 0 {
		return
	}
	if n > maxMatrixSize {
		fmt.Fprintf(b, "Transition matrix omitted (%d components).\n", n)
		return
	}

	b.WriteString("\n| from \\ to |")
	for j := 0; j < n; j++ {
		fmt.Fprintf(b, " %d |", j)
	}
	b.WriteString("\n|---|")
	for j := 0; j < n; j++ {
		b.WriteString("---|")
	}
	b.WriteString("\n")
	for i, row := range tr.Matrix {
		fmt.Fprintf(b, "| %d |", i)
		for _, v := range row {
			fmt.Fprintf(b, " %.3f |", v)
		}
		b.WriteString("\n")
	}
}

func writeSkipped(b *strings.Builder, skipped map[string]string) {
	b.WriteString("\n## Skipped analyses\n\n")
	names := make([]string, 0, len(skipped))
	for name := range skipped {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, "- %s: %s\n", name, skipped[name])
	}
}
