package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/eugenenazirov/zetafill/internal/analysis"
	"github.com/eugenenazirov/zetafill/internal/packing"
	"github.com/eugenenazirov/zetafill/internal/sequence"
)

const histogramWidth = 40

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorWhite  = lipgloss.Color("255")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel  = lipgloss.NewStyle().Foreground(colorDim).Width(12)
	styleValue  = lipgloss.NewStyle().Foreground(colorWhite)
	styleNumber = lipgloss.NewStyle().Foreground(colorCyan)
	styleBar    = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarn   = lipgloss.NewStyle().Foreground(colorYellow)
	styleError  = lipgloss.NewStyle().Foreground(colorRed)
	styleBox    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

// renderReport writes the summary block followed by the histogram.
func renderReport(w io.Writer, p packing.Params, r analysis.JamReport) error {
	p = p.Normalize()
	var b strings.Builder

	b.WriteString(styleTitle.Render("Jam statistics") + "\n")
	row := func(label, value string) {
		b.WriteString(styleLabel.Render(label) + styleValue.Render(value) + "\n")
	}
	row("sequence", describeSequence(p))
	row("dimension", fmt.Sprintf("%d", p.Dimension))
	row("trials", fmt.Sprintf("%d", len(r.Trials)))
	row("jammed", fmt.Sprintf("%d", r.Jammed))
	row("exhausted", fmt.Sprintf("%d", r.Exhausted))
	row("disks", fmt.Sprintf("min %d  mean %.2f  max %d", r.MinDisks, r.MeanDisks, r.MaxDisks))

	summary := styleBox.Render(strings.TrimRight(b.String(), "\n"))
	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}

	if r.Exhausted > 0 {
		note := fmt.Sprintf("%d trials reached the disk limit; raise --max-disks to see their jams", r.Exhausted)
		if _, err := fmt.Fprintln(w, styleWarn.Render("! "+note)); err != nil {
			return err
		}
	}

	_, err := io.WriteString(w, renderHistogram(r.Histogram))
	return err
}

func describeSequence(p packing.Params) string {
	s := p.Sequence
	switch sequence.Family(strings.ToLower(string(s.Family))) {
	case sequence.Fixed:
		return fmt.Sprintf("fixed area %g in a box of side %g", s.Area, p.BoxSide)
	case sequence.Geometric:
		return fmt.Sprintf("geometric base %g", s.Base)
	case sequence.Harmonic:
		return fmt.Sprintf("harmonic offset %g", s.Offset)
	case sequence.Hurwitz:
		return fmt.Sprintf("hurwitz s=%g a=%g", s.Exponent, s.Offset)
	default:
		return fmt.Sprintf("%s s=%g", s.Family, s.Exponent)
	}
}

// renderHistogram draws one bar per disk count, scaled to the largest bin.
func renderHistogram(bins []analysis.Bin) string {
	if len(bins) == 0 {
		return ""
	}
	peak := 0
	labelWidth := 0
	for _, bin := range bins {
		peak = max(peak, bin.Count)
		labelWidth = max(labelWidth, len(fmt.Sprint(bin.Disks)))
	}

	var b strings.Builder
	for _, bin := range bins {
		n := max(1, bin.Count*histogramWidth/peak)
		label := fmt.Sprintf("%*d", labelWidth, bin.Disks)
		fmt.Fprintf(&b, "%s %s %s\n",
			styleNumber.Render(label),
			styleBar.Render(strings.Repeat("█", n)),
			styleValue.Render(fmt.Sprint(bin.Count)),
		)
	}
	return b.String()
}
