package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/reference"
)

var (
	colorSilent   = lipgloss.Color("#2CD7C7")
	colorDeclared = lipgloss.Color("#F4D03F")
	colorMuted    = lipgloss.Color("#6C7A89")
)

var styles = struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Muted    lipgloss.Style
	Silent   lipgloss.Style
	Declared lipgloss.Style
	Box      lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true),
	Label:    lipgloss.NewStyle().Width(18).Foreground(colorMuted),
	Muted:    lipgloss.NewStyle().Foreground(colorMuted),
	Silent:   lipgloss.NewStyle().Bold(true).Foreground(colorSilent),
	Declared: lipgloss.NewStyle().Bold(true).Foreground(colorDeclared),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorMuted).
		Padding(0, 1),
}

// terminalWidth returns the width of w when it is a terminal, else 80.
func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 20 {
			return width
		}
	}
	return 80
}

func row(label, value string) string {
	return styles.Label.Render(label) + value
}

// renderRun formats a run output for humans.
func renderRun(out *judge.RunOutput, width int) string {
	var lines []string
	lines = append(lines, styles.Title.Render("Judge run "+out.RunID))

	if ps, ok := out.ProblemState(); ok {
		lines = append(lines,
			row("verdict", styles.Declared.Render(string(ps.ProblemType))),
			row("confidence", string(ps.Confidence)),
			row("scope", string(ps.ProblemScope)),
			row("summary", ps.Summary),
		)
		if len(ps.MetricsInvolved) > 0 {
			lines = append(lines, row("metrics", strings.Join(ps.MetricsInvolved, ", ")))
		}
		if len(ps.SensorsInvolved) > 0 {
			lines = append(lines, row("sensors", strings.Join(ps.SensorsInvolved, ", ")))
		}
		if ps.SystemDegraded {
			lines = append(lines, row("degraded", "yes"))
		}
		for _, s := range out.AoSense {
			lines = append(lines, row("observe", fmt.Sprintf("%s %s (%s): %s", s.Priority, s.SenseKind, s.SenseFocus, s.Note)))
		}
	} else {
		lines = append(lines, row("verdict", styles.Silent.Render("SILENT")))
	}

	if out.ReferenceViews != nil {
		lines = append(lines, renderViews(*out.ReferenceViews)...)
	}
	if out.LBCandidates != nil {
		for _, lb := range *out.LBCandidates {
			lines = append(lines, row("candidate", fmt.Sprintf("%s [%s]", lb.Title, lb.StatusWord)))
		}
	}

	lines = append(lines,
		row("facts", fmt.Sprintf("%d", len(out.InputFactIDs))),
		row("profile", out.RunMeta.ConfigProfile),
		row("config hash", styles.Muted.Render(out.EffectiveConfigHash)),
		row("determinism", styles.Muted.Render(out.DeterminismHash)),
	)

	return styles.Box.Width(width-2).Render(strings.Join(lines, "\n")) + "\n"
}

func renderViews(views []reference.View) []string {
	if len(views) == 0 {
		return []string{row("references", styles.Muted.Render("none"))}
	}
	out := make([]string, 0, len(views))
	for _, v := range views {
		s := v.ComparisonSummary
		out = append(out, row("reference", fmt.Sprintf("%s %s overlap=%.2f conflict=%s",
			v.Kind, v.Metric, s.OverlapRatio, s.ConflictHint.Label)))
	}
	return out
}
