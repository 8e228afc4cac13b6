package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/po-stats/internal/events"
	"github.com/nixlim/po-stats/internal/stats"
)

// renderStatsPanel renders one accumulator's totals. extra lines are
// appended after the standard rows.
func (m Model) renderStatsPanel(title string, s stats.Stats, w, h int, extra ...string) string {
	lines := []string{panelTitleStyle.Render(title)}
	if s.IsZero() {
		lines = append(lines, "", dimStyle.Render("No data received yet"))
		lines = append(lines, extra...)
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	lines = append(lines,
		fmt.Sprintf("  Items:        %s", formatNumber(s.Total)),
		fmt.Sprintf("  TM hits:      %s", formatNumber(s.TMHits)),
		fmt.Sprintf("  Deduplicated: %s", formatNumber(s.Deduplicated)),
		fmt.Sprintf("  AI:           %s", formatNumber(s.AITranslated)),
		fmt.Sprintf("  TM learned:   %s", formatNumber(s.TMLearned)),
		fmt.Sprintf("  Tokens:       %s in / %s out / %s",
			events.FormatTokenCount(s.Tokens.Input),
			events.FormatTokenCount(s.Tokens.Output),
			events.FormatTokenCount(s.Tokens.Total)),
		"  Cost:         "+m.costStyle(s.Cost).Render(events.FormatCost(s.Cost)),
	)
	lines = append(lines, extra...)
	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

// renderEfficiencyPanel shows how items were resolved, for the session
// and all-time side by side.
func (m Model) renderEfficiencyPanel(w, h int) string {
	sess := stats.EfficiencyOf(m.snap.Session)
	cum := stats.EfficiencyOf(m.snap.Cumulative)

	lines := []string{panelTitleStyle.Render("Efficiency")}
	if !sess.HasData() && !cum.HasData() {
		lines = append(lines, dimStyle.Render("  No items processed"))
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	barW := (w - 30) / 2
	if barW < 5 {
		barW = 5
	}
	if barW > 20 {
		barW = 20
	}

	lines = append(lines,
		dimStyle.Render(fmt.Sprintf("  %-9s %-*s       %s", "", barW, "session", "all-time")),
		fmt.Sprintf("  %-9s %s %s", "TM hits",
			renderRatio(sess.TMHitRate, barW, activeStyle), renderRatio(cum.TMHitRate, barW, activeStyle)),
		fmt.Sprintf("  %-9s %s %s", "Dedup",
			renderRatio(sess.DedupRate, barW, activeStyle), renderRatio(cum.DedupRate, barW, activeStyle)),
		fmt.Sprintf("  %-9s %s %s", "AI",
			renderProgressBar(sess.AIRate, barW)+fmt.Sprintf(" %3.0f%%", sess.AIRate*100),
			renderProgressBar(cum.AIRate, barW)+fmt.Sprintf(" %3.0f%%", cum.AIRate*100)),
		fmt.Sprintf("  %-9s %-*s       %s", "Saved",
			barW, formatNumber(sess.APICallsSaved), formatNumber(cum.APICallsSaved)),
	)
	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func renderRatio(ratio float64, width int, style lipgloss.Style) string {
	return style.Render(bar(ratio, width)) + fmt.Sprintf(" %3.0f%%", clampRatio(ratio)*100)
}

// renderProgressBar colors the bar by how much of the work needed the AI:
// the higher the ratio, the more it cost.
func renderProgressBar(ratio float64, width int) string {
	ratio = clampRatio(ratio)
	b := bar(ratio, width)
	if ratio >= 0.8 {
		return costRedStyle.Render(b)
	}
	if ratio >= 0.5 {
		return costYellowStyle.Render(b)
	}
	return costGreenStyle.Render(b)
}

func bar(ratio float64, width int) string {
	ratio = clampRatio(ratio)
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// formatDuration formats a duration into a human-readable short form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
