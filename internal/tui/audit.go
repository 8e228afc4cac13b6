package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/po-stats/internal/events"
)

// kindIcons maps audit kinds to their display icons.
var kindIcons = map[string]string{
	events.KindTaskStarted:   ">>",
	events.KindBatchProgress: "B:",
	events.KindTaskComplete:  "OK",
	events.KindReset:         "RS",
}

// kindStyles maps audit kinds to their display styles.
var kindStyles = map[string]lipgloss.Style{
	events.KindTaskStarted:   lipgloss.NewStyle().Foreground(lipgloss.Color("117")),
	events.KindBatchProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("222")),
	events.KindTaskComplete:  lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	events.KindReset:         lipgloss.NewStyle().Foreground(lipgloss.Color("183")),
}

// renderAuditPanel renders the scrolling audit trail panel.
func (m Model) renderAuditPanel(w, h int) string {
	contentW := w - 4
	if contentW < 10 {
		contentW = 10
	}
	contentH := h - 2 // borders
	if contentH < 2 {
		contentH = 2
	}

	title := panelTitleStyle.Render("Audit")
	if m.auditFilter.TaskID != "" {
		title += dimStyle.Render(" [" + truncateID(m.auditFilter.TaskID, 12) + "]")
	}
	if !m.autoScroll {
		title += dimStyle.Render(" (paused, End to follow)")
	}
	lines := []string{title}

	entries := m.filteredAudit()
	if len(entries) == 0 {
		lines = append(lines, "", dimStyle.Render("No events yet"))
		return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
	}

	visibleLines := contentH - 2 // title + scroll indicator
	if visibleLines < 1 {
		visibleLines = 1
	}

	startIdx := m.auditStart(len(entries), visibleLines)
	endIdx := startIdx + visibleLines
	if endIdx > len(entries) {
		endIdx = len(entries)
	}

	for i := startIdx; i < endIdx; i++ {
		lines = append(lines, renderAuditLine(entries[i], contentW))
	}

	if len(entries) > visibleLines {
		pos := formatScrollPos(startIdx+1, endIdx, len(entries))
		pad := contentW - len(pos)
		if pad < 0 {
			pad = 0
		}
		lines = append(lines, dimStyle.Render(strings.Repeat(" ", pad)+pos))
	}

	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

// auditStart picks the first visible entry. Auto-scroll pins the newest
// entries to the bottom.
func (m Model) auditStart(n, visible int) int {
	start := n - visible
	if !m.autoScroll && m.auditScrollPos < start {
		start = m.auditScrollPos
	}
	if start < 0 {
		start = 0
	}
	return start
}

// lastAuditStart is the scroll position that shows the newest entries in
// the dashboard panel.
func (m Model) lastAuditStart() int {
	dims := computeDimensions(m.width, m.height)
	visible := dims.auditH - 4
	if m.view == ViewAudit {
		visible = m.height - headerHeight - 4
	}
	if visible < 1 {
		visible = 1
	}
	start := len(m.filteredAudit()) - visible
	if start < 0 {
		return 0
	}
	return start
}

// filteredAudit returns the cached audit entries matching the filter.
func (m Model) filteredAudit() []events.Entry {
	var filtered []events.Entry
	for _, e := range m.audit {
		if m.auditFilter.Matches(e) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// renderAuditLine formats a single entry for display.
func renderAuditLine(e events.Entry, maxW int) string {
	icon := kindIcons[e.Kind]
	if icon == "" {
		icon = "??"
	}

	style, ok := kindStyles[e.Kind]
	if !ok {
		style = alertCriticalStyle
	}
	switch e.Outcome {
	case events.OutcomeDuplicate:
		style = dimStyle
	case events.OutcomeRejected:
		style = alertCriticalStyle
	case events.OutcomeIgnored:
		style = alertWarningStyle
	}

	formatted := e.Formatted
	if formatted == "" {
		formatted = events.Format(e).Formatted
	}
	stamp := e.Timestamp.Local().Format("15:04:05")
	maxFormatted := maxW - len(icon) - len(stamp) - 2
	if len(formatted) > maxFormatted && maxFormatted > 3 {
		formatted = formatted[:maxFormatted-3] + "..."
	}

	return dimStyle.Render(stamp) + " " + style.Render(icon+" "+formatted)
}

// renderAuditView renders the full-screen audit trail.
func (m Model) renderAuditView() string {
	help := "Tab:Dashboard  f:Filter  Up/Down:Scroll  q:Quit "
	header := m.renderHeaderLine(" [Audit]", help)

	h := m.height - headerHeight
	if h < 4 {
		h = 4
	}
	layout := lipgloss.JoinVertical(lipgloss.Left, header, m.renderAuditPanel(m.width, h))
	if m.filterMenu.Active {
		layout = m.overlayFilterMenu(layout)
	}
	return layout
}

// formatScrollPos returns a string like "[10-20/100]".
func formatScrollPos(start, end, total int) string {
	return strings.Join([]string{
		"[",
		formatNumber(int64(start)),
		"-",
		formatNumber(int64(end)),
		"/",
		formatNumber(int64(total)),
		"]",
	}, "")
}
