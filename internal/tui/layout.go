package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/po-stats/internal/engine"
)

type panelDimensions struct {
	leftW                 int
	sessionH, cumulativeH int
	rightW                int
	costH, efficiencyH    int
	auditH                int
	taskBarW, taskBarH    int
	headerH               int
}

const (
	minWidth  = 40
	minHeight = 10

	headerHeight = 1

	taskBarHeight = 3

	costMinHeight = 7

	costMaxHeight = 10

	efficiencyHeight = 8
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{
		headerH: headerHeight,
	}

	usableH := totalH - headerHeight - taskBarHeight
	if usableH < 4 {
		usableH = 4
	}

	d.leftW = totalW * 40 / 100
	if d.leftW < 20 {
		d.leftW = 20
	}
	if d.leftW > totalW-20 {
		d.leftW = totalW - 20
	}
	d.sessionH = usableH / 2
	d.cumulativeH = usableH - d.sessionH

	d.rightW = totalW - d.leftW
	if d.rightW < 20 {
		d.rightW = 20
	}

	maxCost := usableH * 30 / 100
	if maxCost < costMinHeight {
		maxCost = costMinHeight
	}
	if maxCost > costMaxHeight {
		maxCost = costMaxHeight
	}
	d.costH = maxCost
	if d.costH > usableH/3 {
		d.costH = usableH / 3
	}

	d.efficiencyH = efficiencyHeight
	if d.efficiencyH > usableH/3 {
		d.efficiencyH = usableH / 3
	}

	d.auditH = usableH - d.costH - d.efficiencyH
	if d.auditH < 3 {
		d.auditH = 3
	}

	d.taskBarW = totalW
	d.taskBarH = taskBarHeight

	return d
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("69"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	costGreenStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	costYellowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	costRedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	alertWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("226"))

	alertCriticalStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("196"))

	filterMenuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)

	confirmDialogStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("196")).
				Padding(1, 3).
				Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

func renderBorderedPanel(content string, w, h int) string {
	contentH := h - 2
	if contentH < 1 {
		contentH = 1
	}

	lines := strings.Split(content, "\n")
	if len(lines) > contentH {
		lines = lines[:contentH]
		content = strings.Join(lines, "\n")
	}

	return panelBorderStyle.
		Width(w - 2).
		Height(contentH).
		Render(content)
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeaderLine(" [Dashboard]", m.headerHelp())

	sessionPanel := m.renderStatsPanel("Session", m.snap.Session, dims.leftW, dims.sessionH)
	cumulativePanel := m.renderStatsPanel("All-time", m.snap.Cumulative, dims.leftW, dims.cumulativeH,
		fmt.Sprintf("  Tasks:        %s", formatNumber(m.snap.CompletedTasks)))
	costPanel := m.renderCostPanel(dims.rightW, dims.costH)
	efficiencyPanel := m.renderEfficiencyPanel(dims.rightW, dims.efficiencyH)
	auditPanel := m.renderAuditPanel(dims.rightW, dims.auditH)
	taskBar := m.renderTaskBar(dims.taskBarW, dims.taskBarH)

	leftCol := lipgloss.JoinVertical(lipgloss.Left, sessionPanel, cumulativePanel)
	rightCol := lipgloss.JoinVertical(lipgloss.Left, costPanel, efficiencyPanel, auditPanel)

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftCol, rightCol)

	usableH := m.height - dims.headerH - dims.taskBarH
	if usableH < 4 {
		usableH = 4
	}
	mcLines := strings.Split(mainContent, "\n")
	if len(mcLines) > usableH {
		mcLines = mcLines[:usableH]
		mainContent = strings.Join(mcLines, "\n")
	}

	layout := lipgloss.JoinVertical(lipgloss.Left, header, mainContent, taskBar)

	if m.confirmReset {
		layout = m.overlayConfirmDialog(layout)
	}

	if m.filterMenu.Active {
		layout = m.overlayFilterMenu(layout)
	}

	return layout
}

func (m Model) renderHeaderLine(viewLabel, help string) string {
	title := " po-stats"
	indicators := m.headerIndicators()

	padding := m.width - lipgloss.Width(title) - lipgloss.Width(viewLabel) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}

	return headerStyle.Width(m.width).Render(title + viewLabel + indicators + strings.Repeat(" ", padding) + help)
}

func (m Model) headerHelp() string {
	return "r:Reset  R:Reset all  f:Filter  Tab:Audit  q:Quit "
}

// renderTaskBar shows the active task and the last status message.
func (m Model) renderTaskBar(w, h int) string {
	task := m.snap.Task

	var line string
	if task.State == engine.TaskActive {
		line = activeStyle.Render("● ") + "Task " + truncateID(task.ID, 24)
		if task.Mode != "" {
			line += dimStyle.Render(" (" + string(task.Mode) + ")")
		}
		if !task.StartedAt.IsZero() {
			line += dimStyle.Render(" running " + formatDuration(m.now().Sub(task.StartedAt)))
		}
		if task.Fallback {
			line += alertWarningStyle.Render(" [fallback id]")
		}
	} else {
		line = idleStyle.Render("○ ") + dimStyle.Render("No active task")
	}

	if m.statusMessage != "" {
		pad := w - 4 - lipgloss.Width(line) - lipgloss.Width(m.statusMessage)
		if pad < 1 {
			pad = 1
		}
		line += strings.Repeat(" ", pad) + statusBarStyle.Render(m.statusMessage)
	}

	return renderBorderedPanel(line, w, h)
}

func truncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func (m Model) overlayConfirmDialog(base string) string {
	dialog := confirmDialogStyle.Render(
		"Reset all-time stats?\n\n" +
			m.confirmText() + "\n\n" +
			"[Y] Reset  [n/Esc] Cancel")

	return placeOverlay(dialog, base)
}

func (m Model) overlayFilterMenu(base string) string {
	content := panelTitleStyle.Render("Audit Filter") + "\n\n"
	for i, opt := range m.filterMenu.Options {
		cursor := "  "
		if i == m.filterMenu.Cursor {
			cursor = "> "
		}
		check := "[ ]"
		if opt.Enabled {
			check = "[x]"
		}
		line := cursor + check + " " + opt.Label
		if i == m.filterMenu.Cursor {
			line = selectedStyle.Render(line)
		}
		content += line + "\n"
	}
	content += "\nEnter: Toggle  Esc: Close"

	return placeOverlay(filterMenuStyle.Render(content), base)
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}
