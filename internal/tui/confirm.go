package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/events"
)

// initiateCumulativeReset opens the confirmation dialog. There is nothing
// to confirm when the all-time total is already zero.
func (m Model) initiateCumulativeReset() (tea.Model, tea.Cmd) {
	if m.backend == nil {
		return m, nil
	}
	if m.snap.Cumulative.IsZero() && m.snap.CompletedTasks == 0 {
		m.statusMessage = "All-time stats are already empty"
		return m, nil
	}
	m.confirmReset = true
	return m, nil
}

// confirmText describes what the cumulative reset will discard.
func (m Model) confirmText() string {
	c := m.snap.Cumulative
	return fmt.Sprintf("Items: %s\nTasks: %s\nCost:  %s",
		formatNumber(c.Total),
		formatNumber(m.snap.CompletedTasks),
		events.FormatCost(c.Cost))
}

// handleConfirmKey handles Y/N/Esc in the reset confirmation dialog.
func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.confirmReset = false
		m.statusMessage = "Resetting all-time stats..."
		return m, m.resetCmd(engine.SignalResetCumulative)

	case key.Matches(msg, m.keys.Deny), key.Matches(msg, m.keys.Escape):
		m.confirmReset = false
		m.statusMessage = "Reset cancelled"
		return m, nil
	}

	return m, nil
}
