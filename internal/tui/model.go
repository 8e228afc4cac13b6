package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nixlim/po-stats/internal/config"
	"github.com/nixlim/po-stats/internal/engine"
	"github.com/nixlim/po-stats/internal/events"
)

type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewAudit
)

type tickMsg time.Time

// resetDoneMsg reports the result of a reset dispatched from the keyboard.
type resetDoneMsg struct {
	signal engine.SignalType
	err    error
}

// auditFetchLimit bounds how many audit entries are pulled per refresh.
const auditFetchLimit = 200

const defaultRefreshRate = 500 * time.Millisecond

// Backend is the engine surface the dashboard reads and resets.
// *engine.Loop implements it.
type Backend interface {
	Snapshot() engine.Snapshot
	Audit(limit int) []events.Entry
	Dispatch(ctx context.Context, sig engine.Signal) (engine.Outcome, error)
}

type Model struct {
	view     ViewState
	width    int
	height   int
	keys     KeyMap
	quitting bool

	cfg     config.Config
	backend Backend

	snap  engine.Snapshot
	audit []events.Entry

	auditScrollPos int
	autoScroll     bool
	auditFilter    AuditFilter
	filterMenu     FilterMenuState

	confirmReset  bool
	statusMessage string

	isPersistent bool

	refreshRate time.Duration
	now         func() time.Time

	onShutdown func()
}

func NewModel(cfg config.Config, opts ...ModelOption) Model {
	m := Model{
		view:        ViewDashboard,
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		autoScroll:  true,
		auditFilter: NewAuditFilter(),
		filterMenu:  NewFilterMenu(),
		refreshRate: time.Duration(cfg.Display.RefreshRateMS) * time.Millisecond,
		now:         time.Now,
	}
	if m.refreshRate <= 0 {
		m.refreshRate = defaultRefreshRate
	}

	for _, opt := range opts {
		opt(&m)
	}

	m.refresh()
	return m
}

type ModelOption func(*Model)

func WithBackend(b Backend) ModelOption {
	return func(m *Model) { m.backend = b }
}

func WithStartView(v ViewState) ModelOption {
	return func(m *Model) { m.view = v }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func WithPersistenceFlag(isPersistent bool) ModelOption {
	return func(m *Model) { m.isPersistent = isPersistent }
}

func WithClock(now func() time.Time) ModelOption {
	return func(m *Model) { m.now = now }
}

func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh pulls a fresh snapshot and audit tail from the backend.
func (m *Model) refresh() {
	if m.backend == nil {
		return
	}
	m.snap = m.backend.Snapshot()
	m.audit = m.backend.Audit(auditFetchLimit)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case resetDoneMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Reset failed: %v", msg.err)
		} else if msg.signal == engine.SignalResetCumulative {
			m.statusMessage = "All-time stats reset"
		} else {
			m.statusMessage = "Session stats reset"
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmReset {
		return m.handleConfirmKey(msg)
	}

	if m.filterMenu.Active {
		return m.handleFilterMenuKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.ResetSession):
		m.statusMessage = "Resetting session..."
		return m, m.resetCmd(engine.SignalResetSession)

	case key.Matches(msg, m.keys.ResetCumulative):
		return m.initiateCumulativeReset()

	case key.Matches(msg, m.keys.Tab):
		if m.view == ViewDashboard {
			m.view = ViewAudit
		} else {
			m.view = ViewDashboard
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.filterMenu.Active = true
		m.filterMenu.Cursor = 0
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.autoScroll {
			m.autoScroll = false
			m.auditScrollPos = m.lastAuditStart()
		}
		if m.auditScrollPos > 0 {
			m.auditScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if !m.autoScroll {
			m.auditScrollPos++
			if m.auditScrollPos >= m.lastAuditStart() {
				m.autoScroll = true
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.End):
		m.autoScroll = true
		return m, nil
	}

	return m, nil
}

func (m Model) handleFilterMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Filter):
		m.filterMenu.Active = false
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.filterMenu.Cursor > 0 {
			m.filterMenu.Cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.filterMenu.Cursor < len(m.filterMenu.Options)-1 {
			m.filterMenu.Cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.filterMenu.Cursor < len(m.filterMenu.Options) {
			opt := &m.filterMenu.Options[m.filterMenu.Cursor]
			opt.Enabled = !opt.Enabled
			m.applyFilter()
		}
		return m, nil
	}

	return m, nil
}

// resetCmd dispatches a reset signal off the update goroutine.
func (m Model) resetCmd(typ engine.SignalType) tea.Cmd {
	b := m.backend
	if b == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := b.Dispatch(ctx, engine.Signal{Type: typ})
		return resetDoneMsg{signal: typ, err: err}
	}
}

func (m Model) headerIndicators() string {
	if m.isPersistent {
		return ""
	}
	return " [memory only]"
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	switch m.view {
	case ViewAudit:
		return m.renderAuditView()
	default:
		return m.renderDashboard()
	}
}
