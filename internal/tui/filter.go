package tui

import (
	"strings"

	"github.com/nixlim/po-stats/internal/events"
)

// AuditFilter holds the current filter state for the audit panel.
type AuditFilter struct {
	// TaskID filters entries to a specific task. Empty means all tasks.
	TaskID string

	// Kinds and Outcomes hide an entry when its value maps to false.
	// Values missing from the map are shown.
	Kinds    map[string]bool
	Outcomes map[string]bool
}

// NewAuditFilter returns a filter that shows everything.
func NewAuditFilter() AuditFilter {
	return AuditFilter{
		Kinds: map[string]bool{
			events.KindTaskStarted:   true,
			events.KindBatchProgress: true,
			events.KindTaskComplete:  true,
			events.KindReset:         true,
		},
		Outcomes: map[string]bool{
			events.OutcomeApplied:   true,
			events.OutcomeDuplicate: true,
			events.OutcomeRejected:  true,
			events.OutcomeIgnored:   true,
		},
	}
}

// Matches returns true if e passes this filter.
func (f *AuditFilter) Matches(e events.Entry) bool {
	if f.TaskID != "" && e.TaskID != f.TaskID {
		return false
	}
	if enabled, ok := f.Kinds[e.Kind]; ok && !enabled {
		return false
	}
	if enabled, ok := f.Outcomes[e.Outcome]; ok && !enabled {
		return false
	}
	return true
}

// FilterMenuState tracks the interactive filter menu.
type FilterMenuState struct {
	Active  bool
	Cursor  int
	Options []FilterOption
}

// FilterOption is one toggleable entry of the filter menu. Key is
// "kind:<kind>" or "outcome:<outcome>".
type FilterOption struct {
	Label   string
	Key     string
	Enabled bool
}

// NewFilterMenu creates a filter menu with every option enabled.
func NewFilterMenu() FilterMenuState {
	return FilterMenuState{
		Options: []FilterOption{
			{Label: "Task Starts", Key: "kind:" + events.KindTaskStarted, Enabled: true},
			{Label: "Batch Progress", Key: "kind:" + events.KindBatchProgress, Enabled: true},
			{Label: "Completions", Key: "kind:" + events.KindTaskComplete, Enabled: true},
			{Label: "Resets", Key: "kind:" + events.KindReset, Enabled: true},
			{Label: "Applied", Key: "outcome:" + events.OutcomeApplied, Enabled: true},
			{Label: "Duplicates", Key: "outcome:" + events.OutcomeDuplicate, Enabled: true},
			{Label: "Rejected", Key: "outcome:" + events.OutcomeRejected, Enabled: true},
			{Label: "Ignored", Key: "outcome:" + events.OutcomeIgnored, Enabled: true},
		},
	}
}

// applyFilter rebuilds the audit filter from the menu options.
func (m *Model) applyFilter() {
	f := NewAuditFilter()
	f.TaskID = m.auditFilter.TaskID
	for _, opt := range m.filterMenu.Options {
		group, value, ok := strings.Cut(opt.Key, ":")
		if !ok {
			continue
		}
		switch group {
		case "kind":
			f.Kinds[value] = opt.Enabled
		case "outcome":
			f.Outcomes[value] = opt.Enabled
		}
	}
	m.auditFilter = f
	m.autoScroll = true
}
