// Package events keeps a bounded, display-ready audit trail of the events
// processed by the statistics engine.
package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/nixlim/po-stats/internal/stats"
)

// Format fills in e.Formatted and a zero Timestamp, then returns e.
//
//	task_started:   "[task] started (mode)"
//	batch_progress: "[task] batch 3/10 +12 items, 4 TM, 1.2k tok ($0.01)"
//	task_complete:  "[task] completed 120 items, 1.2k tok ($0.10)"
//	reset:          "reset session"
//
// Duplicate, rejected and ignored outcomes are suffixed with the outcome.
func Format(e Entry) Entry {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	task := shortID(e.TaskID)

	var line string
	switch e.Kind {
	case KindTaskStarted:
		if e.Mode != "" {
			line = fmt.Sprintf("[%s] started (%s)", task, e.Mode)
		} else {
			line = fmt.Sprintf("[%s] started", task)
		}
	case KindBatchProgress:
		line = fmt.Sprintf("[%s] batch %s %s", task, batchPosition(e.Index, e.BatchTotal), formatDelta(e.Delta, "+"))
	case KindTaskComplete:
		line = fmt.Sprintf("[%s] completed %s", task, formatDelta(e.Delta, ""))
	case KindReset:
		line = "reset " + e.Mode
	default:
		line = fmt.Sprintf("[%s] %s", task, e.Kind)
	}

	switch e.Outcome {
	case OutcomeApplied, "":
	case OutcomeDuplicate:
		line += " (duplicate)"
	default:
		if e.Note != "" {
			line += fmt.Sprintf(" (%s: %s)", e.Outcome, e.Note)
		} else {
			line += fmt.Sprintf(" (%s)", e.Outcome)
		}
	}

	e.Formatted = line
	return e
}

func batchPosition(index, total int) string {
	if total > 0 {
		return fmt.Sprintf("%d/%d", index, total)
	}
	return fmt.Sprintf("%d", index)
}

func formatDelta(d stats.Stats, sign string) string {
	parts := []string{fmt.Sprintf("%s%d items", sign, d.Total)}
	if d.TMHits > 0 {
		parts = append(parts, fmt.Sprintf("%d TM", d.TMHits))
	}
	if d.Deduplicated > 0 {
		parts = append(parts, fmt.Sprintf("%d dedup", d.Deduplicated))
	}
	out := strings.Join(parts, ", ")
	if d.Tokens.Total > 0 {
		out += ", " + FormatTokenCount(d.Tokens.Total) + " tok"
	}
	if d.Cost > 0 {
		out += " (" + FormatCost(d.Cost) + ")"
	}
	return out
}

// FormatTokenCount renders token counts >= 1000 as Xk and >= 1e6 as XM.
func FormatTokenCount(count int64) string {
	switch {
	case count >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(count)/1_000_000)
	case count >= 1000:
		return fmt.Sprintf("%.1fk", float64(count)/1000)
	default:
		return fmt.Sprintf("%d", count)
	}
}

// FormatCost renders a USD amount. Sub-cent amounts keep four decimals so
// small batches do not display as $0.00.
func FormatCost(cost float64) string {
	if cost > 0 && cost < 0.01 {
		return fmt.Sprintf("$%.4f", cost)
	}
	return fmt.Sprintf("$%.2f", cost)
}

// shortID truncates long task IDs for display.
func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
