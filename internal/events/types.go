package events

import (
	"time"

	"github.com/nixlim/po-stats/internal/stats"
)

// Kinds recorded in the audit trail. They mirror the engine's event kinds.
const (
	KindTaskStarted   = "task_started"
	KindBatchProgress = "batch_progress"
	KindTaskComplete  = "task_complete"
	KindReset         = "reset"
)

// Outcomes recorded in the audit trail.
const (
	OutcomeApplied   = "applied"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeIgnored   = "ignored"
)

// Entry is one processed event as it appears in the audit trail.
type Entry struct {
	EventID    string      `json:"event_id"`
	Kind       string      `json:"kind"`
	TaskID     string      `json:"task_id,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	Outcome    string      `json:"outcome"`
	Delta      stats.Stats `json:"delta"`                 // normalized delta, zero for lifecycle events
	Index      int         `json:"index,omitempty"`       // batch index for progress events
	BatchTotal int         `json:"batch_total,omitempty"` // batch count for progress events
	Note       string      `json:"note,omitempty"`        // reason for rejected or ignored outcomes
	Timestamp  time.Time   `json:"timestamp"`
	Formatted  string      `json:"formatted"`
}
