package engine

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Kind identifies which accumulator an event feeds.
type Kind string

const (
	// KindBatchProgress carries an incremental delta for one batch and feeds
	// the session accumulator only.
	KindBatchProgress Kind = "batch_progress"
	// KindTaskComplete carries the authoritative summary of a whole task
	// and feeds the cumulative accumulator only.
	KindTaskComplete Kind = "task_complete"
)

// Mode is the translation mode that produced an event. It is informational
// and supplied by the producer.
type Mode string

const (
	ModeChannel Mode = "channel"
	ModeEvent   Mode = "event"
	ModeSingle  Mode = "single"
	ModeRefine  Mode = "refine"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeChannel, ModeEvent, ModeSingle, ModeRefine:
		return true
	}
	return false
}

func modeOr(m, def Mode) Mode {
	m = Mode(strings.ToLower(strings.TrimSpace(string(m))))
	if m.Valid() {
		return m
	}
	return def
}

// Event is one statistics-bearing occurrence.
type Event struct {
	ID         string
	Kind       Kind
	TaskID     string
	Mode       Mode
	Timestamp  int64 // unix millis, informational
	Payload    any   // raw producer stats, normalized on ingest
	Index      int
	BatchTotal int
	Percentage float64
}

// Outcome is the result of processing one event or signal.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeIgnored   Outcome = "ignored"
)

// SignalType names an inbound producer signal.
type SignalType string

const (
	SignalTaskStarted     SignalType = "task-started"
	SignalBatchProgress   SignalType = "batch-progress"
	SignalTaskCompleted   SignalType = "task-completed"
	SignalResetSession    SignalType = "reset-session"
	SignalResetCumulative SignalType = "reset-cumulative"
)

// ParseSignalType canonicalizes s. Case is ignored and underscores are
// accepted in place of dashes.
func ParseSignalType(s string) (SignalType, bool) {
	t := SignalType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	switch t {
	case SignalTaskStarted, SignalBatchProgress, SignalTaskCompleted,
		SignalResetSession, SignalResetCumulative:
		return t, true
	}
	return t, false
}

// Signal is the transport-neutral form of a producer signal.
type Signal struct {
	Type       SignalType `json:"signal"`
	EventID    string     `json:"event_id,omitempty"`
	TaskID     string     `json:"task_id,omitempty"`
	Mode       Mode       `json:"mode,omitempty"`
	Stats      any        `json:"stats,omitempty"`
	Index      int        `json:"index,omitempty"`
	Total      int        `json:"total,omitempty"`
	Percentage float64    `json:"percentage,omitempty"`
	Timestamp  int64      `json:"timestamp,omitempty"`
}

// ErrEmptySignal is returned by ParseSignals for blank input.
var ErrEmptySignal = errors.New("empty signal document")

// ParseSignals decodes a single Signal object or a JSON array of them.
// Signal names are canonicalized; unknown names are kept so the engine can
// reject and audit them.
func ParseSignals(data []byte) ([]Signal, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptySignal
	}

	var sigs []Signal
	if data[0] == '[' {
		if err := json.Unmarshal(data, &sigs); err != nil {
			return nil, fmt.Errorf("decoding signal array: %w", err)
		}
	} else {
		var sig Signal
		if err := json.Unmarshal(data, &sig); err != nil {
			return nil, fmt.Errorf("decoding signal: %w", err)
		}
		sigs = []Signal{sig}
	}

	for i := range sigs {
		sigs[i].Type, _ = ParseSignalType(string(sigs[i].Type))
	}
	return sigs, nil
}
