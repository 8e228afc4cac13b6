// Package engine aggregates translation statistics from producer signals
// into a session total and a persisted cumulative total.
//
// Batch progress feeds only the session total and task completion feeds only
// the cumulative total, so a task is never counted twice in either. Every
// event id is applied at most once per total.
//
// An Engine is not safe for concurrent use; wrap it in a Loop to share it
// between goroutines.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nixlim/po-stats/internal/events"
	"github.com/nixlim/po-stats/internal/ledger"
	"github.com/nixlim/po-stats/internal/stats"
	"github.com/nixlim/po-stats/internal/storage"
)

// DefaultAuditSize is the number of audit entries retained by default.
const DefaultAuditSize = 500

// CostEstimator prices token usage for payloads that report tokens but no
// cost. It returns false when the model is unknown.
type CostEstimator interface {
	Estimate(model string, tokens stats.Tokens) (float64, bool)
}

// Engine composes the normalizer, ledger, accumulators and task tracker.
type Engine struct {
	log       zerolog.Logger
	now       func() time.Time
	newID     func() string
	estimator CostEstimator
	metrics   *instruments

	ledger     *ledger.Ledger
	session    *sessionAccumulator
	cumulative *cumulativeAccumulator
	tracker    *tracker
	audit      *events.RingBuffer
}

type options struct {
	log            zerolog.Logger
	now            func() time.Time
	newID          func() string
	estimator      CostEstimator
	meterProvider  metric.MeterProvider
	ledgerCapacity int
	auditSize      int
	storeKey       string
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides the generator used for task ids and minted
// event ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithCostEstimator sets the estimator used when a payload has tokens but
// no cost.
func WithCostEstimator(est CostEstimator) Option {
	return func(o *options) { o.estimator = est }
}

// WithMeterProvider sets the meter provider. The default is the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithLedgerCapacity sets the number of event ids retained per scope.
func WithLedgerCapacity(n int) Option {
	return func(o *options) { o.ledgerCapacity = n }
}

// WithAuditSize sets the number of audit entries retained.
func WithAuditSize(n int) Option {
	return func(o *options) { o.auditSize = n }
}

// WithStoreKey sets the key the cumulative record is stored under.
func WithStoreKey(key string) Option {
	return func(o *options) { o.storeKey = key }
}

// New creates an Engine backed by kv and loads the persisted cumulative
// total. An unreadable record is logged and treated as zero. Close must be
// called to flush pending writes.
func New(kv storage.KV, opts ...Option) *Engine {
	o := options{
		log:            zerolog.Nop(),
		now:            time.Now,
		newID:          uuid.NewString,
		ledgerCapacity: ledger.DefaultCapacity,
		auditSize:      DefaultAuditSize,
		storeKey:       DefaultStoreKey,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if kv == nil {
		kv = storage.NewMemoryKV()
	}

	m := newInstruments(o.meterProvider)
	l := ledger.New(o.ledgerCapacity)

	initial, err := LoadCumulative(kv, o.storeKey)
	if err != nil {
		o.log.Warn().Err(err).Str("key", o.storeKey).Msg("cumulative stats unreadable; starting from zero")
		initial = Cumulative{}
	}

	e := &Engine{
		log:       o.log,
		now:       o.now,
		newID:     o.newID,
		estimator: o.estimator,
		metrics:   m,
		ledger:    l,
		session:   &sessionAccumulator{ledger: l},
		cumulative: &cumulativeAccumulator{
			cur:    initial,
			ledger: l,
			now:    o.now,
			p:      newPersister(kv, o.storeKey, o.log, m),
		},
		tracker: &tracker{log: o.log, newID: o.newID, now: o.now},
		audit:   events.NewRingBuffer(o.auditSize),
	}
	return e
}

// Close waits for pending cumulative writes and stops the persister. The
// store itself is not closed.
func (e *Engine) Close() {
	e.cumulative.p.close()
}

// Flush waits until the latest cumulative snapshot has been handed to the
// store.
func (e *Engine) Flush() {
	e.cumulative.p.flush()
}

// ProcessEvent applies one event to the accumulator selected by its kind.
func (e *Engine) ProcessEvent(ev Event) Outcome {
	entry := events.Entry{
		EventID:    ev.ID,
		Kind:       string(ev.Kind),
		TaskID:     ev.TaskID,
		Mode:       string(ev.Mode),
		Index:      ev.Index,
		BatchTotal: ev.BatchTotal,
		Timestamp:  e.eventTime(ev.Timestamp),
	}

	scope, ok := scopeFor(ev.Kind)
	if !ok {
		e.log.Warn().Str("kind", string(ev.Kind)).Str("event_id", ev.ID).Msg("rejecting event of unknown kind")
		entry.Note = "unknown kind"
		return e.record(entry, OutcomeRejected)
	}

	delta := e.normalize(ev.Payload)
	entry.Delta = delta

	if ev.ID == "" {
		ev.ID = e.newID()
		entry.EventID = ev.ID
		e.log.Warn().Str("kind", string(ev.Kind)).Str("event_id", ev.ID).Msg("event without id; minted one")
	}

	if e.ledger.Seen(ev.ID, scope) {
		e.log.Debug().Str("kind", string(ev.Kind)).Str("event_id", ev.ID).Msg("duplicate event ignored")
		return e.record(entry, OutcomeDuplicate)
	}

	switch ev.Kind {
	case KindBatchProgress:
		e.session.apply(delta)
	case KindTaskComplete:
		e.cumulative.apply(delta)
		e.tracker.close(ev.TaskID)
	}
	e.ledger.MarkSeen(ev.ID, scope)

	e.log.Debug().
		Str("kind", string(ev.Kind)).
		Str("event_id", ev.ID).
		Str("task_id", ev.TaskID).
		Int64("total", delta.Total).
		Int64("tokens", delta.Tokens.Total).
		Float64("cost", delta.Cost).
		Msg("event applied")
	return e.record(entry, OutcomeApplied)
}

// Dispatch translates a producer signal into engine operations.
func (e *Engine) Dispatch(sig Signal) Outcome {
	switch sig.Type {
	case SignalTaskStarted:
		e.startTask(sig.TaskID, sig.Mode, sig.Timestamp)
		return OutcomeApplied
	case SignalBatchProgress:
		return e.batchProgress(sig)
	case SignalTaskCompleted:
		return e.taskCompleted(sig)
	case SignalResetSession:
		e.ResetSession()
		return OutcomeApplied
	case SignalResetCumulative:
		e.ResetCumulative()
		return OutcomeApplied
	default:
		e.log.Warn().Str("signal", string(sig.Type)).Msg("rejecting unknown signal")
		return e.record(events.Entry{
			EventID:   sig.EventID,
			Kind:      string(sig.Type),
			TaskID:    sig.TaskID,
			Note:      "unknown signal",
			Timestamp: e.eventTime(sig.Timestamp),
		}, OutcomeRejected)
	}
}

// TaskStarted begins a task and returns its id. An empty taskID asks the
// engine to generate one.
func (e *Engine) TaskStarted(taskID string, mode Mode) string {
	return e.startTask(taskID, mode, 0)
}

// BatchProgress records the delta of one completed batch.
func (e *Engine) BatchProgress(raw any, index, total int, percentage float64) Outcome {
	return e.batchProgress(Signal{
		Type:       SignalBatchProgress,
		Stats:      raw,
		Index:      index,
		Total:      total,
		Percentage: percentage,
	})
}

// TaskCompleted records the summary of the active task.
func (e *Engine) TaskCompleted(raw any) Outcome {
	return e.taskCompleted(Signal{Type: SignalTaskCompleted, Stats: raw})
}

func (e *Engine) startTask(taskID string, mode Mode, ts int64) string {
	mode = modeOr(mode, ModeChannel)
	id, _ := e.tracker.start(taskID, mode)
	e.log.Info().Str("task_id", id).Str("mode", string(mode)).Msg("task started")
	e.record(events.Entry{
		EventID:   id + "-start",
		Kind:      events.KindTaskStarted,
		TaskID:    id,
		Mode:      string(mode),
		Timestamp: e.eventTime(ts),
	}, OutcomeApplied)
	return id
}

func (e *Engine) batchProgress(sig Signal) Outcome {
	taskID, late := e.tracker.lateProgress(sig.TaskID)
	if !late {
		taskID = e.resolveTask(sig.TaskID, "batch progress")
	}
	id := sig.EventID
	if id == "" {
		id = taskID + "-progress-" + shortID(e.newID())
	}
	return e.ProcessEvent(Event{
		ID:         id,
		Kind:       KindBatchProgress,
		TaskID:     taskID,
		Mode:       modeOr(sig.Mode, ModeChannel),
		Timestamp:  sig.Timestamp,
		Payload:    sig.Stats,
		Index:      sig.Index,
		BatchTotal: sig.Total,
		Percentage: sig.Percentage,
	})
}

func (e *Engine) taskCompleted(sig Signal) Outcome {
	if !stats.HasPayload(sig.Stats) {
		note := "no stats"
		if sig.Stats != nil {
			note = "unreadable stats"
		}
		e.log.Warn().Str("task_id", sig.TaskID).Str("reason", note).Msg("task completed without usable stats; ignoring")
		return e.record(events.Entry{
			EventID:   sig.EventID,
			Kind:      events.KindTaskComplete,
			TaskID:    sig.TaskID,
			Note:      note,
			Timestamp: e.eventTime(sig.Timestamp),
		}, OutcomeIgnored)
	}

	taskID := e.resolveTask(sig.TaskID, "task completed")
	id := sig.EventID
	if id == "" {
		id = taskID + "-complete"
	}
	outcome := e.ProcessEvent(Event{
		ID:        id,
		Kind:      KindTaskComplete,
		TaskID:    taskID,
		Mode:      modeOr(sig.Mode, ModeEvent),
		Timestamp: sig.Timestamp,
		Payload:   sig.Stats,
	})
	if outcome == OutcomeApplied {
		e.log.Info().Str("task_id", taskID).Str("event_id", id).Msg("task completed")
	}
	return outcome
}

func (e *Engine) resolveTask(explicit, reason string) string {
	id, fallback := e.tracker.resolve(explicit, reason)
	if fallback {
		e.metrics.fallbackTasks.Add(context.Background(), 1)
	}
	return id
}

// ResetSession zeroes the session total and forgets its applied ids.
func (e *Engine) ResetSession() {
	e.session.reset()
	e.log.Info().Msg("session stats reset")
	e.record(events.Entry{Kind: events.KindReset, Mode: string(ledger.Session)}, OutcomeApplied)
}

// ResetCumulative zeroes the cumulative total, persists the zero record and
// forgets its applied ids.
func (e *Engine) ResetCumulative() {
	e.cumulative.reset()
	e.log.Info().Msg("cumulative stats reset")
	e.record(events.Entry{Kind: events.KindReset, Mode: string(ledger.Cumulative)}, OutcomeApplied)
}

// SessionStats returns a copy of the session total.
func (e *Engine) SessionStats() stats.Stats {
	return e.session.snapshot()
}

// CumulativeStats returns a copy of the cumulative total.
func (e *Engine) CumulativeStats() stats.Stats {
	return e.cumulative.snapshot().Stats
}

// Cumulative returns the cumulative total with its completed task count.
func (e *Engine) Cumulative() Cumulative {
	return e.cumulative.snapshot()
}

// Task describes the current task.
func (e *Engine) Task() TaskInfo {
	return e.tracker.info()
}

// Audit returns up to limit of the most recent audit entries, oldest first.
// The returned slice is safe to use from any goroutine.
func (e *Engine) Audit(limit int) []events.Entry {
	return e.audit.Recent(limit)
}

// AuditTrail exposes the underlying audit buffer, which is safe for
// concurrent readers.
func (e *Engine) AuditTrail() *events.RingBuffer {
	return e.audit
}

// DebugInfo summarizes internal state for diagnostics.
type DebugInfo struct {
	Task            TaskInfo `json:"task"`
	SessionIDs      int      `json:"session_ids"`
	CumulativeIDs   int      `json:"cumulative_ids"`
	LedgerCapacity  int      `json:"ledger_capacity"`
	AuditEntries    int      `json:"audit_entries"`
	CompletedTasks  int64    `json:"completed_tasks"`
	PersistWrites   int64    `json:"persist_writes"`
	PersistFailures int64    `json:"persist_failures"`
}

// Debug returns a diagnostic summary.
func (e *Engine) Debug() DebugInfo {
	return DebugInfo{
		Task:            e.tracker.info(),
		SessionIDs:      e.ledger.Len(ledger.Session),
		CumulativeIDs:   e.ledger.Len(ledger.Cumulative),
		LedgerCapacity:  e.ledger.Capacity(),
		AuditEntries:    e.audit.Len(),
		CompletedTasks:  e.cumulative.cur.CompletedTasks,
		PersistWrites:   e.cumulative.p.writes.Load(),
		PersistFailures: e.cumulative.p.failures.Load(),
	}
}

func (e *Engine) normalize(raw any) stats.Stats {
	d := stats.Normalize(raw)
	if e.estimator == nil || d.Cost > 0 || d.Tokens.Total == 0 {
		return d
	}
	model := stats.ModelOf(raw)
	if model == "" {
		return d
	}
	if cost, ok := e.estimator.Estimate(model, d.Tokens); ok {
		d.Cost = cost
		d = d.Sanitize()
	}
	return d
}

func (e *Engine) record(entry events.Entry, outcome Outcome) Outcome {
	entry.Outcome = string(outcome)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = e.now()
	}
	e.audit.Add(events.Format(entry))

	kind := entry.Kind
	if _, ok := scopeFor(Kind(kind)); !ok && kind != events.KindTaskStarted && kind != events.KindReset {
		kind = "unknown"
	}
	e.metrics.events.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", string(outcome)),
	))
	return outcome
}

func (e *Engine) eventTime(ms int64) time.Time {
	if ms > 0 {
		return time.UnixMilli(ms)
	}
	return e.now()
}

func scopeFor(k Kind) (ledger.Scope, bool) {
	switch k {
	case KindBatchProgress:
		return ledger.Session, true
	case KindTaskComplete:
		return ledger.Cumulative, true
	}
	return "", false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
