package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/nixlim/po-stats/internal/events"
	"github.com/nixlim/po-stats/internal/stats"
	"github.com/nixlim/po-stats/internal/storage"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
}

func newTestEngine(kv storage.KV, opts ...Option) *Engine {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	}
	return New(kv, append(base, opts...)...)
}

type failingKV struct {
	*storage.MemoryKV
	err  error
	sets atomic.Int32
}

func (f *failingKV) Set(key string, value []byte) error {
	f.sets.Add(1)
	return f.err
}

type fixedPrices map[string][2]float64

func (p fixedPrices) Estimate(model string, tokens stats.Tokens) (float64, bool) {
	price, ok := p[model]
	if !ok {
		return 0, false
	}
	return float64(tokens.Input)*price[0]/1e6 + float64(tokens.Output)*price[1]/1e6, true
}

// EngineSuite exercises the engine over an in-memory store.
type EngineSuite struct {
	suite.Suite
	kv  *storage.MemoryKV
	eng *Engine
}

func (s *EngineSuite) SetupTest() {
	s.kv = storage.NewMemoryKV()
	s.eng = newTestEngine(s.kv)
}

func (s *EngineSuite) TearDownTest() {
	s.eng.Close()
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func progress(id string, raw any) Event {
	return Event{ID: id, Kind: KindBatchProgress, TaskID: "t1", Payload: raw}
}

func completion(id string, raw any) Event {
	return Event{ID: id, Kind: KindTaskComplete, TaskID: "t1", Payload: raw}
}

func (s *EngineSuite) runThreeBatches() {
	s.eng.TaskStarted("t1", ModeChannel)
	tm := []int{2, 0, 1}
	ai := []int{3, 5, 0}
	cost := []float64{0.01, 0.02, 0.00}
	for i := range tm {
		out := s.eng.BatchProgress(map[string]any{
			"tm_hits":       tm[i],
			"ai_translated": ai[i],
			"cost":          cost[i],
		}, i+1, 3, float64(i+1)/3*100)
		s.Require().Equal(OutcomeApplied, out)
	}
}

func (s *EngineSuite) TestProgressAccumulatesIntoSession() {
	s.runThreeBatches()

	session := s.eng.SessionStats()
	s.Equal(int64(3), session.TMHits)
	s.Equal(int64(8), session.AITranslated)
	s.InDelta(0.03, session.Cost, 1e-12)
	s.True(s.eng.CumulativeStats().IsZero())
}

func (s *EngineSuite) TestCompletionFeedsOnlyCumulative() {
	s.runThreeBatches()

	out := s.eng.TaskCompleted(map[string]any{"total": 50, "cost": 0.50})
	s.Equal(OutcomeApplied, out)

	cum := s.eng.CumulativeStats()
	s.Equal(int64(50), cum.Total)
	s.InDelta(0.50, cum.Cost, 1e-12)

	session := s.eng.SessionStats()
	s.Equal(int64(3), session.TMHits)
	s.Equal(int64(8), session.AITranslated)
	s.Equal(TaskIdle, s.eng.Task().State)
}

func (s *EngineSuite) TestReplayedCompletionIsNoOp() {
	s.runThreeBatches()
	ev := completion("t1-complete", map[string]any{"total": 50, "cost": 0.50})

	s.Equal(OutcomeApplied, s.eng.ProcessEvent(ev))
	s.Equal(OutcomeDuplicate, s.eng.ProcessEvent(ev))

	cum := s.eng.CumulativeStats()
	s.Equal(int64(50), cum.Total)
	s.InDelta(0.50, cum.Cost, 1e-12)
	s.Equal(int64(1), s.eng.Cumulative().CompletedTasks)
}

func (s *EngineSuite) TestIdempotence_DuplicateProgress() {
	ev := progress("p1", map[string]any{"total": 4, "tm_hits": 1})

	s.Equal(OutcomeApplied, s.eng.ProcessEvent(ev))
	before := s.eng.SessionStats()
	s.Equal(OutcomeDuplicate, s.eng.ProcessEvent(ev))
	s.Equal(OutcomeDuplicate, s.eng.ProcessEvent(ev))

	s.Equal(before, s.eng.SessionStats())
}

func (s *EngineSuite) TestAdditivity() {
	deltas := []map[string]any{
		{"total": 10, "tm_hits": 4, "deduplicated": 1, "ai_translated": 5, "tm_learned": 5, "cost": 0.1,
			"token_stats": map[string]any{"input_tokens": 100, "output_tokens": 40}},
		{"total": 3, "tm_hits": 3},
		{"total": 7, "ai_translated": 7, "tokens": map[string]any{"prompt_tokens": 70, "completion_tokens": 30, "total_tokens": 120}},
	}

	var want stats.Stats
	for i, d := range deltas {
		want = want.Add(stats.Normalize(d))
		s.eng.ProcessEvent(progress(fmt.Sprintf("p%d", i), d))
	}

	s.Equal(want, s.eng.SessionStats())
	s.Equal(int64(20), want.Total)
	s.Equal(stats.Tokens{Input: 170, Output: 70, Total: 260}, want.Tokens)
}

func (s *EngineSuite) TestScopeIsolation_SameIDAppliesOncePerScope() {
	raw := map[string]any{"total": 2}

	s.Equal(OutcomeApplied, s.eng.ProcessEvent(progress("shared", raw)))
	s.Equal(OutcomeApplied, s.eng.ProcessEvent(completion("shared", raw)))

	s.Equal(int64(2), s.eng.SessionStats().Total)
	s.Equal(int64(2), s.eng.CumulativeStats().Total)
}

func (s *EngineSuite) TestScopeIsolation_ProgressNeverTouchesCumulative() {
	for i := 0; i < 5; i++ {
		s.eng.ProcessEvent(progress(fmt.Sprintf("p%d", i), map[string]any{"total": 1, "cost": 1.0}))
	}
	s.True(s.eng.CumulativeStats().IsZero())

	s.eng.ProcessEvent(completion("c1", map[string]any{"total": 9}))
	s.Equal(int64(5), s.eng.SessionStats().Total)
}

func (s *EngineSuite) TestNonNegativeAndFinite() {
	payloads := []any{
		map[string]any{"total": -10, "cost": math.NaN()},
		map[string]any{"tm_hits": math.Inf(1), "tokens": map[string]any{"input_tokens": -5}},
		"not json",
		[]byte(`{"cost": -1}`),
		nil,
	}
	for i, p := range payloads {
		s.eng.ProcessEvent(progress(fmt.Sprintf("p%d", i), p))
		s.eng.ProcessEvent(completion(fmt.Sprintf("c%d", i), p))
	}

	for _, got := range []stats.Stats{s.eng.SessionStats(), s.eng.CumulativeStats()} {
		s.True(got.IsZero(), "malformed payloads contribute nothing: %+v", got)
	}

	s.eng.ProcessEvent(completion("inf", map[string]any{"total": "Infinity", "tm_hits": math.Inf(1), "cost": "NaN"}))
	s.eng.Flush()
	stored, err := LoadCumulative(s.kv, DefaultStoreKey)
	s.Require().NoError(err)
	s.Equal(int64(0), stored.Stats.Total)
	s.Equal(int64(0), stored.Stats.TMHits)
	s.Equal(0.0, stored.Stats.Cost)
}

func (s *EngineSuite) TestLateProgressAfterCompletionLandsInSession() {
	s.eng.TaskStarted("t1", ModeChannel)
	s.Equal(OutcomeApplied, s.eng.BatchProgress(map[string]any{"tm_hits": 1}, 1, 2, 50))
	s.Equal(OutcomeApplied, s.eng.TaskCompleted(map[string]any{"total": 2, "tm_hits": 2}))

	// The second batch's progress was still in flight when the summary arrived.
	s.Equal(OutcomeApplied, s.eng.BatchProgress(map[string]any{"tm_hits": 1}, 2, 2, 100))

	s.Equal(int64(2), s.eng.SessionStats().TMHits)
	s.Equal(int64(2), s.eng.CumulativeStats().Total)
	s.Equal(int64(2), s.eng.CumulativeStats().TMHits)
	s.Equal(int64(1), s.eng.Cumulative().CompletedTasks)

	task := s.eng.Task()
	s.Equal(TaskIdle, task.State)
	s.False(task.Fallback)

	late := s.eng.AuditTrail().ListByKind(string(KindBatchProgress))
	s.Require().Len(late, 2)
	s.Equal("t1", late[1].TaskID)
}

func (s *EngineSuite) TestLateProgressWindowExpires() {
	now := fixedNow
	eng := newTestEngine(storage.NewMemoryKV(), WithClock(func() time.Time { return now }))
	defer eng.Close()

	eng.TaskStarted("t1", ModeChannel)
	eng.TaskCompleted(map[string]any{"total": 1})

	now = now.Add(lateProgressWindow + time.Second)
	eng.BatchProgress(map[string]any{"total": 1}, 1, 1, 100)

	task := eng.Task()
	s.Equal(TaskActive, task.State)
	s.True(task.Fallback)
	s.NotEqual("t1", task.ID)
}

func (s *EngineSuite) TestAbandonedTaskLeavesCumulativeUntouched() {
	s.eng.TaskStarted("t1", ModeChannel)
	s.eng.BatchProgress(map[string]any{"total": 4, "ai_translated": 4, "cost": 0.04}, 1, 3, 33)
	s.eng.BatchProgress(map[string]any{"total": 2, "tm_hits": 2}, 2, 3, 66)
	s.eng.Flush()

	session := s.eng.SessionStats()
	s.Equal(int64(6), session.Total)
	s.InDelta(0.04, session.Cost, 1e-12)
	s.True(s.eng.CumulativeStats().IsZero())
	s.Equal(int64(0), s.eng.Cumulative().CompletedTasks)

	_, ok, err := s.kv.Get(DefaultStoreKey)
	s.Require().NoError(err)
	s.False(ok, "nothing is persisted for a task that never completes")
	s.Equal(TaskActive, s.eng.Task().State)
}

func (s *EngineSuite) TestResetSession() {
	ev := progress("p1", map[string]any{"total": 4})
	s.eng.ProcessEvent(ev)
	s.eng.ProcessEvent(completion("c1", map[string]any{"total": 4}))

	s.eng.ResetSession()

	s.True(s.eng.SessionStats().IsZero())
	s.Equal(int64(4), s.eng.CumulativeStats().Total)
	s.Equal(0, s.eng.Debug().SessionIDs)
	s.Equal(1, s.eng.Debug().CumulativeIDs)

	// The session ledger was cleared, so the id applies again.
	s.Equal(OutcomeApplied, s.eng.ProcessEvent(ev))
	s.Equal(int64(4), s.eng.SessionStats().Total)
}

func (s *EngineSuite) TestResetCumulative() {
	s.eng.ProcessEvent(progress("p1", map[string]any{"total": 4}))
	ev := completion("c1", map[string]any{"total": 4, "cost": 0.2})
	s.eng.ProcessEvent(ev)

	s.eng.ResetCumulative()
	s.eng.Flush()

	s.True(s.eng.CumulativeStats().IsZero())
	s.Equal(int64(0), s.eng.Cumulative().CompletedTasks)
	s.Equal(int64(4), s.eng.SessionStats().Total)

	stored, err := LoadCumulative(s.kv, DefaultStoreKey)
	s.Require().NoError(err)
	s.True(stored.Stats.IsZero())
	s.Equal(int64(0), stored.CompletedTasks)

	s.Equal(OutcomeApplied, s.eng.ProcessEvent(ev))
}

func (s *EngineSuite) TestCumulativePersistsAndReloads() {
	s.eng.TaskStarted("t1", ModeEvent)
	s.eng.TaskCompleted(map[string]any{
		"total": 12, "tm_hits": 2, "deduplicated": 3, "ai_translated": 7, "tm_learned": 7, "cost": 0.25,
		"token_stats": map[string]any{"input_tokens": 300, "output_tokens": 100},
	})
	s.eng.Flush()

	raw, ok, err := s.kv.Get(DefaultStoreKey)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Contains(string(raw), `"totalTranslated":12`)
	s.Contains(string(raw), `"sessionCount":1`)
	s.Contains(string(raw), `"inputTokens":300`)

	reloaded := newTestEngine(s.kv)
	defer reloaded.Close()

	c := reloaded.Cumulative()
	s.Equal(s.eng.CumulativeStats(), c.Stats)
	s.Equal(int64(1), c.CompletedTasks)
	s.Equal(fixedNow.UnixMilli(), c.LastUpdated.UnixMilli())
	s.True(reloaded.SessionStats().IsZero())
}

func (s *EngineSuite) TestUnreadableRecordStartsFromZero() {
	s.Require().NoError(s.kv.Set(DefaultStoreKey, []byte(`{"totalTranslated":`)))

	eng := newTestEngine(s.kv)
	defer eng.Close()

	s.True(eng.CumulativeStats().IsZero())
}

func (s *EngineSuite) TestStoredRecordIsSanitized() {
	s.Require().NoError(s.kv.Set(DefaultStoreKey, []byte(
		`{"totalTranslated":-4,"totalTokens":5,"inputTokens":10,"outputTokens":5,"totalCost":-1,"sessionCount":-2}`)))

	eng := newTestEngine(s.kv)
	defer eng.Close()

	c := eng.Cumulative()
	s.Equal(int64(0), c.Stats.Total)
	s.Equal(int64(15), c.Stats.Tokens.Total)
	s.Equal(0.0, c.Stats.Cost)
	s.Equal(int64(0), c.CompletedTasks)
}

func (s *EngineSuite) TestUnknownKindRejected() {
	out := s.eng.ProcessEvent(Event{ID: "x", Kind: "bogus", Payload: map[string]any{"total": 3}})

	s.Equal(OutcomeRejected, out)
	s.True(s.eng.SessionStats().IsZero())
	s.True(s.eng.CumulativeStats().IsZero())

	audit := s.eng.Audit(1)
	s.Require().Len(audit, 1)
	s.Equal(events.OutcomeRejected, audit[0].Outcome)
}

func (s *EngineSuite) TestEmptyIDIsMinted() {
	out := s.eng.ProcessEvent(Event{Kind: KindBatchProgress, Payload: map[string]any{"total": 1}})

	s.Equal(OutcomeApplied, out)
	s.Equal(int64(1), s.eng.SessionStats().Total)
	audit := s.eng.Audit(1)
	s.Require().Len(audit, 1)
	s.NotEmpty(audit[0].EventID)
}

func (s *EngineSuite) TestEventIDsDerivedFromTask() {
	s.eng.TaskStarted("task-a", ModeChannel)
	s.eng.BatchProgress(map[string]any{"total": 1}, 1, 2, 50)
	s.eng.BatchProgress(map[string]any{"total": 1}, 2, 2, 100)
	s.eng.TaskCompleted(map[string]any{"total": 2})

	progressEntries := s.eng.AuditTrail().ListByKind(string(KindBatchProgress))
	s.Require().Len(progressEntries, 2)
	s.Regexp(`^task-a-progress-.+$`, progressEntries[0].EventID)
	s.NotEqual(progressEntries[0].EventID, progressEntries[1].EventID)

	complete := s.eng.AuditTrail().ListByKind(string(KindTaskComplete))
	s.Require().Len(complete, 1)
	s.Equal("task-a-complete", complete[0].EventID)
	s.Equal(int64(2), s.eng.SessionStats().Total)
}

func (s *EngineSuite) TestFallbackTaskWhenNoneActive() {
	out := s.eng.BatchProgress(map[string]any{"total": 3}, 1, 1, 100)
	s.Equal(OutcomeApplied, out)

	task := s.eng.Task()
	s.Equal(TaskActive, task.State)
	s.True(task.Fallback)
	fallbackID := task.ID

	s.eng.TaskCompleted(map[string]any{"total": 3})
	s.Equal(TaskIdle, s.eng.Task().State)

	complete := s.eng.AuditTrail().ListByKind(string(KindTaskComplete))
	s.Require().Len(complete, 1)
	s.Equal(fallbackID, complete[0].TaskID)
}

func (s *EngineSuite) TestStartWhileActiveDisplacesPreviousTask() {
	s.eng.TaskStarted("old", ModeChannel)
	s.eng.BatchProgress(map[string]any{"total": 5}, 1, 2, 50)

	s.eng.TaskStarted("new", ModeRefine)

	task := s.eng.Task()
	s.Equal("new", task.ID)
	s.Equal(ModeRefine, task.Mode)
	// The abandoned task keeps its session contribution.
	s.Equal(int64(5), s.eng.SessionStats().Total)

	s.eng.TaskCompleted(map[string]any{"total": 1})
	s.Len(s.eng.AuditTrail().ListByTask("new"), 2)
	s.Equal(int64(1), s.eng.CumulativeStats().Total)
}

func (s *EngineSuite) TestCompletionWithoutStatsIgnored() {
	s.eng.TaskStarted("t1", ModeChannel)

	s.Equal(OutcomeIgnored, s.eng.TaskCompleted(nil))
	s.Equal(TaskActive, s.eng.Task().State)
	s.True(s.eng.CumulativeStats().IsZero())
}

func (s *EngineSuite) TestCompletionWithUnreadableStatsIgnored() {
	s.eng.TaskStarted("t1", ModeChannel)

	s.Equal(OutcomeIgnored, s.eng.TaskCompleted("garbage"))
	s.Equal(OutcomeIgnored, s.eng.TaskCompleted(`[1,2,3]`))

	s.Equal(TaskActive, s.eng.Task().State)
	s.Equal(int64(0), s.eng.Cumulative().CompletedTasks)
	audit := s.eng.Audit(1)
	s.Require().Len(audit, 1)
	s.Equal("unreadable stats", audit[0].Note)

	s.Equal(OutcomeApplied, s.eng.TaskCompleted(map[string]any{}))
	s.Equal(int64(1), s.eng.Cumulative().CompletedTasks)
}

func (s *EngineSuite) TestCompletionForOtherTaskKeepsActive() {
	s.eng.TaskStarted("t1", ModeChannel)

	out := s.eng.Dispatch(Signal{Type: SignalTaskCompleted, TaskID: "other", Stats: map[string]any{"total": 2}})

	s.Equal(OutcomeApplied, out)
	s.Equal("t1", s.eng.Task().ID)
	s.Equal(int64(2), s.eng.CumulativeStats().Total)
}

func (s *EngineSuite) TestDispatchSignals() {
	s.Equal(OutcomeApplied, s.eng.Dispatch(Signal{Type: SignalTaskStarted, TaskID: "t9", Mode: "single"}))
	s.Equal(ModeSingle, s.eng.Task().Mode)

	s.Equal(OutcomeApplied, s.eng.Dispatch(Signal{Type: SignalBatchProgress, EventID: "e1", Stats: map[string]any{"total": 2}}))
	s.Equal(OutcomeDuplicate, s.eng.Dispatch(Signal{Type: SignalBatchProgress, EventID: "e1", Stats: map[string]any{"total": 2}}))
	s.Equal(OutcomeApplied, s.eng.Dispatch(Signal{Type: SignalTaskCompleted, Stats: `{"total":2}`}))
	s.Equal(OutcomeApplied, s.eng.Dispatch(Signal{Type: SignalResetSession}))
	s.True(s.eng.SessionStats().IsZero())
	s.Equal(OutcomeApplied, s.eng.Dispatch(Signal{Type: SignalResetCumulative}))
	s.True(s.eng.CumulativeStats().IsZero())
	s.Equal(OutcomeRejected, s.eng.Dispatch(Signal{Type: "explode"}))
}

func (s *EngineSuite) TestUnknownModeFallsBackToDefault() {
	s.eng.TaskStarted("t1", "warp")
	s.Equal(ModeChannel, s.eng.Task().Mode)
}

func (s *EngineSuite) TestAuditBounded() {
	eng := newTestEngine(storage.NewMemoryKV(), WithAuditSize(3))
	defer eng.Close()

	for i := 0; i < 10; i++ {
		eng.ProcessEvent(progress(fmt.Sprintf("p%d", i), map[string]any{"total": 1}))
	}

	s.Len(eng.Audit(0), 3)
	s.Len(eng.Audit(2), 2)
	s.Equal("p9", eng.Audit(1)[0].EventID)
	s.Equal(int64(10), eng.SessionStats().Total)
}

func (s *EngineSuite) TestLedgerCapacityBoundsRetention() {
	eng := newTestEngine(storage.NewMemoryKV(), WithLedgerCapacity(2))
	defer eng.Close()

	for _, id := range []string{"a", "b", "c"} {
		eng.ProcessEvent(progress(id, map[string]any{"total": 1}))
	}
	s.Equal(2, eng.Debug().SessionIDs)
	s.Equal(OutcomeDuplicate, eng.ProcessEvent(progress("c", map[string]any{"total": 1})))
}

func (s *EngineSuite) TestCostEstimatedWhenMissing() {
	eng := newTestEngine(storage.NewMemoryKV(), WithCostEstimator(fixedPrices{"mini": {1, 2}}))
	defer eng.Close()

	eng.ProcessEvent(progress("p1", map[string]any{
		"model":  "mini",
		"tokens": map[string]any{"input_tokens": 1_000_000, "output_tokens": 500_000},
	}))
	s.InDelta(2.0, eng.SessionStats().Cost, 1e-9)

	// Reported cost wins over the estimate.
	eng.ProcessEvent(progress("p2", map[string]any{
		"model":  "mini",
		"cost":   0.5,
		"tokens": map[string]any{"input_tokens": 1_000_000},
	}))
	s.InDelta(2.5, eng.SessionStats().Cost, 1e-9)

	// Unknown models estimate nothing.
	eng.ProcessEvent(progress("p3", map[string]any{
		"model":  "other",
		"tokens": map[string]any{"input_tokens": 1_000_000},
	}))
	s.InDelta(2.5, eng.SessionStats().Cost, 1e-9)
}

func TestEngine_PersistFailureKeepsMemory(t *testing.T) {
	kv := &failingKV{MemoryKV: storage.NewMemoryKV(), err: errors.New("disk full")}
	eng := newTestEngine(kv)
	defer eng.Close()

	eng.ProcessEvent(completion("c1", map[string]any{"total": 7}))
	eng.ProcessEvent(completion("c2", map[string]any{"total": 3}))
	eng.Flush()

	if got := eng.CumulativeStats().Total; got != 10 {
		t.Fatalf("in-memory cumulative: want 10, got %d", got)
	}
	d := eng.Debug()
	if d.PersistFailures < 1 {
		t.Errorf("expected at least one persist failure, got %d", d.PersistFailures)
	}
	if d.PersistWrites != 0 {
		t.Errorf("expected no successful writes, got %d", d.PersistWrites)
	}
	if int64(kv.sets.Load()) != d.PersistFailures {
		t.Errorf("each attempted write should be counted once: sets=%d failures=%d", kv.sets.Load(), d.PersistFailures)
	}
}

func TestEngine_CloseFlushesPendingWrite(t *testing.T) {
	kv := storage.NewMemoryKV()
	eng := newTestEngine(kv)

	for i := 0; i < 50; i++ {
		eng.ProcessEvent(completion(fmt.Sprintf("c%d", i), map[string]any{"total": 1}))
	}
	eng.Close()

	c, err := LoadCumulative(kv, DefaultStoreKey)
	if err != nil {
		t.Fatalf("LoadCumulative: %v", err)
	}
	if c.Stats.Total != 50 || c.CompletedTasks != 50 {
		t.Errorf("stored record after Close: want total=50 tasks=50, got total=%d tasks=%d", c.Stats.Total, c.CompletedTasks)
	}
	if w := eng.Debug().PersistWrites; w < 1 || w > 50 {
		t.Errorf("writes should be coalesced to between 1 and 50, got %d", w)
	}

	// Writes after Close still reach the store.
	eng.ProcessEvent(completion("late", map[string]any{"total": 1}))
	c, _ = LoadCumulative(kv, DefaultStoreKey)
	if c.Stats.Total != 51 {
		t.Errorf("write after Close: want total=51, got %d", c.Stats.Total)
	}
}

func TestEngine_CustomStoreKey(t *testing.T) {
	kv := storage.NewMemoryKV()
	eng := newTestEngine(kv, WithStoreKey("custom"))
	eng.ProcessEvent(completion("c1", map[string]any{"total": 1}))
	eng.Close()

	if _, ok, _ := kv.Get(DefaultStoreKey); ok {
		t.Error("expected nothing under the default key")
	}
	if _, ok, _ := kv.Get("custom"); !ok {
		t.Error("expected record under the custom key")
	}
}

func TestEngine_NilStoreUsesMemory(t *testing.T) {
	eng := New(nil)
	defer eng.Close()

	if out := eng.ProcessEvent(completion("c1", map[string]any{"total": 1})); out != OutcomeApplied {
		t.Fatalf("want applied, got %s", out)
	}
	eng.Flush()
	if eng.Debug().PersistWrites != 1 {
		t.Errorf("want 1 write, got %d", eng.Debug().PersistWrites)
	}
}
