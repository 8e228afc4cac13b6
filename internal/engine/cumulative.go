package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/nixlim/po-stats/internal/ledger"
	"github.com/nixlim/po-stats/internal/stats"
	"github.com/nixlim/po-stats/internal/storage"
)

// DefaultStoreKey is the key the cumulative record is stored under.
const DefaultStoreKey = "cumulativeStats"

// Cumulative is the lifetime total together with its bookkeeping.
type Cumulative struct {
	Stats          stats.Stats `json:"stats"`
	CompletedTasks int64       `json:"completed_tasks"`
	LastUpdated    time.Time   `json:"last_updated"`
}

// record is the persisted shape of Cumulative.
type record struct {
	TotalTranslated int64   `json:"totalTranslated"`
	TotalTokens     int64   `json:"totalTokens"`
	TotalCost       float64 `json:"totalCost"`
	SessionCount    int64   `json:"sessionCount"`
	LastUpdated     int64   `json:"lastUpdated"` // unix millis
	TMHits          int64   `json:"tmHits"`
	Deduplicated    int64   `json:"deduplicated"`
	AITranslated    int64   `json:"aiTranslated"`
	TMLearned       int64   `json:"tmLearned"`
	InputTokens     int64   `json:"inputTokens"`
	OutputTokens    int64   `json:"outputTokens"`
}

func recordOf(c Cumulative) record {
	r := record{
		TotalTranslated: c.Stats.Total,
		TotalTokens:     c.Stats.Tokens.Total,
		TotalCost:       c.Stats.Cost,
		SessionCount:    c.CompletedTasks,
		TMHits:          c.Stats.TMHits,
		Deduplicated:    c.Stats.Deduplicated,
		AITranslated:    c.Stats.AITranslated,
		TMLearned:       c.Stats.TMLearned,
		InputTokens:     c.Stats.Tokens.Input,
		OutputTokens:    c.Stats.Tokens.Output,
	}
	if !c.LastUpdated.IsZero() {
		r.LastUpdated = c.LastUpdated.UnixMilli()
	}
	return r
}

func (r record) cumulative() Cumulative {
	c := Cumulative{
		Stats: stats.Stats{
			Total:        r.TotalTranslated,
			TMHits:       r.TMHits,
			Deduplicated: r.Deduplicated,
			AITranslated: r.AITranslated,
			TMLearned:    r.TMLearned,
			Tokens: stats.Tokens{
				Input:  r.InputTokens,
				Output: r.OutputTokens,
				Total:  r.TotalTokens,
			},
			Cost: r.TotalCost,
		}.Sanitize(),
		CompletedTasks: max(r.SessionCount, 0),
	}
	if r.LastUpdated > 0 {
		c.LastUpdated = time.UnixMilli(r.LastUpdated)
	}
	return c
}

// DecodeCumulative parses a persisted cumulative record.
func DecodeCumulative(data []byte) (Cumulative, error) {
	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return Cumulative{}, fmt.Errorf("decoding cumulative record: %w", err)
	}
	return r.cumulative(), nil
}

// LoadCumulative reads the cumulative record stored under key. A missing
// record yields the zero value and no error.
func LoadCumulative(kv storage.KV, key string) (Cumulative, error) {
	data, ok, err := kv.Get(key)
	if err != nil {
		return Cumulative{}, fmt.Errorf("reading %q: %w", key, err)
	}
	if !ok || len(data) == 0 {
		return Cumulative{}, nil
	}
	return DecodeCumulative(data)
}

// cumulativeAccumulator is the durable lifetime total fed by task
// completions. The in-memory value is authoritative; the store is a
// best-effort mirror written by a persister goroutine.
type cumulativeAccumulator struct {
	cur    Cumulative
	ledger *ledger.Ledger
	now    func() time.Time
	p      *persister
}

func (c *cumulativeAccumulator) apply(d stats.Stats) {
	c.cur.Stats = c.cur.Stats.Add(d)
	c.cur.CompletedTasks++
	c.cur.LastUpdated = c.now()
	c.persist()
}

func (c *cumulativeAccumulator) snapshot() Cumulative {
	return c.cur
}

func (c *cumulativeAccumulator) reset() {
	c.cur = Cumulative{LastUpdated: c.now()}
	c.ledger.Clear(ledger.Cumulative)
	c.persist()
}

func (c *cumulativeAccumulator) persist() {
	data, err := json.Marshal(recordOf(c.cur))
	if err != nil {
		// Unreachable for this record shape; keep the in-memory value.
		c.p.log.Error().Err(err).Msg("encoding cumulative record")
		return
	}
	c.p.enqueue(data)
}

// persister writes the newest pending snapshot to the store. Snapshots
// enqueued while a write is in flight replace each other, so only the
// latest one is written next.
type persister struct {
	kv      storage.KV
	key     string
	log     zerolog.Logger
	metrics *instruments

	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	writing bool
	closed  bool
	done    chan struct{}
	once    sync.Once

	writes   atomic.Int64
	failures atomic.Int64
}

func newPersister(kv storage.KV, key string, log zerolog.Logger, m *instruments) *persister {
	p := &persister{
		kv:      kv,
		key:     key,
		log:     log,
		metrics: m,
		done:    make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)
	go p.run()
	return p
}

func (p *persister) enqueue(data []byte) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.write(data)
		return
	}
	p.pending = data
	p.cond.Broadcast()
	p.mu.Unlock()
}

func (p *persister) run() {
	defer close(p.done)

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		for p.pending == nil && !p.closed {
			p.cond.Wait()
		}
		if p.pending == nil {
			return
		}
		data := p.pending
		p.pending = nil
		p.writing = true
		p.mu.Unlock()

		p.write(data)

		p.mu.Lock()
		p.writing = false
		p.cond.Broadcast()
	}
}

func (p *persister) write(data []byte) {
	err := p.kv.Set(p.key, data)
	if err == nil {
		err = p.kv.Save()
	}
	if err != nil {
		p.failures.Add(1)
		p.metrics.persistFailures.Add(context.Background(), 1)
		ev := p.log.Error()
		if errors.Is(err, storage.ErrClosed) {
			ev = p.log.Warn()
		}
		ev.Err(err).Str("key", p.key).Msg("failed to persist cumulative stats; keeping in-memory value")
		return
	}
	p.writes.Add(1)
	p.metrics.persistWrites.Add(context.Background(), 1)
}

// flush blocks until no write is pending or in flight.
func (p *persister) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending != nil || p.writing {
		p.cond.Wait()
	}
}

// close drains the pending write and stops the goroutine. Later enqueues
// are written synchronously.
func (p *persister) close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.cond.Broadcast()
		p.mu.Unlock()
		<-p.done
	})
}
