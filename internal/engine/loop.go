package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/nixlim/po-stats/internal/events"
	"github.com/nixlim/po-stats/internal/stats"
)

var (
	// ErrLoopClosed is returned for work submitted after the loop stopped.
	ErrLoopClosed = errors.New("engine: loop closed")
	// ErrLoopRunning is returned when Run is called more than once.
	ErrLoopRunning = errors.New("engine: loop already running")
)

const defaultQueueSize = 256

type job struct {
	fn   func(*Engine)
	done chan struct{} // closed after fn ran and the snapshot was published
}

// Snapshot is a consistent view of the engine published after every
// submission.
type Snapshot struct {
	Session        stats.Stats `json:"session"`
	Cumulative     stats.Stats `json:"cumulative"`
	CompletedTasks int64       `json:"completed_tasks"`
	Task           TaskInfo    `json:"task"`
}

// Loop owns an Engine and serializes all access to it on one goroutine.
// Submissions from a single producer run in submission order. Snapshot
// getters never block.
type Loop struct {
	eng     *Engine
	work    chan job
	snap    atomic.Pointer[Snapshot]
	started atomic.Bool
	done    chan struct{}
	stop    chan struct{}
	once    sync.Once
}

// NewLoop wraps eng. queueSize bounds the number of pending submissions;
// a non-positive value selects the default.
func NewLoop(eng *Engine, queueSize int) *Loop {
	if queueSize < 1 {
		queueSize = defaultQueueSize
	}
	l := &Loop{
		eng:  eng,
		work: make(chan job, queueSize),
		done: make(chan struct{}),
		stop: make(chan struct{}),
	}
	l.publish()
	return l
}

// Run processes submissions until ctx is cancelled or Stop is called.
// Submissions already queued when it stops are still processed.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(l.done)

	for {
		select {
		case j := <-l.work:
			l.run(j)
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case <-l.stop:
			l.drain()
			return nil
		}
	}
}

// Stop asks Run to return after draining queued work.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() {
	for {
		select {
		case j := <-l.work:
			l.run(j)
		default:
			return
		}
	}
}

func (l *Loop) run(j job) {
	j.fn(l.eng)
	l.publish()
	if j.done != nil {
		close(j.done)
	}
}

func (l *Loop) publish() {
	c := l.eng.Cumulative()
	l.snap.Store(&Snapshot{
		Session:        l.eng.SessionStats(),
		Cumulative:     c.Stats,
		CompletedTasks: c.CompletedTasks,
		Task:           l.eng.Task(),
	})
}

func (l *Loop) enqueue(ctx context.Context, j job) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	case <-l.stop:
		return ErrLoopClosed
	default:
	}
	select {
	case l.work <- j:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits for it to finish. The snapshot
// reflects fn's effects by the time Do returns.
func (l *Loop) Do(ctx context.Context, fn func(*Engine)) error {
	finished := make(chan struct{})
	if err := l.enqueue(ctx, job{fn: fn, done: finished}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run may have drained fn on its way out.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch runs sig through the engine and returns its outcome.
func (l *Loop) Dispatch(ctx context.Context, sig Signal) (Outcome, error) {
	var out Outcome
	err := l.Do(ctx, func(e *Engine) { out = e.Dispatch(sig) })
	return out, err
}

// Debug returns the engine's diagnostic summary, read on the loop.
func (l *Loop) Debug(ctx context.Context) (DebugInfo, error) {
	var info DebugInfo
	err := l.Do(ctx, func(e *Engine) { info = e.Debug() })
	return info, err
}

// Snapshot returns the most recently published view.
func (l *Loop) Snapshot() Snapshot {
	return *l.snap.Load()
}

// SessionStats returns the most recently published session total.
func (l *Loop) SessionStats() stats.Stats {
	return l.snap.Load().Session
}

// CumulativeStats returns the most recently published cumulative total.
func (l *Loop) CumulativeStats() stats.Stats {
	return l.snap.Load().Cumulative
}

// Audit returns up to limit recent audit entries.
func (l *Loop) Audit(limit int) []events.Entry {
	return l.eng.AuditTrail().Recent(limit)
}
