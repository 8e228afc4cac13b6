// Package ledger records which event ids have already been applied to an
// accumulator so that redelivered events become no-ops.
package ledger

// Scope names an accumulator whose applied ids are tracked independently.
type Scope string

const (
	Session    Scope = "session"
	Cumulative Scope = "cumulative"
)

// DefaultCapacity is the number of ids retained per scope when New is
// given a non-positive capacity.
const DefaultCapacity = 10000

// Ledger tracks applied event ids per scope. Each scope retains at most
// capacity ids; once full, the oldest id is forgotten to make room.
//
// A Ledger is not safe for concurrent use. It is owned by the engine's
// event loop.
type Ledger struct {
	capacity int
	scopes   map[Scope]*idSet
}

// idSet is a fixed-capacity FIFO set of ids.
type idSet struct {
	ids   map[string]struct{}
	ring  []string
	next  int // ring slot for the next insert
	count int
}

// New creates a Ledger retaining up to capacity ids per scope.
func New(capacity int) *Ledger {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		scopes:   make(map[Scope]*idSet),
	}
}

// Seen reports whether id has been marked in scope and not yet evicted.
func (l *Ledger) Seen(id string, scope Scope) bool {
	set, ok := l.scopes[scope]
	if !ok {
		return false
	}
	_, seen := set.ids[id]
	return seen
}

// MarkSeen records id in scope. Marking an id that is already present does
// not refresh its position.
func (l *Ledger) MarkSeen(id string, scope Scope) {
	set := l.scope(scope)
	if _, ok := set.ids[id]; ok {
		return
	}
	if set.count == len(set.ring) {
		delete(set.ids, set.ring[set.next])
	} else {
		set.count++
	}
	set.ring[set.next] = id
	set.next = (set.next + 1) % len(set.ring)
	set.ids[id] = struct{}{}
}

// Clear forgets every id in scope.
func (l *Ledger) Clear(scope Scope) {
	delete(l.scopes, scope)
}

// Len returns the number of ids currently retained in scope.
func (l *Ledger) Len(scope Scope) int {
	set, ok := l.scopes[scope]
	if !ok {
		return 0
	}
	return set.count
}

// Capacity returns the per-scope retention limit.
func (l *Ledger) Capacity() int {
	return l.capacity
}

func (l *Ledger) scope(scope Scope) *idSet {
	set, ok := l.scopes[scope]
	if !ok {
		set = &idSet{
			ids:  make(map[string]struct{}),
			ring: make([]string, l.capacity),
		}
		l.scopes[scope] = set
	}
	return set
}
