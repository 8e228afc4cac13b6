package events

import "sync"

// RingBuffer is a fixed-capacity, thread-safe ring buffer of audit entries.
// When the buffer is full, the oldest entry is evicted to make room.
// All methods are safe for concurrent use.
type RingBuffer struct {
	mu    sync.RWMutex
	items []Entry
	cap   int
	head  int // index of the oldest element
	count int // number of elements currently stored
}

// NewRingBuffer creates a new RingBuffer with the given capacity.
// Capacity must be at least 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer{
		items: make([]Entry, capacity),
		cap:   capacity,
	}
}

// Add inserts an entry into the buffer, overwriting the oldest one if full.
func (rb *RingBuffer) Add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count == rb.cap {
		rb.items[rb.head] = e
		rb.head = (rb.head + 1) % rb.cap
		return
	}
	rb.items[(rb.head+rb.count)%rb.cap] = e
	rb.count++
}

// ListAll returns all entries in chronological order (oldest first).
func (rb *RingBuffer) ListAll() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	return rb.listLocked()
}

// Recent returns up to limit of the newest entries, oldest first.
// A non-positive limit returns everything.
func (rb *RingBuffer) Recent(limit int) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	all := rb.listLocked()
	if limit <= 0 || limit >= len(all) {
		return all
	}
	return all[len(all)-limit:]
}

// ListByTask returns all entries for the given task ID in chronological order.
func (rb *RingBuffer) ListByTask(taskID string) []Entry {
	return rb.filter(func(e Entry) bool { return e.TaskID == taskID })
}

// ListByKind returns all entries of the given kind in chronological order.
func (rb *RingBuffer) ListByKind(kind string) []Entry {
	return rb.filter(func(e Entry) bool { return e.Kind == kind })
}

// Len returns the number of entries currently in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return rb.cap
}

func (rb *RingBuffer) filter(keep func(Entry) bool) []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var result []Entry
	for _, e := range rb.listLocked() {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// listLocked returns all entries in chronological order.
// Caller must hold at least a read lock.
func (rb *RingBuffer) listLocked() []Entry {
	if rb.count == 0 {
		return nil
	}
	result := make([]Entry, rb.count)
	for i := 0; i < rb.count; i++ {
		result[i] = rb.items[(rb.head+i)%rb.cap]
	}
	return result
}
