// Package feed buffers recent transition events for polling clients.
package feed

import (
	"context"
	"sync"

	"esims/internal/events"
)

const defaultCapacity = 1024

// RingBuffer is a bounded, thread-safe buffer of events.
// When full, the oldest events are dropped to make room for new ones.
// Each accepted event is stamped with a monotonically increasing sequence
// number so readers can resume with Since.
type RingBuffer struct {
	mu       sync.Mutex
	events   []events.Event
	head     int // next write position
	tail     int // oldest retained event
	count    int
	capacity int
	seq      uint64

	// Stats
	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &RingBuffer{
		events:   make([]events.Event, capacity),
		capacity: capacity,
	}
}

// Emit implements events.Sink. It never fails.
func (b *RingBuffer) Emit(_ context.Context, e events.Event) error {
	b.Enqueue(e)
	return nil
}

// Enqueue adds an event, dropping the oldest if necessary, and returns the
// sequence number assigned to it.
func (b *RingBuffer) Enqueue(e events.Event) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		// Drop oldest
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.seq++
	e.Seq = b.seq
	b.events[b.head] = e
	b.head = (b.head + 1) % b.capacity
	b.count++
	return e.Seq
}

// Since returns up to limit retained events with a sequence number greater
// than after, oldest first. A limit of zero or less returns all of them.
func (b *RingBuffer) Since(after uint64, limit int) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []events.Event
	for i := 0; i < b.count; i++ {
		e := b.events[(b.tail+i)%b.capacity]
		if e.Seq <= after {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// LastSeq returns the sequence number of the newest event, zero if none.
func (b *RingBuffer) LastSeq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Len returns the current number of events in the buffer.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped events.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
