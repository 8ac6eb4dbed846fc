package utils

import (
	"sync"
	"sync/atomic"
	"time"

	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a bounded, append-only history of price snapshots.
//
// Entries live in a slab of twice the capacity. The visible window [start, end)
// is published through an atomic pointer, so readers never lock. A slot below a
// published end is never written again; when the slab is exhausted the window
// is copied into a fresh slab instead of being compacted in place.
// -----------------------------------------------------------------------------

type RingBuffer struct {
	mu        sync.Mutex // serializes writers
	capacity  int
	retention int64 // millis, 0 disables the time horizon
	slab      []models.MPriceSnapshot
	start     int
	end       int
	view      atomic.Pointer[bufferView]
}

type bufferView struct {
	entries []models.MPriceSnapshot
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer bounded by capacity and, when retention > 0,
// by a time horizon relative to the newest entry
func NewRingBuffer(capacity int, retention time.Duration) *RingBuffer {
	if capacity <= 0 {
		capacity = 512 // Default reasonable size
	}

	rb := &RingBuffer{
		capacity:  capacity,
		retention: retention.Milliseconds(),
		slab:      make([]models.MPriceSnapshot, 2*capacity),
	}
	rb.view.Store(&bufferView{})
	return rb
}

// -----------------------------------------------------------------------------

// Append adds a snapshot and enforces both bounds. Amortized O(1).
func (rb *RingBuffer) Append(s models.MPriceSnapshot) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.end == len(rb.slab) {
		fresh := make([]models.MPriceSnapshot, 2*rb.capacity)
		n := copy(fresh, rb.slab[rb.start:rb.end])
		rb.slab = fresh
		rb.start = 0
		rb.end = n
	}

	rb.slab[rb.end] = s
	rb.end++

	// Count bound
	if rb.end-rb.start > rb.capacity {
		rb.start = rb.end - rb.capacity
	}

	// Time horizon; the newest entry always survives
	if rb.retention > 0 {
		cutoff := s.Timestamp - rb.retention
		for rb.start < rb.end-1 && rb.slab[rb.start].Timestamp < cutoff {
			rb.start++
		}
	}

	rb.view.Store(&bufferView{entries: rb.slab[rb.start:rb.end:rb.end]})
}

// -----------------------------------------------------------------------------

// GetAll returns all data in insertion order (oldest to newest).
// The returned slice is shared and must not be modified.
func (rb *RingBuffer) GetAll() []models.MPriceSnapshot {
	return rb.view.Load().entries
}

// -----------------------------------------------------------------------------

// GetLatest returns up to n newest entries, oldest first
func (rb *RingBuffer) GetLatest(n int) []models.MPriceSnapshot {
	entries := rb.view.Load().entries
	if n <= 0 {
		return []models.MPriceSnapshot{}
	}
	if n > len(entries) {
		n = len(entries)
	}
	return entries[len(entries)-n:]
}

// -----------------------------------------------------------------------------

// Latest returns the newest entry, ok=false when empty
func (rb *RingBuffer) Latest() (models.MPriceSnapshot, bool) {
	entries := rb.view.Load().entries
	if len(entries) == 0 {
		return models.MPriceSnapshot{}, false
	}
	return entries[len(entries)-1], true
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return len(rb.view.Load().entries)
}

// -----------------------------------------------------------------------------

// Capacity returns the count bound (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether the count bound is reached
func (rb *RingBuffer) IsFull() bool {
	return rb.Size() == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear drops every entry and releases the slab
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.slab = make([]models.MPriceSnapshot, 2*rb.capacity)
	rb.start = 0
	rb.end = 0
	rb.view.Store(&bufferView{})
}
