package monitor

import "sync"

// History is a thread-safe bounded FIFO ring. Pushing at capacity
// evicts the oldest item first. Readers get point-in-time copies and
// never block producers.
type History[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // oldest item
	count    int
	capacity int
}

// NewHistory creates a ring with the given capacity (minimum 1).
func NewHistory[T any](capacity int) *History[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &History[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends an item, evicting the oldest when full. O(1).
func (h *History[T]) Push(item T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == h.capacity {
		// Overwrite the oldest slot.
		h.buf[h.head] = item
		h.head = (h.head + 1) % h.capacity
		return
	}

	h.buf[(h.head+h.count)%h.capacity] = item
	h.count++
}

// Snapshot returns a copy of the buffered items, oldest first.
func (h *History[T]) Snapshot() []T {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]T, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.buf[(h.head+i)%h.capacity]
	}
	return out
}

// Len returns the current number of buffered items.
func (h *History[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Cap returns the configured capacity.
func (h *History[T]) Cap() int {
	return h.capacity
}

// Clear empties the ring.
func (h *History[T]) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	var zero T
	for i := range h.buf {
		h.buf[i] = zero
	}
	h.head = 0
	h.count = 0
}
