package monitor

import "sync"

// DedupStore tracks observation IDs that have already been processed.
// It is bounded: once at capacity, marking a new ID evicts the oldest
// marked ID, so memory stays flat over a long-running process at the
// cost of very old resting orders eventually re-alerting.
type DedupStore struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string // insertion order, ring-indexed
	head     int
	count    int
	capacity int
}

// NewDedupStore creates a store bounded at capacity IDs (minimum 1).
func NewDedupStore(capacity int) *DedupStore {
	if capacity < 1 {
		capacity = 1
	}
	return &DedupStore{
		seen:     make(map[string]struct{}, capacity),
		order:    make([]string, capacity),
		capacity: capacity,
	}
}

// Seen reports whether an ID has been marked.
func (d *DedupStore) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[id]
	return ok
}

// Mark records an ID, evicting the oldest entry when at capacity.
// Marking an already-seen ID is a no-op.
func (d *DedupStore) Mark(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mark(id)
}

// MarkIfNew marks an ID and reports whether it was previously unseen.
// This is the atomic seen-then-mark used by the poll cycle, so an ID is
// never double-processed.
func (d *DedupStore) MarkIfNew(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return false
	}
	d.mark(id)
	return true
}

func (d *DedupStore) mark(id string) {
	if _, ok := d.seen[id]; ok {
		return
	}

	if d.count == d.capacity {
		oldest := d.order[d.head]
		delete(d.seen, oldest)
		d.order[d.head] = id
		d.head = (d.head + 1) % d.capacity
	} else {
		d.order[(d.head+d.count)%d.capacity] = id
		d.count++
	}
	d.seen[id] = struct{}{}
}

// Len returns the number of marked IDs.
func (d *DedupStore) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Clear empties the store.
func (d *DedupStore) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen = make(map[string]struct{}, d.capacity)
	for i := range d.order {
		d.order[i] = ""
	}
	d.head = 0
	d.count = 0
}
