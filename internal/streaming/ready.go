package streaming

import "sync"

// ReadyList collects finished mesh builds from the workers. The main thread
// drains a bounded prefix per frame and leaves the rest for later frames.
type ReadyList struct {
	mu    sync.Mutex
	items []MeshResult
}

// Push appends a result. Safe for concurrent use.
func (r *ReadyList) Push(res MeshResult) {
	r.mu.Lock()
	r.items = append(r.items, res)
	r.mu.Unlock()
}

// Drain removes and returns up to max results in arrival order.
func (r *ReadyList) Drain(max int) []MeshResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if max <= 0 || len(r.items) == 0 {
		return nil
	}
	if max > len(r.items) {
		max = len(r.items)
	}
	out := make([]MeshResult, max)
	copy(out, r.items[:max])
	// Shift the rest down and clear the tail so drained meshes can be collected.
	n := copy(r.items, r.items[max:])
	for i := n; i < len(r.items); i++ {
		r.items[i] = MeshResult{}
	}
	r.items = r.items[:n]
	return out
}

// Len returns the number of waiting results.
func (r *ReadyList) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Clear drops every waiting result.
func (r *ReadyList) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.items)
	r.items = nil
	return n
}
