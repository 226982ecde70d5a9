package gpu

import "sync"

// FrameSyncs tracks the backend sync object of every submitted frame that has
// not been seen signaled yet. Backends use it to answer FrameFence polls.
// Not safe for concurrent use; backends call it from the render thread.
type FrameSyncs[S any] struct {
	submitted uint64 // frames below this index have been submitted
	pending   map[uint64]S
}

// NewFrameSyncs creates a tracker whose first frame is start.
func NewFrameSyncs[S any](start uint64) *FrameSyncs[S] {
	return &FrameSyncs[S]{submitted: start, pending: make(map[uint64]S)}
}

// Submit records the sync object of frame and marks every frame up to it
// as submitted.
func (f *FrameSyncs[S]) Submit(frame uint64, sync S) {
	f.pending[frame] = sync
	if frame+1 > f.submitted {
		f.submitted = frame + 1
	}
}

// Poll reports whether frame has completed. Frames not submitted yet report
// false. A frame whose sync was already seen signaled, or that never had
// one, reports true. check inspects a sync without blocking; once it reports
// true the sync is handed to destroy and forgotten.
func (f *FrameSyncs[S]) Poll(frame uint64, check func(S) (bool, error), destroy func(S)) (bool, error) {
	if frame >= f.submitted {
		return false, nil
	}
	sync, ok := f.pending[frame]
	if !ok {
		return true, nil
	}
	done, err := check(sync)
	if err != nil || !done {
		return false, err
	}
	delete(f.pending, frame)
	destroy(sync)
	return true, nil
}

// Drain destroys every pending sync, after the device went idle.
func (f *FrameSyncs[S]) Drain(destroy func(S)) {
	for frame, sync := range f.pending {
		destroy(sync)
		delete(f.pending, frame)
	}
}

// Len returns the number of syncs not seen signaled yet.
func (f *FrameSyncs[S]) Len() int { return len(f.pending) }

// Graveyard collects backend deletions requested from any goroutine so the
// render thread can run them at a point where the context is current.
type Graveyard struct {
	mu    sync.Mutex
	funcs []func()
}

// Bury schedules fn.
func (g *Graveyard) Bury(fn func()) {
	g.mu.Lock()
	g.funcs = append(g.funcs, fn)
	g.mu.Unlock()
}

// Dig runs and forgets every scheduled deletion. It returns how many ran.
func (g *Graveyard) Dig() int {
	g.mu.Lock()
	funcs := g.funcs
	g.funcs = nil
	g.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
	return len(funcs)
}

// Len returns the number of scheduled deletions.
func (g *Graveyard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.funcs)
}
