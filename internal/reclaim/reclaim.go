// Package reclaim defers destruction of GPU resources until the frames that
// may still reference them have finished on the device.
//
// A Reclaimer is owned by the main (render) thread. Nothing in it is locked.
package reclaim

import (
	"github.com/pkg/errors"

	"voxel-stream/internal/gpu"
)

// ErrDeviceLost is returned once a fence or idle wait reported a lost device.
// It is the same value as gpu.ErrDeviceLost so either can be matched.
var ErrDeviceLost = gpu.ErrDeviceLost

// Resource is anything whose destruction must wait for the device.
// *gpu.MeshHandle satisfies it.
type Resource interface {
	Release()
}

// Ticket identifies one retired resource.
type Ticket struct {
	Frame uint64 // frame whose fence gates the release
	Seq   uint64 // submission order
}

// Entry is a retired resource waiting on its fence.
type Entry struct {
	Resource Resource
	Fence    gpu.Fence
	Ticket   Ticket
}

// Reclaimer queues retired resources in submission order and releases them
// once their fences signal.
type Reclaimer struct {
	backend gpu.Backend
	entries []Entry
	seq     uint64
	err     error

	released uint64
}

// New creates a reclaimer on top of backend.
func New(backend gpu.Backend) *Reclaimer {
	return &Reclaimer{backend: backend}
}

// Retire queues res for release after the fence of frameIndex signals. A nil
// resource is ignored and yields a zero Ticket.
func (r *Reclaimer) Retire(res Resource, frameIndex uint64) Ticket {
	if res == nil {
		return Ticket{}
	}
	r.seq++
	t := Ticket{Frame: frameIndex, Seq: r.seq}
	r.entries = append(r.entries, Entry{
		Resource: res,
		Fence:    r.backend.FrameFence(frameIndex),
		Ticket:   t,
	})
	return t
}

// Collect splits entries into the prefix whose frames have completed and the
// rest. It stops at the first entry that is not complete or whose check fails,
// and returns that error. It releases nothing.
func Collect(entries []Entry, completed func(Entry) (bool, error)) (done, rest []Entry, err error) {
	for i, e := range entries {
		ok, ferr := completed(e)
		if ferr != nil {
			return entries[:i], entries[i:], errors.Wrapf(ErrDeviceLost, "fence of frame %d: %v", e.Ticket.Frame, ferr)
		}
		if !ok {
			return entries[:i], entries[i:], nil
		}
	}
	return entries, nil, nil
}

// Flush releases every resource whose fence has signaled, in submission order.
// With force it first waits for the device to go idle and then releases all
// queued resources. After a device-lost error the queued resources are leaked
// and the error is returned from every later call.
func (r *Reclaimer) Flush(force bool) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	if force {
		if err := r.backend.WaitIdle(); err != nil {
			r.err = errors.Wrapf(ErrDeviceLost, "wait idle: %v", err)
			return 0, r.err
		}
		n := len(r.entries)
		release(r.entries)
		r.released += uint64(n)
		r.entries = nil
		return n, nil
	}

	done, rest, err := Collect(r.entries, fenceSignaled)
	release(done)
	r.released += uint64(len(done))
	// Copy the tail down so the backing array does not grow without bound.
	r.entries = append(r.entries[:0], rest...)
	if err != nil {
		r.err = err
		return len(done), err
	}
	return len(done), nil
}

// WaitIdle blocks until the device finished all submitted work.
func (r *Reclaimer) WaitIdle() error {
	if err := r.backend.WaitIdle(); err != nil {
		return errors.Wrapf(ErrDeviceLost, "wait idle: %v", err)
	}
	return nil
}

// Err returns the sticky device-lost error, if any.
func (r *Reclaimer) Err() error { return r.err }

// Pending returns the number of resources waiting on fences.
func (r *Reclaimer) Pending() int { return len(r.entries) }

// Released returns the total number of resources released so far.
func (r *Reclaimer) Released() uint64 { return r.released }

// Deferred lists the tickets still waiting, oldest first.
func (r *Reclaimer) Deferred() []Ticket {
	out := make([]Ticket, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Ticket
	}
	return out
}

func release(entries []Entry) {
	for _, e := range entries {
		e.Resource.Release()
	}
}

func fenceSignaled(e Entry) (bool, error) {
	if e.Fence == nil {
		return true, nil
	}
	return e.Fence.Signaled()
}
