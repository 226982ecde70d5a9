// Package fakegpu is an in-memory gpu.Backend with deterministic fences. It
// drives the tests and the headless benchmark.
package fakegpu

import (
	"sync"

	"github.com/pkg/errors"

	"voxel-stream/internal/gpu"
)

// Device simulates a graphics device. A frame's fence signals once the frame
// has been submitted with EndFrame and then polled Latency times, or earlier
// through Complete or WaitIdle.
type Device struct {
	mu sync.Mutex

	latency int
	frame   uint64
	frames  map[uint64]*frameState

	lost        bool
	failUploads int

	uploads   int
	destroyed int
	live      int
	bytes     int
}

type frameState struct {
	submitted bool
	done      bool
	polls     int
}

// Option configures a Device.
type Option func(*Device)

// WithLatency sets how many polls a submitted frame's fence needs to signal.
func WithLatency(polls int) Option {
	return func(d *Device) { d.latency = polls }
}

// WithStartFrame sets the index of the first frame.
func WithStartFrame(frame uint64) Option {
	return func(d *Device) { d.frame = frame }
}

// New creates a device recording frame 0.
func New(opts ...Option) *Device {
	d := &Device{frames: make(map[uint64]*frameState)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var _ gpu.Backend = (*Device)(nil)

func (d *Device) state(frame uint64) *frameState {
	fs := d.frames[frame]
	if fs == nil {
		fs = &frameState{}
		d.frames[frame] = fs
	}
	return fs
}

// CurrentFrameIndex is the index of the frame being recorded.
func (d *Device) CurrentFrameIndex() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

// EndFrame submits the current frame and starts recording the next one. It
// returns the submitted frame index.
func (d *Device) EndFrame() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	f := d.frame
	d.state(f).submitted = true
	d.frame++
	return f
}

// Complete marks every submitted frame up to and including frame as finished.
func (d *Device) Complete(frame uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for f, fs := range d.frames {
		if f <= frame && fs.submitted {
			fs.done = true
		}
	}
}

// LoseDevice makes every later fence poll, upload and idle wait fail.
func (d *Device) LoseDevice() {
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()
}

// FailNextUploads makes the next n uploads fail.
func (d *Device) FailNextUploads(n int) {
	d.mu.Lock()
	d.failUploads = n
	d.mu.Unlock()
}

// FrameFence returns the fence of frame.
func (d *Device) FrameFence(frame uint64) gpu.Fence {
	return &fence{dev: d, frame: frame}
}

// WaitIdle finishes every submitted frame.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return errors.Wrap(gpu.ErrDeviceLost, "fakegpu: wait idle")
	}
	for _, fs := range d.frames {
		if fs.submitted {
			fs.done = true
		}
	}
	return nil
}

// UploadMesh creates a buffer holding copies of the arrays.
func (d *Device) UploadMesh(vertices []float32, indices []uint32) (*gpu.MeshHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil, errors.Wrap(gpu.ErrDeviceLost, "fakegpu: upload")
	}
	if d.failUploads > 0 {
		d.failUploads--
		return nil, errors.Wrap(gpu.ErrUploadFailed, "fakegpu: injected failure")
	}
	b := &Buffer{
		dev:      d,
		Vertices: append([]float32(nil), vertices...),
		Indices:  append([]uint32(nil), indices...),
	}
	d.uploads++
	d.live++
	d.bytes += b.size()
	return gpu.NewMeshHandle(b, len(vertices), len(indices)), nil
}

// Uploads returns the number of successful uploads.
func (d *Device) Uploads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

// Destroyed returns the number of destroyed buffers.
func (d *Device) Destroyed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}

// LiveBuffers returns the number of buffers not destroyed yet.
func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// LiveBytes returns the memory held by live buffers.
func (d *Device) LiveBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bytes
}

type fence struct {
	dev   *Device
	frame uint64
}

func (f *fence) Signaled() (bool, error) {
	d := f.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return false, errors.Wrapf(gpu.ErrDeviceLost, "fakegpu: fence %d", f.frame)
	}
	fs := d.state(f.frame)
	if !fs.submitted {
		return false, nil
	}
	if fs.done {
		return true, nil
	}
	fs.polls++
	if fs.polls >= d.latency {
		fs.done = true
	}
	return fs.done, nil
}

// Buffer is the fake allocation behind a mesh handle.
type Buffer struct {
	dev       *Device
	Vertices  []float32
	Indices   []uint32
	destroyed bool
}

func (b *Buffer) size() int { return len(b.Vertices)*4 + len(b.Indices)*4 }

// Destroy frees the buffer. Destroying twice panics.
func (b *Buffer) Destroy() {
	d := b.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if b.destroyed {
		panic("fakegpu: buffer destroyed twice")
	}
	b.destroyed = true
	d.destroyed++
	d.live--
	d.bytes -= b.size()
}

// IsDestroyed reports whether Destroy was called.
func (b *Buffer) IsDestroyed() bool {
	b.dev.mu.Lock()
	defer b.dev.mu.Unlock()
	return b.destroyed
}
