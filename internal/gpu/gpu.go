// Package gpu is the narrow slice of a graphics backend the streaming engine
// depends on: mesh upload, per-frame completion fences and a device-idle wait.
//
// Every method of Backend is called from the main (render) thread only.
// Workers never see a Backend.
package gpu

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

var (
	// ErrUploadFailed wraps backend failures while creating mesh buffers.
	ErrUploadFailed = errors.New("gpu: mesh upload failed")

	// ErrDeviceLost is reported by fences and idle waits once the device is gone.
	ErrDeviceLost = errors.New("gpu: device lost")
)

// Backend is implemented by fakegpu, glbackend and vkbackend.
type Backend interface {
	// UploadMesh copies interleaved vertex data and indices into GPU memory.
	// The returned handle holds one reference owned by the caller.
	UploadMesh(vertices []float32, indices []uint32) (*MeshHandle, error)

	// CurrentFrameIndex is the index of the frame being recorded.
	CurrentFrameIndex() uint64

	// FrameFence returns the completion fence of a frame. The fence of a frame
	// that has not been submitted yet reports not signaled.
	FrameFence(frameIndex uint64) Fence

	// WaitIdle blocks until the device finished all submitted work.
	WaitIdle() error
}

// Fence reports whether a submitted frame finished executing on the device.
type Fence interface {
	Signaled() (bool, error)
}

// Buffer is a backend allocation backing one mesh.
type Buffer interface {
	Destroy()
}

// MeshHandle is a reference-counted, immutable mesh living in GPU memory.
// The renderer and the reclaimer can each hold a reference without locking;
// the last Release destroys the backing buffer.
type MeshHandle struct {
	buf         Buffer
	vertexCount int
	indexCount  int

	refs      atomic.Int32
	destroyed atomic.Bool
}

// NewMeshHandle wraps buf with a single reference.
func NewMeshHandle(buf Buffer, vertexCount, indexCount int) *MeshHandle {
	h := &MeshHandle{buf: buf, vertexCount: vertexCount, indexCount: indexCount}
	h.refs.Store(1)
	return h
}

// Buffer returns the backend allocation, for draw calls.
func (h *MeshHandle) Buffer() Buffer { return h.buf }

// VertexCount returns the number of vertices in the mesh.
func (h *MeshHandle) VertexCount() int { return h.vertexCount }

// IndexCount returns the number of indices in the mesh.
func (h *MeshHandle) IndexCount() int { return h.indexCount }

// Refs returns the current reference count.
func (h *MeshHandle) Refs() int32 { return h.refs.Load() }

// Destroyed reports whether the backing buffer has been destroyed.
func (h *MeshHandle) Destroyed() bool { return h.destroyed.Load() }

// Retain adds a reference and returns h for chaining.
func (h *MeshHandle) Retain() *MeshHandle {
	if h.refs.Add(1) <= 1 {
		panic("gpu: retain of released mesh handle")
	}
	return h
}

// Release drops a reference. Dropping the last one destroys the buffer.
func (h *MeshHandle) Release() {
	n := h.refs.Add(-1)
	switch {
	case n == 0:
		h.destroyed.Store(true)
		if h.buf != nil {
			h.buf.Destroy()
		}
	case n < 0:
		panic("gpu: mesh handle released too many times")
	}
}
