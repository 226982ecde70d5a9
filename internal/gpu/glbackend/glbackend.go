// Package glbackend implements gpu.Backend on OpenGL 4.1 core. Frame
// completion is tracked with GL sync objects. Every method must run on the
// thread that owns the GL context.
package glbackend

import (
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/pkg/errors"

	"voxel-stream/internal/gpu"
	"voxel-stream/internal/meshing"
)

// Vertex attribute locations used by UploadMesh.
const (
	AttribPosition = 0
	AttribNormal   = 1
	AttribMaterial = 2
)

// Device wraps the current GL context.
type Device struct {
	frame     uint64
	syncs     *gpu.FrameSyncs[uintptr]
	graveyard gpu.Graveyard
	lost      bool
}

// New creates a device for the current context. gl.Init must have run.
func New() *Device {
	return &Device{syncs: gpu.NewFrameSyncs[uintptr](0)}
}

var _ gpu.Backend = (*Device)(nil)

// CurrentFrameIndex is the index of the frame being recorded.
func (d *Device) CurrentFrameIndex() uint64 { return d.frame }

// EndFrame inserts a fence after the frame's commands, runs deferred buffer
// deletions and starts the next frame. Call it right after SwapBuffers.
func (d *Device) EndFrame() {
	sync := gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	d.syncs.Submit(d.frame, sync)
	d.frame++
	d.graveyard.Dig()
}

// FrameFence returns the fence of frame.
func (d *Device) FrameFence(frame uint64) gpu.Fence {
	return fence{dev: d, frame: frame}
}

// WaitIdle blocks until the GL pipeline drained.
func (d *Device) WaitIdle() error {
	if d.lost {
		return errors.Wrap(gpu.ErrDeviceLost, "glbackend: wait idle")
	}
	gl.Finish()
	d.syncs.Drain(deleteSync)
	d.graveyard.Dig()
	return nil
}

// Close drains the device. The GL context itself belongs to the caller.
func (d *Device) Close() error {
	return d.WaitIdle()
}

func deleteSync(s uintptr) { gl.DeleteSync(s) }

func (d *Device) checkSync(s uintptr) (bool, error) {
	switch gl.ClientWaitSync(s, 0, 0) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		return true, nil
	case gl.TIMEOUT_EXPIRED:
		return false, nil
	default:
		d.lost = true
		return false, errors.Wrap(gpu.ErrDeviceLost, "glbackend: client wait sync failed")
	}
}

type fence struct {
	dev   *Device
	frame uint64
}

func (f fence) Signaled() (bool, error) {
	if f.dev.lost {
		return false, errors.Wrap(gpu.ErrDeviceLost, "glbackend: fence")
	}
	return f.dev.syncs.Poll(f.frame, f.dev.checkSync, deleteSync)
}

// Buffer is a vertex array with its vertex and index buffers.
type Buffer struct {
	dev        *Device
	vao        uint32
	vbo        uint32
	ebo        uint32
	indexCount int32
}

// UploadMesh creates a vertex array for interleaved position, normal and
// material data.
func (d *Device) UploadMesh(vertices []float32, indices []uint32) (*gpu.MeshHandle, error) {
	if d.lost {
		return nil, errors.Wrap(gpu.ErrDeviceLost, "glbackend: upload")
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.Wrap(gpu.ErrUploadFailed, "glbackend: empty mesh")
	}

	b := &Buffer{dev: d, indexCount: int32(len(indices))}
	gl.GenVertexArrays(1, &b.vao)
	gl.BindVertexArray(b.vao)

	gl.GenBuffers(1, &b.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)

	gl.GenBuffers(1, &b.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, b.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	stride := int32(meshing.VertexStride * 4)
	gl.EnableVertexAttribArray(AttribPosition)
	gl.VertexAttribPointerWithOffset(AttribPosition, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(AttribNormal)
	gl.VertexAttribPointerWithOffset(AttribNormal, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(AttribMaterial)
	gl.VertexAttribPointerWithOffset(AttribMaterial, 1, gl.FLOAT, false, stride, 6*4)

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		b.free()
		if code == gl.OUT_OF_MEMORY {
			return nil, errors.Wrap(gpu.ErrUploadFailed, "glbackend: out of memory")
		}
		return nil, errors.Wrapf(gpu.ErrUploadFailed, "glbackend: gl error 0x%x", code)
	}
	return gpu.NewMeshHandle(b, len(vertices)/meshing.VertexStride, len(indices)), nil
}

// Draw issues the indexed draw call. The caller binds the program.
func (b *Buffer) Draw() {
	gl.BindVertexArray(b.vao)
	gl.DrawElementsWithOffset(gl.TRIANGLES, b.indexCount, gl.UNSIGNED_INT, 0)
	gl.BindVertexArray(0)
}

// Destroy schedules deletion of the GL objects at the end of the current
// frame. Safe from any goroutine.
func (b *Buffer) Destroy() {
	b.dev.graveyard.Bury(b.free)
}

func (b *Buffer) free() {
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
	gl.DeleteBuffers(1, &b.ebo)
}
