package glbackend

import (
	"testing"

	"github.com/pkg/errors"

	"voxel-stream/internal/gpu"
)

// These cases return before any GL call, so they run without a context.

func TestUnsubmittedFrameNotSignaled(t *testing.T) {
	d := New()
	ok, err := d.FrameFence(d.CurrentFrameIndex()).Signaled()
	if ok || err != nil {
		t.Fatalf("Signaled = %v, %v", ok, err)
	}
}

func TestLostDevice(t *testing.T) {
	d := New()
	d.lost = true
	if _, err := d.UploadMesh([]float32{1}, []uint32{0}); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("upload = %v", err)
	}
	if _, err := d.FrameFence(0).Signaled(); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("fence = %v", err)
	}
	if err := d.WaitIdle(); !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("wait idle = %v", err)
	}
}

func TestEmptyUploadRejected(t *testing.T) {
	d := New()
	if _, err := d.UploadMesh(nil, nil); !errors.Is(err, gpu.ErrUploadFailed) {
		t.Fatalf("upload = %v", err)
	}
}
