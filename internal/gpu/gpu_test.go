package gpu

import "testing"

type testBuffer struct{ destroyed int }

func (b *testBuffer) Destroy() { b.destroyed++ }

func TestMeshHandleRefCount(t *testing.T) {
	buf := &testBuffer{}
	h := NewMeshHandle(buf, 8, 12)
	if h.Refs() != 1 {
		t.Fatalf("new handle refs = %d", h.Refs())
	}
	h.Retain()
	h.Release()
	if buf.destroyed != 0 || h.Destroyed() {
		t.Fatal("destroyed while a reference remained")
	}
	h.Release()
	if buf.destroyed != 1 || !h.Destroyed() {
		t.Fatal("last release did not destroy")
	}
	if h.VertexCount() != 8 || h.IndexCount() != 12 {
		t.Errorf("counts = %d, %d", h.VertexCount(), h.IndexCount())
	}
}

func TestMeshHandleOverRelease(t *testing.T) {
	h := NewMeshHandle(&testBuffer{}, 0, 0)
	h.Release()
	defer func() {
		if recover() == nil {
			t.Error("second release did not panic")
		}
	}()
	h.Release()
}

func TestMeshHandleRetainAfterRelease(t *testing.T) {
	h := NewMeshHandle(nil, 0, 0)
	h.Release()
	defer func() {
		if recover() == nil {
			t.Error("retain of a released handle did not panic")
		}
	}()
	h.Retain()
}
