package geom

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func box(minX, minY, minZ, maxX, maxY, maxZ float32) AABB {
	return AABB{Min: mgl32.Vec3{minX, minY, minZ}, Max: mgl32.Vec3{maxX, maxY, maxZ}}
}

func TestFrustumSeesBoxInFront(t *testing.T) {
	f := NewFrustum(mgl32.Vec3{0, 10, 30}, mgl32.Vec3{0, 0, 0}, 70, 16.0/9.0, 0.1, 500)
	if !f.IntersectsAABB(box(-8, 0, -8, 8, 64, 8)) {
		t.Fatal("box at the look target should be visible")
	}
}

func TestFrustumRejectsBoxBehind(t *testing.T) {
	f := NewFrustum(mgl32.Vec3{0, 10, 30}, mgl32.Vec3{0, 0, 0}, 70, 16.0/9.0, 0.1, 500)
	if f.IntersectsAABB(box(-8, 0, 100, 8, 64, 116)) {
		t.Fatal("box behind the camera should be culled")
	}
}

func TestFrustumRejectsBoxBeyondFar(t *testing.T) {
	f := NewFrustum(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, 10, -1}, 70, 1, 0.1, 50)
	if f.IntersectsAABB(box(-8, 0, -200, 8, 64, -184)) {
		t.Fatal("box past the far plane should be culled")
	}
}

func TestFrustumPartialOverlapIsVisible(t *testing.T) {
	// Camera looks down -Z, the box straddles the near plane.
	f := NewFrustum(mgl32.Vec3{0, 10, 0}, mgl32.Vec3{0, 10, -1}, 70, 1, 1, 100)
	if !f.IntersectsAABB(box(-1, 9, -2, 1, 11, 5)) {
		t.Fatal("box straddling the near plane should count as visible")
	}
}

func TestEverythingAcceptsAll(t *testing.T) {
	f := Everything()
	if !f.IntersectsAABB(box(1e6, 1e6, 1e6, 1e6+1, 1e6+1, 1e6+1)) {
		t.Fatal("Everything should accept any box")
	}
}

func TestAABBCenterAndContains(t *testing.T) {
	b := box(0, 0, 0, 16, 64, 16)
	if c := b.Center(); c != (mgl32.Vec3{8, 32, 8}) {
		t.Fatalf("center = %v", c)
	}
	if !b.Contains(mgl32.Vec3{16, 0, 3}) || b.Contains(mgl32.Vec3{17, 0, 3}) {
		t.Fatal("contains is wrong at the boundary")
	}
}
