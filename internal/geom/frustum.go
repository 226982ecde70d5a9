package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains reports whether p lies inside the box (inclusive).
func (b AABB) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

type plane struct {
	a, b, c, d float32
}

// Frustum is six normalized planes pointing inwards, in the order
// left, right, bottom, top, near, far.
type Frustum struct {
	planes [6]plane
	valid  bool
}

// FrustumFromMatrix extracts the planes of a combined projection*view matrix.
func FrustumFromMatrix(clip mgl32.Mat4) Frustum {
	// mgl32 matrices are column-major
	m00, m01, m02, m03 := clip[0], clip[4], clip[8], clip[12]
	m10, m11, m12, m13 := clip[1], clip[5], clip[9], clip[13]
	m20, m21, m22, m23 := clip[2], clip[6], clip[10], clip[14]
	m30, m31, m32, m33 := clip[3], clip[7], clip[11], clip[15]

	var f Frustum
	f.planes[0] = normalizePlane(plane{m30 + m00, m31 + m01, m32 + m02, m33 + m03})
	f.planes[1] = normalizePlane(plane{m30 - m00, m31 - m01, m32 - m02, m33 - m03})
	f.planes[2] = normalizePlane(plane{m30 + m10, m31 + m11, m32 + m12, m33 + m13})
	f.planes[3] = normalizePlane(plane{m30 - m10, m31 - m11, m32 - m12, m33 - m13})
	f.planes[4] = normalizePlane(plane{m30 + m20, m31 + m21, m32 + m22, m33 + m23})
	f.planes[5] = normalizePlane(plane{m30 - m20, m31 - m21, m32 - m22, m33 - m23})
	f.valid = true
	return f
}

// NewFrustum builds the view frustum of a perspective camera at eye looking at
// target. fovy is in degrees.
func NewFrustum(eye, target mgl32.Vec3, fovy, aspect, near, far float32) Frustum {
	proj := mgl32.Perspective(mgl32.DegToRad(fovy), aspect, near, far)
	view := mgl32.LookAtV(eye, target, mgl32.Vec3{0, 1, 0})
	return FrustumFromMatrix(proj.Mul4(view))
}

// Everything is a frustum that accepts every box, for callers without a camera.
func Everything() Frustum {
	return Frustum{}
}

func normalizePlane(p plane) plane {
	l := float32(math.Sqrt(float64(p.a*p.a + p.b*p.b + p.c*p.c)))
	if l == 0 {
		return p
	}
	return plane{p.a / l, p.b / l, p.c / l, p.d / l}
}

// IntersectsAABB tests the box against every plane using its positive vertex.
// Boxes straddling a plane count as visible.
func (f Frustum) IntersectsAABB(box AABB) bool {
	if !f.valid {
		return true
	}
	for i := range f.planes {
		p := f.planes[i]
		px := box.Max.X()
		if p.a < 0 {
			px = box.Min.X()
		}
		py := box.Max.Y()
		if p.b < 0 {
			py = box.Min.Y()
		}
		pz := box.Max.Z()
		if p.c < 0 {
			pz = box.Min.Z()
		}
		if p.a*px+p.b*py+p.c*pz+p.d < 0 {
			return false
		}
	}
	return true
}
