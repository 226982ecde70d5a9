package streaming

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-stream/internal/geom"
	"voxel-stream/internal/world"
)

func TestChebyshev(t *testing.T) {
	tests := []struct {
		a, b world.ChunkCoord
		want int
	}{
		{world.ChunkCoord{}, world.ChunkCoord{}, 0},
		{world.ChunkCoord{X: 3, Z: -1}, world.ChunkCoord{}, 3},
		{world.ChunkCoord{X: -2, Z: 5}, world.ChunkCoord{X: 1, Z: 1}, 4},
	}
	for _, tt := range tests {
		if got := chebyshev(tt.a, tt.b); got != tt.want {
			t.Errorf("chebyshev(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRingCoords(t *testing.T) {
	center := world.ChunkCoord{X: 4, Z: -7}
	if got := ringCoords(center, 0); len(got) != 1 || got[0] != center {
		t.Fatalf("ring 0 = %v", got)
	}
	for r := 1; r <= 5; r++ {
		ring := ringCoords(center, r)
		if len(ring) != 8*r {
			t.Fatalf("ring %d has %d coords, want %d", r, len(ring), 8*r)
		}
		seen := make(map[world.ChunkCoord]bool)
		for _, c := range ring {
			if d := chebyshev(c, center); d != r {
				t.Fatalf("ring %d contains %v at distance %d", r, c, d)
			}
			if seen[c] {
				t.Fatalf("ring %d repeats %v", r, c)
			}
			seen[c] = true
		}
	}
}

func TestWantedCoordsCoversSquare(t *testing.T) {
	center := world.ChunkCoord{X: -3, Z: 2}
	got := wantedCoords(center, 2, geom.Everything())
	if len(got) != 25 {
		t.Fatalf("got %d coords, want 25", len(got))
	}
	seen := make(map[world.ChunkCoord]bool)
	last := 0
	for _, c := range got {
		d := chebyshev(c, center)
		if d > 2 {
			t.Fatalf("%v outside radius", c)
		}
		if d < last {
			t.Fatalf("%v at distance %d after distance %d", c, d, last)
		}
		last = d
		if seen[c] {
			t.Fatalf("duplicate %v", c)
		}
		seen[c] = true
	}
	if got[0] != center {
		t.Fatalf("first coord %v, want center", got[0])
	}
}

func TestWantedCoordsPutsVisibleFirstWithinRing(t *testing.T) {
	// Looking down +X from the center chunk: the east side of each ring is
	// visible, the west side is behind the camera.
	f := geom.NewFrustum(mgl32.Vec3{8, 32, 8}, mgl32.Vec3{200, 32, 8}, 60, 1, 0.1, 500)
	got := wantedCoords(world.ChunkCoord{}, 2, f)

	for r := 1; r <= 2; r++ {
		var ring []world.ChunkCoord
		for _, c := range got {
			if chebyshev(c, world.ChunkCoord{}) == r {
				ring = append(ring, c)
			}
		}
		hiddenSeen := false
		for _, c := range ring {
			visible := f.IntersectsAABB(world.ChunkBounds(c))
			if visible && hiddenSeen {
				t.Fatalf("ring %d: visible %v after a hidden chunk", r, c)
			}
			if !visible {
				hiddenSeen = true
			}
		}
		if f.IntersectsAABB(world.ChunkBounds(ring[len(ring)-1])) {
			t.Fatalf("ring %d: expected some chunk behind the camera", r)
		}
		if !f.IntersectsAABB(world.ChunkBounds(ring[0])) {
			t.Fatalf("ring %d: expected a visible chunk first", r)
		}
	}
}

func TestByDistance(t *testing.T) {
	center := world.ChunkCoord{}
	chunks := []*world.Chunk{
		world.NewChunk(world.ChunkCoord{X: 2, Z: 2}),
		world.NewChunk(world.ChunkCoord{X: 0, Z: 1}),
		world.NewChunk(world.ChunkCoord{X: 2, Z: 0}),
		world.NewChunk(world.ChunkCoord{X: 1, Z: 1}),
		world.NewChunk(world.ChunkCoord{}),
	}
	byDistance(chunks, center)

	want := []world.ChunkCoord{{}, {X: 0, Z: 1}, {X: 1, Z: 1}, {X: 2, Z: 0}, {X: 2, Z: 2}}
	for i, c := range chunks {
		if c.Coord != want[i] {
			t.Fatalf("position %d: got %v, want %v", i, c.Coord, want[i])
		}
	}
}
