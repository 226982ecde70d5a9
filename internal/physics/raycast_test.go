package physics_test

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-stream/internal/physics"
	"voxel-stream/internal/world"
)

// blockMap is a sparse world for tests.
type blockMap map[[3]int]world.BlockType

func (m blockMap) Block(x, y, z int) world.BlockType { return m[[3]int{x, y, z}] }

func near(a, b float32) bool { return a-b < 1e-4 && b-a < 1e-4 }

func TestRaycast(t *testing.T) {
	w := blockMap{{5, 0, 0}: world.BlockTypeStone}

	start := mgl32.Vec3{0.5, 0.5, 0.5}
	dir := mgl32.Vec3{1, 0, 0}

	result := physics.Raycast(start, dir, 0.1, 10, w)
	if !result.Hit {
		t.Fatalf("Expected hit, got miss")
	}
	if result.HitPosition != [3]int{5, 0, 0} {
		t.Errorf("Expected hit at {5,0,0}, got %v", result.HitPosition)
	}
	if result.AdjacentPosition != [3]int{4, 0, 0} {
		t.Errorf("Expected adjacent at {4,0,0}, got %v", result.AdjacentPosition)
	}
	if result.Block != world.BlockTypeStone {
		t.Errorf("Expected stone, got %v", result.Block)
	}
	// Ray starts at X=0.5 and enters the block at X=5.
	if !near(result.Distance, 4.5) {
		t.Errorf("Expected distance 4.5, got %f", result.Distance)
	}

	if r := physics.Raycast(start, dir, 0.1, 4, w); r.Hit {
		t.Errorf("Expected miss due to maxDist, got hit at %v", r.HitPosition)
	}
	if r := physics.Raycast(start, mgl32.Vec3{0, 1, 0}, 0.1, 10, w); r.Hit {
		t.Errorf("Expected miss in wrong direction, got hit at %v", r.HitPosition)
	}
	if r := physics.Raycast(start, mgl32.Vec3{}, 0.1, 10, w); r.Hit {
		t.Error("zero direction hit something")
	}
}

func TestRaycastDownOntoTerrain(t *testing.T) {
	w := blockMap{}
	for x := -2; x <= 2; x++ {
		for z := -2; z <= 2; z++ {
			w[[3]int{x, 5, z}] = world.BlockTypeGrass
			w[[3]int{x, 6, z}] = world.BlockTypeWater
		}
	}

	r := physics.Raycast(mgl32.Vec3{-0.5, 10.5, -1.5}, mgl32.Vec3{0, -1, 0}, 0, 20, w)
	if !r.Hit {
		t.Fatal("Expected hit")
	}
	// Water does not stop the ray.
	if r.HitPosition != [3]int{-1, 5, -2} || r.AdjacentPosition != [3]int{-1, 6, -2} {
		t.Errorf("hit %v adjacent %v", r.HitPosition, r.AdjacentPosition)
	}
	if !near(r.Distance, 4.5) {
		t.Errorf("Expected distance 4.5, got %f", r.Distance)
	}
}

func TestRaycastDiagonal(t *testing.T) {
	w := blockMap{{3, 3, 0}: world.BlockTypeDirt}
	r := physics.Raycast(mgl32.Vec3{0.5, 0.5, 0.5}, mgl32.Vec3{1, 1, 0}, 0, 10, w)
	if !r.Hit || r.HitPosition != [3]int{3, 3, 0} {
		t.Fatalf("diagonal ray: %+v", r)
	}
	// The previous cell shares a face with the hit.
	d := 0
	for i := 0; i < 3; i++ {
		diff := r.HitPosition[i] - r.AdjacentPosition[i]
		if diff < 0 {
			diff = -diff
		}
		d += diff
	}
	if d != 1 {
		t.Errorf("adjacent %v is not face-adjacent to %v", r.AdjacentPosition, r.HitPosition)
	}
}

func TestRaycastAgainstStore(t *testing.T) {
	store := world.NewChunkStore()
	c, _ := store.GetOrCreate(world.ChunkCoord{})
	out, err := world.Generate(world.NewFlatGenerator(5), c.Coord, nil, world.VegetationParams{})
	if err != nil {
		t.Fatal(err)
	}
	c.Install(out)

	r := physics.Raycast(mgl32.Vec3{8.5, 20, 8.5}, mgl32.Vec3{0, -1, 0}, 0, 30, store)
	if !r.Hit || r.HitPosition != [3]int{8, 5, 8} {
		t.Fatalf("store ray: %+v", r)
	}
	// Chunks that are not resident read as air.
	if r := physics.Raycast(mgl32.Vec3{40.5, 20, 8.5}, mgl32.Vec3{0, -1, 0}, 0, 30, store); r.Hit {
		t.Fatalf("hit in missing chunk: %+v", r)
	}
}
