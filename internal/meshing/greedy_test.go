package meshing

import (
	"testing"

	"voxel-stream/internal/world"
)

func set(n *Neighborhood, x, y, z int, b world.BlockType) {
	n.Blocks[world.Index(x, y, z)] = b
}

func flatNeighborhood(t testing.TB, coord world.ChunkCoord, height int) *Neighborhood {
	n := &Neighborhood{Coord: coord}
	if err := world.NewFlatGenerator(height).Populate(coord, &n.Blocks); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	return n
}

func TestSingleBlockMesh(t *testing.T) {
	n := &Neighborhood{}
	// Place single block
	set(n, 5, 5, 5, world.BlockTypeGrass)
	solid, water := BuildChunkMeshes(n)
	if got := solid.QuadCount(); got != 6 {
		t.Fatalf("single block: got %d quads, want 6", got)
	}
	if got := len(solid.Vertices); got != 24*VertexStride {
		t.Fatalf("single block: got %d floats, want %d", got, 24*VertexStride)
	}
	if !water.Empty() {
		t.Errorf("water mesh has %d quads", water.QuadCount())
	}
}

func TestFloorBlockHidesBottom(t *testing.T) {
	n := &Neighborhood{}
	set(n, 5, 0, 5, world.BlockTypeStone)
	solid, _ := BuildChunkMeshes(n)
	if got := solid.QuadCount(); got != 5 {
		t.Fatalf("floor block: got %d quads, want 5", got)
	}
}

func TestTwoBlocksSeparated(t *testing.T) {
	n := &Neighborhood{}
	// Two blocks with a gap (non-touching)
	set(n, 1, 5, 1, world.BlockTypeGrass)
	set(n, 3, 5, 1, world.BlockTypeGrass)
	solid, _ := BuildChunkMeshes(n)
	if got := solid.QuadCount(); got != 12 {
		t.Fatalf("two separated blocks: got %d quads, want 12", got)
	}
}

func TestTwoBlocksTouchingGreedy(t *testing.T) {
	n := &Neighborhood{}
	// Two adjacent blocks along X
	set(n, 1, 5, 1, world.BlockTypeGrass)
	set(n, 2, 5, 1, world.BlockTypeGrass)
	solid, _ := BuildChunkMeshes(n)
	// Union is a 2x1x1 cuboid => 6 quads
	if got := solid.QuadCount(); got != 6 {
		t.Fatalf("two touching blocks (greedy merge): got %d quads, want 6", got)
	}
}

func TestDifferentMaterialsDoNotMerge(t *testing.T) {
	n := &Neighborhood{}
	set(n, 1, 5, 1, world.BlockTypeGrass)
	set(n, 2, 5, 1, world.BlockTypeStone)
	solid, _ := BuildChunkMeshes(n)
	// Top, bottom, north and south split per material; the shared face is hidden.
	if got := solid.QuadCount(); got != 10 {
		t.Fatalf("two materials: got %d quads, want 10", got)
	}
}

func TestCrossChunkFaceCulling(t *testing.T) {
	n := &Neighborhood{}
	// Place one block at the +X edge of the chunk and a solid cell in the east neighbour
	set(n, world.ChunkSizeX-1, 5, 0, world.BlockTypeGrass)
	east := new(world.Edge)
	east[5*world.EdgeWidth+0] = world.BlockTypeStone
	n.Edges[world.SideEast] = east

	solid, _ := BuildChunkMeshes(n)
	// One face hidden due to neighbor
	if got := solid.QuadCount(); got != 5 {
		t.Fatalf("cross-chunk culling: got %d quads, want 5", got)
	}
}

func TestFlatChunkQuads(t *testing.T) {
	n := flatNeighborhood(t, world.ChunkCoord{}, 5)
	solid, _ := BuildChunkMeshes(n)
	// Top surface plus bedrock, dirt and grass bands on four open sides.
	if got := solid.QuadCount(); got != 13 {
		t.Fatalf("flat chunk: got %d quads, want 13", got)
	}

	for _, s := range world.Sides {
		e := new(world.Edge)
		for y := 0; y <= 5; y++ {
			for i := 0; i < world.EdgeWidth; i++ {
				e[y*world.EdgeWidth+i] = world.BlockTypeDirt
			}
		}
		n.Edges[s] = e
	}
	solid, _ = BuildChunkMeshes(n)
	if got := solid.QuadCount(); got != 1 {
		t.Fatalf("flat chunk with neighbours: got %d quads, want 1", got)
	}
}

func TestMeshUsesWorldCoordinates(t *testing.T) {
	n := &Neighborhood{Coord: world.ChunkCoord{X: -1, Z: 2}}
	set(n, 0, 5, 0, world.BlockTypeStone)
	solid, _ := BuildChunkMeshes(n)
	for i := 0; i < len(solid.Vertices); i += VertexStride {
		x, z := solid.Vertices[i], solid.Vertices[i+2]
		if x < -16 || x > -15 || z < 32 || z > 33 {
			t.Fatalf("vertex %d at x=%v z=%v outside the block", i/VertexStride, x, z)
		}
		if m := world.BlockType(solid.Vertices[i+6]); m != world.BlockTypeStone {
			t.Fatalf("vertex material = %v", m)
		}
	}
}

func TestWaterMesh(t *testing.T) {
	n := &Neighborhood{}
	set(n, 5, 5, 5, world.BlockTypeWater)
	solid, water := BuildChunkMeshes(n)
	if !solid.Empty() {
		t.Errorf("solid mesh has %d quads", solid.QuadCount())
	}
	if got := water.QuadCount(); got != 6 {
		t.Fatalf("lone water cell: got %d quads, want 6", got)
	}

	// Water resting on stone: the stone top stays visible, the water bottom goes.
	set(n, 5, 4, 5, world.BlockTypeStone)
	solid, water = BuildChunkMeshes(n)
	if got := water.QuadCount(); got != 5 {
		t.Errorf("water on stone: got %d water quads, want 5", got)
	}
	if got := solid.QuadCount(); got != 6 {
		t.Errorf("water on stone: got %d solid quads, want 6", got)
	}
}

func TestVegetationQuads(t *testing.T) {
	n := flatNeighborhood(t, world.ChunkCoord{}, 5)
	n.Vegetation[world.ColumnIndex(3, 3)] = 2
	n.Vegetation[world.ColumnIndex(4, 4)] = 1
	// Covered column: no plant.
	set(n, 4, 6, 4, world.BlockTypeStone)

	solid, _ := BuildChunkMeshes(n)
	plants := 0
	for i := 0; i < len(solid.Vertices); i += VertexStride {
		if world.BlockType(solid.Vertices[i+6]) == world.BlockTypePlant {
			plants++
		}
	}
	if plants != 8 {
		t.Fatalf("plant vertices = %d, want 8", plants)
	}
}

func TestIndicesInRange(t *testing.T) {
	n := flatNeighborhood(t, world.ChunkCoord{X: 3, Z: -2}, 9)
	set(n, 7, 10, 7, world.BlockTypeSand)
	set(n, 7, 11, 7, world.BlockTypeWater)
	solid, water := BuildChunkMeshes(n)
	for _, m := range []MeshData{solid, water} {
		vc := uint32(m.VertexCount())
		for _, idx := range m.Indices {
			if idx >= vc {
				t.Fatalf("index %d out of range (%d vertices)", idx, vc)
			}
		}
	}
}

func TestCaptureIgnoresUngeneratedNeighbors(t *testing.T) {
	c := world.NewChunk(world.ChunkCoord{})
	out, err := world.Generate(world.NewFlatGenerator(5), c.Coord, nil, world.VegetationParams{})
	if err != nil {
		t.Fatal(err)
	}
	c.Install(out)

	east := world.NewChunk(world.ChunkCoord{X: 1})
	var neighbors [4]*world.Chunk
	neighbors[world.SideEast] = east

	n := Capture(c, neighbors)
	if n.Edges[world.SideEast] != nil {
		t.Fatal("ungenerated neighbour captured")
	}

	eastOut, _ := world.Generate(world.NewFlatGenerator(5), east.Coord, nil, world.VegetationParams{})
	east.Install(eastOut)
	n = Capture(c, neighbors)
	e := n.Edges[world.SideEast]
	if e == nil || e[5*world.EdgeWidth] != world.BlockTypeGrass {
		t.Fatal("generated neighbour face not captured")
	}
}

func BenchmarkBuildChunkMeshes_FullSurface(b *testing.B) {
	n := &Neighborhood{}
	// Fill a full top surface
	for x := 0; x < world.ChunkSizeX; x++ {
		for z := 0; z < world.ChunkSizeZ; z++ {
			set(n, x, world.ChunkSizeY-1, z, world.BlockTypeGrass)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildChunkMeshes(n)
	}
}
