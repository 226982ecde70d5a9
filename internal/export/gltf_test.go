package export

import (
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"

	"voxel-stream/internal/meshing"
	"voxel-stream/internal/world"
)

func generatedChunk(t *testing.T, coord world.ChunkCoord, gen world.TerrainGenerator) *world.Chunk {
	t.Helper()
	c := world.NewChunk(coord)
	out, err := world.Generate(gen, coord, nil, world.VegetationParams{})
	if err != nil {
		t.Fatal(err)
	}
	c.Install(out)
	return c
}

func TestAddMeshSkipsEmpty(t *testing.T) {
	s := NewScene()
	ok, err := s.AddMesh("empty", &meshing.MeshData{})
	if err != nil || ok {
		t.Fatalf("AddMesh(empty) = %v, %v", ok, err)
	}
	if len(s.Document().Meshes) != 0 {
		t.Fatal("empty mesh added")
	}
}

func TestAddMeshRejectsBadIndices(t *testing.T) {
	s := NewScene()
	m := &meshing.MeshData{
		Vertices: make([]float32, meshing.VertexStride*3),
		Indices:  []uint32{0, 1, 3},
	}
	if _, err := s.AddMesh("bad", m); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestAddChunksWritesDocument(t *testing.T) {
	chunks := []*world.Chunk{
		generatedChunk(t, world.ChunkCoord{}, world.NewFlatGenerator(4)),
		generatedChunk(t, world.ChunkCoord{X: 1}, world.NewFlatGenerator(4)),
		world.NewChunk(world.ChunkCoord{X: 2}), // not generated, skipped
	}
	s := NewScene()
	n, err := s.AddChunks(chunks)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("added %d meshes, want 2", n)
	}

	doc := s.Document()
	if len(doc.Meshes) != 2 || len(doc.Nodes) != 2 || len(doc.Scenes[0].Nodes) != 2 {
		t.Fatalf("meshes=%d nodes=%d scene nodes=%d", len(doc.Meshes), len(doc.Nodes), len(doc.Scenes[0].Nodes))
	}
	if doc.Meshes[0].Name != "chunk_0_0" {
		t.Fatalf("first mesh named %q", doc.Meshes[0].Name)
	}

	// Re-mesh to compare accessor counts with the mesher output.
	solid, _ := meshing.BuildChunkMeshes(meshing.Capture(chunks[0], [4]*world.Chunk{world.SideEast: chunks[1]}))
	prim := doc.Meshes[0].Primitives[0]
	if got := doc.Accessors[prim.Attributes[gltf.POSITION]].Count; int(got) != solid.VertexCount() {
		t.Fatalf("position count %d, want %d", got, solid.VertexCount())
	}
	if got := doc.Accessors[*prim.Indices].Count; int(got) != len(solid.Indices) {
		t.Fatalf("index count %d, want %d", got, len(solid.Indices))
	}
}

func TestSaveRoundTrip(t *testing.T) {
	s := NewScene()
	c := generatedChunk(t, world.ChunkCoord{X: -3, Z: 2}, world.NewNoiseGenerator(11, 24))
	if _, err := s.AddChunks([]*world.Chunk{c}); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "region.glb")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	doc, err := gltf.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Meshes) != len(s.Document().Meshes) {
		t.Fatalf("read %d meshes, wrote %d", len(doc.Meshes), len(s.Document().Meshes))
	}
	for _, m := range doc.Meshes {
		if _, ok := m.Primitives[0].Attributes[gltf.COLOR_0]; !ok {
			t.Fatalf("mesh %s has no vertex colors", m.Name)
		}
	}
}
