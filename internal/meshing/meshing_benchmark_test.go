package meshing

import (
	"testing"

	"voxel-stream/internal/world"
)

func makeNeighborhood(b *testing.B) *Neighborhood {
	g := world.NewNoiseGenerator(42, 24)
	center := world.NewChunk(world.ChunkCoord{})
	out, err := world.Generate(g, center.Coord, nil, world.VegetationParams{Enabled: true, Density: 0.35, Seed: 42})
	if err != nil {
		b.Fatal(err)
	}
	center.Install(out)
	var neighbors [4]*world.Chunk
	for _, s := range world.Sides {
		nc := world.NewChunk(center.Coord.Neighbor(s))
		nOut, err := world.Generate(g, nc.Coord, nil, world.VegetationParams{})
		if err != nil {
			b.Fatal(err)
		}
		nc.Install(nOut)
		neighbors[s] = nc
	}
	return Capture(center, neighbors)
}

func BenchmarkBuildChunkMeshes(b *testing.B) {
	n := makeNeighborhood(b)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BuildChunkMeshes(n)
	}
}
