package world

import (
	"testing"
)

// Benchmark chunk generation for each terrain generator
func BenchmarkGenerate(b *testing.B) {
	gens := map[string]TerrainGenerator{
		"flat":    NewFlatGenerator(20),
		"noise":   NewNoiseGenerator(1337, 24),
		"density": NewDensityGenerator(1337, 24),
	}
	veg := VegetationParams{Enabled: true, Density: 0.35, Seed: 1337, Epoch: 1}
	for name, g := range gens {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				coord := ChunkCoord{X: i % 7, Z: (i / 7) % 7}
				if _, err := Generate(g, coord, nil, veg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
