package world

import "testing"

func TestDensityGeneratorImplementsInterface(t *testing.T) {
	var _ TerrainGenerator = NewDensityGenerator(5, 24)
}

func TestDensityGeneratorDeterministic(t *testing.T) {
	var a, b Grid
	if err := NewDensityGenerator(77, 24).Populate(ChunkCoord{X: 3, Z: -2}, &a); err != nil {
		t.Fatal(err)
	}
	if err := NewDensityGenerator(77, 24).Populate(ChunkCoord{X: 3, Z: -2}, &b); err != nil {
		t.Fatal(err)
	}
	if hashGrid(&a) != hashGrid(&b) {
		t.Fatal("same seed produced different chunks")
	}
}

func TestDensityGeneratorLayers(t *testing.T) {
	g := NewDensityGenerator(3, 24)
	var grid Grid
	if err := g.Populate(ChunkCoord{}, &grid); err != nil {
		t.Fatal(err)
	}
	for lz := 0; lz < ChunkSizeZ; lz++ {
		for lx := 0; lx < ChunkSizeX; lx++ {
			if b := grid[Index(lx, 0, lz)]; b != BlockTypeBedrock {
				t.Fatalf("floor at %d,%d is %v", lx, lz, b)
			}
			if b := grid[Index(lx, ChunkSizeY-1, lz)]; b != BlockTypeAir {
				t.Fatalf("top cell at %d,%d is %v", lx, lz, b)
			}
			for y := 1; y <= g.SeaLevel(); y++ {
				if grid[Index(lx, y, lz)] == BlockTypeAir {
					t.Fatalf("air below sea level at %d,%d,%d", lx, y, lz)
				}
			}
			// Stone never sits directly under open air.
			for y := 1; y < ChunkSizeY-1; y++ {
				if grid[Index(lx, y, lz)] == BlockTypeStone && grid[Index(lx, y+1, lz)] == BlockTypeAir {
					t.Fatalf("exposed stone at %d,%d,%d", lx, y, lz)
				}
			}
		}
	}
}

func TestNewGenerator(t *testing.T) {
	for kind, want := range map[string]string{"": "noise", "noise": "noise", "density": "density", "flat": "flat"} {
		g, err := NewGenerator(kind, 1, 24)
		if err != nil {
			t.Fatalf("NewGenerator(%q): %v", kind, err)
		}
		var got string
		switch g.(type) {
		case *NoiseGenerator:
			got = "noise"
		case *DensityGenerator:
			got = "density"
		case FlatGenerator:
			got = "flat"
		}
		if got != want {
			t.Errorf("NewGenerator(%q) built %s, want %s", kind, got, want)
		}
	}
	if _, err := NewGenerator("caves", 1, 24); err == nil {
		t.Error("unknown generator accepted")
	}
}
