package world

// VegetationParams is the immutable input of a vegetation resample. Epoch
// identifies the settings revision that produced it.
type VegetationParams struct {
	Enabled bool
	Density float64 // 0..1, fraction of grass columns that carry a plant
	Seed    int64
	Epoch   uint64
}

// PlantKinds is the number of distinct overlay values above zero.
const PlantKinds = 3

// SampleVegetation decides the overlay value of every column. Only grass
// surfaces carry plants; the choice is a stable hash of world coordinates so
// resampling with the same parameters reproduces the same overlay.
func SampleVegetation(p VegetationParams, coord ChunkCoord, blocks *Grid, heights *[ColumnCount]uint8) [ColumnCount]uint8 {
	var out [ColumnCount]uint8
	if !p.Enabled || p.Density <= 0 {
		return out
	}
	threshold := uint32(p.Density * 1000)
	for lz := 0; lz < ChunkSizeZ; lz++ {
		for lx := 0; lx < ChunkSizeX; lx++ {
			col := ColumnIndex(lx, lz)
			top := int(heights[col])
			if blocks[Index(lx, top, lz)] != BlockTypeGrass {
				continue
			}
			if top+1 >= ChunkSizeY || blocks[Index(lx, top+1, lz)] != BlockTypeAir {
				continue
			}
			h := hash2(uint32(p.Seed), int32(coord.X*ChunkSizeX+lx), int32(coord.Z*ChunkSizeZ+lz))
			if h%1000 < threshold {
				out[col] = uint8(1 + (h>>12)%PlantKinds)
			}
		}
	}
	return out
}

// ResampleVegetation recomputes the overlay of a generated chunk from its
// current grid.
func ResampleVegetation(p VegetationParams, c *Chunk) [ColumnCount]uint8 {
	var grid Grid
	var heights [ColumnCount]uint8
	c.mu.RLock()
	grid = c.blocks
	c.mu.RUnlock()
	for lz := 0; lz < ChunkSizeZ; lz++ {
		for lx := 0; lx < ChunkSizeX; lx++ {
			for y := ChunkSizeY - 1; y >= 0; y-- {
				if grid[Index(lx, y, lz)].IsSolid() {
					heights[ColumnIndex(lx, lz)] = uint8(y)
					break
				}
			}
		}
	}
	return SampleVegetation(p, c.Coord, &grid, &heights)
}

// hash2 mixes a seed and 2D integer coordinates into a well-distributed
// 32-bit value. Stable across versions.
func hash2(seed uint32, x, z int32) uint32 {
	h := seed
	h ^= uint32(x) * 0x9e3779b1
	h ^= uint32(z) * 0x85ebca6b
	h ^= h >> 16
	h *= 0x7feb352d
	h ^= h >> 15
	h *= 0x846ca68b
	h ^= h >> 16
	return h
}
