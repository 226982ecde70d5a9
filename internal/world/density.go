package world

import (
	"github.com/ojrac/opensimplex-go"
	"github.com/pkg/errors"
)

// DensityGenerator generates 3D terrain from a density field instead of a
// heightmap, which allows overhangs and floating formations.
type DensityGenerator struct {
	seaLevel         int
	scale            float64 // noise frequency
	baseHeight       int     // target surface level
	gradientStrength float64 // altitude density gradient
	noise            opensimplex.Noise
}

// NewDensityGenerator creates a 3D density-based terrain generator.
func NewDensityGenerator(seed int64, seaLevel int) *DensityGenerator {
	return &DensityGenerator{
		seaLevel:         seaLevel,
		scale:            1.0 / 48.0,
		baseHeight:       seaLevel + 6,
		gradientStrength: 14,
		noise:            opensimplex.New(seed),
	}
}

func (g *DensityGenerator) SeaLevel() int { return g.seaLevel }

// density is positive inside solid ground.
func (g *DensityGenerator) density(worldX, worldY, worldZ int) float64 {
	nx := float64(worldX) * g.scale
	ny := float64(worldY) * g.scale
	nz := float64(worldZ) * g.scale
	n := g.noise.Eval3(nx, ny, nz) + 0.5*g.noise.Eval3(nx*2, ny*2, nz*2)
	return n + (float64(g.baseHeight)-float64(worldY))/g.gradientStrength
}

// HeightAt returns the highest solid cell of the column, sampling the field
// directly.
func (g *DensityGenerator) HeightAt(worldX, worldZ int) int {
	for y := ChunkSizeY - 2; y > 0; y-- {
		if g.density(worldX, y, worldZ) > 0 {
			return y
		}
	}
	return 1
}

// Sample spacing of the sparse density grid. Cells in between are filled by
// trilinear interpolation.
const (
	densityStepXZ = 4
	densityStepY  = 8
)

// Populate fills the chunk from the interpolated density field, then covers
// exposed stone with dirt and grass (sand near the sea) and floods open
// cells up to sea level.
func (g *DensityGenerator) Populate(coord ChunkCoord, dst *Grid) error {
	const (
		numXZ = ChunkSizeX/densityStepXZ + 1
		numY  = ChunkSizeY/densityStepY + 1
	)
	var samples [numXZ][numY][numXZ]float64
	for sx := 0; sx < numXZ; sx++ {
		for sz := 0; sz < numXZ; sz++ {
			wx := coord.X*ChunkSizeX + sx*densityStepXZ
			wz := coord.Z*ChunkSizeZ + sz*densityStepXZ
			for sy := 0; sy < numY; sy++ {
				samples[sx][sy][sz] = g.density(wx, sy*densityStepY, wz)
			}
		}
	}

	for lx := 0; lx < ChunkSizeX; lx++ {
		cx, tx := lx/densityStepXZ, float64(lx%densityStepXZ)/densityStepXZ
		for lz := 0; lz < ChunkSizeZ; lz++ {
			cz, tz := lz/densityStepXZ, float64(lz%densityStepXZ)/densityStepXZ
			for y := 1; y < ChunkSizeY-1; y++ {
				cy, ty := y/densityStepY, float64(y%densityStepY)/densityStepY
				d := trilinear(
					samples[cx][cy][cz], samples[cx+1][cy][cz],
					samples[cx][cy+1][cz], samples[cx+1][cy+1][cz],
					samples[cx][cy][cz+1], samples[cx+1][cy][cz+1],
					samples[cx][cy+1][cz+1], samples[cx+1][cy+1][cz+1],
					tx, ty, tz)
				if d > 0 {
					dst[Index(lx, y, lz)] = BlockTypeStone
				}
			}
			dst[Index(lx, 0, lz)] = BlockTypeBedrock
			g.dressColumn(dst, lx, lz)
		}
	}
	return nil
}

// dressColumn turns the top layers of every exposed stone run into soil and
// fills air below sea level with water.
func (g *DensityGenerator) dressColumn(dst *Grid, lx, lz int) {
	depth := -1 // cells of soil left to place below the current surface
	for y := ChunkSizeY - 1; y > 0; y-- {
		i := Index(lx, y, lz)
		switch dst[i] {
		case BlockTypeAir:
			depth = -1
			if y <= g.seaLevel {
				dst[i] = BlockTypeWater
			}
		case BlockTypeWater:
			depth = -1
		case BlockTypeStone:
			switch {
			case depth < 0:
				if y <= g.seaLevel+1 {
					dst[i] = BlockTypeSand
				} else {
					dst[i] = BlockTypeGrass
				}
				depth = 3
			case depth > 0:
				dst[i] = BlockTypeDirt
				depth--
			}
		}
	}
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func trilinear(d000, d100, d010, d110, d001, d101, d011, d111, tx, ty, tz float64) float64 {
	d00 := lerp(d000, d100, tx)
	d10 := lerp(d010, d110, tx)
	d01 := lerp(d001, d101, tx)
	d11 := lerp(d011, d111, tx)
	d0 := lerp(d00, d01, tz)
	d1 := lerp(d10, d11, tz)
	return lerp(d0, d1, ty)
}

// NewGenerator builds the generator named by kind: "noise" (the default when
// kind is empty), "density" or "flat".
func NewGenerator(kind string, seed int64, seaLevel int) (TerrainGenerator, error) {
	switch kind {
	case "", "noise":
		return NewNoiseGenerator(seed, seaLevel), nil
	case "density":
		return NewDensityGenerator(seed, seaLevel), nil
	case "flat":
		return NewFlatGenerator(seaLevel + 1), nil
	default:
		return nil, errors.Errorf("unknown terrain generator %q", kind)
	}
}
