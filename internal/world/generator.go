package world

import (
	"math"
	"sort"

	"github.com/ojrac/opensimplex-go"
	"github.com/pkg/errors"
)

// TerrainGenerator decides the block content of a chunk. Implementations are
// immutable values: a Generate task receives one explicitly and may call it
// from any worker without further synchronization.
type TerrainGenerator interface {
	// HeightAt computes the surface height (block Y) at world X,Z.
	HeightAt(worldX, worldZ int) int
	// SeaLevel is the highest Y filled with water in open columns.
	SeaLevel() int
	// Populate fills dst for the chunk at coord. dst starts as all air.
	Populate(coord ChunkCoord, dst *Grid) error
}

// NoiseGenerator layers two octaves of OpenSimplex noise into a heightmap.
type NoiseGenerator struct {
	seed       int64
	seaLevel   int
	baseHeight float64
	amplitude  float64
	scale      float64
	coarse     opensimplex.Noise
	detail     opensimplex.Noise
}

// NewNoiseGenerator creates a generator for seed with the given sea level.
func NewNoiseGenerator(seed int64, seaLevel int) *NoiseGenerator {
	return &NoiseGenerator{
		seed:       seed,
		seaLevel:   seaLevel,
		baseHeight: float64(seaLevel) + 4,
		amplitude:  22,
		scale:      1.0 / 96.0,
		coarse:     opensimplex.New(seed),
		detail:     opensimplex.New(seed ^ 0x5deece66d),
	}
}

func (g *NoiseGenerator) SeaLevel() int { return g.seaLevel }

// HeightAt computes world surface height (block Y) at world X,Z.
func (g *NoiseGenerator) HeightAt(worldX, worldZ int) int {
	x := float64(worldX) * g.scale
	z := float64(worldZ) * g.scale
	n := g.coarse.Eval2(x, z) + 0.35*g.detail.Eval2(x*4, z*4)
	h := int(math.Floor(g.baseHeight + n*g.amplitude))
	return clampInt(h, 1, ChunkSizeY-2)
}

// Populate fills a chunk from the heightmap: bedrock floor, stone, a dirt
// layer, a surface block chosen by height and water up to sea level.
func (g *NoiseGenerator) Populate(coord ChunkCoord, dst *Grid) error {
	for lz := 0; lz < ChunkSizeZ; lz++ {
		for lx := 0; lx < ChunkSizeX; lx++ {
			wx := coord.X*ChunkSizeX + lx
			wz := coord.Z*ChunkSizeZ + lz
			h := g.HeightAt(wx, wz)

			surface := BlockTypeGrass
			switch {
			case h <= g.seaLevel+1:
				surface = BlockTypeSand
			case h >= ChunkSizeY-12:
				surface = BlockTypeSnow
			}

			dst[Index(lx, 0, lz)] = BlockTypeBedrock
			for y := 1; y < h; y++ {
				if y < h-3 {
					dst[Index(lx, y, lz)] = BlockTypeStone
				} else {
					dst[Index(lx, y, lz)] = BlockTypeDirt
				}
			}
			dst[Index(lx, h, lz)] = surface
			for y := h + 1; y <= g.seaLevel; y++ {
				dst[Index(lx, y, lz)] = BlockTypeWater
			}
		}
	}
	return nil
}

// FlatGenerator produces a flat world of the given height.
type FlatGenerator struct {
	height int
}

// NewFlatGenerator creates a flat generator; the grass layer sits at height.
func NewFlatGenerator(height int) FlatGenerator {
	return FlatGenerator{height: clampInt(height, 0, ChunkSizeY-1)}
}

func (g FlatGenerator) HeightAt(worldX, worldZ int) int { return g.height }

func (g FlatGenerator) SeaLevel() int { return 0 }

func (g FlatGenerator) Populate(coord ChunkCoord, dst *Grid) error {
	for lz := 0; lz < ChunkSizeZ; lz++ {
		for lx := 0; lx < ChunkSizeX; lx++ {
			dst[Index(lx, 0, lz)] = BlockTypeBedrock
			for y := 1; y < g.height; y++ {
				dst[Index(lx, y, lz)] = BlockTypeDirt
			}
			if g.height > 0 {
				dst[Index(lx, g.height, lz)] = BlockTypeGrass
			}
		}
	}
	return nil
}

// Edit is one recorded single-cell change, addressed by grid index.
type Edit struct {
	Index uint16
	Block BlockType
}

func sortEdits(edits []Edit) {
	sort.Slice(edits, func(i, j int) bool { return edits[i].Index < edits[j].Index })
}

// Generated is the output of a Generate task, built off to the side and
// installed into the chunk in one step.
type Generated struct {
	Blocks          Grid
	Columns         [ColumnCount]ColumnClass
	Heights         [ColumnCount]uint8
	Vegetation      [ColumnCount]uint8
	VegetationEpoch uint64
	Edits           []Edit
}

// Generate runs gen for coord, replays journaled edits on top and derives the
// column data and the initial vegetation overlay. It touches no shared state.
func Generate(gen TerrainGenerator, coord ChunkCoord, replay []Edit, veg VegetationParams) (*Generated, error) {
	out := &Generated{}
	if err := gen.Populate(coord, &out.Blocks); err != nil {
		return nil, errors.Wrapf(err, "populate chunk %d,%d", coord.X, coord.Z)
	}
	for _, e := range replay {
		if int(e.Index) >= ChunkVolume {
			return nil, errors.Errorf("replay edit index %d out of range", e.Index)
		}
		out.Blocks[e.Index] = e.Block
	}
	out.Edits = replay

	sea := gen.SeaLevel()
	for lz := 0; lz < ChunkSizeZ; lz++ {
		for lx := 0; lx < ChunkSizeX; lx++ {
			col := ColumnIndex(lx, lz)
			top := 0
			for y := ChunkSizeY - 1; y >= 0; y-- {
				if out.Blocks[Index(lx, y, lz)].IsSolid() {
					top = y
					break
				}
			}
			out.Heights[col] = uint8(top)
			out.Columns[col] = classifyColumn(top, sea)
		}
	}

	out.Vegetation = SampleVegetation(veg, coord, &out.Blocks, &out.Heights)
	out.VegetationEpoch = veg.Epoch
	return out, nil
}

func classifyColumn(top, sea int) ColumnClass {
	switch {
	case top < sea-1:
		return ColumnUnderwater
	case top <= sea+1:
		return ColumnBeach
	case top >= ChunkSizeY-12:
		return ColumnPeak
	default:
		return ColumnPlain
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
