package world

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-stream/internal/geom"
	"voxel-stream/internal/gpu"
)

const (
	// Chunk dimensions
	ChunkSizeX = 16
	ChunkSizeY = 64
	ChunkSizeZ = 16

	ChunkVolume = ChunkSizeX * ChunkSizeY * ChunkSizeZ
	ColumnCount = ChunkSizeX * ChunkSizeZ
)

// ChunkCoord identifies a chunk column on the XZ plane.
type ChunkCoord struct {
	X, Z int
}

// Grid is the dense block array of one chunk, indexed by Index.
type Grid [ChunkVolume]BlockType

// Index converts local coordinates to a flat grid index.
func Index(x, y, z int) int {
	return (y*ChunkSizeZ+z)*ChunkSizeX + x
}

// ColumnIndex converts local XZ coordinates to a flat column index.
func ColumnIndex(x, z int) int {
	return z*ChunkSizeX + x
}

// InBounds reports whether local coordinates address a cell of the grid.
func InBounds(x, y, z int) bool {
	return x >= 0 && x < ChunkSizeX && y >= 0 && y < ChunkSizeY && z >= 0 && z < ChunkSizeZ
}

// Chunk is one 16x64x16 region of the world plus its derived render state.
//
// The grid has a single writer at a time: the Generate task before the chunk
// is published as generated, the main thread afterwards (single-cell edits).
// Readers copy under the read lock.
type Chunk struct {
	Coord  ChunkCoord
	bounds geom.AABB

	mu         sync.RWMutex
	blocks     Grid
	columns    [ColumnCount]ColumnClass
	heights    [ColumnCount]uint8
	vegetation [ColumnCount]uint8
	edits      map[uint16]BlockType

	generated  atomic.Bool
	failed     atomic.Bool
	dirty      atomic.Bool
	revision   atomic.Uint64
	vegVersion atomic.Uint64
	vegEpoch   atomic.Uint64

	solid atomic.Pointer[gpu.MeshHandle]
	water atomic.Pointer[gpu.MeshHandle]
}

// NewChunk creates an empty, ungenerated chunk.
func NewChunk(coord ChunkCoord) *Chunk {
	return &Chunk{Coord: coord, bounds: ChunkBounds(coord)}
}

// ChunkBounds returns the world-space box of the chunk at coord.
func ChunkBounds(coord ChunkCoord) geom.AABB {
	min := mgl32.Vec3{float32(coord.X * ChunkSizeX), 0, float32(coord.Z * ChunkSizeZ)}
	return geom.AABB{Min: min, Max: min.Add(mgl32.Vec3{ChunkSizeX, ChunkSizeY, ChunkSizeZ})}
}

// Bounds returns the world-space box computed at construction.
func (c *Chunk) Bounds() geom.AABB { return c.bounds }

// IsGenerated reports whether block data has been installed.
func (c *Chunk) IsGenerated() bool { return c.generated.Load() }

// Failed reports whether generation faulted for this chunk.
func (c *Chunk) Failed() bool { return c.failed.Load() }

// MarkFailed records a generation fault. The chunk stays ungenerated.
func (c *Chunk) MarkFailed() { c.failed.Store(true) }

// IsDirty reports whether the chunk owes a re-mesh.
func (c *Chunk) IsDirty() bool { return c.dirty.Load() }

// MarkDirty flags the chunk for re-meshing.
func (c *Chunk) MarkDirty() { c.dirty.Store(true) }

// TakeDirty clears the dirty flag and reports whether it was set.
func (c *Chunk) TakeDirty() bool { return c.dirty.Swap(false) }

// Revision increases with every edit to the grid.
func (c *Chunk) Revision() uint64 { return c.revision.Load() }

// VegetationVersion increases every time the vegetation overlay is resampled.
func (c *Chunk) VegetationVersion() uint64 { return c.vegVersion.Load() }

// VegetationEpoch is the settings epoch the overlay was last sampled with.
func (c *Chunk) VegetationEpoch() uint64 { return c.vegEpoch.Load() }

// Install publishes generated data. It returns false, leaving the chunk
// untouched, when the chunk was already generated.
func (c *Chunk) Install(g *Generated) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generated.Load() {
		return false
	}
	c.blocks = g.Blocks
	c.columns = g.Columns
	c.heights = g.Heights
	c.vegetation = g.Vegetation
	if len(g.Edits) > 0 {
		c.edits = make(map[uint16]BlockType, len(g.Edits))
		for _, e := range g.Edits {
			c.edits[e.Index] = e.Block
		}
	}
	c.vegEpoch.Store(g.VegetationEpoch)
	c.vegVersion.Add(1)
	c.dirty.Store(true)
	c.generated.Store(true)
	return true
}

// Block returns the block at local coordinates, or air outside the grid.
func (c *Chunk) Block(x, y, z int) BlockType {
	if !InBounds(x, y, z) {
		return BlockTypeAir
	}
	c.mu.RLock()
	b := c.blocks[Index(x, y, z)]
	c.mu.RUnlock()
	return b
}

// SetBlock writes one cell of a generated chunk, bumps the revision, marks the
// chunk dirty and records the edit for the journal. It reports whether the
// stored value changed.
func (c *Chunk) SetBlock(x, y, z int, b BlockType) bool {
	if !InBounds(x, y, z) {
		return false
	}
	i := Index(x, y, z)
	c.mu.Lock()
	if c.blocks[i] == b {
		c.mu.Unlock()
		return false
	}
	c.blocks[i] = b
	if c.edits == nil {
		c.edits = make(map[uint16]BlockType)
	}
	c.edits[uint16(i)] = b
	c.mu.Unlock()

	c.revision.Add(1)
	c.dirty.Store(true)
	return true
}

// CopyBlocks copies the whole grid into dst.
func (c *Chunk) CopyBlocks(dst *Grid) {
	c.mu.RLock()
	*dst = c.blocks
	c.mu.RUnlock()
}

// Vegetation copies the current overlay.
func (c *Chunk) Vegetation() [ColumnCount]uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vegetation
}

// SetVegetation replaces the overlay, stamps the epoch and bumps the
// vegetation version. It reports whether any column changed.
func (c *Chunk) SetVegetation(v [ColumnCount]uint8, epoch uint64) bool {
	c.mu.Lock()
	changed := c.vegetation != v
	c.vegetation = v
	c.mu.Unlock()
	c.vegEpoch.Store(epoch)
	c.vegVersion.Add(1)
	return changed
}

// Column returns the classification of a local column. Immutable once the
// chunk is generated.
func (c *Chunk) Column(x, z int) ColumnClass {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.columns[ColumnIndex(x, z)]
}

// SurfaceHeight returns the generated surface height of a local column.
func (c *Chunk) SurfaceHeight(x, z int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int(c.heights[ColumnIndex(x, z)])
}

// TopSolid scans a column downwards for the highest solid cell, so edits are
// reflected. It returns -1 for an empty column.
func (c *Chunk) TopSolid(x, z int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for y := ChunkSizeY - 1; y >= 0; y-- {
		if c.blocks[Index(x, y, z)].IsSolid() {
			return y
		}
	}
	return -1
}

// Edits returns the edit log in index order.
func (c *Chunk) Edits() []Edit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.edits) == 0 {
		return nil
	}
	out := make([]Edit, 0, len(c.edits))
	for i, b := range c.edits {
		out = append(out, Edit{Index: i, Block: b})
	}
	sortEdits(out)
	return out
}

// SolidMesh returns the current solid mesh, or nil.
func (c *Chunk) SolidMesh() *gpu.MeshHandle { return c.solid.Load() }

// WaterMesh returns the current water mesh, or nil.
func (c *Chunk) WaterMesh() *gpu.MeshHandle { return c.water.Load() }

// SwapSolidMesh installs h and returns the previous handle. Ownership of the
// previous handle's reference moves to the caller.
func (c *Chunk) SwapSolidMesh(h *gpu.MeshHandle) *gpu.MeshHandle { return c.solid.Swap(h) }

// SwapWaterMesh installs h and returns the previous handle.
func (c *Chunk) SwapWaterMesh(h *gpu.MeshHandle) *gpu.MeshHandle { return c.water.Swap(h) }

// AcquireMeshes returns retained references to both meshes for one frame of
// drawing. The caller releases every non-nil handle once the frame is recorded.
func (c *Chunk) AcquireMeshes() (solid, water *gpu.MeshHandle) {
	if h := c.solid.Load(); h != nil {
		solid = h.Retain()
	}
	if h := c.water.Load(); h != nil {
		water = h.Retain()
	}
	return solid, water
}

// ChunkStatus is a point-in-time summary of a chunk for diagnostics.
type ChunkStatus struct {
	Coord     ChunkCoord
	Generated bool
	Failed    bool
	Dirty     bool
	Meshed    bool
}

// Status summarizes the chunk.
func (c *Chunk) Status() ChunkStatus {
	return ChunkStatus{
		Coord:     c.Coord,
		Generated: c.IsGenerated(),
		Failed:    c.Failed(),
		Dirty:     c.IsDirty(),
		Meshed:    c.solid.Load() != nil || c.water.Load() != nil,
	}
}
