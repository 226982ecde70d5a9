package meshing

import (
	"voxel-stream/internal/world"
)

// Neighborhood is a private copy of everything a mesh build reads: the
// chunk's grid and overlay plus the facing boundary plane of each lateral
// neighbour. A nil edge reads as air.
type Neighborhood struct {
	Coord      world.ChunkCoord
	Blocks     world.Grid
	Vegetation [world.ColumnCount]uint8
	Edges      [4]*world.Edge
}

// Capture copies c and the boundary planes of its generated neighbours.
// neighbors is indexed by world.Side; entries may be nil.
func Capture(c *world.Chunk, neighbors [4]*world.Chunk) *Neighborhood {
	n := &Neighborhood{Coord: c.Coord}
	c.CopyBlocks(&n.Blocks)
	n.Vegetation = c.Vegetation()
	for _, s := range world.Sides {
		nc := neighbors[s]
		if nc == nil || !nc.IsGenerated() {
			continue
		}
		e := new(world.Edge)
		nc.CopyFace(s.Opposite(), e)
		n.Edges[s] = e
	}
	return n
}

// at returns the block at local coordinates, reaching one cell into the
// lateral neighbours. Below the world floor reads as bedrock so bottom faces
// are never emitted.
func (n *Neighborhood) at(x, y, z int) world.BlockType {
	if y < 0 {
		return world.BlockTypeBedrock
	}
	if y >= world.ChunkSizeY {
		return world.BlockTypeAir
	}
	switch {
	case x < 0:
		return n.edge(world.SideWest, y, z)
	case x >= world.ChunkSizeX:
		return n.edge(world.SideEast, y, z)
	case z < 0:
		return n.edge(world.SideNorth, y, x)
	case z >= world.ChunkSizeZ:
		return n.edge(world.SideSouth, y, x)
	}
	return n.Blocks[world.Index(x, y, z)]
}

func (n *Neighborhood) edge(s world.Side, y, t int) world.BlockType {
	e := n.Edges[s]
	if e == nil || t < 0 || t >= world.EdgeWidth {
		return world.BlockTypeAir
	}
	return e[y*world.EdgeWidth+t]
}
