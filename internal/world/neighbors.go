package world

// Side names a lateral face of a chunk.
type Side int

const (
	SideWest  Side = iota // -X
	SideEast              // +X
	SideNorth             // -Z
	SideSouth             // +Z
)

// Sides lists the four lateral faces in a fixed order.
var Sides = [4]Side{SideWest, SideEast, SideNorth, SideSouth}

// Opposite returns the face pointing the other way.
func (s Side) Opposite() Side {
	switch s {
	case SideWest:
		return SideEast
	case SideEast:
		return SideWest
	case SideNorth:
		return SideSouth
	default:
		return SideNorth
	}
}

// Offset returns the chunk coordinate delta towards the side.
func (s Side) Offset() (dx, dz int) {
	switch s {
	case SideWest:
		return -1, 0
	case SideEast:
		return 1, 0
	case SideNorth:
		return 0, -1
	default:
		return 0, 1
	}
}

// Neighbor returns the coordinate of the adjacent chunk on side s.
func (c ChunkCoord) Neighbor(s Side) ChunkCoord {
	dx, dz := s.Offset()
	return ChunkCoord{X: c.X + dx, Z: c.Z + dz}
}

// EdgeWidth is the number of cells along a lateral face per layer.
const EdgeWidth = 16

// Edge is one boundary plane of a chunk, indexed y*EdgeWidth + t where t runs
// along Z for west/east faces and along X for north/south faces.
type Edge [ChunkSizeY * EdgeWidth]BlockType

// CopyFace copies the boundary plane of this chunk that lies on side s.
func (c *Chunk) CopyFace(s Side, dst *Edge) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for y := 0; y < ChunkSizeY; y++ {
		for t := 0; t < EdgeWidth; t++ {
			var i int
			switch s {
			case SideWest:
				i = Index(0, y, t)
			case SideEast:
				i = Index(ChunkSizeX-1, y, t)
			case SideNorth:
				i = Index(t, y, 0)
			default:
				i = Index(t, y, ChunkSizeZ-1)
			}
			dst[y*EdgeWidth+t] = c.blocks[i]
		}
	}
}

// BorderSides returns the sides a local cell touches, used to dirty adjacent
// chunks after an edit.
func BorderSides(x, z int) []Side {
	var out []Side
	if x == 0 {
		out = append(out, SideWest)
	} else if x == ChunkSizeX-1 {
		out = append(out, SideEast)
	}
	if z == 0 {
		out = append(out, SideNorth)
	} else if z == ChunkSizeZ-1 {
		out = append(out, SideSouth)
	}
	return out
}
