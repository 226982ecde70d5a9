package meshing

import (
	"voxel-stream/internal/world"
)

// buildVegetation emits two crossed, upward-lit quads for every column whose
// overlay carries a plant and whose surface is grass with air above. Plant
// kind selects the height.
func buildVegetation(n *Neighborhood, out *MeshData) {
	ox, oz := n.Coord.X*world.ChunkSizeX, n.Coord.Z*world.ChunkSizeZ
	up := [3]float32{0, 1, 0}

	for z := 0; z < world.ChunkSizeZ; z++ {
		for x := 0; x < world.ChunkSizeX; x++ {
			kind := n.Vegetation[world.ColumnIndex(x, z)]
			if kind == 0 {
				continue
			}
			y := topSolid(&n.Blocks, x, z)
			if y < 0 || y+1 >= world.ChunkSizeY {
				continue
			}
			if n.Blocks[world.Index(x, y, z)] != world.BlockTypeGrass || n.Blocks[world.Index(x, y+1, z)] != world.BlockTypeAir {
				continue
			}

			x0, z0 := float32(ox+x), float32(oz+z)
			x1, z1 := x0+1, z0+1
			y0 := float32(y + 1)
			y1 := y0 + 0.25 + 0.25*float32(kind)

			appendQuad(out, [4][3]float32{{x0, y0, z0}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z0}}, up, world.BlockTypePlant)
			appendQuad(out, [4][3]float32{{x1, y0, z0}, {x0, y0, z1}, {x0, y1, z1}, {x1, y1, z0}}, up, world.BlockTypePlant)
		}
	}
}

func topSolid(g *world.Grid, x, z int) int {
	for y := world.ChunkSizeY - 1; y >= 0; y-- {
		if g[world.Index(x, y, z)].IsSolid() {
			return y
		}
	}
	return -1
}
