package meshing

import (
	"voxel-stream/internal/world"
)

// waterFace shows a water surface only where it meets air; faces against
// other water or against solid ground are skipped.
func waterFace(cur, nb world.BlockType) world.BlockType {
	if cur == world.BlockTypeWater && nb == world.BlockTypeAir {
		return cur
	}
	return world.BlockTypeAir
}

// buildWater generates the translucent mesh for water cells in the chunk.
func buildWater(n *Neighborhood, out *MeshData) {
	buildGreedy(n, waterFace, out)
}
