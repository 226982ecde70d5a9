// Package physics answers geometric queries against streamed terrain.
package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxel-stream/internal/world"
)

const (
	MinReachDistance = 0.1
	MaxReachDistance = 8.0
)

// BlockSource is anything that can look up a block by world coordinates.
// The streaming engine and the chunk store both qualify.
type BlockSource interface {
	Block(x, y, z int) world.BlockType
}

// RaycastResult stores the result of a raycast operation
type RaycastResult struct {
	HitPosition      [3]int
	AdjacentPosition [3]int // last empty cell before the hit
	Block            world.BlockType
	Distance         float32
	Hit              bool
}

// Raycast walks the cells pierced by the ray from start along direction and
// returns the first solid block between minDist and maxDist. Blocks of
// chunks that are not resident read as air, so the ray passes through them.
func Raycast(start, direction mgl32.Vec3, minDist, maxDist float32, src BlockSource) RaycastResult {
	if direction.Len() == 0 {
		return RaycastResult{}
	}
	dir := direction.Normalize()

	var (
		cell   [3]int
		step   [3]int
		tMax   [3]float32
		tDelta [3]float32
	)
	for i := 0; i < 3; i++ {
		cell[i] = int(math.Floor(float64(start[i])))
		switch {
		case dir[i] > 0:
			step[i] = 1
			tDelta[i] = 1 / dir[i]
			tMax[i] = (float32(cell[i]+1) - start[i]) * tDelta[i]
		case dir[i] < 0:
			step[i] = -1
			tDelta[i] = -1 / dir[i]
			tMax[i] = (start[i] - float32(cell[i])) * tDelta[i]
		default:
			tDelta[i] = float32(math.Inf(1))
			tMax[i] = float32(math.Inf(1))
		}
	}

	prev := cell
	var t float32
	for t <= maxDist {
		if t >= minDist {
			if b := src.Block(cell[0], cell[1], cell[2]); b.IsSolid() {
				return RaycastResult{
					HitPosition:      cell,
					AdjacentPosition: prev,
					Block:            b,
					Distance:         t,
					Hit:              true,
				}
			}
		}
		prev = cell

		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		t = tMax[axis]
		tMax[axis] += tDelta[axis]
		cell[axis] += step[axis]
	}
	return RaycastResult{}
}
