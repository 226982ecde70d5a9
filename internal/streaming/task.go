package streaming

import (
	"voxel-stream/internal/meshing"
	"voxel-stream/internal/world"
)

// Task is one unit of background work on a chunk. The chunk reference keeps
// the chunk alive even if it is evicted while the task is queued or running.
type Task struct {
	Kind  world.TaskKind
	Chunk *world.Chunk

	// Generate inputs
	Gen    world.TerrainGenerator
	Replay []world.Edit

	// Generate and Vegetation input
	Vegetation world.VegetationParams
}

// Coord returns the coordinate of the target chunk.
func (t Task) Coord() world.ChunkCoord { return t.Chunk.Coord }

// MeshResult is CPU mesh data waiting for upload on the main thread.
type MeshResult struct {
	Chunk    *world.Chunk
	Revision uint64 // chunk revision the mesh was built from
	Solid    meshing.MeshData
	Water    meshing.MeshData
}
