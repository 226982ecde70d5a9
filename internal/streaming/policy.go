package streaming

import (
	"sort"

	"voxel-stream/internal/geom"
	"voxel-stream/internal/world"
)

// chebyshev is the chunk-ring distance between two coordinates.
func chebyshev(a, b world.ChunkCoord) int {
	return max(abs(a.X-b.X), abs(a.Z-b.Z))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ringCoords returns the coordinates at Chebyshev distance r from center,
// walking the square ring clockwise from its north-west corner.
func ringCoords(center world.ChunkCoord, r int) []world.ChunkCoord {
	if r == 0 {
		return []world.ChunkCoord{center}
	}
	x0, x1 := center.X-r, center.X+r
	z0, z1 := center.Z-r, center.Z+r
	out := make([]world.ChunkCoord, 0, 8*r)
	for x := x0; x <= x1; x++ {
		out = append(out, world.ChunkCoord{X: x, Z: z0})
	}
	for z := z0 + 1; z <= z1-1; z++ {
		out = append(out, world.ChunkCoord{X: x1, Z: z})
	}
	for x := x1; x >= x0; x-- {
		out = append(out, world.ChunkCoord{X: x, Z: z1})
	}
	for z := z1 - 1; z >= z0+1; z-- {
		out = append(out, world.ChunkCoord{X: x0, Z: z})
	}
	return out
}

// wantedCoords lists every coordinate within radius of center, ring by ring
// outward. Within a ring the chunks intersecting the frustum come first.
func wantedCoords(center world.ChunkCoord, radius int, frustum geom.Frustum) []world.ChunkCoord {
	side := 2*radius + 1
	out := make([]world.ChunkCoord, 0, side*side)
	var hidden []world.ChunkCoord
	for r := 0; r <= radius; r++ {
		hidden = hidden[:0]
		for _, c := range ringCoords(center, r) {
			if frustum.IntersectsAABB(world.ChunkBounds(c)) {
				out = append(out, c)
			} else {
				hidden = append(hidden, c)
			}
		}
		out = append(out, hidden...)
	}
	return out
}

// byDistance sorts chunks nearest first: Chebyshev ring, then squared
// distance, then coordinate for a stable order.
func byDistance(chunks []*world.Chunk, center world.ChunkCoord) {
	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i].Coord, chunks[j].Coord
		da, db := chebyshev(a, center), chebyshev(b, center)
		if da != db {
			return da < db
		}
		ea := (a.X-center.X)*(a.X-center.X) + (a.Z-center.Z)*(a.Z-center.Z)
		eb := (b.X-center.X)*(b.X-center.X) + (b.Z-center.Z)*(b.Z-center.Z)
		if ea != eb {
			return ea < eb
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
}

// requestChunks creates missing chunks of the wanted set and enqueues their
// Generate tasks, up to the per-frame budget. A chunk that is resident but not
// generated, not pending and not failed had its earlier task dropped and is
// requested again.
func (e *Engine) requestChunks(center world.ChunkCoord, frustum geom.Frustum) int {
	budget := e.settings.MaxChunksPerFrame
	veg := e.vegetationParams()
	n := 0
	for _, coord := range wantedCoords(center, e.settings.ViewDistance, frustum) {
		if n >= budget {
			break
		}
		if e.store.IsPending(world.TaskGenerate, coord) {
			continue
		}
		c := e.store.Get(coord)
		if c != nil && (c.IsGenerated() || c.Failed()) {
			continue
		}
		if c == nil {
			c, _ = e.store.GetOrCreate(coord)
		}

		replay, err := e.journal.Load(coord)
		if err != nil {
			e.log.Printf("journal: %v", err)
			replay = nil
		}
		if !e.queue.Enqueue(Task{Kind: world.TaskGenerate, Chunk: c, Gen: e.gen, Replay: replay, Vegetation: veg}) {
			// Queue full: the chunk stays resident and ungenerated and is
			// picked up again next frame.
			e.noteBackpressure("generate")
			break
		}
		n++
	}
	e.stats.GenerateEnqueued += uint64(n)
	return n
}

// scanDirty enqueues Mesh tasks for generated, dirty chunks in range,
// nearest first, up to the per-frame budget.
func (e *Engine) scanDirty(center world.ChunkCoord) int {
	var dirty []*world.Chunk
	for _, c := range e.store.Snapshot() {
		if !c.IsGenerated() || !c.IsDirty() {
			continue
		}
		if chebyshev(c.Coord, center) > e.settings.ViewDistance {
			continue
		}
		if e.store.IsPending(world.TaskMesh, c.Coord) {
			continue
		}
		dirty = append(dirty, c)
	}
	byDistance(dirty, center)

	n := 0
	for _, c := range dirty {
		if n >= e.settings.MaxMeshesPerFrame {
			break
		}
		if e.queue.Offer(Task{Kind: world.TaskMesh, Chunk: c}) {
			n++
			continue
		}
		if e.queue.Full() {
			e.noteBackpressure("mesh")
			break
		}
	}
	e.stats.MeshEnqueued += uint64(n)
	return n
}

// scanVegetation enqueues Vegetation tasks for generated chunks whose overlay
// was sampled with an older settings epoch.
func (e *Engine) scanVegetation(center world.ChunkCoord) int {
	var stale []*world.Chunk
	for _, c := range e.store.Snapshot() {
		if !c.IsGenerated() || c.VegetationEpoch() == e.vegEpoch {
			continue
		}
		if chebyshev(c.Coord, center) > e.settings.ViewDistance {
			continue
		}
		if e.store.IsPending(world.TaskVegetation, c.Coord) {
			continue
		}
		stale = append(stale, c)
	}
	byDistance(stale, center)

	veg := e.vegetationParams()
	n := 0
	for _, c := range stale {
		if n >= e.settings.MaxVegetationPerFrame {
			break
		}
		if !e.queue.Enqueue(Task{Kind: world.TaskVegetation, Chunk: c, Vegetation: veg}) {
			e.noteBackpressure("vegetation")
			break
		}
		n++
	}
	e.stats.VegetationEnqueued += uint64(n)
	return n
}

// pruneFarChunks removes chunks beyond viewDistance + hysteresisMargin. Their
// edits go to the journal and their mesh handles to the reclaimer, tagged
// with frameIndex.
func (e *Engine) pruneFarChunks(center world.ChunkCoord, frameIndex uint64) int {
	limit := e.settings.ViewDistance + e.settings.HysteresisMargin
	n := 0
	for _, c := range e.store.Snapshot() {
		if chebyshev(c.Coord, center) <= limit {
			continue
		}
		if c = e.store.Remove(c.Coord); c == nil {
			continue
		}
		if edits := c.Edits(); len(edits) > 0 {
			e.journal.Store(c.Coord, edits)
		}
		e.retireSlots(c, frameIndex)
		n++
	}
	e.stats.Pruned += uint64(n)
	return n
}
