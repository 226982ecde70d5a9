package world

import (
	"sync"
)

// TaskKind selects one of the pending-task sets of a ChunkStore.
type TaskKind int

const (
	TaskGenerate TaskKind = iota
	TaskMesh
	TaskVegetation

	taskKindCount
)

func (k TaskKind) String() string {
	switch k {
	case TaskGenerate:
		return "generate"
	case TaskMesh:
		return "mesh"
	case TaskVegetation:
		return "vegetation"
	default:
		return "unknown"
	}
}

// ChunkStore maps chunk coordinates to resident chunks and tracks which
// coordinates have a task queued or running, one set per task kind.
type ChunkStore struct {
	chunks   map[ChunkCoord]*Chunk
	mu       sync.RWMutex
	modCount uint64 // Increases on any chunk add/remove

	pending   [taskKindCount]map[ChunkCoord]struct{}
	pendingMu sync.Mutex
}

// NewChunkStore creates an empty store.
func NewChunkStore() *ChunkStore {
	cs := &ChunkStore{chunks: make(map[ChunkCoord]*Chunk)}
	for i := range cs.pending {
		cs.pending[i] = make(map[ChunkCoord]struct{})
	}
	return cs
}

// GetOrCreate returns the resident chunk at coord, creating and registering
// an empty one if needed. created reports whether this call made it.
func (cs *ChunkStore) GetOrCreate(coord ChunkCoord) (chunk *Chunk, created bool) {
	cs.mu.RLock()
	chunk, ok := cs.chunks[coord]
	cs.mu.RUnlock()
	if ok {
		return chunk, false
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	// Another goroutine may have created it while we waited for the lock.
	if existing, ok := cs.chunks[coord]; ok {
		return existing, false
	}
	chunk = NewChunk(coord)
	cs.chunks[coord] = chunk
	cs.modCount++
	return chunk, true
}

// Get returns the resident chunk at coord, or nil.
func (cs *ChunkStore) Get(coord ChunkCoord) *Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.chunks[coord]
}

// Has reports whether a chunk is resident at coord.
func (cs *ChunkStore) Has(coord ChunkCoord) bool {
	cs.mu.RLock()
	_, ok := cs.chunks[coord]
	cs.mu.RUnlock()
	return ok
}

// IsResident reports whether c is the chunk registered at its coordinate.
// A task holding a chunk that was evicted (and perhaps recreated) gets false.
func (cs *ChunkStore) IsResident(c *Chunk) bool {
	return c != nil && cs.Get(c.Coord) == c
}

// Remove detaches the chunk at coord and returns it, or nil. Tasks that still
// reference the chunk keep it alive; their results are discarded later.
func (cs *ChunkStore) Remove(coord ChunkCoord) *Chunk {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	chunk, ok := cs.chunks[coord]
	if !ok {
		return nil
	}
	delete(cs.chunks, coord)
	cs.modCount++
	return chunk
}

// Snapshot returns the resident chunks at this instant. The slice is owned by
// the caller and can be iterated without holding any lock.
func (cs *ChunkStore) Snapshot() []*Chunk {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]*Chunk, 0, len(cs.chunks))
	for _, c := range cs.chunks {
		out = append(out, c)
	}
	return out
}

// Len returns the number of resident chunks.
func (cs *ChunkStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.chunks)
}

// ModCount returns the current modification count of the chunk map.
func (cs *ChunkStore) ModCount() uint64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.modCount
}

// MarkPending adds coord to the set of kind. It returns false when the
// coordinate is already pending, so each coordinate is in a set at most once.
func (cs *ChunkStore) MarkPending(kind TaskKind, coord ChunkCoord) bool {
	cs.pendingMu.Lock()
	defer cs.pendingMu.Unlock()
	set := cs.pending[kind]
	if _, ok := set[coord]; ok {
		return false
	}
	set[coord] = struct{}{}
	return true
}

// ClearPending removes coord from the set of kind.
func (cs *ChunkStore) ClearPending(kind TaskKind, coord ChunkCoord) {
	cs.pendingMu.Lock()
	delete(cs.pending[kind], coord)
	cs.pendingMu.Unlock()
}

// IsPending reports whether coord is in the set of kind.
func (cs *ChunkStore) IsPending(kind TaskKind, coord ChunkCoord) bool {
	cs.pendingMu.Lock()
	defer cs.pendingMu.Unlock()
	_, ok := cs.pending[kind][coord]
	return ok
}

// PendingCount returns the size of the set of kind.
func (cs *ChunkStore) PendingCount(kind TaskKind) int {
	cs.pendingMu.Lock()
	defer cs.pendingMu.Unlock()
	return len(cs.pending[kind])
}

// ChunkCoordFor returns the coordinate of the chunk holding world X,Z.
func ChunkCoordFor(worldX, worldZ int) ChunkCoord {
	return ChunkCoord{X: floorDiv(worldX, ChunkSizeX), Z: floorDiv(worldZ, ChunkSizeZ)}
}

// LocalFor converts world coordinates to local chunk coordinates.
func LocalFor(worldX, worldY, worldZ int) (int, int, int) {
	return mod(worldX, ChunkSizeX), worldY, mod(worldZ, ChunkSizeZ)
}

// Block returns the block at world coordinates, or air when the chunk is not
// resident or not generated yet. It never creates chunks.
func (cs *ChunkStore) Block(worldX, worldY, worldZ int) BlockType {
	if worldY < 0 || worldY >= ChunkSizeY {
		return BlockTypeAir
	}
	chunk := cs.Get(ChunkCoordFor(worldX, worldZ))
	if chunk == nil || !chunk.IsGenerated() {
		return BlockTypeAir
	}
	lx, ly, lz := LocalFor(worldX, worldY, worldZ)
	return chunk.Block(lx, ly, lz)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
