package streaming

import (
	"voxel-stream/internal/world"
)

// Stats is a diagnostic snapshot of the engine.
type Stats struct {
	Frames uint64 `json:"frames"`

	Resident  int `json:"resident"`
	Generated int `json:"generated"`
	Meshed    int `json:"meshed"`
	Failed    int `json:"failed"`
	Dirty     int `json:"dirty"`

	QueueLen          int `json:"queue_len"`
	QueueCap          int `json:"queue_cap"`
	PendingGenerate   int `json:"pending_generate"`
	PendingMesh       int `json:"pending_mesh"`
	PendingVegetation int `json:"pending_vegetation"`
	ReadyMeshes       int `json:"ready_meshes"`

	GenerateEnqueued   uint64 `json:"generate_enqueued"`
	MeshEnqueued       uint64 `json:"mesh_enqueued"`
	VegetationEnqueued uint64 `json:"vegetation_enqueued"`
	Backpressure       uint64 `json:"backpressure"`
	Dropped            uint64 `json:"dropped"`
	Duplicates         uint64 `json:"duplicates"`

	Uploads        uint64 `json:"uploads"`
	Discarded      uint64 `json:"discarded"`
	DiscardedStale uint64 `json:"discarded_stale"`
	Pruned         uint64 `json:"pruned"`

	ReclaimPending int    `json:"reclaim_pending"`
	Released       uint64 `json:"released"`

	JournalEntries int `json:"journal_entries"`
	JournalRaw     int `json:"journal_raw_bytes"`
	JournalPacked  int `json:"journal_packed_bytes"`

	Workers int       `json:"workers"`
	Pool    PoolStats `json:"pool"`

	ViewDistance    int    `json:"view_distance"`
	VegetationEpoch uint64 `json:"vegetation_epoch"`
}

// Stats gathers counters and a residency census. Main thread only.
func (e *Engine) Stats() Stats {
	s := e.stats
	for _, c := range e.store.Snapshot() {
		s.Resident++
		st := c.Status()
		if st.Generated {
			s.Generated++
		}
		if st.Meshed {
			s.Meshed++
		}
		if st.Failed {
			s.Failed++
		}
		if st.Dirty {
			s.Dirty++
		}
	}
	s.QueueLen = e.queue.Len()
	s.QueueCap = e.queue.Cap()
	s.PendingGenerate = e.store.PendingCount(world.TaskGenerate)
	s.PendingMesh = e.store.PendingCount(world.TaskMesh)
	s.PendingVegetation = e.store.PendingCount(world.TaskVegetation)
	s.ReadyMeshes = e.ready.Len()
	s.Dropped = e.queue.Dropped()
	s.Duplicates = e.queue.Duplicates()
	s.ReclaimPending = e.reclaimer.Pending()
	s.Released = e.reclaimer.Released()
	s.JournalEntries = e.journal.Len()
	s.JournalRaw, s.JournalPacked = e.journal.Sizes()
	s.Workers = e.pool.Workers()
	s.Pool = e.pool.Stats()
	s.ViewDistance = e.settings.ViewDistance
	s.VegetationEpoch = e.vegEpoch
	return s
}

// Residency returns the status of every resident chunk.
func (e *Engine) Residency() []world.ChunkStatus {
	all := e.store.Snapshot()
	out := make([]world.ChunkStatus, len(all))
	for i, c := range all {
		out[i] = c.Status()
	}
	return out
}
