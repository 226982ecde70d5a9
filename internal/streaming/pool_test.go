package streaming

import (
	"io"
	"log"
	"testing"
	"time"

	"voxel-stream/internal/world"
)

type panicGenerator struct {
	world.FlatGenerator
}

func (panicGenerator) Populate(world.ChunkCoord, *world.Grid) error {
	panic("generator exploded")
}

func newTestPool(t *testing.T, workers int, strict bool) (*WorkerPool, *TaskQueue, *world.ChunkStore, *ReadyList) {
	t.Helper()
	store := world.NewChunkStore()
	q := NewTaskQueue(store, 64, strict)
	ready := &ReadyList{}
	p := NewWorkerPool(q, store, ready, PoolOptions{
		Workers: workers,
		Strict:  strict,
		Logger:  log.New(io.Discard, "", 0),
	})
	t.Cleanup(func() { p.Close() })
	return p, q, store, ready
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPoolGeneratesThenMeshes(t *testing.T) {
	p, q, store, ready := newTestPool(t, 2, true)
	c, _ := store.GetOrCreate(world.ChunkCoord{X: 1, Z: 2})

	if !q.Enqueue(Task{Kind: world.TaskGenerate, Chunk: c, Gen: world.NewFlatGenerator(3)}) {
		t.Fatal("enqueue failed")
	}
	waitFor(t, "mesh result", func() bool { return ready.Len() == 1 })

	res := ready.Drain(1)[0]
	if res.Chunk != c {
		t.Fatal("result for the wrong chunk")
	}
	if res.Solid.Empty() {
		t.Fatal("solid mesh empty")
	}
	if !c.IsGenerated() || c.IsDirty() {
		t.Fatalf("generated=%v dirty=%v", c.IsGenerated(), c.IsDirty())
	}
	waitFor(t, "pending marks", func() bool {
		return store.PendingCount(world.TaskGenerate) == 0 && store.PendingCount(world.TaskMesh) == 0
	})
	s := p.Stats()
	if s.Generated != 1 || s.Meshed != 1 || s.Faults != 0 || s.Violations != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestPoolSurvivesGeneratorPanic(t *testing.T) {
	p, q, store, ready := newTestPool(t, 1, false)
	bad, _ := store.GetOrCreate(world.ChunkCoord{})
	good, _ := store.GetOrCreate(world.ChunkCoord{X: 1})

	q.Enqueue(Task{Kind: world.TaskGenerate, Chunk: bad, Gen: panicGenerator{}})
	q.Enqueue(Task{Kind: world.TaskGenerate, Chunk: good, Gen: world.NewFlatGenerator(3)})

	waitFor(t, "second chunk", func() bool { return good.IsGenerated() })
	if !bad.Failed() || bad.IsGenerated() {
		t.Fatalf("bad chunk failed=%v generated=%v", bad.Failed(), bad.IsGenerated())
	}
	if p.Stats().Faults != 1 {
		t.Fatalf("faults = %d, want 1", p.Stats().Faults)
	}
	waitFor(t, "pending marks", func() bool { return !store.IsPending(world.TaskGenerate, bad.Coord) })
	waitFor(t, "mesh of good chunk", func() bool { return ready.Len() == 1 })
}

func TestPoolSkipsEvictedChunk(t *testing.T) {
	p, q, store, ready := newTestPool(t, 1, true)
	c, _ := store.GetOrCreate(world.ChunkCoord{X: 4})
	store.Remove(c.Coord)

	q.Enqueue(Task{Kind: world.TaskGenerate, Chunk: c, Gen: world.NewFlatGenerator(3)})
	waitFor(t, "generation", func() bool { return p.Stats().Generated == 1 })
	waitFor(t, "pending marks", func() bool { return store.PendingCount(world.TaskGenerate) == 0 })
	if store.PendingCount(world.TaskMesh) != 0 || ready.Len() != 0 {
		t.Fatal("evicted chunk was meshed")
	}
}

func TestPoolCountsMeshOfUngeneratedChunk(t *testing.T) {
	p, q, store, ready := newTestPool(t, 1, false)
	c, _ := store.GetOrCreate(world.ChunkCoord{})

	q.Offer(Task{Kind: world.TaskMesh, Chunk: c})
	waitFor(t, "violation", func() bool { return p.Stats().Violations == 1 })
	if ready.Len() != 0 {
		t.Fatal("mesh built from an ungenerated chunk")
	}
}

func TestPoolVegetationTriggersRemesh(t *testing.T) {
	p, q, store, ready := newTestPool(t, 1, true)
	c, _ := store.GetOrCreate(world.ChunkCoord{})
	out, err := world.Generate(world.NewFlatGenerator(3), c.Coord, nil, world.VegetationParams{Epoch: 1})
	if err != nil {
		t.Fatal(err)
	}
	c.Install(out)
	c.TakeDirty()
	installed := c.VegetationVersion()
	if installed == 0 {
		t.Fatal("install left vegetation version at 0")
	}

	veg := world.VegetationParams{Enabled: true, Density: 1, Seed: 9, Epoch: 2}
	q.Enqueue(Task{Kind: world.TaskVegetation, Chunk: c, Vegetation: veg})

	waitFor(t, "re-mesh", func() bool { return ready.Len() == 1 })
	if c.VegetationEpoch() != 2 {
		t.Fatalf("epoch = %d, want 2", c.VegetationEpoch())
	}
	if p.Stats().Resampled != 1 {
		t.Fatalf("resampled = %d", p.Stats().Resampled)
	}
	resampled := c.VegetationVersion()
	if resampled <= installed {
		t.Fatalf("vegetation version %d after resample, want > %d", resampled, installed)
	}

	// Same parameters under a new epoch: nothing changes, the version still moves.
	veg.Epoch = 3
	q.Enqueue(Task{Kind: world.TaskVegetation, Chunk: c, Vegetation: veg})
	waitFor(t, "second resample", func() bool { return p.Stats().Resampled == 2 })
	if got := c.VegetationVersion(); got <= resampled {
		t.Fatalf("vegetation version %d after unchanged resample, want > %d", got, resampled)
	}
	if c.VegetationEpoch() != 3 {
		t.Fatalf("epoch = %d, want 3", c.VegetationEpoch())
	}
	if ready.Len() != 1 {
		t.Fatalf("unchanged resample queued a re-mesh: ready = %d", ready.Len())
	}
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	p, _, _, _ := newTestPool(t, 3, false)
	if p.Workers() != 3 {
		t.Fatalf("workers = %d", p.Workers())
	}
	p.Close()
	if n := p.Close(); n != 0 {
		t.Fatalf("second close discarded %d", n)
	}
}
