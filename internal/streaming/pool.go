package streaming

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"voxel-stream/internal/meshing"
	"voxel-stream/internal/world"
)

// WorkerPool runs a fixed number of goroutines draining a TaskQueue. Workers
// only touch chunks, the store's lookup and pending sets, the queue and the
// ready list; they never call into the graphics backend.
type WorkerPool struct {
	queue *TaskQueue
	store *world.ChunkStore
	ready *ReadyList
	log   *log.Logger

	safeMode bool
	strict   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	workers int
	closed  atomic.Bool

	generated  atomic.Uint64
	meshed     atomic.Uint64
	resampled  atomic.Uint64
	faults     atomic.Uint64
	violations atomic.Uint64
}

// PoolOptions configures a WorkerPool.
type PoolOptions struct {
	Workers  int
	SafeMode bool
	Strict   bool
	Logger   *log.Logger
}

// NewWorkerPool starts the workers.
func NewWorkerPool(queue *TaskQueue, store *world.ChunkStore, ready *ReadyList, opts PoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	workers := max(opts.Workers, 1)
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	pool := &WorkerPool{
		queue:    queue,
		store:    store,
		ready:    ready,
		log:      logger,
		safeMode: opts.SafeMode,
		strict:   opts.Strict,
		ctx:      ctx,
		cancel:   cancel,
		workers:  workers,
	}

	// Start worker goroutines
	for i := range workers {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	return pool
}

// worker is the worker goroutine that processes tasks
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-p.queue.tasks:
			// Prefer shutdown over starting another task.
			if p.ctx.Err() != nil {
				p.store.ClearPending(t.Kind, t.Coord())
				return
			}
			p.run(id, t)
		}
	}
}

// run executes one task, converting a panic into a fault, and clears the
// task's pending mark when it ends.
func (p *WorkerPool) run(id int, t Task) {
	defer p.store.ClearPending(t.Kind, t.Coord())
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(violation); ok && p.strict {
				panic(err)
			}
			p.fault(id, t, errors.Errorf("panic: %v", r))
		}
	}()

	var err error
	switch t.Kind {
	case world.TaskGenerate:
		err = p.generate(t)
	case world.TaskMesh:
		err = p.mesh(t)
	case world.TaskVegetation:
		err = p.vegetation(t)
	default:
		err = errors.Errorf("unknown task kind %d", t.Kind)
	}
	if err != nil {
		p.fault(id, t, err)
	}
}

func (p *WorkerPool) fault(id int, t Task, err error) {
	p.faults.Add(1)
	if t.Kind == world.TaskGenerate {
		t.Chunk.MarkFailed()
	}
	c := t.Coord()
	p.log.Printf("worker %d: %s chunk %d,%d: %v", id, t.Kind, c.X, c.Z, err)
}

// violation is an invariant breach detected on a worker. Strict pools
// re-panic with it instead of logging.
type violation string

func (p *WorkerPool) violate(format string, args ...any) {
	p.violations.Add(1)
	if p.strict {
		panic(violation(fmt.Sprintf(format, args...)))
	}
}

func (p *WorkerPool) generate(t Task) error {
	c := t.Chunk
	if c.IsGenerated() {
		return nil
	}
	out, err := world.Generate(t.Gen, c.Coord, t.Replay, t.Vegetation)
	if err != nil {
		return err
	}
	if !c.Install(out) {
		return nil
	}
	p.generated.Add(1)

	// An evicted chunk keeps its data but gets no mesh.
	if !p.store.IsResident(c) {
		return nil
	}
	if p.safeMode {
		for _, s := range world.Sides {
			if n := p.store.Get(c.Coord.Neighbor(s)); n != nil && n.IsGenerated() {
				n.MarkDirty()
			}
		}
	}
	p.queue.Offer(Task{Kind: world.TaskMesh, Chunk: c})
	return nil
}

func (p *WorkerPool) mesh(t Task) error {
	c := t.Chunk
	if !c.IsGenerated() {
		p.violate("mesh task for ungenerated chunk %d,%d", c.Coord.X, c.Coord.Z)
		return nil
	}
	if !p.store.IsResident(c) {
		return nil
	}

	// A Mesh offered by both a worker and the dirty scan runs twice; the
	// second run finds nothing to do.
	if !c.TakeDirty() {
		return nil
	}
	rev := c.Revision()

	var neighbors [4]*world.Chunk
	for _, s := range world.Sides {
		neighbors[s] = p.store.Get(c.Coord.Neighbor(s))
	}
	n := meshing.Capture(c, neighbors)
	solid, water := meshing.BuildChunkMeshes(n)

	p.ready.Push(MeshResult{Chunk: c, Revision: rev, Solid: solid, Water: water})
	p.meshed.Add(1)
	return nil
}

func (p *WorkerPool) vegetation(t Task) error {
	c := t.Chunk
	if !c.IsGenerated() {
		return nil
	}
	v := world.ResampleVegetation(t.Vegetation, c)
	changed := c.SetVegetation(v, t.Vegetation.Epoch)
	p.resampled.Add(1)
	if !changed {
		return nil
	}
	c.MarkDirty()
	if p.store.IsResident(c) {
		p.queue.Offer(Task{Kind: world.TaskMesh, Chunk: c})
	}
	return nil
}

// Workers returns the number of worker goroutines.
func (p *WorkerPool) Workers() int { return p.workers }

// Close stops the workers and waits for them to exit. Running tasks finish;
// queued tasks are discarded and their pending marks cleared. It returns the
// number of discarded tasks.
func (p *WorkerPool) Close() int {
	if !p.closed.CompareAndSwap(false, true) {
		return 0
	}
	p.cancel()
	p.wg.Wait()
	return p.queue.discard()
}

// PoolStats counts completed work.
type PoolStats struct {
	Generated  uint64 `json:"generated"`
	Meshed     uint64 `json:"meshed"`
	Resampled  uint64 `json:"resampled"`
	Faults     uint64 `json:"faults"`
	Violations uint64 `json:"violations"`
}

// Stats returns the pool counters.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Generated:  p.generated.Load(),
		Meshed:     p.meshed.Load(),
		Resampled:  p.resampled.Load(),
		Faults:     p.faults.Load(),
		Violations: p.violations.Load(),
	}
}
