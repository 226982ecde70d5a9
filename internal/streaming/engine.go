// Package streaming keeps the chunks around a camera resident, generated and
// meshed. Generation and meshing run on a worker pool; uploads, eviction and
// GPU resource reclamation run on the caller's (main) thread in Update.
package streaming

import (
	"io"
	"log"
	"math"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"voxel-stream/internal/config"
	"voxel-stream/internal/geom"
	"voxel-stream/internal/gpu"
	"voxel-stream/internal/meshing"
	"voxel-stream/internal/profiling"
	"voxel-stream/internal/reclaim"
	"voxel-stream/internal/world"
)

// ErrClosed is returned by Update after Close.
var ErrClosed = errors.New("streaming: engine closed")

// Options configures an Engine.
type Options struct {
	Settings config.Settings

	// Generator defaults to the generator named by Settings.Terrain, built
	// from the seed and sea level.
	Generator world.TerrainGenerator

	Backend  gpu.Backend
	Logger   *log.Logger
	Profiler *profiling.Profiler
}

// Engine is the frontend-facing streaming engine. Except where noted, its
// methods must be called from the thread that owns the graphics backend.
type Engine struct {
	settings config.Settings
	gen      world.TerrainGenerator
	backend  gpu.Backend

	store     *world.ChunkStore
	journal   *world.Journal
	queue     *TaskQueue
	pool      *WorkerPool
	ready     *ReadyList
	reclaimer *reclaim.Reclaimer

	log        *log.Logger
	prof       *profiling.Profiler
	logLimiter *rate.Limiter

	vegEpoch uint64
	fatal    error
	closed   bool
	stats    Stats
}

// New creates an engine and starts its workers.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, errors.New("streaming: nil backend")
	}
	s := opts.Settings
	s.Normalize()

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	prof := opts.Profiler
	if prof == nil {
		prof = profiling.New(60)
	}
	gen := opts.Generator
	if gen == nil {
		var err error
		if gen, err = world.NewGenerator(s.Terrain, s.Seed, s.SeaLevel); err != nil {
			return nil, errors.Wrap(err, "streaming")
		}
	}

	journal, err := world.NewJournal(s.JournalCapacity)
	if err != nil {
		return nil, errors.Wrap(err, "streaming: journal")
	}

	store := world.NewChunkStore()
	queue := NewTaskQueue(store, s.MaxPendingTasks, s.Strict)
	ready := &ReadyList{}
	e := &Engine{
		settings:   s,
		gen:        gen,
		backend:    opts.Backend,
		store:      store,
		journal:    journal,
		queue:      queue,
		ready:      ready,
		reclaimer:  reclaim.New(opts.Backend),
		log:        logger,
		prof:       prof,
		logLimiter: rate.NewLimiter(rate.Limit(2), 1),
		vegEpoch:   1,
	}
	e.pool = NewWorkerPool(queue, store, ready, PoolOptions{
		Workers:  s.EffectiveWorkers(),
		SafeMode: s.SafeMode,
		Strict:   s.Strict,
		Logger:   logger,
	})
	return e, nil
}

// Update runs one frame of streaming: drain finished meshes, request missing
// chunks, re-mesh dirty ones, resample stale vegetation, prune far chunks and
// release GPU resources whose fences signaled. A returned error is fatal and
// sticks until Close.
func (e *Engine) Update(camera mgl32.Vec3, frustum geom.Frustum, frameIndex uint64) error {
	if e.closed {
		return ErrClosed
	}
	if e.fatal != nil {
		return e.fatal
	}
	defer e.prof.Track("streaming.Update")()
	e.stats.Frames++

	center := world.ChunkCoordFor(int(math.Floor(float64(camera.X()))), int(math.Floor(float64(camera.Z()))))

	stop := e.prof.Track("streaming.drain")
	err := e.drainReady(frameIndex)
	stop()
	if err != nil {
		return e.fail(err)
	}

	stop = e.prof.Track("streaming.request")
	e.requestChunks(center, frustum)
	e.scanDirty(center)
	e.scanVegetation(center)
	stop()

	stop = e.prof.Track("streaming.prune")
	e.pruneFarChunks(center, frameIndex)
	stop()

	stop = e.prof.Track("streaming.reclaim")
	_, err = e.reclaimer.Flush(false)
	stop()
	if err != nil {
		return e.fail(err)
	}
	return nil
}

func (e *Engine) fail(err error) error {
	e.fatal = err
	e.log.Printf("fatal: %v", err)
	return err
}

// Err returns the sticky fatal error, if any.
func (e *Engine) Err() error { return e.fatal }

// drainReady uploads at most MaxUploadsPerFrame finished meshes and swaps
// them into their chunks. Results for evicted chunks are dropped; in safe
// mode so are results built from an older revision.
func (e *Engine) drainReady(frameIndex uint64) error {
	for _, r := range e.ready.Drain(e.settings.MaxUploadsPerFrame) {
		c := r.Chunk
		if !e.store.IsResident(c) {
			e.stats.Discarded++
			continue
		}
		if e.settings.SafeMode && c.Revision() != r.Revision {
			c.MarkDirty()
			e.stats.DiscardedStale++
			continue
		}

		solid, err := e.upload(&r.Solid)
		if err != nil {
			return errors.Wrapf(err, "chunk %d,%d solid mesh", c.Coord.X, c.Coord.Z)
		}
		water, err := e.upload(&r.Water)
		if err != nil {
			if solid != nil {
				solid.Release()
			}
			return errors.Wrapf(err, "chunk %d,%d water mesh", c.Coord.X, c.Coord.Z)
		}

		e.retire(c.SwapSolidMesh(solid), frameIndex)
		e.retire(c.SwapWaterMesh(water), frameIndex)
		e.stats.Uploads++
	}
	return nil
}

// upload creates a GPU mesh, or returns nil for empty data.
func (e *Engine) upload(m *meshing.MeshData) (*gpu.MeshHandle, error) {
	if m.Empty() {
		return nil, nil
	}
	h, err := e.backend.UploadMesh(m.Vertices, m.Indices)
	if err != nil {
		if errors.Is(err, gpu.ErrDeviceLost) || errors.Is(err, gpu.ErrUploadFailed) {
			return nil, err
		}
		return nil, errors.Wrapf(gpu.ErrUploadFailed, "%v", err)
	}
	return h, nil
}

func (e *Engine) retire(h *gpu.MeshHandle, frameIndex uint64) {
	if h != nil {
		e.reclaimer.Retire(h, frameIndex)
	}
}

// retireSlots empties both mesh slots of c into the reclaimer.
func (e *Engine) retireSlots(c *world.Chunk, frameIndex uint64) {
	e.retire(c.SwapSolidMesh(nil), frameIndex)
	e.retire(c.SwapWaterMesh(nil), frameIndex)
}

func (e *Engine) noteBackpressure(kind string) {
	e.stats.Backpressure++
	if e.logLimiter.Allow() {
		e.log.Printf("task queue full (%d/%d), deferring %s requests", e.queue.Len(), e.queue.Cap(), kind)
	}
}

func (e *Engine) vegetationParams() world.VegetationParams {
	return world.VegetationParams{
		Enabled: e.settings.VegetationEnabled,
		Density: e.settings.VegetationDensity,
		Seed:    e.settings.Seed,
		Epoch:   e.vegEpoch,
	}
}

// VisibleChunks returns the resident chunks whose bounds intersect frustum.
// Safe to call from any goroutine.
func (e *Engine) VisibleChunks(frustum geom.Frustum) []*world.Chunk {
	all := e.store.Snapshot()
	out := all[:0]
	for _, c := range all {
		if frustum.IntersectsAABB(c.Bounds()) {
			out = append(out, c)
		}
	}
	return out
}

// ChunkCount returns the number of resident chunks.
func (e *Engine) ChunkCount() int { return e.store.Len() }

// PendingTaskCount returns the number of queued or running Generate and Mesh
// tasks.
func (e *Engine) PendingTaskCount() int {
	return e.store.PendingCount(world.TaskGenerate) + e.store.PendingCount(world.TaskMesh)
}

// PendingVegetationCount returns the number of queued or running Vegetation
// tasks.
func (e *Engine) PendingVegetationCount() int {
	return e.store.PendingCount(world.TaskVegetation)
}

// Block returns the block at world coordinates, or air if its chunk is not
// resident and generated. It never blocks on workers and never requests
// generation. Safe to call from any goroutine.
func (e *Engine) Block(x, y, z int) world.BlockType {
	return e.store.Block(x, y, z)
}

// SetBlock changes one cell of a resident, generated chunk and marks it (and
// a touching neighbour on border edits) for re-meshing.
func (e *Engine) SetBlock(x, y, z int, b world.BlockType) error {
	if y < 0 || y >= world.ChunkSizeY {
		return e.violation(errors.Wrapf(world.ErrOutOfBounds, "y=%d", y))
	}
	coord := world.ChunkCoordFor(x, z)
	c := e.store.Get(coord)
	if c == nil {
		return e.violation(errors.Wrapf(world.ErrNotResident, "chunk %d,%d", coord.X, coord.Z))
	}
	if !c.IsGenerated() {
		return e.violation(errors.Wrapf(world.ErrChunkGenerating, "chunk %d,%d", coord.X, coord.Z))
	}
	lx, ly, lz := world.LocalFor(x, y, z)
	if !c.SetBlock(lx, ly, lz, b) {
		return nil
	}
	for _, s := range world.BorderSides(lx, lz) {
		if n := e.store.Get(coord.Neighbor(s)); n != nil && n.IsGenerated() {
			n.MarkDirty()
		}
	}
	return nil
}

func (e *Engine) violation(err error) error {
	if e.settings.Strict {
		panic(err)
	}
	return err
}

// TerrainHeight returns the highest solid cell of a resident, generated
// column. ok is false when the column is not available or empty. Safe to
// call from any goroutine.
func (e *Engine) TerrainHeight(x, z int) (h int, ok bool) {
	c := e.store.Get(world.ChunkCoordFor(x, z))
	if c == nil || !c.IsGenerated() {
		return 0, false
	}
	lx, _, lz := world.LocalFor(x, 0, z)
	h = c.TopSolid(lx, lz)
	return h, h >= 0
}

// Preload generates the square of chunks within radius of center before the
// first frame, in parallel, and waits for it. The chunks come out generated
// and dirty; Update meshes them. A generation fault marks its chunk failed,
// cancels the chunks not yet started and is returned.
func (e *Engine) Preload(center world.ChunkCoord, radius int) error {
	if e.closed {
		return ErrClosed
	}
	defer e.prof.Track("streaming.Preload")()

	pool := pond.NewPool(e.settings.EffectiveWorkers())
	group := pool.NewGroup()

	var marked []world.ChunkCoord
	veg := e.vegetationParams()
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			coord := world.ChunkCoord{X: center.X + dx, Z: center.Z + dz}
			c, _ := e.store.GetOrCreate(coord)
			if c.IsGenerated() || !e.store.MarkPending(world.TaskGenerate, coord) {
				continue
			}
			marked = append(marked, coord)
			replay, err := e.journal.Load(coord)
			if err != nil {
				e.log.Printf("journal: %v", err)
			}

			group.SubmitErr(func() error {
				out, err := world.Generate(e.gen, coord, replay, veg)
				if err != nil {
					c.MarkFailed()
					return errors.Wrapf(err, "preload chunk %d,%d", coord.X, coord.Z)
				}
				c.Install(out)
				return nil
			})
		}
	}

	err := group.Wait()
	// Wait returns on the first fault; let the running tasks finish. Tasks
	// skipped after a fault never ran, so their marks are cleared here.
	pool.StopAndWait()
	for _, coord := range marked {
		e.store.ClearPending(world.TaskGenerate, coord)
	}
	if err != nil {
		e.log.Printf("%v", err)
	}
	return err
}

// SetViewDistance changes the load radius, clamped.
func (e *Engine) SetViewDistance(chunks int) {
	e.settings.ViewDistance = config.ViewDistanceRange.Clamp(chunks)
}

// ViewDistance returns the current load radius.
func (e *Engine) ViewDistance() int { return e.settings.ViewDistance }

// SetHysteresis changes the extra prune margin, clamped.
func (e *Engine) SetHysteresis(chunks int) {
	e.settings.HysteresisMargin = config.HysteresisRange.Clamp(chunks)
}

// SetBudgets changes the per-frame budgets, each clamped.
func (e *Engine) SetBudgets(chunks, meshes, uploads int) {
	e.settings.MaxChunksPerFrame = config.ChunksPerFrameRange.Clamp(chunks)
	e.settings.MaxMeshesPerFrame = config.MeshesPerFrameRange.Clamp(meshes)
	e.settings.MaxUploadsPerFrame = config.UploadsPerFrameRange.Clamp(uploads)
}

// SetVegetation toggles and scales vegetation. Any change starts a new epoch
// so resident chunks get resampled over the following frames.
func (e *Engine) SetVegetation(enabled bool, density float64) {
	density = config.ClampDensity(density)
	if enabled == e.settings.VegetationEnabled && density == e.settings.VegetationDensity {
		return
	}
	e.settings.VegetationEnabled = enabled
	e.settings.VegetationDensity = density
	e.vegEpoch++
}

// Settings returns the current settings.
func (e *Engine) Settings() config.Settings { return e.settings }

// Close joins the workers, waits for the device, retires every resident mesh
// and force-flushes the reclaimer. It is idempotent. After a device loss the
// remaining resources are leaked and the device error returned.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	start := time.Now()
	discarded := e.pool.Close()
	e.ready.Clear()

	waitErr := e.reclaimer.WaitIdle()
	frame := e.backend.CurrentFrameIndex()
	for _, c := range e.store.Snapshot() {
		e.retireSlots(c, frame)
	}
	released, flushErr := e.reclaimer.Flush(true)
	e.journal.Close()

	e.log.Printf("closed in %v: %d queued tasks discarded, %d resources released", time.Since(start), discarded, released)
	if flushErr != nil {
		return flushErr
	}
	return waitErr
}
