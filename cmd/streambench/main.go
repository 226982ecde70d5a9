// Command streambench drives the streaming engine headless along a straight
// flight path and reports throughput. It can serve live diagnostics and
// export the final view as a binary glTF file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/xlab/closer"
	"golang.org/x/term"

	"voxel-stream/internal/config"
	"voxel-stream/internal/diag"
	"voxel-stream/internal/export"
	"voxel-stream/internal/geom"
	"voxel-stream/internal/gpu"
	"voxel-stream/internal/gpu/fakegpu"
	"voxel-stream/internal/gpu/vkbackend"
	"voxel-stream/internal/profiling"
	"voxel-stream/internal/streaming"
	"voxel-stream/internal/world"
)

var (
	configPath = flag.String("config", "", "settings YAML (defaults when empty)")
	frames     = flag.Int("frames", 600, "number of frames to run")
	speed      = flag.Float64("speed", 0.5, "camera speed in blocks per frame")
	backend    = flag.String("backend", "fake", "gpu backend: fake or vulkan")
	latency    = flag.Int("latency", 2, "fake backend: fence polls before a frame completes")
	lag        = flag.Int("lag", 0, "fake backend: complete each frame exactly this many frames after it ends, ignoring -latency")
	diagAddr   = flag.String("diag", "", "serve diagnostics on this address, e.g. 127.0.0.1:8090")
	exportPath = flag.String("export", "", "write the visible chunks of the last frame to this .glb file")
	slowFrame  = flag.Duration("slow", 10*time.Millisecond, "log frames slower than this")
)

// device is a backend the bench can end frames on.
type device interface {
	gpu.Backend
	EndFrame() error
	Close() error
}

// fakeDevice ends frames on the fake backend. With a lag its fences never
// signal on their own; each EndFrame completes the frame lag frames back.
type fakeDevice struct {
	*fakegpu.Device
	lag uint64
}

func (d fakeDevice) EndFrame() error {
	f := d.Device.EndFrame()
	if d.lag > 0 && f >= d.lag {
		d.Complete(f - d.lag)
	}
	return nil
}

func (d fakeDevice) Close() error { return nil }

func openDevice(name string) (device, error) {
	switch name {
	case "fake":
		if *lag > 0 {
			return fakeDevice{Device: fakegpu.New(fakegpu.WithLatency(math.MaxInt32)), lag: uint64(*lag)}, nil
		}
		return fakeDevice{Device: fakegpu.New(fakegpu.WithLatency(*latency))}, nil
	case "vulkan", "vk":
		return vkbackend.New("streambench")
	default:
		return nil, errors.Errorf("unknown backend %q", name)
	}
}

func main() {
	flag.Parse()
	logger := log.New(os.Stdout, "[streambench] ", log.LstdFlags|log.Lmicroseconds)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	closer.Bind(func() {
		cancel()
		<-done
	})

	err := run(ctx, logger)
	close(done)
	if err != nil {
		closer.Fatalln(err)
	}
	closer.Close()
}

func run(ctx context.Context, logger *log.Logger) error {
	settings := config.Default()
	if *configPath != "" {
		s, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		settings = s
	}

	dev, err := openDevice(*backend)
	if err != nil {
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			logger.Printf("device close: %v", err)
		}
	}()

	prof := profiling.New(120)
	engine, err := streaming.New(streaming.Options{
		Settings: settings,
		Backend:  dev,
		Logger:   logger,
		Profiler: prof,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Printf("engine close: %v", err)
		}
	}()

	var diagSrv *diag.Server
	if *diagAddr != "" {
		diagSrv = diag.NewServer(logger, 4)
		srv := &http.Server{Addr: *diagAddr, Handler: diagSrv.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("diag: %v", err)
			}
		}()
		defer srv.Close()
		logger.Printf("diagnostics on http://%s/stats", *diagAddr)
	}

	status := newStatusLine(os.Stdout)
	defer status.finish()

	eye := mgl32.Vec3{8, float32(settings.SeaLevel + 18), 8}
	frustum := func() geom.Frustum {
		return geom.NewFrustum(eye, eye.Add(mgl32.Vec3{16, -6, 0}), 70, 16.0/9.0, 0.1, float32((settings.ViewDistance+1)*world.ChunkSizeX))
	}

	start := time.Now()
	var slow int
	for i := 0; i < *frames; i++ {
		select {
		case <-ctx.Done():
			logger.Printf("interrupted after %d frames", i)
			return nil
		default:
		}

		prof.ResetFrame()
		frameStart := time.Now()
		eye[0] += float32(*speed)
		if h, ok := engine.TerrainHeight(int(eye.X()), int(eye.Z())); ok {
			eye[1] = float32(h + 18)
		}

		if err := engine.Update(eye, frustum(), dev.CurrentFrameIndex()); err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
		if err := dev.EndFrame(); err != nil {
			return errors.Wrapf(err, "end frame %d", i)
		}

		if dur := time.Since(frameStart); dur > *slowFrame {
			slow++
			logger.Printf("Slow frame: %v. Top tasks: %s", dur, prof.TopN(5))
		}
		st := engine.Stats()
		if diagSrv != nil {
			diagSrv.Publish(st, engine.Residency())
		}
		status.update(fmt.Sprintf("frame %d/%d x=%.0f resident=%d meshed=%d pending=%d reclaim=%d",
			i+1, *frames, eye.X(), st.Resident, st.Meshed, engine.PendingTaskCount(), st.ReclaimPending))
	}
	status.finish()

	elapsed := time.Since(start)
	st := engine.Stats()
	logger.Printf("%d frames in %v (%.1f fps), %d slow", *frames, elapsed, float64(*frames)/elapsed.Seconds(), slow)
	logger.Printf("enqueued generate=%d mesh=%d vegetation=%d, uploads=%d, pruned=%d, released=%d, backpressure=%d",
		st.GenerateEnqueued, st.MeshEnqueued, st.VegetationEnqueued, st.Uploads, st.Pruned, st.Released, st.Backpressure)
	logger.Printf("workers: generated=%d meshed=%d resampled=%d faults=%d",
		st.Pool.Generated, st.Pool.Meshed, st.Pool.Resampled, st.Pool.Faults)
	logger.Printf("frame averages: %s", prof.AveragesTopN(5))

	if *exportPath != "" {
		scene := export.NewScene()
		n, err := scene.AddChunks(engine.VisibleChunks(frustum()))
		if err != nil {
			return errors.Wrap(err, "export")
		}
		if err := scene.Save(*exportPath); err != nil {
			return errors.Wrap(err, "export")
		}
		logger.Printf("exported %d meshes to %s", n, *exportPath)
	}
	return nil
}

// statusLine rewrites a single progress line when stdout is a terminal and
// stays silent otherwise.
type statusLine struct {
	f      *os.File
	tty    bool
	width  int
	active bool
}

func newStatusLine(f *os.File) *statusLine {
	s := &statusLine{f: f, tty: term.IsTerminal(int(f.Fd())), width: 80}
	if s.tty {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			s.width = w
		}
	}
	return s
}

func (s *statusLine) update(line string) {
	if !s.tty {
		return
	}
	if len(line) > s.width-1 {
		line = line[:s.width-1]
	}
	fmt.Fprintf(s.f, "\r%s%s", line, strings.Repeat(" ", s.width-1-len(line)))
	s.active = true
}

func (s *statusLine) finish() {
	if s.active {
		fmt.Fprintln(s.f)
		s.active = false
	}
}
