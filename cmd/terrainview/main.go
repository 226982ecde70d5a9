// Command terrainview opens a window and flies a camera over streamed
// terrain, drawing every visible chunk through the OpenGL backend.
package main

import (
	"flag"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/faiface/mainthread"
	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/xlab/closer"

	"voxel-stream/internal/config"
	"voxel-stream/internal/geom"
	"voxel-stream/internal/gpu"
	"voxel-stream/internal/gpu/glbackend"
	"voxel-stream/internal/physics"
	"voxel-stream/internal/profiling"
	"voxel-stream/internal/streaming"
	"voxel-stream/internal/world"
)

const (
	windowWidth  = 1280
	windowHeight = 720

	fovy     = 70
	nearClip = 0.1
)

var (
	configPath = flag.String("config", "", "settings YAML (defaults when empty)")
	speed      = flag.Float64("speed", 12, "camera speed in blocks per second")
	slowFrame  = flag.Duration("slow", 25*time.Millisecond, "log frames slower than this")
)

// flyer is the scripted camera: it flies along +X and keeps a fixed height
// above the streamed ground.
type flyer struct {
	pos     mgl32.Vec3
	yaw     float64
	groundY float32
}

func (f *flyer) advance(dt float64, e *streaming.Engine) {
	step := float32(dt * *speed)
	f.pos[0] += step * float32(math.Cos(f.yaw))
	f.pos[2] += step * float32(math.Sin(f.yaw))
	if h, ok := e.TerrainHeight(int(math.Floor(float64(f.pos.X()))), int(math.Floor(float64(f.pos.Z())))); ok {
		f.groundY = float32(h)
	}
	target := f.groundY + 18
	f.pos[1] += (target - f.pos[1]) * float32(math.Min(1, dt*2))
}

func (f *flyer) target() mgl32.Vec3 {
	return f.pos.Add(mgl32.Vec3{float32(math.Cos(f.yaw)) * 16, -6, float32(math.Sin(f.yaw)) * 16})
}

func main() {
	flag.Parse()
	logger := log.New(os.Stdout, "[terrainview] ", log.LstdFlags|log.Lmicroseconds)

	var runErr error
	mainthread.Run(func() { runErr = run(logger) })
	if runErr != nil {
		closer.Fatalln(runErr)
	}
	closer.Close()
}

func run(logger *log.Logger) error {
	settings := config.Default()
	if *configPath != "" {
		s, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		settings = s
	}

	// A signal stops the frame loop; the closer waits until teardown finished.
	quit := make(chan struct{})
	done := make(chan struct{})
	var quitOnce sync.Once
	closer.Bind(func() {
		quitOnce.Do(func() { close(quit) })
		<-done
	})
	defer close(done)

	var (
		window  *glfw.Window
		program *terrainProgram
		dev     *glbackend.Device
		err     error
	)
	mainthread.Call(func() {
		if err = glfw.Init(); err != nil {
			return
		}
		if window, err = setupWindow(); err != nil {
			return
		}
		dev = glbackend.New()
		program, err = newTerrainProgram()
	})
	if err != nil {
		mainthread.Call(glfw.Terminate)
		return errors.Wrap(err, "terrainview: setup")
	}
	defer mainthread.Call(func() {
		program.delete()
		window.Destroy()
		glfw.Terminate()
	})

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
		var cerr error
		mainthread.Call(func() { cerr = engine.Close() })
		if cerr != nil {
			logger.Printf("close: %v", cerr)
		}
	}()

	if err := engine.Preload(world.ChunkCoord{}, 2); err != nil {
		logger.Printf("preload: %v", err)
	}

	cam := &flyer{pos: mgl32.Vec3{8, float32(settings.SeaLevel + 18), 8}}
	mainthread.Call(func() { setupInput(window, engine, cam, logger) })

	last := time.Now()
	frames := 0
	lastFPS := time.Now()
	for {
		select {
		case <-quit:
			return nil
		default:
		}

		var (
			shouldClose bool
			frameErr    error
		)
		mainthread.Call(func() {
			prof.ResetFrame()
			now := time.Now()
			dt := now.Sub(last).Seconds()
			last = now

			cam.advance(dt, engine)
			frameErr = drawFrame(window, program, dev, engine, cam)
			shouldClose = window.ShouldClose()

			if dur := time.Since(now); dur > *slowFrame {
				logger.Printf("Slow frame: %v. Top tasks: %s", dur, prof.TopN(5))
			}
		})
		if frameErr != nil {
			return frameErr
		}
		if shouldClose {
			return nil
		}

		frames++
		if time.Since(lastFPS) >= time.Second {
			st := engine.Stats()
			logger.Printf("FPS: %d resident=%d meshed=%d pending=%d", frames, st.Resident, st.Meshed, engine.PendingTaskCount())
			frames = 0
			lastFPS = time.Now()
		}
	}
}

func setupWindow() (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)

	window, err := glfw.CreateWindow(windowWidth, windowHeight, "terrainview", nil, nil)
	if err != nil {
		return nil, err
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		return nil, err
	}
	glfw.SwapInterval(1)

	gl.Enable(gl.DEPTH_TEST)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0.55, 0.72, 0.92, 1)
	return window, nil
}

func setupInput(window *glfw.Window, e *streaming.Engine, cam *flyer, logger *log.Logger) {
	// Left click digs the block the camera looks at, right click places stone
	// in front of it.
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		hit := physics.Raycast(cam.pos, cam.target().Sub(cam.pos), physics.MinReachDistance, 64, e)
		if !hit.Hit {
			return
		}
		var err error
		switch button {
		case glfw.MouseButtonLeft:
			p := hit.HitPosition
			err = e.SetBlock(p[0], p[1], p[2], world.BlockTypeAir)
		case glfw.MouseButtonRight:
			p := hit.AdjacentPosition
			err = e.SetBlock(p[0], p[1], p[2], world.BlockTypeStone)
		}
		if err != nil {
			logger.Printf("edit: %v", err)
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		s := e.Settings()
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyEqual, glfw.KeyKPAdd:
			e.SetViewDistance(s.ViewDistance + 1)
		case glfw.KeyMinus, glfw.KeyKPSubtract:
			e.SetViewDistance(s.ViewDistance - 1)
		case glfw.KeyV:
			e.SetVegetation(!s.VegetationEnabled, s.VegetationDensity)
		}
	})
}

// drawFrame streams, draws and presents one frame. Runs on the main thread.
func drawFrame(window *glfw.Window, program *terrainProgram, dev *glbackend.Device, e *streaming.Engine, cam *flyer) error {
	farClip := float32((e.ViewDistance() + 1) * world.ChunkSizeX)
	fbw, fbh := window.GetFramebufferSize()
	aspect := float32(fbw) / float32(max(fbh, 1))

	proj := mgl32.Perspective(mgl32.DegToRad(fovy), aspect, nearClip, farClip)
	view := mgl32.LookAtV(cam.pos, cam.target(), mgl32.Vec3{0, 1, 0})
	mvp := proj.Mul4(view)
	frustum := geom.FrustumFromMatrix(mvp)

	if err := e.Update(cam.pos, frustum, dev.CurrentFrameIndex()); err != nil {
		return err
	}

	gl.Viewport(0, 0, int32(fbw), int32(fbh))
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	program.use(mvp)

	visible := e.VisibleChunks(frustum)
	var water []*gpu.MeshHandle
	for _, c := range visible {
		solid, wet := c.AcquireMeshes()
		if solid != nil {
			solid.Buffer().(*glbackend.Buffer).Draw()
			solid.Release()
		}
		if wet != nil {
			water = append(water, wet)
		}
	}

	// Water goes last, blended over the solid pass.
	gl.Enable(gl.BLEND)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.DepthMask(false)
	for _, h := range water {
		h.Buffer().(*glbackend.Buffer).Draw()
		h.Release()
	}
	gl.DepthMask(true)
	gl.Disable(gl.BLEND)

	window.SwapBuffers()
	glfw.PollEvents()
	dev.EndFrame()
	return nil
}
