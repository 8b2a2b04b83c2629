package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"MarchingTerrain/internal/config"
	"MarchingTerrain/internal/engine"
	"MarchingTerrain/internal/logger"
	"MarchingTerrain/internal/render"
	"MarchingTerrain/internal/terrain"
	"MarchingTerrain/internal/viewer"
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file (defaults when empty)")
		ticks      = flag.Int("ticks", 0, "number of ticks to simulate; 0 runs in real time until interrupted")
		outDir     = flag.String("out", "", "directory receiving chunk_x_y_z.mesh dumps")
		speed      = flag.Float64("speed", 10, "viewer speed in world units per second")
		dig        = flag.Float64("dig", 0, "radius of the tunnel carved below the viewer; 0 disables digging")
	)
	flag.Parse()

	if err := run(*configPath, *ticks, *outDir, float32(*speed), float32(*dig)); err != nil {
		fmt.Fprintln(os.Stderr, "terrain:", err)
		os.Exit(1)
	}
}

func run(configPath string, ticks int, outDir string, speed, dig float32) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.InitLevel(cfg.LogLevel)
	defer logger.Sync()

	src, err := cfg.Source()
	if err != nil {
		return err
	}

	registry := render.NewRegistry()
	sink := render.Sink(registry)
	if outDir != "" {
		files, err := render.NewFileSink(outDir)
		if err != nil {
			return err
		}
		sink = render.Tee(registry, files)
	}

	streamer, err := terrain.NewStreamer(cfg.StreamerOptions(src, sink))
	if err != nil {
		return err
	}
	defer streamer.Close()

	start := mgl32.Vec3{0, 2 * cfg.VoxelScale, 0}
	camera := viewer.NewDefaultCamera(start, 1280, 720)
	camera.Speed = speed
	camera.LookAt(start.Add(mgl32.Vec3{1, -1, 0}))

	gopher := engine.NewEngine(streamer, camera, cfg.TickRateHz)
	gopher.Realtime = ticks <= 0
	gopher.Behaviours.Add(&flyBehaviour{camera: camera})
	if dig > 0 {
		gopher.Behaviours.Add(&digBehaviour{camera: camera, streamer: streamer, radius: dig, air: cfg.Isolevel - 1})
	}
	gopher.Behaviours.Add(&statsBehaviour{registry: registry, streamer: streamer, camera: camera})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = gopher.Run(ctx, ticks)
	registry.LogStats()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// flyBehaviour moves the viewer forward at a constant altitude and sweeps its heading a little
// on every fixed update.
type flyBehaviour struct {
	camera *viewer.Camera
}

func (f *flyBehaviour) Start() {
	logger.Log.Info("Viewer taking off", zap.String("position", fmt.Sprint(f.camera.Position)))
}

func (f *flyBehaviour) Update(deltaTime float32) {
	altitude := f.camera.Position.Y()
	f.camera.Move(viewer.Forward, deltaTime, false)
	f.camera.Position[1] = altitude
}

func (f *flyBehaviour) UpdateFixed() {
	f.camera.ProcessMouseMovement(5, 0, true)
}

// digBehaviour carves an air pocket where the view ray meets the surface.
type digBehaviour struct {
	camera   *viewer.Camera
	streamer *terrain.Streamer
	radius   float32
	air      float32 // density written into the carved sphere
}

func (d *digBehaviour) Start() {}

func (d *digBehaviour) Update(deltaTime float32) {}

func (d *digBehaviour) UpdateFixed() {
	ray := d.camera.Ray()
	reach := d.streamer.ChunkSize() * 4
	hit, ok := d.streamer.Raycast(ray, reach)
	if !ok {
		return
	}
	carved := d.streamer.Carve(hit.Point, d.radius, d.air)
	logger.Log.Debug("Dug into terrain",
		zap.Stringer("chunk", hit.Coord),
		zap.Float32("distance", hit.Distance),
		zap.Int("samples", carved))
}

// statsBehaviour logs the published mesh totals and the number of live chunks inside the view
// frustum every fixed update.
type statsBehaviour struct {
	registry *render.Registry
	streamer *terrain.Streamer
	camera   *viewer.Camera
}

func (s *statsBehaviour) Start() {}

func (s *statsBehaviour) Update(deltaTime float32) {}

func (s *statsBehaviour) UpdateFixed() {
	stats := s.registry.Stats()
	live := s.streamer.Live()
	logger.Log.Debug("Terrain stats",
		zap.Int("live", len(live)),
		zap.Int("visible", visibleChunks(s.camera.CalculateFrustum(), live, s.streamer.ChunkSize())),
		zap.Int("pooled", s.streamer.PoolSize()),
		zap.Int("meshes", stats.ActiveMeshes),
		zap.Int("triangles", stats.TotalTriangles))
}

// visibleChunks counts the chunks whose bounding sphere touches the frustum.
func visibleChunks(frustum viewer.Frustum, coords []voxel.Coord, size float32) int {
	half := size / 2
	radius := half * float32(math.Sqrt(3))
	visible := 0
	for _, coord := range coords {
		centre := coord.Vec3().Mul(size).Add(mgl32.Vec3{half, half, half})
		if frustum.IntersectsSphere(centre, radius) {
			visible++
		}
	}
	return visible
}
