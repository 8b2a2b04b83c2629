package terrain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"MarchingTerrain/internal/chunk"
	"MarchingTerrain/internal/density"
	"MarchingTerrain/internal/logger"
	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/render"
	"MarchingTerrain/internal/voxel"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNotStreamed is returned by lookups that resolve to a chunk outside the live region.
var ErrNotStreamed = errors.New("terrain: chunk not streamed")

// InlineWorkers disables the worker pool: population and triangulation run on the caller.
const InlineWorkers = -1

type Options struct {
	Resolution     int
	Isolevel       float32
	Scale          float32
	RenderDistance int

	ParallelPopulation bool
	PopulationSlabs    int

	// Workers bounds the pool. Zero means GOMAXPROCS, InlineWorkers means no pool.
	Workers int

	Source density.Source
	Sink   render.Sink
}

func (o Options) validate() error {
	switch {
	case o.Resolution <= 0:
		return fmt.Errorf("terrain: resolution must be positive, got %d", o.Resolution)
	case !(o.Scale > 0):
		return fmt.Errorf("terrain: voxel scale must be positive, got %g", o.Scale)
	case o.RenderDistance < 0:
		return fmt.Errorf("terrain: render distance must not be negative, got %d", o.RenderDistance)
	case o.Workers < InlineWorkers:
		return fmt.Errorf("terrain: invalid worker count %d", o.Workers)
	case o.Source == nil:
		return errors.New("terrain: no density source")
	}
	return nil
}

// Streamer keeps the cube of chunks around a reference coordinate live, recycling the chunks
// that fall out of range. Recompute, Refresh and Close must be called from one goroutine;
// edits and lookups may come from any goroutine.
type Streamer struct {
	opts Options
	env  *chunk.Env
	pool pond.Pool

	live atomic.Pointer[map[voxel.Coord]*chunk.Chunk]

	mu      sync.Mutex
	free    []*chunk.Chunk
	pooled  map[*chunk.Chunk]struct{}
	center  voxel.Coord
	started bool
}

// NewStreamer initialises the density source once and starts the worker pool. No chunk is live
// until the first Update or Recompute.
func NewStreamer(opts Options) (*Streamer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.Sink == nil {
		opts.Sink = render.Discard
	}
	if err := density.Init(opts.Source); err != nil {
		return nil, fmt.Errorf("terrain: initialize density source: %w", err)
	}

	s := &Streamer{
		opts:   opts,
		pooled: make(map[*chunk.Chunk]struct{}),
	}
	switch opts.Workers {
	case InlineWorkers:
	case 0:
		s.pool = pond.NewPool(runtime.GOMAXPROCS(0))
	default:
		s.pool = pond.NewPool(opts.Workers)
	}
	s.env = &chunk.Env{
		Source:             opts.Source,
		Sink:               opts.Sink,
		Pool:               s.pool,
		ParallelPopulation: opts.ParallelPopulation,
		PopulationSlabs:    opts.PopulationSlabs,
	}
	empty := make(map[voxel.Coord]*chunk.Chunk)
	s.live.Store(&empty)

	logger.Log.Info("Terrain streamer created",
		zap.Int("resolution", opts.Resolution),
		zap.Float32("scale", opts.Scale),
		zap.Int("renderDistance", opts.RenderDistance),
		zap.Int("workers", opts.Workers))
	return s, nil
}

// ChunkSize is the world-space edge length of one chunk.
func (s *Streamer) ChunkSize() float32 {
	return float32(s.opts.Resolution) * s.opts.Scale
}

// CoordinateOf returns the coordinate of the chunk containing pos.
func (s *Streamer) CoordinateOf(pos mgl32.Vec3) voxel.Coord {
	return voxel.FloorVec(pos, s.ChunkSize())
}

// Update recomputes the live region when pos has moved into another chunk. It reports whether
// a recompute happened.
func (s *Streamer) Update(pos mgl32.Vec3) bool {
	coord := s.CoordinateOf(pos)

	s.mu.Lock()
	moved := !s.started || coord != s.center
	s.mu.Unlock()

	if moved {
		s.Recompute(coord)
	}
	return moved
}

// Recompute makes the neighborhood of center exactly the live set. Chunks leaving the region are
// deactivated and queued for reuse before any new coordinate is assigned, and the new mapping is
// published in one swap.
func (s *Streamer) Recompute(center voxel.Coord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := *s.live.Load()
	wanted := voxel.Neighborhood(center, s.opts.RenderDistance)

	next := make(map[voxel.Coord]*chunk.Chunk, len(wanted))
	for _, coord := range wanted {
		if c, ok := old[coord]; ok {
			next[coord] = c
		}
	}
	kept := len(next)

	released := 0
	for coord, c := range old {
		if _, ok := next[coord]; !ok {
			s.recycle(c)
			released++
		}
	}

	created := 0
	for _, coord := range wanted {
		if _, ok := next[coord]; ok {
			continue
		}
		c, fresh := s.acquire()
		if fresh {
			created++
		}
		c.AssignCoordinate(coord)
		next[coord] = c
	}

	s.live.Store(&next)
	s.center = center
	s.started = true

	logger.Log.Info("Live region recomputed",
		zap.Stringer("center", center),
		zap.Int("kept", kept),
		zap.Int("released", released),
		zap.Int("created", created),
		zap.Int("pooled", len(s.free)))
}

func (s *Streamer) recycle(c *chunk.Chunk) {
	if _, ok := s.pooled[c]; ok {
		return
	}
	c.Deactivate()
	s.pooled[c] = struct{}{}
	s.free = append(s.free, c)
}

func (s *Streamer) acquire() (*chunk.Chunk, bool) {
	if len(s.free) == 0 {
		return chunk.New(s.env, s.opts.Resolution, s.opts.Isolevel, s.opts.Scale), true
	}
	c := s.free[0]
	s.free[0] = nil
	s.free = s.free[1:]
	delete(s.pooled, c)
	return c, false
}

// Refresh schedules every dirty live chunk, then joins them all. Failures are collected and the
// failed chunks stay dirty for the next call. Once ctx is done no new work is scheduled.
func (s *Streamer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := *s.live.Load()
	var errs error
	scheduled := make([]*chunk.Chunk, 0, len(live))
	for _, coord := range sortedCoords(live) {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		ok, err := live[coord].Schedule()
		errs = multierr.Append(errs, err)
		if ok {
			scheduled = append(scheduled, live[coord])
		}
	}
	for _, c := range scheduled {
		errs = multierr.Append(errs, c.Await())
	}

	if len(scheduled) > 0 {
		logger.Log.Debug("Chunks refreshed", zap.Int("count", len(scheduled)), zap.Error(errs))
	}
	return errs
}

type target struct {
	coord voxel.Coord
	local voxel.Coord
}

// owners lists every chunk storing sample, with the sample's local index in each. Boundary
// samples are shared by up to eight chunks.
func (s *Streamer) owners(sample voxel.Coord) []target {
	n := s.opts.Resolution
	out := make([]target, 0, 8)
	for _, corner := range marching.CubeCorners {
		offset := voxel.Coord{X: corner[0], Y: corner[1], Z: corner[2]}
		coord := voxel.FloorDivCoord(sample.Sub(offset), n)
		dup := false
		for _, t := range out {
			if t.coord == coord {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, target{coord: coord, local: sample.Sub(coord.Mul(n))})
	}
	return out
}

// SampleOf returns the lattice sample nearest to pos.
func (s *Streamer) SampleOf(pos mgl32.Vec3) voxel.Coord {
	return voxel.RoundVec(pos, s.opts.Scale)
}

// SetDensity writes value to the sample nearest pos in every live chunk sharing it. Chunks that
// are not live, or whose samples failed to populate, are skipped. It returns the number of
// chunks edited.
func (s *Streamer) SetDensity(value float32, pos mgl32.Vec3) int {
	return s.setSample(*s.live.Load(), s.SampleOf(pos), value)
}

func (s *Streamer) setSample(live map[voxel.Coord]*chunk.Chunk, sample voxel.Coord, value float32) int {
	edited := 0
	for _, t := range s.owners(sample) {
		c, ok := live[t.coord]
		if !ok {
			continue
		}
		err := c.SetDensityAt(t.coord, value, t.local)
		switch {
		case err == nil:
			edited++
		case !errors.Is(err, chunk.ErrNotLive):
			logger.Log.Warn("Edit dropped", zap.Stringer("coord", t.coord), zap.Error(err))
		}
	}
	return edited
}

// Density returns the sample nearest pos. It fails with ErrNotStreamed outside the live region
// and with chunk.ErrWorkerFailed when the owning chunk could not be populated.
func (s *Streamer) Density(pos mgl32.Vec3) (float32, error) {
	sample := s.SampleOf(pos)
	coord := voxel.FloorDivCoord(sample, s.opts.Resolution)

	c, ok := (*s.live.Load())[coord]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrNotStreamed, coord)
	}
	d, err := c.DensityAt(coord, sample.Sub(coord.Mul(s.opts.Resolution)))
	if errors.Is(err, chunk.ErrNotLive) {
		return 0, fmt.Errorf("%w: %v", ErrNotStreamed, coord)
	}
	return d, err
}

// Chunk returns the live chunk containing pos.
func (s *Streamer) Chunk(pos mgl32.Vec3) (*chunk.Chunk, error) {
	coord := s.CoordinateOf(pos)
	c, ok := (*s.live.Load())[coord]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNotStreamed, coord)
	}
	return c, nil
}

// Carve writes value to every sample within radius of center and returns the number of samples
// that reached at least one live chunk.
func (s *Streamer) Carve(center mgl32.Vec3, radius, value float32) int {
	live := *s.live.Load()
	step := s.opts.Scale
	reach := mgl32.Vec3{radius, radius, radius}
	lo := voxel.FloorVec(center.Sub(reach), step)
	hi := voxel.FloorVec(center.Add(reach), step).Add(voxel.Coord{X: 1, Y: 1, Z: 1})

	touched := 0
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				sample := voxel.Coord{X: x, Y: y, Z: z}
				if sample.Vec3().Mul(step).Sub(center).Len() > radius {
					continue
				}
				if s.setSample(live, sample, value) > 0 {
					touched++
				}
			}
		}
	}
	return touched
}

// Hit is the closest surface point found by Raycast.
type Hit struct {
	Coord    voxel.Coord
	Distance float32
	Point    mgl32.Vec3
}

// Raycast intersects ray with the published meshes of the live chunks, up to maxDistance.
func (s *Streamer) Raycast(ray marching.Ray, maxDistance float32) (Hit, bool) {
	best := Hit{Distance: float32(math.Inf(1))}
	found := false

	for coord, c := range *s.live.Load() {
		mesh := c.Mesh()
		if mesh.Empty() {
			continue
		}
		origin := c.Origin()
		lo, hi, _ := mesh.Bounds()
		if ok, entry := marching.RayIntersectBox(ray, lo.Add(origin), hi.Add(origin)); !ok || entry > best.Distance || entry > maxDistance {
			continue
		}
		ok, t := marching.RayIntersectMesh(ray, mesh, origin)
		if ok && t <= maxDistance && t < best.Distance {
			best = Hit{Coord: coord, Distance: t, Point: ray.At(t)}
			found = true
		}
	}
	return best, found
}

// Center returns the reference coordinate of the live region.
func (s *Streamer) Center() voxel.Coord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center
}

// Live returns the live coordinates in x-major order.
func (s *Streamer) Live() []voxel.Coord {
	return sortedCoords(*s.live.Load())
}

// PoolSize is the number of chunks waiting for reuse.
func (s *Streamer) PoolSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.free)
}

// Close joins all chunk work and stops the worker pool.
func (s *Streamer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range *s.live.Load() {
		c.Close()
	}
	for _, c := range s.free {
		c.Close()
	}
	if s.pool != nil {
		s.pool.StopAndWait()
	}
	logger.Log.Info("Terrain streamer closed")
}

func sortedCoords(m map[voxel.Coord]*chunk.Chunk) []voxel.Coord {
	out := make([]voxel.Coord, 0, len(m))
	for coord := range m {
		out = append(out, coord)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
	return out
}
