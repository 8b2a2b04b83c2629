package chunk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"MarchingTerrain/internal/logger"
	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/render"
	"MarchingTerrain/internal/voxel"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// ErrWorkerFailed wraps failures of population or triangulation. The chunk stays Dirty.
var ErrWorkerFailed = errors.New("chunk: worker failed")

// ErrNotLive is returned by coordinate-checked access to a chunk keyed elsewhere or recycled.
var ErrNotLive = errors.New("chunk: not live at coordinate")

// State is the position of a chunk in its regeneration cycle.
type State int32

const (
	Clean State = iota
	Dirty
	Regenerating
)

func (s State) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	case Regenerating:
		return "regenerating"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Env holds what every chunk of one world shares.
type Env struct {
	Source voxel.Sampler
	Sink   render.Sink

	// Pool runs population and triangulation. A nil pool runs both inline.
	Pool pond.Pool

	// ParallelPopulation splits population into z slabs, at most PopulationSlabs at once.
	ParallelPopulation bool
	PopulationSlabs    int
}

// Chunk owns the density samples of one lattice cell and the pipeline turning them into a mesh.
// Chunk is safe for concurrent SetDensity/Density calls; AssignCoordinate, Schedule, Await,
// Refresh and Deactivate belong to the single goroutine that owns the chunk.
type Chunk struct {
	env        *Env
	resolution int
	isolevel   float32
	scale      float32

	mu             sync.Mutex
	coord          voxel.Coord
	active         bool
	grid           *voxel.Grid
	snapshot       *voxel.Grid // triangulation reads this copy, never grid
	state          State
	editedInFlight bool
	needsPopulate  bool
	population     pond.Task
	meshing        *meshJob

	mesh atomic.Pointer[marching.Mesh]
}

type meshJob struct {
	coord voxel.Coord
	task  pond.Task // nil when triangulated inline
	mesh  *marching.Mesh
	err   error
}

func (j *meshJob) wait() (*marching.Mesh, error) {
	if j.task != nil {
		if err := j.task.Wait(); err != nil {
			return nil, err
		}
	}
	return j.mesh, j.err
}

// New allocates a chunk of resolution voxels per axis, (resolution+1)^3 samples.
func New(env *Env, resolution int, isolevel, scale float32) *Chunk {
	if resolution <= 0 {
		panic(fmt.Sprintf("chunk: invalid resolution %d", resolution))
	}
	if env.Sink == nil {
		env.Sink = render.Discard
	}
	return &Chunk{
		env:        env,
		resolution: resolution,
		isolevel:   isolevel,
		scale:      scale,
		grid:       voxel.NewCubeGrid(resolution + 1),
		snapshot:   voxel.NewCubeGrid(resolution + 1),
	}
}

// AssignCoordinate re-keys the chunk, repopulates its samples and marks it Dirty.
// Any in-flight work for the previous coordinate is joined first and its mesh discarded.
func (c *Chunk) AssignCoordinate(coord voxel.Coord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.joinLocked()
	c.coord = coord
	c.active = true
	c.state = Dirty
	c.editedInFlight = false
	c.mesh.Store(nil)

	if err := c.populateLocked(); err != nil {
		logger.Log.Error("Chunk population failed", zap.Stringer("coord", coord), zap.Error(err))
	}
	logger.Log.Debug("Chunk assigned", zap.Stringer("coord", coord))
}

// Refresh triangulates a Dirty chunk and publishes the mesh. It is a no-op for any other state.
func (c *Chunk) Refresh() error {
	scheduled, err := c.Schedule()
	if err != nil || !scheduled {
		return err
	}
	return c.Await()
}

// Schedule starts triangulating a Dirty chunk, on the pool when there is one, and moves it to
// Regenerating. It reports whether work was started; Await collects it.
func (c *Chunk) Schedule() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Dirty || c.meshing != nil {
		return false, nil
	}
	if err := c.ensurePopulatedLocked(); err != nil {
		return false, err
	}

	c.snapshot.CopyFrom(c.grid)
	c.state = Regenerating
	c.editedInFlight = false

	job := &meshJob{coord: c.coord}
	snapshot, isolevel, scale := c.snapshot, c.isolevel, c.scale
	if c.env.Pool != nil {
		job.task = c.env.Pool.SubmitErr(func() error {
			job.mesh = marching.Triangulate(snapshot, isolevel, scale)
			return nil
		})
	} else {
		job.mesh, job.err = triangulateInline(snapshot, isolevel, scale)
	}
	c.meshing = job
	return true, nil
}

// Await joins the triangulation started by Schedule and hands the mesh to the sink.
// The chunk becomes Clean, or Dirty again if it was edited while regenerating or if the
// work failed.
func (c *Chunk) Await() error {
	c.mu.Lock()
	job := c.meshing
	c.mu.Unlock()
	if job == nil {
		return nil
	}

	mesh, err := job.wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meshing != job {
		return nil
	}
	c.meshing = nil

	if err != nil {
		c.state = Dirty
		logger.Log.Error("Chunk triangulation failed", zap.Stringer("coord", job.coord), zap.Error(err))
		return fmt.Errorf("%w: triangulate %v: %v", ErrWorkerFailed, job.coord, err)
	}
	if err := c.env.Sink.Publish(c.coord, c.originLocked(), mesh); err != nil {
		c.state = Dirty
		return fmt.Errorf("publish %v: %w", c.coord, err)
	}

	c.mesh.Store(mesh)
	if c.editedInFlight {
		c.state = Dirty
	} else {
		c.state = Clean
	}
	c.editedInFlight = false
	return nil
}

// Deactivate joins in-flight work and releases the chunk's mesh from the sink so that the
// chunk can be recycled.
func (c *Chunk) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.joinLocked()
	if c.active {
		c.env.Sink.Release(c.coord)
	}
	c.active = false
	c.mesh.Store(nil)
	logger.Log.Debug("Chunk deactivated", zap.Stringer("coord", c.coord))
}

// Close joins any in-flight work.
func (c *Chunk) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joinLocked()
}

// Density returns the sample at local, each component in [0, resolution]. It fails when the
// samples of the current coordinate could not be populated.
func (c *Chunk) Density(local voxel.Coord) (float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.densityLocked(local)
}

// DensityAt is Density read only while the chunk is live at coord.
func (c *Chunk) DensityAt(coord voxel.Coord, local voxel.Coord) (float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.coord != coord {
		return 0, fmt.Errorf("%w: %v", ErrNotLive, coord)
	}
	return c.densityLocked(local)
}

// SetDensity overwrites the sample at local and marks the chunk Dirty. The edit is refused when
// the samples of the current coordinate could not be populated, since repopulation would wipe it.
func (c *Chunk) SetDensity(value float32, local voxel.Coord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setDensityLocked(value, local)
}

// SetDensityAt is SetDensity applied only while the chunk is live at coord.
func (c *Chunk) SetDensityAt(coord voxel.Coord, value float32, local voxel.Coord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.coord != coord {
		return fmt.Errorf("%w: %v", ErrNotLive, coord)
	}
	return c.setDensityLocked(value, local)
}

// Coordinate is the lattice coordinate the chunk is keyed by.
func (c *Chunk) Coordinate() voxel.Coord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.coord
}

// State reports where the chunk is in its regeneration cycle.
func (c *Chunk) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsDirty reports whether the published mesh may lag behind the samples.
func (c *Chunk) IsDirty() bool {
	return c.State() != Clean
}

// Active reports whether the chunk is assigned and not recycled.
func (c *Chunk) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Mesh returns the last published mesh, or nil.
func (c *Chunk) Mesh() *marching.Mesh {
	return c.mesh.Load()
}

// Origin is the world position of local sample (0,0,0).
func (c *Chunk) Origin() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.originLocked()
}

func (c *Chunk) originLocked() mgl32.Vec3 {
	return c.coord.Mul(c.resolution).Vec3().Mul(c.scale)
}

func (c *Chunk) densityLocked(local voxel.Coord) (float32, error) {
	c.checkLocal(local)
	if err := c.ensurePopulatedLocked(); err != nil {
		return 0, err
	}
	return c.grid.At(local.X, local.Y, local.Z), nil
}

func (c *Chunk) setDensityLocked(value float32, local voxel.Coord) error {
	c.checkLocal(local)
	if err := c.ensurePopulatedLocked(); err != nil {
		return err
	}
	c.grid.Set(local.X, local.Y, local.Z, value)
	c.markDirtyLocked()
	return nil
}

func (c *Chunk) markDirtyLocked() {
	if c.state == Regenerating {
		c.editedInFlight = true
		return
	}
	c.state = Dirty
}

func (c *Chunk) checkLocal(local voxel.Coord) {
	r := c.resolution
	if local.X < 0 || local.X > r || local.Y < 0 || local.Y > r || local.Z < 0 || local.Z > r {
		panic(fmt.Sprintf("chunk: local sample %v outside [0,%d]", local, r))
	}
}

func (c *Chunk) populateLocked() error {
	offset := c.coord.Mul(c.resolution)
	grid, src, slabs := c.grid, c.env.Source, c.env.PopulationSlabs
	c.needsPopulate = false

	var err error
	switch {
	case c.env.ParallelPopulation && c.env.Pool != nil:
		c.population = c.env.Pool.SubmitErr(func() error {
			return grid.PopulateParallel(context.Background(), src, offset, slabs)
		})
	case c.env.ParallelPopulation:
		err = grid.PopulateParallel(context.Background(), src, offset, slabs)
	default:
		err = grid.Populate(src, offset)
	}

	if err != nil {
		c.invalidateLocked()
		return fmt.Errorf("%w: populate %v: %v", ErrWorkerFailed, c.coord, err)
	}
	return nil
}

// ensurePopulatedLocked joins pending population and retries a failed one once.
func (c *Chunk) ensurePopulatedLocked() error {
	if err := c.joinPopulationLocked(); err == nil && !c.needsPopulate {
		return nil
	}
	if err := c.populateLocked(); err != nil {
		return err
	}
	return c.joinPopulationLocked()
}

// invalidateLocked discards samples left half-written, or left over from the previous
// coordinate, by a failed population. They stay unreadable until a population succeeds.
func (c *Chunk) invalidateLocked() {
	c.needsPopulate = true
	c.grid.Fill(float32(math.NaN()))
}

func (c *Chunk) joinPopulationLocked() error {
	if c.population == nil {
		return nil
	}
	task := c.population
	c.population = nil

	if err := task.Wait(); err != nil {
		c.invalidateLocked()
		logger.Log.Error("Chunk population failed", zap.Stringer("coord", c.coord), zap.Error(err))
		return fmt.Errorf("%w: populate %v: %v", ErrWorkerFailed, c.coord, err)
	}
	return nil
}

// joinLocked waits for all in-flight work. A pending mesh is discarded unpublished.
func (c *Chunk) joinLocked() {
	_ = c.joinPopulationLocked()
	if c.meshing != nil {
		_, _ = c.meshing.wait()
		c.meshing = nil
		if c.state == Regenerating {
			c.state = Dirty
		}
	}
}

func triangulateInline(grid *voxel.Grid, isolevel, scale float32) (mesh *marching.Mesh, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("triangulation panicked: %v", r)
		}
	}()
	return marching.Triangulate(grid, isolevel, scale), nil
}
