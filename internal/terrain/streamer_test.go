package terrain

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"MarchingTerrain/internal/chunk"
	"MarchingTerrain/internal/density"
	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/render"
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

func newTestStreamer(t *testing.T, workers int, sink render.Sink) *Streamer {
	t.Helper()
	s, err := NewStreamer(Options{
		Resolution:     2,
		Isolevel:       0,
		Scale:          1,
		RenderDistance: 1,
		Workers:        workers,
		Source:         density.Plane{Height: 1.5},
		Sink:           sink,
	})
	if err != nil {
		t.Fatalf("NewStreamer failed: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func sameCoords(a, b []voxel.Coord) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[voxel.Coord]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	for _, c := range b {
		if !set[c] {
			return false
		}
	}
	return true
}

func TestStreamingInvariant(t *testing.T) {
	s := newTestStreamer(t, InlineWorkers, nil)

	if !s.Update(mgl32.Vec3{0.5, 0.5, 0.5}) {
		t.Fatal("First update did not recompute")
	}
	if !sameCoords(s.Live(), voxel.Neighborhood(voxel.Coord{}, 1)) {
		t.Fatalf("Live set %v is not the neighborhood of the origin", s.Live())
	}
	if s.Update(mgl32.Vec3{1.9, 1.9, 1.9}) {
		t.Error("Moving inside the same chunk recomputed")
	}

	before := make(map[*chunk.Chunk]bool)
	for _, c := range *s.live.Load() {
		before[c] = true
	}

	for _, pos := range []mgl32.Vec3{{2.5, 0, 0}, {6.1, -3, 0}, {-10, 4, 9}} {
		if !s.Update(pos) {
			t.Fatalf("Update to %v did not recompute", pos)
		}
		center := s.CoordinateOf(pos)
		if s.Center() != center {
			t.Errorf("Expected center %v, got %v", center, s.Center())
		}
		if !sameCoords(s.Live(), voxel.Neighborhood(center, 1)) {
			t.Errorf("Live set is not the neighborhood of %v", center)
		}
		for coord, c := range *s.live.Load() {
			if _, pooled := s.pooled[c]; pooled {
				t.Errorf("Chunk %v is both live and pooled", coord)
			}
			if c.Coordinate() != coord || !c.Active() {
				t.Errorf("Chunk keyed %v reports coordinate %v", coord, c.Coordinate())
			}
			if !before[c] {
				t.Errorf("Chunk %v was allocated instead of recycled", coord)
			}
		}
	}
	if s.PoolSize() != 0 {
		t.Errorf("Expected an empty pool at constant render distance, got %d", s.PoolSize())
	}
}

func TestRecycledChunksAreRepopulated(t *testing.T) {
	s := newTestStreamer(t, InlineWorkers, nil)
	s.Update(mgl32.Vec3{})
	s.Update(mgl32.Vec3{0, 2 * 5, 0})

	// Chunk y=4 holds lattice rows 8..10, all above the surface.
	d, err := s.Density(mgl32.Vec3{0, 9, 0})
	if err != nil {
		t.Fatal(err)
	}
	if d != -7.5 {
		t.Errorf("Expected density -7.5, got %f", d)
	}
}

func TestEditFanOut(t *testing.T) {
	s := newTestStreamer(t, InlineWorkers, nil)
	s.Update(mgl32.Vec3{})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if n := s.SetDensity(9, mgl32.Vec3{0.1, -0.2, 0}); n != 8 {
		t.Fatalf("Expected 8 edited chunks, got %d", n)
	}

	sharing := make(map[voxel.Coord]bool)
	for _, c := range voxel.Neighborhood(voxel.Coord{X: -1, Y: -1, Z: -1}, 1) {
		if c.X <= 0 && c.Y <= 0 && c.Z <= 0 && c.X >= -1 && c.Y >= -1 && c.Z >= -1 {
			sharing[c] = true
		}
	}
	if len(sharing) != 8 {
		t.Fatalf("Bad fixture: %d sharing chunks", len(sharing))
	}

	for coord, c := range *s.live.Load() {
		if c.IsDirty() != sharing[coord] {
			t.Errorf("Chunk %v dirty=%v, expected %v", coord, c.IsDirty(), sharing[coord])
		}
	}
	for coord := range sharing {
		c := (*s.live.Load())[coord]
		local := voxel.Coord{}.Sub(coord.Mul(2))
		if d, err := c.Density(local); err != nil || d != 9 {
			t.Errorf("Chunk %v holds %f at %v (%v)", coord, d, local, err)
		}
	}

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := s.SetDensity(3, mgl32.Vec3{1, 1, 1}); n != 1 {
		t.Errorf("Expected an interior sample to live in one chunk, got %d", n)
	}
	if n := s.SetDensity(3, mgl32.Vec3{2, 1, 1}); n != 2 {
		t.Errorf("Expected a face sample to live in two chunks, got %d", n)
	}
}

func TestEditsOutsideLiveRegionAreSkipped(t *testing.T) {
	s := newTestStreamer(t, InlineWorkers, nil)
	s.Update(mgl32.Vec3{})

	// Sample (4,4,4) is shared by chunks {1,2}^3; only (1,1,1) is streamed.
	if n := s.SetDensity(1, mgl32.Vec3{4, 4, 4}); n != 1 {
		t.Errorf("Expected 1 edited chunk, got %d", n)
	}
	if n := s.SetDensity(1, mgl32.Vec3{40, 0, 0}); n != 0 {
		t.Errorf("Expected no edited chunk, got %d", n)
	}
}

func TestLookupNotStreamed(t *testing.T) {
	s := newTestStreamer(t, InlineWorkers, nil)

	if _, err := s.Density(mgl32.Vec3{}); !errors.Is(err, ErrNotStreamed) {
		t.Errorf("Expected ErrNotStreamed before the first update, got %v", err)
	}

	s.Update(mgl32.Vec3{})
	d, err := s.Density(mgl32.Vec3{0.2, 0.4, -0.3})
	if err != nil || d != 1.5 {
		t.Errorf("Density = %f, %v; expected 1.5", d, err)
	}
	c, err := s.Chunk(mgl32.Vec3{-0.5, 3.9, 1})
	if err != nil || c.Coordinate() != (voxel.Coord{X: -1, Y: 1, Z: 0}) {
		t.Errorf("Chunk lookup returned %v, %v", c, err)
	}

	if _, err := s.Density(mgl32.Vec3{100, 0, 0}); !errors.Is(err, ErrNotStreamed) {
		t.Errorf("Expected ErrNotStreamed, got %v", err)
	}
	if _, err := s.Chunk(mgl32.Vec3{0, -100, 0}); !errors.Is(err, ErrNotStreamed) {
		t.Errorf("Expected ErrNotStreamed, got %v", err)
	}
}

func TestRefreshPublishesWithPool(t *testing.T) {
	reg := render.NewRegistry()
	s, err := NewStreamer(Options{
		Resolution:         4,
		Isolevel:           0,
		Scale:              0.5,
		RenderDistance:     1,
		ParallelPopulation: true,
		PopulationSlabs:    2,
		Workers:            4,
		Source:             density.Plane{Height: 2.5},
		Sink:               reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	s.Update(mgl32.Vec3{})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	stats := reg.Stats()
	if stats.ActiveMeshes != 27 || stats.Published != 27 {
		t.Fatalf("Expected 27 published meshes, got %+v", stats)
	}
	// Lattice rows 2..3 cross the surface: 4x4 columns per chunk, 3x3 chunks in y=0.
	if stats.TotalTriangles != 9*32 {
		t.Errorf("Expected %d triangles, got %d", 9*32, stats.TotalTriangles)
	}

	s.Update(mgl32.Vec3{2.1, 0, 0})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	stats = reg.Stats()
	if stats.Released != 9 || stats.ActiveMeshes != 27 || stats.Published != 36 {
		t.Errorf("Unexpected stats after moving one chunk: %+v", stats)
	}
	for _, coord := range reg.Coords() {
		if coord.X < 0 {
			t.Errorf("Mesh for %v still registered", coord)
		}
	}
}

func TestRaycastAndCarve(t *testing.T) {
	s := newTestStreamer(t, 2, nil)
	s.Update(mgl32.Vec3{})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	ray := marching.Ray{Origin: mgl32.Vec3{0.3, 5, 0.7}, Direction: mgl32.Vec3{0, -1, 0}}
	hit, ok := s.Raycast(ray, 100)
	if !ok {
		t.Fatal("Expected the ray to hit the ground")
	}
	if hit.Coord != (voxel.Coord{}) || mgl32.Abs(hit.Distance-3.5) > 1e-4 {
		t.Errorf("Unexpected hit %+v", hit)
	}
	if _, ok := s.Raycast(ray, 3); ok {
		t.Error("Hit reported beyond max distance")
	}

	if n := s.Carve(mgl32.Vec3{0, 1, 0}, 1, -1); n != 7 {
		t.Errorf("Expected 7 carved samples, got %d", n)
	}
	for _, pos := range []mgl32.Vec3{{0, 1, 0}, {1, 1, 0}, {0, 0, 0}, {0, 2, 0}, {0, 1, -1}} {
		if d, err := s.Density(pos); err != nil || d != -1 {
			t.Errorf("Density at %v = %f, %v", pos, d, err)
		}
	}
	if d, _ := s.Density(mgl32.Vec3{1, 0, 0}); d != 1.5 {
		t.Errorf("Sample outside the sphere was carved: %f", d)
	}
}

type countingSource struct {
	density.Plane
	inits int
}

func (c *countingSource) Initialize() error {
	c.inits++
	return nil
}

func TestNewStreamer(t *testing.T) {
	src := &countingSource{Plane: density.Plane{Height: 1}}
	s, err := NewStreamer(Options{Resolution: 2, Scale: 1, Workers: InlineWorkers, Source: src})
	if err != nil {
		t.Fatal(err)
	}
	s.Update(mgl32.Vec3{})
	s.Update(mgl32.Vec3{10, 0, 0})
	s.Close()
	if src.inits != 1 {
		t.Errorf("Expected one Initialize call, got %d", src.inits)
	}
	if len(s.Live()) != 1 {
		t.Errorf("Expected a single live chunk at render distance 0, got %d", len(s.Live()))
	}

	for _, opts := range []Options{
		{Resolution: 0, Scale: 1, Source: src},
		{Resolution: 2, Scale: 0, Source: src},
		{Resolution: 2, Scale: 1, RenderDistance: -1, Source: src},
		{Resolution: 2, Scale: 1, Workers: -2, Source: src},
		{Resolution: 2, Scale: 1},
	} {
		if _, err := NewStreamer(opts); err == nil {
			t.Errorf("Expected error for %+v", opts)
		}
	}
}

func TestFailedRepopulationIsNotServed(t *testing.T) {
	// Lattice columns at x >= 100 cannot be sampled.
	src := density.Func(func(x, y, z float32) float32 {
		if x >= 100 {
			panic("sampler offline")
		}
		return 7
	})

	for _, workers := range []int{InlineWorkers, 2} {
		s, err := NewStreamer(Options{
			Resolution:         2,
			Scale:              1,
			Workers:            workers,
			ParallelPopulation: workers > 0,
			Source:             src,
		})
		if err != nil {
			t.Fatal(err)
		}

		s.Update(mgl32.Vec3{})
		if d, err := s.Density(mgl32.Vec3{}); err != nil || d != 7 {
			t.Fatalf("Expected 7 at the origin, got %f (%v)", d, err)
		}

		// The only chunk is recycled to (50,0,0) and its population fails.
		s.Update(mgl32.Vec3{101, 0, 0})
		d, err := s.Density(mgl32.Vec3{101, 0, 0})
		if !errors.Is(err, chunk.ErrWorkerFailed) || errors.Is(err, ErrNotStreamed) {
			t.Errorf("workers=%d: expected ErrWorkerFailed, got %f (%v)", workers, d, err)
		}
		if n := s.SetDensity(1, mgl32.Vec3{101, 0, 0}); n != 0 {
			t.Errorf("workers=%d: edit accepted by an unpopulated chunk", workers)
		}
		if err := s.Refresh(context.Background()); !errors.Is(err, chunk.ErrWorkerFailed) {
			t.Errorf("workers=%d: expected refresh to report the failure, got %v", workers, err)
		}

		s.Update(mgl32.Vec3{})
		if d, err := s.Density(mgl32.Vec3{}); err != nil || d != 7 {
			t.Errorf("workers=%d: expected 7 after moving back, got %f (%v)", workers, d, err)
		}
		if err := s.Refresh(context.Background()); err != nil {
			t.Errorf("workers=%d: refresh failed: %v", workers, err)
		}
		s.Close()
	}
}

func TestConcurrentEditsDuringStreaming(t *testing.T) {
	const edited = -3
	ground := density.Plane{Height: 1.5}
	s, err := NewStreamer(Options{
		Resolution:         2,
		Scale:              1,
		RenderDistance:     1,
		Workers:            2,
		ParallelPopulation: true,
		PopulationSlabs:    2,
		Source:             ground,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.Update(mgl32.Vec3{})

	var (
		done   atomic.Bool
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []string
	)
	report := func(format string, args ...any) {
		errsMu.Lock()
		defer errsMu.Unlock()
		if len(errs) < 10 {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for !done.Load() {
				pos := mgl32.Vec3{
					float32(rng.Intn(16) - 4),
					float32(rng.Intn(6) - 3),
					float32(rng.Intn(6) - 3),
				}
				s.SetDensity(edited, pos)

				if d, err := s.Density(pos); err == nil {
					if d != edited && d != ground.Sample(0, pos.Y(), 0) {
						report("density %f at %v is neither generated nor edited", d, pos)
					}
				} else if !errors.Is(err, ErrNotStreamed) {
					report("density at %v: %v", pos, err)
				}

				live := s.Live()
				if len(live) != 27 || !sameCoords(live, voxel.Neighborhood(live[0].Add(voxel.Coord{X: 1, Y: 1, Z: 1}), 1)) {
					report("observed a partial live set of %d chunks", len(live))
				}

				s.Raycast(marching.Ray{Origin: pos.Add(mgl32.Vec3{0, 5, 0}), Direction: mgl32.Vec3{0, -1, 0}}, 20)
			}
		}(int64(g))
	}

	for i := 0; i < 60; i++ {
		s.Update(mgl32.Vec3{float32(i % 6), 0, 0})
		if err := s.Refresh(context.Background()); err != nil {
			t.Errorf("Refresh %d failed: %v", i, err)
		}
	}
	done.Store(true)
	wg.Wait()

	for _, e := range errs {
		t.Error(e)
	}
	if _, err := s.Density(mgl32.Vec3{}); err != nil {
		t.Errorf("Origin not streamed after the run: %v", err)
	}
}
