package render

import (
	"sync"

	"MarchingTerrain/internal/logger"
	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// MeshStats provides debugging and profiling information
type MeshStats struct {
	Published      int
	Released       int
	ActiveMeshes   int
	TotalVertices  int
	TotalTriangles int
}

// Entry is the mesh currently held for one chunk.
type Entry struct {
	Origin  mgl32.Vec3
	Mesh    *marching.Mesh
	Version int // number of times this coordinate has been published
}

// Registry is an in-memory Sink keeping the latest mesh of every live chunk.
type Registry struct {
	meshes map[voxel.Coord]Entry
	mu     sync.RWMutex
	stats  MeshStats
}

// NewRegistry creates an empty mesh registry
func NewRegistry() *Registry {
	return &Registry{
		meshes: make(map[voxel.Coord]Entry),
	}
}

func (r *Registry) Publish(coord voxel.Coord, origin mgl32.Vec3, mesh *marching.Mesh) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.meshes[coord]
	if exists {
		r.stats.TotalVertices -= len(prev.Mesh.Vertices)
		r.stats.TotalTriangles -= prev.Mesh.TriangleCount()
	} else {
		r.stats.ActiveMeshes++
	}

	r.meshes[coord] = Entry{Origin: origin, Mesh: mesh, Version: prev.Version + 1}
	r.stats.Published++
	r.stats.TotalVertices += len(mesh.Vertices)
	r.stats.TotalTriangles += mesh.TriangleCount()

	logger.Log.Debug("Mesh published",
		zap.Stringer("coord", coord),
		zap.Int("vertices", len(mesh.Vertices)),
		zap.Int("triangles", mesh.TriangleCount()),
		zap.Int("version", prev.Version+1))
	return nil
}

func (r *Registry) Release(coord voxel.Coord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.meshes[coord]
	if !exists {
		return
	}
	delete(r.meshes, coord)
	r.stats.Released++
	r.stats.ActiveMeshes--
	r.stats.TotalVertices -= len(prev.Mesh.Vertices)
	r.stats.TotalTriangles -= prev.Mesh.TriangleCount()

	logger.Log.Debug("Mesh released", zap.Stringer("coord", coord))
}

// Get returns the mesh held for coord.
func (r *Registry) Get(coord voxel.Coord) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.meshes[coord]
	return e, ok
}

// Coords returns every coordinate currently holding a mesh.
func (r *Registry) Coords() []voxel.Coord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]voxel.Coord, 0, len(r.meshes))
	for c := range r.meshes {
		out = append(out, c)
	}
	return out
}

// Stats returns current registry statistics
func (r *Registry) Stats() MeshStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// LogStats logs current registry statistics
func (r *Registry) LogStats() {
	stats := r.Stats()
	logger.Log.Info("Mesh registry statistics",
		zap.Int("published", stats.Published),
		zap.Int("released", stats.Released),
		zap.Int("activeMeshes", stats.ActiveMeshes),
		zap.Int("totalVertices", stats.TotalVertices),
		zap.Int("totalTriangles", stats.TotalTriangles))
}
