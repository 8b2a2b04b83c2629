package render

import (
	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"
)

// Sink receives chunk meshes for rendering or collision. Every Publish is a full replacement
// of whatever the sink holds for coord. Release tells the sink the chunk left the streamed region.
// Publish may be called from several goroutines for different coordinates.
type Sink interface {
	Publish(coord voxel.Coord, origin mgl32.Vec3, mesh *marching.Mesh) error
	Release(coord voxel.Coord)
}

// Discard drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Publish(voxel.Coord, mgl32.Vec3, *marching.Mesh) error { return nil }
func (discard) Release(voxel.Coord)                                 {}

// Tee fans every call out to all sinks.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Publish(coord voxel.Coord, origin mgl32.Vec3, mesh *marching.Mesh) error {
	var err error
	for _, s := range t {
		err = multierr.Append(err, s.Publish(coord, origin, mesh))
	}
	return err
}

func (t tee) Release(coord voxel.Coord) {
	for _, s := range t {
		s.Release(coord)
	}
}
