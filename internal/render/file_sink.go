package render

import (
	"fmt"
	"os"
	"path/filepath"

	"MarchingTerrain/internal/logger"
	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/meshio"
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// FileSink writes every published mesh to Dir as chunk_<x>_<y>_<z>.mesh, replacing the
// previous file for that chunk.
type FileSink struct {
	Dir string
}

func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mesh output dir: %w", err)
	}
	return &FileSink{Dir: dir}, nil
}

// Path returns the file holding coord's mesh.
func (s *FileSink) Path(coord voxel.Coord) string {
	return filepath.Join(s.Dir, fmt.Sprintf("chunk_%d_%d_%d.mesh", coord.X, coord.Y, coord.Z))
}

func (s *FileSink) Publish(coord voxel.Coord, origin mgl32.Vec3, mesh *marching.Mesh) error {
	path := s.Path(coord)
	if err := meshio.WriteFile(path, meshio.FromMesh(coord, origin, mesh)); err != nil {
		logger.Log.Error("Failed to write mesh", zap.String("path", path), zap.Error(err))
		return err
	}
	return nil
}

// Release keeps the last file written for coord.
func (s *FileSink) Release(coord voxel.Coord) {}
