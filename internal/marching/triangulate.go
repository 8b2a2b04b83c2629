package marching

import (
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
)

// Triangulate extracts the isosurface field == isolevel from grid. A corner is inside when
// its density is below isolevel. Every crossed edge emits its own vertex; nothing is shared
// between cubes or triangles. Local positions are multiplied by scale.
func Triangulate(grid *voxel.Grid, isolevel, scale float32) *Mesh {
	mesh := &Mesh{}

	var densities [8]float32
	for z := 0; z < grid.SizeZ-1; z++ {
		for y := 0; y < grid.SizeY-1; y++ {
			for x := 0; x < grid.SizeX-1; x++ {
				for i, c := range CubeCorners {
					densities[i] = grid.At(x+c[0], y+c[1], z+c[2])
				}
				polygonizeCube(mesh, voxel.Coord{X: x, Y: y, Z: z}, &densities, isolevel, scale)
			}
		}
	}
	return mesh
}

// Configuration packs the inside/outside classification of eight corner densities.
func Configuration(densities *[8]float32, isolevel float32) uint8 {
	var cube uint8
	for i, d := range densities {
		if d < isolevel {
			cube |= 1 << i
		}
	}
	return cube
}

func polygonizeCube(mesh *Mesh, origin voxel.Coord, densities *[8]float32, isolevel, scale float32) {
	cube := Configuration(densities, isolevel)
	if EdgeTable[cube] == 0 {
		return
	}

	row := &TriTable[cube]
	for i := 0; row[i] != -1; i += 3 {
		base := uint32(len(mesh.Vertices))
		for k := 0; k < 3; k++ {
			edge := EdgeCorners[row[i+k]]
			p := interpolateEdge(origin, edge[0], edge[1], densities, isolevel)
			mesh.Vertices = append(mesh.Vertices, p.Mul(scale))
		}
		mesh.Indices = append(mesh.Indices, base, base+1, base+2)
	}
}

func interpolateEdge(origin voxel.Coord, a, b int, densities *[8]float32, isolevel float32) mgl32.Vec3 {
	pa := cornerPosition(origin, a)
	pb := cornerPosition(origin, b)
	da, db := densities[a], densities[b]

	if da == db {
		return pa
	}
	t := mgl32.Clamp((isolevel-da)/(db-da), 0, 1)
	return pa.Add(pb.Sub(pa).Mul(t))
}

func cornerPosition(origin voxel.Coord, corner int) mgl32.Vec3 {
	c := CubeCorners[corner]
	return mgl32.Vec3{
		float32(origin.X + c[0]),
		float32(origin.Y + c[1]),
		float32(origin.Z + c[2]),
	}
}
