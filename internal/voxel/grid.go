package voxel

import "fmt"

// Grid is a dense 3D container of scalar samples addressed by x + y*SizeX + z*SizeX*SizeY.
type Grid struct {
	SizeX, SizeY, SizeZ int
	Data                []float32
}

// NewGrid allocates a zeroed grid. Every dimension must be positive.
func NewGrid(sizeX, sizeY, sizeZ int) *Grid {
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		panic(fmt.Sprintf("voxel: invalid grid size %dx%dx%d", sizeX, sizeY, sizeZ))
	}
	return &Grid{
		SizeX: sizeX,
		SizeY: sizeY,
		SizeZ: sizeZ,
		Data:  make([]float32, sizeX*sizeY*sizeZ),
	}
}

// NewCubeGrid allocates a grid with edge samples on every axis.
func NewCubeGrid(edge int) *Grid {
	return NewGrid(edge, edge, edge)
}

// Len is the number of samples held.
func (g *Grid) Len() int {
	return len(g.Data)
}

// InBounds reports whether (x, y, z) addresses a sample of g.
func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < g.SizeX && y >= 0 && y < g.SizeY && z >= 0 && z < g.SizeZ
}

// Index flattens (x, y, z). Out of range components are a programming error and panic.
func (g *Grid) Index(x, y, z int) int {
	if !g.InBounds(x, y, z) {
		panic(fmt.Sprintf("voxel: sample (%d,%d,%d) outside grid %dx%dx%d", x, y, z, g.SizeX, g.SizeY, g.SizeZ))
	}
	return x + y*g.SizeX + z*g.SizeX*g.SizeY
}

// At returns the sample at (x, y, z) and panics outside the grid.
func (g *Grid) At(x, y, z int) float32 {
	return g.Data[g.Index(x, y, z)]
}

// Set stores v at (x, y, z) and panics outside the grid.
func (g *Grid) Set(x, y, z int, v float32) {
	g.Data[g.Index(x, y, z)] = v
}

// CopyFrom overwrites g with the samples of src. Both grids must have the same shape.
func (g *Grid) CopyFrom(src *Grid) {
	if g.SizeX != src.SizeX || g.SizeY != src.SizeY || g.SizeZ != src.SizeZ {
		panic(fmt.Sprintf("voxel: copy between %dx%dx%d and %dx%dx%d grids",
			src.SizeX, src.SizeY, src.SizeZ, g.SizeX, g.SizeY, g.SizeZ))
	}
	copy(g.Data, src.Data)
}

// Fill sets every sample to v.
func (g *Grid) Fill(v float32) {
	for i := range g.Data {
		g.Data[i] = v
	}
}
