package voxel

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Coord is an integer lattice coordinate. It keys chunks and addresses samples.
type Coord struct {
	X, Y, Z int
}

func (c Coord) Add(o Coord) Coord {
	return Coord{c.X + o.X, c.Y + o.Y, c.Z + o.Z}
}

func (c Coord) Sub(o Coord) Coord {
	return Coord{c.X - o.X, c.Y - o.Y, c.Z - o.Z}
}

func (c Coord) Mul(k int) Coord {
	return Coord{c.X * k, c.Y * k, c.Z * k}
}

// Vec3 converts the coordinate to a float vector.
func (c Coord) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(c.X), float32(c.Y), float32(c.Z)}
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorDivCoord applies FloorDiv to every component.
func FloorDivCoord(c Coord, b int) Coord {
	return Coord{FloorDiv(c.X, b), FloorDiv(c.Y, b), FloorDiv(c.Z, b)}
}

// FloorVec returns the lattice cell containing p when every cell has edge length cell.
func FloorVec(p mgl32.Vec3, cell float32) Coord {
	return Coord{
		int(math.Floor(float64(p.X() / cell))),
		int(math.Floor(float64(p.Y() / cell))),
		int(math.Floor(float64(p.Z() / cell))),
	}
}

// RoundVec returns the lattice point nearest to p on a lattice of spacing step.
func RoundVec(p mgl32.Vec3, step float32) Coord {
	return Coord{
		int(math.Round(float64(p.X() / step))),
		int(math.Round(float64(p.Y() / step))),
		int(math.Round(float64(p.Z() / step))),
	}
}

// Neighborhood returns every coordinate of the axis-aligned cube of side 2r+1 around center,
// iterated x-major like the streaming recompute walks it.
func Neighborhood(center Coord, r int) []Coord {
	side := 2*r + 1
	out := make([]Coord, 0, side*side*side)
	for x := -r; x <= r; x++ {
		for y := -r; y <= r; y++ {
			for z := -r; z <= r; z++ {
				out = append(out, center.Add(Coord{x, y, z}))
			}
		}
	}
	return out
}
