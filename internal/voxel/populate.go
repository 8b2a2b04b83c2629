package voxel

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Sampler yields the scalar field value at a world-space sample position.
type Sampler interface {
	Sample(x, y, z float32) float32
}

// ErrSamplerPanic reports a sampler that panicked while a grid was being populated.
var ErrSamplerPanic = errors.New("voxel: sampler panicked")

// Populate fills every sample (x, y, z) with src.Sample(offset.X+x, offset.Y+y, offset.Z+z).
// The caller must own the grid exclusively for the duration of the call.
func (g *Grid) Populate(src Sampler, offset Coord) (err error) {
	defer recoverSampler(&err)
	g.populateSlab(src, offset, 0, g.SizeZ)
	return nil
}

// PopulateParallel is Populate split into z slabs filled concurrently, at most limit at a time.
// A limit below one runs one slab per z layer with no bound.
func (g *Grid) PopulateParallel(ctx context.Context, src Sampler, offset Coord, limit int) error {
	eg, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}

	slabs := limit
	if slabs <= 0 || slabs > g.SizeZ {
		slabs = g.SizeZ
	}
	step := (g.SizeZ + slabs - 1) / slabs

	for z0 := 0; z0 < g.SizeZ; z0 += step {
		z0, z1 := z0, min(z0+step, g.SizeZ)
		eg.Go(func() (err error) {
			if err := ctx.Err(); err != nil {
				return err
			}
			defer recoverSampler(&err)
			g.populateSlab(src, offset, z0, z1)
			return nil
		})
	}
	return eg.Wait()
}

func (g *Grid) populateSlab(src Sampler, offset Coord, z0, z1 int) {
	for z := z0; z < z1; z++ {
		for y := 0; y < g.SizeY; y++ {
			row := y*g.SizeX + z*g.SizeX*g.SizeY
			for x := 0; x < g.SizeX; x++ {
				g.Data[row+x] = src.Sample(
					float32(offset.X+x),
					float32(offset.Y+y),
					float32(offset.Z+z),
				)
			}
		}
	}
}

func recoverSampler(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%w: %v", ErrSamplerPanic, r)
	}
}
