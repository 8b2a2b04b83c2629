package density

import (
	"errors"

	perlin "github.com/aquilax/go-perlin"
)

var errNotInitialized = errors.New("density: source used before Initialize")

// Terrain is rolling ground with caves: a 2D height field built from improved Perlin
// octaves, carved by 3D noise. Density is positive below the surface.
type Terrain struct {
	Seed      int64
	Height    float32 // mean surface height in sample units
	Amplitude float32 // height field amplitude
	Frequency float32 // noise frequency per sample
	Octaves   int
	Caves     float32 // cave carving strength, 0 disables

	noise *noiseField
}

func (t *Terrain) Initialize() error {
	if t.Octaves <= 0 {
		t.Octaves = 4
	}
	if t.Frequency <= 0 {
		t.Frequency = 0.02
	}
	t.noise = newNoiseField(t.Seed)
	return nil
}

func (t *Terrain) Sample(x, y, z float32) float32 {
	if t.noise == nil {
		panic(errNotInitialized)
	}
	f := t.Frequency
	d := t.Height + t.noise.height(x*f, z*f, t.Octaves)*t.Amplitude - y

	if t.Caves > 0 {
		d -= t.noise.at(x*f*2, y*f*2, z*f*2) * t.Caves
	}
	return d
}

// Fractal is 3D fractal noise from go-perlin, biased by a vertical gradient so that
// density falls off above Height.
type Fractal struct {
	Seed      int64
	Alpha     float64 // weight falloff between octaves
	Beta      float64 // frequency step between octaves
	Octaves   int32
	Frequency float32
	Amplitude float32
	Height    float32

	p *perlin.Perlin
}

func (f *Fractal) Initialize() error {
	if f.Alpha == 0 {
		f.Alpha = 2
	}
	if f.Beta == 0 {
		f.Beta = 2
	}
	if f.Octaves <= 0 {
		f.Octaves = 3
	}
	if f.Frequency <= 0 {
		f.Frequency = 0.05
	}
	f.p = perlin.NewPerlin(f.Alpha, f.Beta, f.Octaves, f.Seed)
	return nil
}

func (f *Fractal) Sample(x, y, z float32) float32 {
	if f.p == nil {
		panic(errNotInitialized)
	}
	k := float64(f.Frequency)
	n := f.p.Noise3D(float64(x)*k, float64(y)*k, float64(z)*k)
	return float32(n)*f.Amplitude + (f.Height - y)
}
