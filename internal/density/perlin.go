package density

import (
	"math"
	"math/rand"
)

// noiseField is improved Perlin gradient noise (Perlin 2002) over lattice sample positions.
// It is read-only after construction and safe for concurrent samplers.
type noiseField struct {
	perm [512]uint8 // doubled so corner hashes never wrap
}

// Gradients point at the twelve cube edge centres.
var gradients = [12][3]float32{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

func newNoiseField(seed int64) *noiseField {
	n := &noiseField{}
	rng := rand.New(rand.NewSource(seed))
	for i, v := range rng.Perm(256) {
		n.perm[i] = uint8(v)
		n.perm[256+i] = uint8(v)
	}
	return n
}

// fade is the quintic 6t^5 - 15t^4 + 10t^3
func fade(t float32) float32 {
	return t * t * t * (t*(t*6-15) + 10)
}

func lerp(t, a, b float32) float32 {
	return a + t*(b-a)
}

func (n *noiseField) corner(hash uint8, x, y, z float32) float32 {
	g := gradients[hash%12]
	return g[0]*x + g[1]*y + g[2]*z
}

// at returns noise in roughly [-1, 1] at a sample position; it is zero on integer points.
func (n *noiseField) at(x, y, z float32) float32 {
	fx, fy, fz := floor32(x), floor32(y), floor32(z)
	X, Y, Z := int(fx)&255, int(fy)&255, int(fz)&255
	x, y, z = x-fx, y-fy, z-fz
	u, v, w := fade(x), fade(y), fade(z)

	p := &n.perm
	a := int(p[X]) + Y
	aa, ab := int(p[a])+Z, int(p[a+1])+Z
	b := int(p[X+1]) + Y
	ba, bb := int(p[b])+Z, int(p[b+1])+Z

	return lerp(w,
		lerp(v,
			lerp(u, n.corner(p[aa], x, y, z), n.corner(p[ba], x-1, y, z)),
			lerp(u, n.corner(p[ab], x, y-1, z), n.corner(p[bb], x-1, y-1, z))),
		lerp(v,
			lerp(u, n.corner(p[aa+1], x, y, z-1), n.corner(p[ba+1], x-1, y, z-1)),
			lerp(u, n.corner(p[ab+1], x, y-1, z-1), n.corner(p[bb+1], x-1, y-1, z-1))))
}

// height sums octaves of the y=0 slice at column (x, z), halving amplitude and doubling
// frequency each octave. The result is normalised to [-1, 1].
func (n *noiseField) height(x, z float32, octaves int) float32 {
	var sum, norm float32
	amplitude, frequency := float32(1), float32(1)
	for i := 0; i < octaves; i++ {
		sum += n.at(x*frequency, 0, z*frequency) * amplitude
		norm += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

func floor32(v float32) float32 {
	return float32(math.Floor(float64(v)))
}
