package density

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Source yields the scalar field value at a world-space sample position.
// Implementations must be safe for concurrent use once initialised.
type Source interface {
	Sample(x, y, z float32) float32
}

// Initializer is implemented by sources carrying state that needs one-time setup.
type Initializer interface {
	Initialize() error
}

// Init runs src's one-time setup if it has any.
func Init(src Source) error {
	if i, ok := src.(Initializer); ok {
		return i.Initialize()
	}
	return nil
}

// Func adapts a plain function to Source.
type Func func(x, y, z float32) float32

func (f Func) Sample(x, y, z float32) float32 {
	return f(x, y, z)
}

// Constant returns the same value everywhere.
type Constant float32

func (c Constant) Sample(x, y, z float32) float32 {
	return float32(c)
}

// Plane is solid below Height: the density is the signed distance above the surface, negated.
type Plane struct {
	Height float32
}

func (p Plane) Sample(x, y, z float32) float32 {
	return p.Height - y
}

// Sphere is solid inside a ball.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

func (s Sphere) Sample(x, y, z float32) float32 {
	return s.Radius - mgl32.Vec3{x, y, z}.Sub(s.Center).Len()
}
