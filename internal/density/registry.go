package density

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Params configures a named source. Fields a source does not use are ignored.
type Params struct {
	Kind      string     `yaml:"kind" json:"kind"`
	Seed      int64      `yaml:"seed" json:"seed"`
	Height    float32    `yaml:"height" json:"height"`
	Amplitude float32    `yaml:"amplitude" json:"amplitude"`
	Frequency float32    `yaml:"frequency" json:"frequency"`
	Octaves   int        `yaml:"octaves" json:"octaves"`
	Radius    float32    `yaml:"radius" json:"radius"`
	Center    [3]float32 `yaml:"center" json:"center"`
	Value     float32    `yaml:"value" json:"value"`
}

type Constructor func(p Params) Source

var registry = make(map[string]Constructor)

func Register(name string, constructor Constructor) {
	registry[name] = constructor
}

// Available returns the registered source names in order.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the source registered under p.Kind.
func Create(p Params) (Source, error) {
	constructor, exists := registry[p.Kind]
	if !exists {
		return nil, fmt.Errorf("density: unknown source %q (available: %v)", p.Kind, Available())
	}
	return constructor(p), nil
}

func init() {
	Register("constant", func(p Params) Source { return Constant(p.Value) })
	Register("plane", func(p Params) Source { return Plane{Height: p.Height} })
	Register("sphere", func(p Params) Source {
		return Sphere{Center: mgl32.Vec3(p.Center), Radius: p.Radius}
	})
	Register("terrain", func(p Params) Source {
		return &Terrain{
			Seed:      p.Seed,
			Height:    p.Height,
			Amplitude: p.Amplitude,
			Frequency: p.Frequency,
			Octaves:   p.Octaves,
			Caves:     p.Amplitude / 4,
		}
	})
	Register("fractal", func(p Params) Source {
		return &Fractal{
			Seed:      p.Seed,
			Octaves:   int32(p.Octaves),
			Frequency: p.Frequency,
			Amplitude: p.Amplitude,
			Height:    p.Height,
		}
	})
}
