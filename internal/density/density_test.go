package density

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestPrimitives(t *testing.T) {
	if got := (Plane{Height: 4}).Sample(0, 1, 0); got != 3 {
		t.Errorf("Plane below the surface = %f, want 3", got)
	}
	if got := (Plane{Height: 4}).Sample(9, 6, -9); got != -2 {
		t.Errorf("Plane above the surface = %f, want -2", got)
	}

	s := Sphere{Center: mgl32.Vec3{1, 1, 1}, Radius: 2}
	if got := s.Sample(1, 1, 1); got != 2 {
		t.Errorf("Sphere center = %f, want 2", got)
	}
	if got := s.Sample(1, 5, 1); got != -2 {
		t.Errorf("Sphere outside = %f, want -2", got)
	}

	if got := Constant(1.5).Sample(3, 4, 5); got != 1.5 {
		t.Errorf("Constant = %f, want 1.5", got)
	}
	if got := Func(func(x, y, z float32) float32 { return x * y * z }).Sample(2, 3, 4); got != 24 {
		t.Errorf("Func = %f, want 24", got)
	}
}

func TestInitOnlyTouchesInitializers(t *testing.T) {
	if err := Init(Constant(0)); err != nil {
		t.Errorf("Init on a stateless source failed: %v", err)
	}

	terrain := &Terrain{Seed: 3, Height: 10, Amplitude: 4}
	if err := Init(terrain); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if terrain.noise == nil {
		t.Error("Init should build the noise tables")
	}
}

func TestUninitializedNoisePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Sampling an uninitialized terrain should panic")
		}
	}()
	(&Terrain{}).Sample(0, 0, 0)
}

func TestTerrainIsSeeded(t *testing.T) {
	a := &Terrain{Seed: 42, Height: 16, Amplitude: 8}
	b := &Terrain{Seed: 42, Height: 16, Amplitude: 8}
	_ = a.Initialize()
	_ = b.Initialize()

	for _, p := range [][3]float32{{0, 0, 0}, {13, 5, -7}, {100, 16, 250}} {
		if a.Sample(p[0], p[1], p[2]) != b.Sample(p[0], p[1], p[2]) {
			t.Errorf("Same seed should give the same density at %v", p)
		}
	}

	// Far below the surface is solid, far above is empty.
	if a.Sample(5, -100, 5) <= 0 {
		t.Error("Deep underground should be solid")
	}
	if a.Sample(5, 200, 5) >= 0 {
		t.Error("High above should be empty")
	}
}

func TestFractal(t *testing.T) {
	f := &Fractal{Seed: 9, Amplitude: 2, Height: 8}
	if err := f.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if f.Sample(1, -50, 1) <= 0 {
		t.Error("Below the gradient should be solid")
	}
	if f.Sample(1, 80, 1) >= 0 {
		t.Error("Above the gradient should be empty")
	}
}

func TestNoiseFieldRange(t *testing.T) {
	noise := newNoiseField(1)

	if v := noise.at(3, 4, 5); v != 0 {
		t.Errorf("Noise at integer lattice points should be 0, got %f", v)
	}
	for i := 0; i < 200; i++ {
		x := float32(i) * 0.37
		if v := noise.at(x, x*0.5, -x*0.25); v < -1.5 || v > 1.5 {
			t.Fatalf("Noise out of range at %f: %f", x, v)
		}
		if h := noise.height(x, -x, 4); h < -1.5 || h > 1.5 {
			t.Fatalf("Height out of range at %f: %f", x, h)
		}
	}
	if newNoiseField(1).at(0.3, 0.6, 0.9) != noise.at(0.3, 0.6, 0.9) {
		t.Error("Same seed should give the same field")
	}
	if noise.height(1.5, 2.5, 0) != 0 {
		t.Error("Zero octaves should give a flat height")
	}
}

func TestRegistry(t *testing.T) {
	names := Available()
	want := []string{"constant", "fractal", "plane", "sphere", "terrain"}
	if len(names) < len(want) {
		t.Fatalf("Expected at least %d sources, got %v", len(want), names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("Available should be sorted, got %v", names)
		}
	}

	src, err := Create(Params{Kind: "plane", Height: 2})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := src.Sample(0, 0, 0); got != 2 {
		t.Errorf("Created plane = %f, want 2", got)
	}

	if _, err := Create(Params{Kind: "nope"}); err == nil {
		t.Error("Unknown kinds should fail")
	}
}
