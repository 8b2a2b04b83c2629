package marching

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestRayIntersectTriangle(t *testing.T) {
	ray := Ray{Origin: mgl32.Vec3{0.2, 5, 0.2}, Direction: mgl32.Vec3{0, -1, 0}}

	hit, dist := RayIntersectTriangle(ray, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 1, 0}, mgl32.Vec3{0, 1, 1})
	if !hit {
		t.Fatal("Expected ray to hit triangle")
	}
	if dist < 3.999 || dist > 4.001 {
		t.Errorf("Expected distance 4, got %f", dist)
	}

	miss := Ray{Origin: mgl32.Vec3{2, 5, 2}, Direction: mgl32.Vec3{0, -1, 0}}
	if hit, _ := RayIntersectTriangle(miss, mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 1, 0}, mgl32.Vec3{0, 1, 1}); hit {
		t.Error("Ray outside the triangle should miss")
	}
}

func TestRayIntersectBox(t *testing.T) {
	lo, hi := mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}

	hit, dist := RayIntersectBox(Ray{Origin: mgl32.Vec3{-2, 0.5, 0.5}, Direction: mgl32.Vec3{1, 0, 0}}, lo, hi)
	if !hit || dist < 1.999 || dist > 2.001 {
		t.Errorf("Expected hit at 2, got %v %f", hit, dist)
	}

	if hit, _ := RayIntersectBox(Ray{Origin: mgl32.Vec3{-2, 3, 0.5}, Direction: mgl32.Vec3{1, 0, 0}}, lo, hi); hit {
		t.Error("Parallel ray outside the slab should miss")
	}
	if hit, _ := RayIntersectBox(Ray{Origin: mgl32.Vec3{2, 0.5, 0.5}, Direction: mgl32.Vec3{1, 0, 0}}, lo, hi); hit {
		t.Error("Box behind the ray should miss")
	}
}

func TestRayIntersectMeshUsesOrigin(t *testing.T) {
	g := cubeGrid([8]float32{1, 1, 1, 1, 0, 0, 0, 0})
	mesh := Triangulate(g, 0.5, 1)
	origin := mgl32.Vec3{10, 0, 10}

	ray := Ray{Origin: mgl32.Vec3{10.3, 5, 10.7}, Direction: mgl32.Vec3{0, -1, 0}}
	hit, dist := RayIntersectMesh(ray, mesh, origin)
	if !hit {
		t.Fatal("Expected ray to hit the offset mesh")
	}
	if dist < 4.499 || dist > 4.501 {
		t.Errorf("Expected distance 4.5, got %f", dist)
	}

	if hit, _ := RayIntersectMesh(ray, mesh, mgl32.Vec3{}); hit {
		t.Error("Mesh at the origin should not be hit")
	}
}
