package marching

import "github.com/go-gl/mathgl/mgl32"

// Ray represents a ray in 3D space
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// At returns the point at distance t along the ray
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// RayIntersectTriangle tests if a ray intersects a triangle
// Returns: (intersected, distance)
// Uses Möller-Trumbore algorithm
func RayIntersectTriangle(ray Ray, v0, v1, v2 mgl32.Vec3) (bool, float32) {
	const epsilon = 0.0000001

	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := ray.Direction.Cross(edge2)
	a := edge1.Dot(h)

	if a > -epsilon && a < epsilon {
		return false, 0 // Ray is parallel to triangle
	}

	f := 1.0 / a
	s := ray.Origin.Sub(v0)
	u := f * s.Dot(h)

	if u < 0.0 || u > 1.0 {
		return false, 0
	}

	q := s.Cross(edge1)
	v := f * ray.Direction.Dot(q)

	if v < 0.0 || u+v > 1.0 {
		return false, 0
	}

	t := f * edge2.Dot(q)
	if t > epsilon {
		return true, t
	}

	return false, 0 // Line intersection but not ray intersection
}

// RayIntersectBox tests a ray against an axis-aligned box using the slab method
// Returns: (intersected, entry distance)
func RayIntersectBox(ray Ray, lo, hi mgl32.Vec3) (bool, float32) {
	tmin := float32(0)
	tmax := float32(3.4e38)

	for k := 0; k < 3; k++ {
		d := ray.Direction[k]
		if d > -1e-12 && d < 1e-12 {
			if ray.Origin[k] < lo[k] || ray.Origin[k] > hi[k] {
				return false, 0
			}
			continue
		}
		inv := 1 / d
		t0 := (lo[k] - ray.Origin[k]) * inv
		t1 := (hi[k] - ray.Origin[k]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = max(tmin, t0)
		tmax = min(tmax, t1)
		if tmin > tmax {
			return false, 0
		}
	}
	return true, tmin
}

// RayIntersectMesh returns the closest hit of ray against mesh, whose vertices are offset by origin.
func RayIntersectMesh(ray Ray, mesh *Mesh, origin mgl32.Vec3) (bool, float32) {
	local := Ray{Origin: ray.Origin.Sub(origin), Direction: ray.Direction}

	hit := false
	best := float32(0)
	for i := 0; i < mesh.TriangleCount(); i++ {
		a, b, c := mesh.Triangle(i)
		ok, t := RayIntersectTriangle(local, a, b, c)
		if ok && (!hit || t < best) {
			hit, best = true, t
		}
	}
	return hit, best
}
