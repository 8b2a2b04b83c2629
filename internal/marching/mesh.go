package marching

import "github.com/go-gl/mathgl/mgl32"

// Mesh is a triangle soup: Indices holds one triple per triangle, each entry referencing Vertices.
// A Mesh is immutable once it has been handed to a sink.
type Mesh struct {
	Vertices []mgl32.Vec3
	Indices  []uint32
}

func (m *Mesh) TriangleCount() int {
	if m == nil {
		return 0
	}
	return len(m.Indices) / 3
}

func (m *Mesh) Empty() bool {
	return m == nil || len(m.Indices) == 0
}

// Triangle returns the three vertices of triangle i.
func (m *Mesh) Triangle(i int) (mgl32.Vec3, mgl32.Vec3, mgl32.Vec3) {
	return m.Vertices[m.Indices[3*i]], m.Vertices[m.Indices[3*i+1]], m.Vertices[m.Indices[3*i+2]]
}

// Bounds returns the axis-aligned box enclosing every vertex. ok is false for an empty mesh.
func (m *Mesh) Bounds() (lo, hi mgl32.Vec3, ok bool) {
	if m == nil || len(m.Vertices) == 0 {
		return lo, hi, false
	}
	lo, hi = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], v[k])
			hi[k] = max(hi[k], v[k])
		}
	}
	return lo, hi, true
}

// Normals returns one normal per vertex. Vertices are never shared between triangles, so
// every vertex takes its triangle's face normal, oriented toward decreasing density.
func (m *Mesh) Normals() []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, len(m.Vertices))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Triangle(i)
		n := c.Sub(a).Cross(b.Sub(a))
		if l := n.Len(); l > 0 {
			n = n.Mul(1 / l)
		}
		for k := 0; k < 3; k++ {
			normals[m.Indices[3*i+k]] = n
		}
	}
	return normals
}
