package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// FaceNormal computes the unit normal of f with Newell's method. Degenerate
// faces get a zero vector.
func (m *Mesh) FaceNormal(f FaceID) mgl64.Vec3 {
	var n mgl64.Vec3
	for _, l := range m.FaceLoops(f) {
		a := m.verts[m.loops[l].V].Co
		b := m.verts[m.loops[m.loops[l].Next].V].Co
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	if n.Len() < 1e-12 {
		return mgl64.Vec3{}
	}
	return n.Normalize()
}

// FaceArea is the area of f summed over its fan triangulation.
func (m *Mesh) FaceArea(f FaceID) float64 {
	var area float64
	for _, t := range m.FaceTris(f) {
		area += TriArea(m.verts[m.loops[t[0]].V].Co, m.verts[m.loops[t[1]].V].Co, m.verts[m.loops[t[2]].V].Co)
	}
	return area
}

// FaceCentroid is the mean of the vertex positions of f.
func (m *Mesh) FaceCentroid(f FaceID) mgl64.Vec3 {
	var c mgl64.Vec3
	loops := m.FaceLoops(f)
	for _, l := range loops {
		c = c.Add(m.verts[m.loops[l].V].Co)
	}
	return c.Mul(1 / float64(len(loops)))
}

// RecalcNormals refreshes the cached normal of every face.
func (m *Mesh) RecalcNormals() {
	for _, f := range m.Faces() {
		m.faces[f].No = m.FaceNormal(f)
	}
}

// FaceTris fan-triangulates f into loop triples.
func (m *Mesh) FaceTris(f FaceID) [][3]LoopID {
	loops := m.FaceLoops(f)
	out := make([][3]LoopID, 0, len(loops)-2)
	for i := 1; i+1 < len(loops); i++ {
		out = append(out, [3]LoopID{loops[0], loops[i], loops[i+1]})
	}
	return out
}

// LoopTris triangulates every live face.
func (m *Mesh) LoopTris() [][3]LoopID {
	var out [][3]LoopID
	for _, f := range m.Faces() {
		out = append(out, m.FaceTris(f)...)
	}
	return out
}

// TriArea is the unsigned area of a 3D triangle.
func TriArea(a, b, c mgl64.Vec3) float64 {
	return b.Sub(a).Cross(c.Sub(a)).Len() * 0.5
}

// TriArea2 is the signed area of a 2D triangle, positive when
// counter-clockwise.
func TriArea2(a, b, c mgl64.Vec2) float64 {
	return ((b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1])) * 0.5
}

// Bounds returns the axis-aligned bounding box of all live vertices.
func (m *Mesh) Bounds() (min, max mgl64.Vec3) {
	min = mgl64.Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	max = mgl64.Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range m.Verts() {
		co := m.verts[v].Co
		for i := 0; i < 3; i++ {
			min[i] = math.Min(min[i], co[i])
			max[i] = math.Max(max[i], co[i])
		}
	}
	return min, max
}

// NormalBasis returns a rotation whose third column is n and whose first
// two columns span the plane perpendicular to it. Multiplying a point by
// the transpose projects it into that plane's coordinates.
func NormalBasis(n mgl64.Vec3) mgl64.Mat3 {
	n = n.Normalize()
	ref := mgl64.Vec3{1, 0, 0}
	if math.Abs(n[0]) > 0.9 {
		ref = mgl64.Vec3{0, 1, 0}
	}
	t := ref.Sub(n.Mul(n.Dot(ref))).Normalize()
	b := n.Cross(t)
	return mgl64.Mat3FromCols(t, b, n)
}
