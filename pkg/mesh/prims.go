package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Procedural meshes. Each carries a DefaultUVLayer; planar primitives get
// UVs equal to their XY positions.

func mustFace(m *Mesh, vs ...VertID) FaceID {
	f, err := m.MakeFace(vs)
	if err != nil {
		panic(err)
	}
	return f
}

func planarUVs(m *Mesh, ref AttrRef) {
	for _, f := range m.Faces() {
		for _, l := range m.FaceLoops(f) {
			co := m.verts[m.loops[l].V].Co
			m.UV(ref, l).UV = mgl64.Vec2{co[0], co[1]}
		}
	}
}

// Quad is the unit square split into two triangles along the (0,0)-(1,1)
// diagonal.
func Quad() *Mesh {
	m := New()
	m.Name = "quad"
	ref := m.AddUVLayer(DefaultUVLayer)
	v0 := m.MakeVert(mgl64.Vec3{0, 0, 0})
	v1 := m.MakeVert(mgl64.Vec3{1, 0, 0})
	v2 := m.MakeVert(mgl64.Vec3{1, 1, 0})
	v3 := m.MakeVert(mgl64.Vec3{0, 1, 0})
	mustFace(m, v0, v1, v2)
	mustFace(m, v0, v2, v3)
	planarUVs(m, ref)
	return m
}

// Grid is an n×n grid of unit quads in the XY plane.
func Grid(n int) *Mesh {
	if n < 1 {
		n = 1
	}
	m := New()
	m.Name = "grid"
	ref := m.AddUVLayer(DefaultUVLayer)
	vs := make([]VertID, (n+1)*(n+1))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			vs[y*(n+1)+x] = m.MakeVert(mgl64.Vec3{float64(x), float64(y), 0})
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*(n+1) + x
			mustFace(m, vs[i], vs[i+1], vs[i+n+2], vs[i+n+1])
		}
	}
	planarUVs(m, ref)
	return m
}

// HexFan is a regular hexagon of six unit equilateral triangles around a
// centre vertex.
func HexFan() *Mesh {
	m := New()
	m.Name = "hexfan"
	ref := m.AddUVLayer(DefaultUVLayer)
	c := m.MakeVert(mgl64.Vec3{0, 0, 0})
	ring := make([]VertID, 6)
	for i := range ring {
		th := float64(i) * math.Pi / 3
		ring[i] = m.MakeVert(mgl64.Vec3{math.Cos(th), math.Sin(th), 0})
	}
	for i := range ring {
		mustFace(m, c, ring[i], ring[(i+1)%6])
	}
	planarUVs(m, ref)
	return m
}

// Cube is a unit cube of six quads with outward normals. Every face gets
// its own unit square in UV space, so each face is an island.
func Cube() *Mesh {
	m := New()
	m.Name = "cube"
	ref := m.AddUVLayer(DefaultUVLayer)
	var vs [8]VertID
	for i := range vs {
		vs[i] = m.MakeVert(mgl64.Vec3{float64(i & 1), float64((i >> 1) & 1), float64((i >> 2) & 1)})
	}
	quads := [6][4]int{
		{0, 2, 3, 1}, // -z
		{4, 5, 7, 6}, // +z
		{0, 1, 5, 4}, // -y
		{2, 6, 7, 3}, // +y
		{0, 4, 6, 2}, // -x
		{1, 3, 7, 5}, // +x
	}
	corners := [4]mgl64.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, q := range quads {
		f := mustFace(m, vs[q[0]], vs[q[1]], vs[q[2]], vs[q[3]])
		for i, l := range m.FaceLoops(f) {
			m.UV(ref, l).UV = corners[i]
		}
	}
	return m
}
