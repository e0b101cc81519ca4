package mesh

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chazu/uvkit/pkg/kernel"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuadTopology(t *testing.T) {
	m := Quad()
	assert.Len(t, m.Verts(), 4)
	assert.Len(t, m.Edges(), 5)
	assert.Equal(t, 2, m.FaceCount())
	assert.Empty(t, Validate(m))

	boundary, interior := 0, 0
	for _, e := range m.Edges() {
		switch len(m.EdgeLoops(e)) {
		case 1:
			boundary++
		case 2:
			interior++
		}
	}
	assert.Equal(t, 4, boundary)
	assert.Equal(t, 1, interior)
}

func TestRadialPartnersShareEdge(t *testing.T) {
	m := Grid(3)
	for _, f := range m.Faces() {
		for _, l := range m.FaceLoops(f) {
			r := m.Loop(l).RadialNext
			assert.Equal(t, m.Loop(l).E, m.Loop(r).E)
			if r != l {
				// Consistently wound neighbours run the edge in opposite directions.
				assert.Equal(t, m.Loop(l).V, m.Loop(m.Loop(r).Next).V)
			}
		}
	}
}

func TestEIDLookup(t *testing.T) {
	m := Quad()
	for _, f := range m.Faces() {
		got, ok := m.FaceByEID(m.Face(f).EID)
		require.True(t, ok)
		assert.Equal(t, f, got)
		for _, l := range m.FaceLoops(f) {
			gl, ok := m.LoopByEID(m.Loop(l).EID)
			require.True(t, ok)
			assert.Equal(t, l, gl)
		}
	}
	_, ok := m.LoopByEID(m.Face(0).EID)
	assert.False(t, ok, "face EID must not resolve as a loop")
}

func TestKillFace(t *testing.T) {
	m := Quad()
	f := m.Faces()[1]
	eid := m.Face(f).EID
	loopEIDs := []EID{}
	for _, l := range m.FaceLoops(f) {
		loopEIDs = append(loopEIDs, m.Loop(l).EID)
	}

	m.KillFace(f)
	assert.Equal(t, 1, m.FaceCount())
	assert.False(t, m.FaceAlive(f))
	_, ok := m.FaceByEID(eid)
	assert.False(t, ok)
	for _, id := range loopEIDs {
		_, ok := m.LoopByEID(id)
		assert.False(t, ok)
	}
	// The diagonal is now a boundary of the remaining triangle.
	for _, l := range m.FaceLoops(m.Faces()[0]) {
		assert.True(t, m.IsBoundary(l))
	}
	assert.Empty(t, Validate(m))
}

func TestMakeFaceRejectsDegenerate(t *testing.T) {
	m := New()
	a := m.MakeVert(mgl64.Vec3{})
	b := m.MakeVert(mgl64.Vec3{1, 0, 0})
	_, err := m.MakeFace([]VertID{a, b})
	assert.True(t, errors.Is(err, ErrInvariant))
	_, err = m.MakeFace([]VertID{a, b, a})
	assert.True(t, errors.Is(err, ErrInvariant))
}

func TestFaceGeometry(t *testing.T) {
	m := Grid(1)
	f := m.Faces()[0]
	assert.InDelta(t, 1.0, m.FaceArea(f), 1e-12)
	assert.InDelta(t, 1.0, m.Face(f).No.Z(), 1e-12)
	c := m.FaceCentroid(f)
	assert.InDelta(t, 0.5, c.X(), 1e-12)
	assert.InDelta(t, 0.5, c.Y(), 1e-12)
	assert.Len(t, m.FaceTris(f), 2)
}

func TestCubeNormalsPointOutward(t *testing.T) {
	m := Cube()
	centre := mgl64.Vec3{0.5, 0.5, 0.5}
	for _, f := range m.Faces() {
		out := m.FaceCentroid(f).Sub(centre)
		assert.Greater(t, m.Face(f).No.Dot(out), 0.0, "face %d", f)
	}
	assert.Empty(t, Validate(m))
}

func TestNormalBasisProjectsIntoPlane(t *testing.T) {
	for _, n := range []mgl64.Vec3{{0, 0, 1}, {1, 0, 0}, {0.3, -0.4, 0.8}} {
		basis := NormalBasis(n)
		inv := basis.Transpose()
		p := inv.Mul3x1(n.Normalize())
		assert.InDelta(t, 0, p.X(), 1e-12)
		assert.InDelta(t, 0, p.Y(), 1e-12)
		assert.InDelta(t, 1, p.Z(), 1e-12)
		assert.InDelta(t, 1, basis.Det(), 1e-12, "basis must be right handed")
	}
	// The +Z basis is the identity so planar UVs survive projection.
	assert.True(t, NormalBasis(mgl64.Vec3{0, 0, 1}).ApproxEqual(mgl64.Ident3()))
}

func TestUVLayers(t *testing.T) {
	m := Quad()
	ref := m.UVLayer(DefaultUVLayer)
	require.True(t, ref.Exists())
	assert.False(t, m.UVLayer("missing").Exists())
	assert.Equal(t, ref, m.AddUVLayer(DefaultUVLayer))

	second := m.AddUVLayer("lightmap")
	assert.NotEqual(t, ref, second)
	assert.Equal(t, "lightmap", m.UVLayerName(second))

	// New loops grow every layer.
	v := m.MakeVert(mgl64.Vec3{2, 0, 0})
	f, err := m.MakeFace([]VertID{m.Verts()[1], v, m.Verts()[2]})
	require.NoError(t, err)
	for _, l := range m.FaceLoops(f) {
		m.UV(second, l).Flag |= UVPin
		assert.True(t, m.UV(second, l).Pinned())
		assert.False(t, m.UV(ref, l).Pinned())
	}
}

func TestValidateReportsNaNUV(t *testing.T) {
	m := Quad()
	ref := m.UVLayer(DefaultUVLayer)
	l := m.FaceLoops(m.Faces()[0])[0]
	m.UV(ref, l).UV = mgl64.Vec2{math.NaN(), 0}
	findings := Validate(m)
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityWarning, findings[0].Severity)
	assert.False(t, HasErrors(findings))
}

func TestValidateReportsBrokenCycle(t *testing.T) {
	m := Quad()
	f := m.Faces()[0]
	m.Face(f).Len = 2
	findings := Validate(m)
	require.True(t, HasErrors(findings))
	assert.True(t, errors.Is(findings[0], ErrInvariant))
}

func TestFromKernel(t *testing.T) {
	km := &kernel.Mesh{
		Positions: []float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0, 2, 0, 0},
		Indices:   []uint32{0, 1, 2, 0, 2, 3, 1, 4, 4},
		Name:      "soup",
	}
	m, err := FromKernel(km)
	require.NoError(t, err)
	assert.Equal(t, "soup", m.Name)
	assert.Equal(t, 2, m.FaceCount(), "repeated-vertex triangle is skipped")
	assert.True(t, m.UVLayer(DefaultUVLayer).Exists())

	_, err = FromKernel(&kernel.Mesh{})
	assert.True(t, errors.Is(err, ErrInvariant))
}

func TestOBJRoundTrip(t *testing.T) {
	m := Cube()
	ref := m.UVLayer(DefaultUVLayer)
	var buf bytes.Buffer
	require.NoError(t, WriteOBJ(&buf, m, ref))
	assert.Equal(t, 24, strings.Count(buf.String(), "\nvt "))

	back, err := ReadOBJ(&buf)
	require.NoError(t, err)
	assert.Equal(t, "cube", back.Name)
	assert.Equal(t, m.FaceCount(), back.FaceCount())
	assert.Len(t, back.Edges(), len(m.Edges()))

	bref := back.UVLayer(DefaultUVLayer)
	for i, f := range m.Faces() {
		bl := back.FaceLoops(back.Faces()[i])
		for j, l := range m.FaceLoops(f) {
			assert.Equal(t, m.UV(ref, l).UV, back.UV(bref, bl[j]).UV)
		}
	}
}

func TestReadOBJErrors(t *testing.T) {
	_, err := ReadOBJ(strings.NewReader("v 0 0 0\nf 1 2 3\n"))
	assert.Error(t, err)
	_, err = ReadOBJ(strings.NewReader("v 0 0\n"))
	assert.Error(t, err)
}
