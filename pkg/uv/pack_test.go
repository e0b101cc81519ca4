package uv

import (
	"math"
	"testing"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const packTol = 1e-9

func assertInUnitSquare(t *testing.T, w *Wrangler, is *Island) {
	t.Helper()
	for _, cid := range is.Corners {
		co := w.Corner(cid).Co
		assert.GreaterOrEqual(t, co[0], -packTol, "island %d", is.Index)
		assert.GreaterOrEqual(t, co[1], -packTol, "island %d", is.Index)
		assert.LessOrEqual(t, co[0], 1+packTol, "island %d", is.Index)
		assert.LessOrEqual(t, co[1], 1+packTol, "island %d", is.Index)
	}
}

func TestPackContainment(t *testing.T) {
	for _, n := range []int{1, 2, 7, 40} {
		m, ref := scatteredQuads(n)
		w := NewWrangler(m, nil, ref, WithSeed(42))
		w.BuildIslands(false)
		require.Len(t, w.Islands(), n)

		w.PackIslands(DefaultPackOptions())
		for _, is := range w.Islands() {
			assertInUnitSquare(t, w, is)
		}

		pairs, err := OverlapPairs(w.Islands())
		require.NoError(t, err)
		assert.Empty(t, pairs, "n=%d", n)
	}
}

func TestPackIsDeterministicPerSeed(t *testing.T) {
	layout := func(seed uint64) []mgl64.Vec2 {
		m, ref := scatteredQuads(12)
		w := NewWrangler(m, nil, ref, WithSeed(seed))
		w.BuildIslands(false)
		w.PackIslands(DefaultPackOptions())
		var out []mgl64.Vec2
		for _, c := range w.Corners {
			out = append(out, c.Co)
		}
		return out
	}
	assert.Equal(t, layout(3), layout(3))
}

func TestPackPreservesIslandShape(t *testing.T) {
	m, ref := scatteredQuads(3)
	w := NewWrangler(m, nil, ref, WithSeed(1))
	w.BuildIslands(false)
	w.PackIslands(DefaultPackOptions())

	// Quads stay rectangles with their original aspect up to a quarter turn.
	wants := []float64{1, 2 / 1.5, 3}
	for i, is := range w.Islands() {
		aspect := is.BoxSize[0] / is.BoxSize[1]
		if aspect < 1 {
			aspect = 1 / aspect
		}
		assert.InDelta(t, wants[i], aspect, 1e-6, "island %d", i)
	}
}

func TestPackEligibility(t *testing.T) {
	m, ref := scatteredQuads(4)
	w := NewWrangler(m, nil, ref, WithSeed(1))

	pinned := m.FaceLoops(m.Faces()[0])[0]
	m.UV(ref, pinned).Flag |= mesh.UVPin
	sel := m.FaceLoops(m.Faces()[1])[0]
	m.Loop(sel).Flag |= mesh.FlagSelect
	w.BuildIslands(false)

	before := make([]mgl64.Vec2, len(w.Corners))
	for i, c := range w.Corners {
		before[i] = c.Co
	}

	opts := DefaultPackOptions()
	opts.IgnorePinned = true
	opts.SelLoopsOnly = true
	w.PackIslands(opts)

	for _, is := range w.Islands() {
		moved := false
		for _, cid := range is.Corners {
			moved = moved || !w.Corner(cid).Co.ApproxEqual(before[cid])
		}
		if is.HasSelLoops && !is.HasPins {
			assert.True(t, moved)
			assertInUnitSquare(t, w, is)
		} else {
			assert.False(t, moved, "island %d must not move", is.Index)
		}
	}
}

func TestMinimizeRotation(t *testing.T) {
	// A unit square rotated by 30 degrees packs back to an axis aligned box.
	m := mesh.Grid(1)
	ref := m.UVLayer(mesh.DefaultUVLayer)
	rot := mgl64.Rotate2D(math.Pi / 6)
	for _, l := range m.FaceLoops(m.Faces()[0]) {
		m.UV(ref, l).UV = rot.Mul2x1(m.UV(ref, l).UV)
	}
	w := NewWrangler(m, nil, ref)
	w.BuildIslands(false)
	is := w.Islands()[0]
	before := is.Area

	w.minimizeRotation(is, 12)
	assert.Less(t, is.Area, before)
	assert.InDelta(t, 1.0, is.Area, 1e-9)
}

func TestOverlapPairs(t *testing.T) {
	mk := func(i int, min, max mgl64.Vec2) *Island {
		return &Island{Index: i, Min: min, Max: max, BoxSize: max.Sub(min)}
	}
	a := mk(0, mgl64.Vec2{0, 0}, mgl64.Vec2{1, 1})
	b := mk(1, mgl64.Vec2{0.5, 0.5}, mgl64.Vec2{2, 2})
	c := mk(2, mgl64.Vec2{2, 0}, mgl64.Vec2{3, 1}) // touches b only at a corner
	d := mk(3, mgl64.Vec2{5, 5}, mgl64.Vec2{6, 6})

	pairs, err := OverlapPairs([]*Island{a, b, c, d})
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Same(t, a, pairs[0][0])
	assert.Same(t, b, pairs[0][1])
}
