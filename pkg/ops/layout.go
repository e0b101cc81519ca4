package ops

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/uv"
	"github.com/go-gl/mathgl/mgl64"
)

// RandomScale is the width of the jitter RandomizeUVs applies.
const RandomScale = 0.1

// gridPad is the gap around a face in its GridUVs cell, as a fraction of
// the cell size.
const gridPad = 0.025

// resetCorners is the layout ResetUVs cycles through around a face.
var resetCorners = [4]mgl64.Vec2{{0, 0}, {0, 1}, {1, 1}, {1, 0}}

// SelectedFaces returns the selected, visible faces of m, or every visible
// face when nothing is selected.
func SelectedFaces(m *mesh.Mesh) []mesh.FaceID {
	var sel, vis []mesh.FaceID
	for _, f := range m.Faces() {
		fl := m.Face(f).Flag
		if fl&mesh.FlagHide != 0 {
			continue
		}
		vis = append(vis, f)
		if fl&mesh.FlagSelect != 0 {
			sel = append(sel, f)
		}
	}
	if len(sel) > 0 {
		return sel
	}
	return vis
}

// RandomizeUVs jitters the UVs of faces by up to RandomScale/2 on each
// axis. By default it moves UV graph corners, keeping merged loops
// together, and replaces NaN corners with a random point in the unit
// square. With all set every loop moves on its own.
func RandomizeUVs(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, all bool, rng *rand.Rand, opts ...uv.Option) error {
	if !ref.Exists() {
		return fmt.Errorf("ops: randomize uvs: %w", mesh.ErrNoUVLayer)
	}
	if rng == nil {
		rng = uv.NewRand(1)
	}
	jitter := func() mgl64.Vec2 {
		return mgl64.Vec2{(rng.Float64() - 0.5) * RandomScale, (rng.Float64() - 0.5) * RandomScale}
	}

	if all {
		for _, f := range faces {
			for _, l := range m.FaceLoops(f) {
				u := m.UV(ref, l)
				u.UV = u.UV.Add(jitter())
			}
			m.Face(f).Flag |= mesh.FlagUpdate
		}
		return nil
	}

	w := uv.NewWrangler(m, faces, ref, append(opts, uv.WithRand(rng))...)
	w.BuildIslands(false)
	for _, c := range w.Corners {
		if math.IsNaN(c.Co[0]) || math.IsNaN(c.Co[1]) {
			c.Co = mgl64.Vec2{rng.Float64(), rng.Float64()}
		}
		c.Co = c.Co.Add(jitter())
	}
	w.Finish()
	return nil
}

// ResetUVs gives every face the unit square, walking its loops through
// (0,0), (0,1), (1,1), (1,0) and starting over for longer polygons.
func ResetUVs(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef) error {
	if !ref.Exists() {
		return fmt.Errorf("ops: reset uvs: %w", mesh.ErrNoUVLayer)
	}
	for _, f := range faces {
		for i, l := range m.FaceLoops(f) {
			m.UV(ref, l).UV = resetCorners[i%len(resetCorners)]
		}
		m.Face(f).Flag |= mesh.FlagUpdate
	}
	return nil
}

// GridUVs places each face in its own cell of a square grid covering the
// unit square, in face order, row by row. The grid has ceil(sqrt(n/4))
// cells per side for n loops.
func GridUVs(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef) error {
	if !ref.Exists() {
		return fmt.Errorf("ops: grid uvs: %w", mesh.ErrNoUVLayer)
	}
	count := 0
	for _, f := range faces {
		count += m.Face(f).Len
	}
	if count == 0 {
		return nil
	}
	dimen := int(math.Ceil(math.Sqrt(float64(count) * 0.25)))
	cell := 1 / float64(dimen)
	pad := cell * gridPad

	for i, f := range faces {
		x := float64(i%dimen) * cell
		y := float64(i/dimen) * cell
		near, far := pad, cell-2*pad
		corners := [4]mgl64.Vec2{
			{x + near, y + near},
			{x + near, y + far},
			{x + far, y + far},
			{x + far, y + near},
		}
		for j, l := range m.FaceLoops(f) {
			m.UV(ref, l).UV = corners[j%len(corners)]
		}
		m.Face(f).Flag |= mesh.FlagUpdate
	}
	return nil
}
