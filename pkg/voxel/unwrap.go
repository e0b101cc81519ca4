package voxel

import (
	"fmt"
	"math"
	"slices"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/uv"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

// chartGap separates charts on the shelves, in units where the charts'
// total box area is 1.
const chartGap = 0.02

// Result reports what Unwrap did.
type Result struct {
	Charts   []*Chart
	Wrangler *uv.Wrangler
	// Seams is the number of mesh edges newly flagged SEAM.
	Seams int
}

// Unwrap segments faces into charts, projects each chart onto the plane
// of its average normal, shelves the charts, optionally marks the edges
// between charts as seams and finally packs the resulting islands into
// the unit square of layer ref.
func Unwrap(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, opts Options, uvopts ...uv.Option) (*Result, error) {
	if !ref.Exists() {
		return nil, fmt.Errorf("voxel: unwrap: %w", mesh.ErrNoUVLayer)
	}
	if len(faces) == 0 {
		faces = m.Faces()
	}
	log := uv.LoggerOf(uvopts...)
	bvh := Build(m, faces, opts)
	charts := bvh.Charts(m)
	log.Debug("voxel charts", "faces", len(faces), "charts", len(charts), "leaves", len(bvh.Leaves()))

	boxes := make([]chartBox, len(charts))
	for i, c := range charts {
		boxes[i] = project(m, ref, c)
	}
	shelve(m, ref, charts, boxes)

	res := &Result{Charts: charts}
	if opts.SetSeams {
		res.Seams = markSeams(m, charts)
	}

	w := uv.NewWrangler(m, faces, ref, uvopts...)
	w.BuildIslands(false)
	w.PackIslands(uv.DefaultPackOptions())
	w.Finish()
	res.Wrangler = w
	return res, nil
}

type chartBox struct {
	min, size mgl64.Vec2
}

// project writes the planar projection of every loop of c into ref and
// returns the projected bounds.
func project(m *mesh.Mesh, ref mesh.AttrRef, c *Chart) chartBox {
	inv := mesh.NormalBasis(c.Normal).Transpose()
	bmin := mgl64.Vec2{math.Inf(1), math.Inf(1)}
	bmax := mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for _, f := range c.Faces {
		for _, l := range m.FaceLoops(f) {
			p := inv.Mul3x1(m.Vert(m.Loop(l).V).Co)
			q := mgl64.Vec2{p[0], p[1]}
			m.UV(ref, l).UV = q
			bmin = mgl64.Vec2{math.Min(bmin[0], q[0]), math.Min(bmin[1], q[1])}
			bmax = mgl64.Vec2{math.Max(bmax[0], q[0]), math.Max(bmax[1], q[1])}
		}
	}
	return chartBox{min: bmin, size: bmax.Sub(bmin)}
}

// shelve scales the charts so their boxes total unit area and lays them
// out left to right in rows, tallest first.
func shelve(m *mesh.Mesh, ref mesh.AttrRef, charts []*Chart, boxes []chartBox) {
	total := lo.SumBy(boxes, func(b chartBox) float64 { return b.size[0] * b.size[1] })
	scale := 1.0
	if total > 0 {
		scale = 1 / math.Sqrt(total)
	}

	order := make([]int, len(charts))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ha, hb := boxes[a].size[1], boxes[b].size[1]
		switch {
		case ha > hb:
			return -1
		case ha < hb:
			return 1
		}
		return 0
	})

	rowWidth := 1.0
	for _, b := range boxes {
		rowWidth = math.Max(rowWidth, b.size[0]*scale)
	}

	x, y, rowH := 0.0, 0.0, 0.0
	for _, i := range order {
		w, h := boxes[i].size[0]*scale, boxes[i].size[1]*scale
		if x > 0 && x+w > rowWidth {
			x, y, rowH = 0, y+rowH+chartGap, 0
		}
		off := mgl64.Vec2{x, y}
		for _, f := range charts[i].Faces {
			for _, l := range m.FaceLoops(f) {
				u := m.UV(ref, l)
				u.UV = u.UV.Sub(boxes[i].min).Mul(scale).Add(off)
			}
		}
		x += w + chartGap
		rowH = math.Max(rowH, h)
	}
}

// markSeams flags every edge whose loops run between faces of different
// charts, or to a face outside all charts, and returns how many edges were
// newly flagged.
func markSeams(m *mesh.Mesh, charts []*Chart) int {
	chartOf := make(map[mesh.FaceID]int)
	for i, c := range charts {
		for _, f := range c.Faces {
			chartOf[f] = i
		}
	}
	n := 0
	for i, c := range charts {
		for _, f := range c.Faces {
			for _, l := range m.FaceLoops(f) {
				r := m.Loop(l).RadialNext
				if r == l {
					continue
				}
				other, ok := chartOf[m.Loop(r).F]
				if ok && other == i {
					continue
				}
				e := m.Edge(m.Loop(l).E)
				if e.Flag&mesh.FlagSeam == 0 {
					e.Flag |= mesh.FlagSeam
					n++
				}
			}
		}
	}
	return n
}
