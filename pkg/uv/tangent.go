package uv

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const tangentEps = 1e-5

// computeTangents sets Tangent on every seam corner: the outward normal of
// the boundary at the corner, miter scaled so offsetting by it keeps a
// constant distance from both boundary edges.
func (w *Wrangler) computeTangents() {
	for cid, c := range w.Corners {
		c.Tangent = mgl64.Vec2{}
		if !c.IsCorner {
			continue
		}

		var seamNbrs []CornerID
		interior := NoCorner
		for _, ei := range c.Edges {
			e := w.Edges[ei]
			other := e.Other(CornerID(cid))
			if !e.Seam {
				if interior == NoCorner {
					interior = other
				}
				continue
			}
			dup := false
			for _, n := range seamNbrs {
				dup = dup || n == other
			}
			if !dup {
				seamNbrs = append(seamNbrs, other)
			}
		}
		if len(seamNbrs) < 2 {
			w.log.Warn("orphaned uv corner", slog.Int("corner", cid), slog.Int("seam_neighbors", len(seamNbrs)))
			continue
		}

		c.Tangent = w.boundaryTangent(c, w.Corners[seamNbrs[0]].Co, w.Corners[seamNbrs[1]].Co)
		w.orientTangent(CornerID(cid), interior)
	}
}

func (w *Wrangler) boundaryTangent(c *Corner, v1, v2 mgl64.Vec2) mgl64.Vec2 {
	d1, d2 := v1.Sub(c.Co), v2.Sub(c.Co)
	if d1.Len() < tangentEps || d2.Len() < tangentEps {
		return mgl64.Vec2{}
	}
	t1 := d1.Normalize()
	t2 := d2.Normalize().Mul(-1)

	sum := t1.Add(t2)
	if sum.Len() < tangentEps {
		// The boundary folds back on itself.
		return t1.Mul(-1)
	}
	t3 := sum.Normalize()

	th := math.Acos(mgl64.Clamp(t1.Dot(t3), -1, 1))
	scale := 1.0
	if th > 1e-4 {
		scale = 1 / math.Max(math.Abs(math.Cos(th)), tangentEps)
	}
	return mgl64.Vec2{-t3[1], t3[0]}.Mul(scale)
}

// orientTangent flips the tangent of cid to point away from the island
// interior: away from a non-seam neighbour when there is one, otherwise
// away from the UV centroid of a face using the corner.
func (w *Wrangler) orientTangent(cid, interior CornerID) {
	c := w.Corners[cid]
	var out mgl64.Vec2
	if interior != NoCorner {
		out = c.Co.Sub(w.Corners[interior].Co)
	} else {
		if len(c.Loops) == 0 {
			return
		}
		f := w.Mesh.Loop(c.Loops[0]).F
		var cent mgl64.Vec2
		loops := w.Mesh.FaceLoops(f)
		for _, l := range loops {
			cent = cent.Add(w.Corners[w.loopCorner[l]].Co)
		}
		cent = cent.Mul(1 / float64(len(loops)))
		out = c.Co.Sub(cent)
	}
	if c.Tangent.Dot(out) < 0 {
		c.Tangent = c.Tangent.Mul(-1)
	}
}
