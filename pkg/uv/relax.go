package uv

import "github.com/chazu/uvkit/pkg/mesh"

// RelaxOptions tunes Relax.
type RelaxOptions struct {
	// BoundaryWeight is the self weight of seam corners. Pinned corners
	// add twice this per loop.
	BoundaryWeight float64
	Iterations     int
	// Pack repacks islands with selected loops afterwards.
	Pack bool
	// BuildFromSeams derives islands from mesh seams instead of UV
	// proximity.
	BuildFromSeams bool
}

// DefaultRelaxOptions returns the stock parameters.
func DefaultRelaxOptions() RelaxOptions {
	return RelaxOptions{BoundaryWeight: 400, Iterations: 1}
}

const minRelaxCorners = 5

// Relax smooths the UVs of the faces owning loops with a weighted
// Laplacian. Corners with no loop in the set stay where they are and do
// not pull on their neighbours; islands of fewer than five corners are
// left alone. It returns the Wrangler it built.
func Relax(m *mesh.Mesh, ref mesh.AttrRef, loops []mesh.LoopID, ro RelaxOptions, opts ...Option) *Wrangler {
	if len(loops) == 0 {
		for _, f := range m.Faces() {
			loops = append(loops, m.FaceLoops(f)...)
		}
	}
	inSet := make(map[mesh.LoopID]struct{}, len(loops))
	var faces []mesh.FaceID
	seenFace := make(map[mesh.FaceID]struct{})
	for _, l := range loops {
		inSet[l] = struct{}{}
		f := m.Loop(l).F
		if _, ok := seenFace[f]; !ok {
			seenFace[f] = struct{}{}
			faces = append(faces, f)
		}
	}

	w := NewWrangler(m, faces, ref, opts...)
	w.BuildIslands(ro.BuildFromSeams)

	fixed := make([]bool, len(w.Corners))
	for i, c := range w.Corners {
		fixed[i] = true
		for _, l := range c.Loops {
			if _, ok := inSet[l]; ok {
				fixed[i] = false
				break
			}
		}
	}

	iters := max(ro.Iterations, 1)
	for it := 0; it < iters; it++ {
		for _, is := range w.Islands() {
			if len(is.Corners) < minRelaxCorners {
				continue
			}
			for _, cid := range is.Corners {
				if fixed[cid] {
					continue
				}
				c := w.Corners[cid]
				wt := w.relaxWeight(c, ro.BoundaryWeight)

				sum, tot := c.Co.Mul(wt), wt
				for _, ei := range c.Edges {
					other := w.Edges[ei].Other(cid)
					if fixed[other] {
						continue
					}
					sum = sum.Add(w.Corners[other].Co)
					tot++
				}
				if tot > 0 {
					c.Co = sum.Mul(1 / tot)
				}
			}
			w.UpdateAABB(is)
		}
	}

	for _, f := range faces {
		m.SetFaceFlag(f, mesh.FlagUpdate, true)
	}
	if ro.Pack {
		po := DefaultPackOptions()
		po.IgnorePinned = true
		po.SelLoopsOnly = true
		w.PackIslands(po)
	}
	w.Finish()
	return w
}

func (w *Wrangler) relaxWeight(c *Corner, boundary float64) float64 {
	m := w.Mesh
	wt := 1.0
	for _, l := range c.Loops {
		lp := m.Loop(l)
		if c.IsCorner || lp.RadialNext == l || m.Edge(lp.E).Flag&mesh.FlagSeam != 0 {
			return boundary
		}
		if c.HasPins {
			wt += boundary * 2
		}
	}
	return wt
}
