package ops

import (
	"fmt"
	"math"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/solver"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// seamSplit is the UV distance above which two loops on either side
	// of an edge count as split.
	seamSplit = 1e-4
	// seamPasses and seamGain drive the texel alignment solve.
	seamPasses = 100
	seamGain   = 1.0
)

// texelRound snaps a texel offset down to a whole texel, leaving a small
// allowance for offsets just under the next one.
func texelRound(n float64) float64 { return math.Floor(n + 0.01) }

// FixSeams nudges the UVs on both sides of every split edge of faces so
// that the offsets between matching loops are whole texels of a texSize
// texture. Pinned UVs stay put. It returns the number of seam edges and
// the residual error, in squared texels.
func FixSeams(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, texSize int) (int, float64, error) {
	if !ref.Exists() {
		return 0, 0, fmt.Errorf("ops: fix seams: %w", mesh.ErrNoUVLayer)
	}
	if texSize < 1 {
		return 0, 0, fmt.Errorf("ops: fix seams: texture size %d", texSize)
	}
	inSet := make(map[mesh.FaceID]struct{}, len(faces))
	for _, f := range faces {
		inSet[f] = struct{}{}
	}

	s := &solver.Solver{}
	done := make(map[mesh.EdgeID]struct{})
	for _, f := range faces {
		for _, l1 := range m.FaceLoops(f) {
			l2 := m.Loop(l1).RadialNext
			if l2 == l1 {
				continue
			}
			if _, ok := inSet[m.Loop(l2).F]; !ok {
				continue
			}
			e := m.Loop(l1).E
			if _, ok := done[e]; ok {
				continue
			}
			// Pair loops by vertex: a1/a2 sit on one end of the edge, b1/b2
			// on the other.
			a1, b1 := l1, m.Loop(l1).Next
			a2, b2 := m.Loop(l2).Next, l2
			if m.Loop(l2).V == m.Loop(l1).V {
				a2, b2 = l2, m.Loop(l2).Next
			}
			pa1, pb1 := &m.UV(ref, a1).UV, &m.UV(ref, b1).UV
			pa2, pb2 := &m.UV(ref, a2).UV, &m.UV(ref, b2).UV
			if pa1.Sub(*pa2).Len() <= seamSplit && pb1.Sub(*pb2).Len() <= seamSplit {
				continue
			}
			done[e] = struct{}{}
			s.Add(texelConstraint(m, ref, [4]mesh.LoopID{a1, b1, a2, b2}, float64(texSize)))
		}
	}
	if s.Len() == 0 {
		return 0, 0, nil
	}
	residual := s.Solve(seamPasses, seamGain)
	for _, f := range faces {
		m.Face(f).Flag |= mesh.FlagUpdate
	}
	return s.Len(), residual, nil
}

// texelConstraint measures how far the offsets a1-a2 and b1-b2, in texels,
// are from whole numbers.
func texelConstraint(m *mesh.Mesh, ref mesh.AttrRef, loops [4]mesh.LoopID, tex float64) *solver.Constraint {
	p := [4]*mgl64.Vec2{}
	for i, l := range loops {
		p[i] = &m.UV(ref, l).UV
	}
	frac := func() (mgl64.Vec2, mgl64.Vec2) {
		da := p[0].Sub(*p[2]).Mul(tex)
		db := p[1].Sub(*p[3]).Mul(tex)
		for k := 0; k < 2; k++ {
			da[k] -= texelRound(da[k])
			db[k] -= texelRound(db[k])
		}
		return da, db
	}

	// Pinned loops are left out of the free set.
	var free []*mgl64.Vec2
	var sign []float64
	var side []int
	for i, l := range loops {
		if m.UV(ref, l).Pinned() {
			continue
		}
		free = append(free, p[i])
		sign = append(sign, []float64{1, 1, -1, -1}[i])
		side = append(side, i%2)
	}

	return &solver.Constraint{
		Name: "texel",
		Free: free,
		Eval: func() float64 {
			da, db := frac()
			return da.Dot(da) + db.Dot(db)
		},
		Grad: func(g []mgl64.Vec2) {
			da, db := frac()
			for i := range free {
				d := da
				if side[i] == 1 {
					d = db
				}
				g[i] = d.Mul(2 * tex * sign[i])
			}
		},
		K:         1,
		Threshold: 1e-12,
	}
}
