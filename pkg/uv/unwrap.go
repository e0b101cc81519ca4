package uv

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/solver"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

const (
	// DefaultStepGain is the gain Step uses when given zero.
	DefaultStepGain = 0.75
	// VelocityDamping scales the previous step's motion carried into the
	// next solve.
	VelocityDamping = 0.95

	smoothPasses = 3
	smoothFac    = 0.75
	areaScale    = 100.0
)

// SolveOptions selects what an UnwrapSolver does.
type SolveOptions struct {
	// PreserveIslands keeps the current UV islands and layout instead of
	// rebuilding islands from mesh seams and repacking.
	PreserveIslands bool
	// SelLoopsOnly restricts solving and packing to islands with selected
	// loops.
	SelLoopsOnly bool
	// IncludeArea adds one area constraint per triangle.
	IncludeArea bool
	// LeastSquares runs a global least-squares pass between sweeps.
	LeastSquares bool
}

// SolveTri is one triangle of the solver.
type SolveTri struct {
	Loops   [3]mesh.LoopID
	Corners [3]CornerID
	Island  int

	// Area is the signed UV area when the solver was built.
	Area      float64
	WorldArea float64
	// Goal is the unsigned UV area the area constraint aims for.
	Goal float64
	Wind float64
}

// UnwrapSolver relaxes UV islands towards the angles (and optionally the
// relative areas) of their 3D triangles.
//
// Use Start, then Step or Solve repeatedly, then Finish. Save and Restore
// carry the solver across mesh edits.
type UnwrapSolver struct {
	Mesh  *mesh.Mesh
	UVRef mesh.AttrRef
	Opts  SolveOptions

	W    *Wrangler
	Tris []*SolveTri

	faces   []mesh.FaceID
	solvers []*solver.Solver
	active  []bool
	saved   *SolverSnapshot

	wopts []Option
	log   *slog.Logger
	rng   *rand.Rand
}

// NewUnwrapSolver binds a solver to the faces of m and the UV layer ref.
// Call Start before stepping.
func NewUnwrapSolver(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, opts SolveOptions, o ...Option) *UnwrapSolver {
	bo := buildOptions(o)
	if len(faces) == 0 {
		faces = m.Faces()
	}
	return &UnwrapSolver{
		Mesh:  m,
		UVRef: ref,
		Opts:  opts,
		faces: faces,
		wopts: append([]Option{WithLogger(bo.logger), WithRand(bo.rng)}, o...),
		log:   bo.logger,
		rng:   bo.rng,
	}
}

func (s *UnwrapSolver) packOptions() PackOptions {
	po := DefaultPackOptions()
	po.IgnorePinned = true
	po.SelLoopsOnly = s.Opts.SelLoopsOnly
	po.Rand = s.rng
	return po
}

func (s *UnwrapSolver) eligible(is *Island) bool {
	return !s.Opts.SelLoopsOnly || is.HasSelLoops
}

// Start builds islands, flattens every unpinned island onto the plane of
// its average normal, packs, builds the constraint set and writes the
// initial layout to the mesh.
func (s *UnwrapSolver) Start() {
	s.W = NewWrangler(s.Mesh, s.faces, s.UVRef, s.wopts...)
	w := s.W
	w.BuildIslands(!s.Opts.PreserveIslands)

	for _, is := range w.Islands() {
		w.UpdateAABB(is)
		is.OldMin, is.OldMax, is.OldSize = is.Min, is.Max, is.BoxSize
	}

	if !s.Opts.PreserveIslands {
		faces := lo.GroupBy(w.Faces(), func(f mesh.FaceID) int {
			return w.IslandOfFace(f).Index
		})
		for _, is := range w.Islands() {
			if is.HasPins || !s.eligible(is) {
				continue
			}
			s.unroll(is, faces[is.Index])
		}
	}

	for _, c := range w.Corners {
		c.Vel = mgl64.Vec2{}
		c.OldCo = c.Co
	}

	if !s.Opts.PreserveIslands {
		w.PackIslands(s.packOptions())
	}
	s.BuildSolver()
	w.Finish()
}

// unroll projects each corner's mean 3D position onto the tangent plane of
// the island's area weighted normal and moves the result to the island's
// old min.
func (s *UnwrapSolver) unroll(is *Island, faces []mesh.FaceID) {
	m, w := s.Mesh, s.W
	var n mgl64.Vec3
	for _, f := range faces {
		n = n.Add(m.FaceNormal(f).Mul(m.FaceArea(f)))
	}
	if n.Len() < 1e-12 {
		n = mgl64.Vec3{0, 0, 1}
	}
	inv := mesh.NormalBasis(n.Normalize()).Transpose()

	for _, cid := range is.Corners {
		c := w.Corners[cid]
		var p mgl64.Vec3
		for _, l := range c.Loops {
			p = p.Add(m.Vert(m.Loop(l).V).Co)
		}
		p = inv.Mul3x1(p.Mul(1 / float64(len(c.Loops))))
		c.Co = mgl64.Vec2{p[0], p[1]}
	}
	w.UpdateAABB(is)
	w.translateIsland(is, is.OldMin.Sub(is.Min))
}

// BuildSolver rebuilds the triangle list and one constraint set per
// island from the current triangulation and corner positions.
func (s *UnwrapSolver) BuildSolver() {
	m, w := s.Mesh, s.W
	islands := w.Islands()
	s.Tris = nil
	s.solvers = make([]*solver.Solver, len(islands))
	s.active = make([]bool, len(islands))

	for _, is := range islands {
		if !s.eligible(is) {
			continue
		}
		s.active[is.Index] = true
		if !is.HasPins && !s.Opts.PreserveIslands {
			ext := math.Max(is.BoxSize[0], is.BoxSize[1])
			w.scaleIsland(is, is.Min, 1/ext)
		}
	}

	byIsland := make([][]*SolveTri, len(islands))
	for _, f := range w.Faces() {
		is := w.IslandOfFace(f)
		if is == nil || !s.active[is.Index] {
			continue
		}
		for _, tri := range m.FaceTris(f) {
			var st SolveTri
			ok := true
			for k, l := range tri {
				c, found := w.CornerOf(l)
				if !found {
					ok = false
					break
				}
				st.Loops[k] = l
				st.Corners[k] = c
			}
			if !ok || st.Corners[0] == st.Corners[1] || st.Corners[1] == st.Corners[2] || st.Corners[0] == st.Corners[2] {
				continue
			}
			st.Island = is.Index
			st.WorldArea = mesh.TriArea(
				m.Vert(m.Loop(tri[0]).V).Co,
				m.Vert(m.Loop(tri[1]).V).Co,
				m.Vert(m.Loop(tri[2]).V).Co,
			)
			tp := &st
			s.Tris = append(s.Tris, tp)
			byIsland[is.Index] = append(byIsland[is.Index], tp)
		}
	}

	for _, is := range islands {
		tris := byIsland[is.Index]
		if len(tris) == 0 {
			continue
		}
		s.solvers[is.Index] = s.buildIsland(is, tris)
	}
}

func (s *UnwrapSolver) triArea(t *SolveTri) float64 {
	c := s.W.Corners
	return mesh.TriArea2(c[t.Corners[0]].Co, c[t.Corners[1]].Co, c[t.Corners[2]].Co)
}

func (s *UnwrapSolver) buildIsland(is *Island, tris []*SolveTri) *solver.Solver {
	areaOf := func() (float64, int) {
		total, pos := 0.0, 0
		for _, t := range tris {
			t.Area = s.triArea(t)
			total += math.Abs(t.Area)
			if t.Area > 0 {
				pos++
			}
		}
		return total, pos
	}

	totUV, pos := areaOf()
	if totUV == 0 || math.IsNaN(totUV) {
		s.log.Warn("reseeding island", "island", is.Index, "reason", "degenerate uv area", "area", totUV)
		s.reseed(is)
		totUV, pos = areaOf()
	}
	totWorld := lo.SumBy(tris, func(t *SolveTri) float64 { return t.WorldArea })
	if totWorld == 0 || totUV == 0 || math.IsNaN(totUV) {
		s.log.Debug("skipping island", "island", is.Index, "reason", "zero area")
		return nil
	}

	wind := 1.0
	if pos*2 < len(tris) {
		wind = -1
	}

	sv := &solver.Solver{}
	for _, t := range tris {
		t.Wind = wind
		t.Goal = t.WorldArea / totWorld * totUV
		for k := 0; k < 3; k++ {
			if c := s.angleConstraint(t, k); c != nil {
				sv.Add(c)
			}
		}
		if s.Opts.IncludeArea {
			if c := s.areaConstraint(t, totUV); c != nil {
				sv.Add(c)
			}
		}
	}
	if sv.Len() == 0 {
		return nil
	}
	return sv
}

// free returns pointers to the unpinned corner positions of t and, for
// each, its vertex index within the triangle.
func (s *UnwrapSolver) free(t *SolveTri) ([]*mgl64.Vec2, []int) {
	var ps []*mgl64.Vec2
	var idx []int
	for k := 0; k < 3; k++ {
		c := s.W.Corners[t.Corners[k]]
		if c.HasPins {
			continue
		}
		ps = append(ps, &c.Co)
		idx = append(idx, k)
	}
	return ps, idx
}

// angleConstraint ties the signed UV angle at vertex k of t to the 3D
// angle.
func (s *UnwrapSolver) angleConstraint(t *SolveTri, k int) *solver.Constraint {
	m := s.Mesh
	prev, next := (k+2)%3, (k+1)%3
	world := func(i int) mgl64.Vec3 { return m.Vert(m.Loop(t.Loops[i]).V).Co }
	e1, e2 := world(prev).Sub(world(k)), world(next).Sub(world(k))
	if e1.Len() < 1e-12 || e2.Len() < 1e-12 {
		return nil
	}
	goal := math.Acos(mgl64.Clamp(e1.Normalize().Dot(e2.Normalize()), -1, 1)) * t.Wind

	free, _ := s.free(t)
	if len(free) == 0 {
		return nil
	}
	cs := s.W.Corners
	v1, v2, v3 := &cs[t.Corners[prev]].Co, &cs[t.Corners[k]].Co, &cs[t.Corners[next]].Co
	return &solver.Constraint{
		Name:      "angle",
		Free:      free,
		Threshold: 1e-9,
		Eval: func() float64 {
			a, b := v1.Sub(*v2), v3.Sub(*v2)
			return math.Atan2(b[0]*a[1]-b[1]*a[0], b.Dot(a)) - goal
		},
	}
}

// areaConstraint ties the signed UV area of t to its share of the
// island's total area. The gradient is closed form.
func (s *UnwrapSolver) areaConstraint(t *SolveTri, totUV float64) *solver.Constraint {
	free, idx := s.free(t)
	if len(free) == 0 {
		return nil
	}
	cs := s.W.Corners
	p := [3]*mgl64.Vec2{&cs[t.Corners[0]].Co, &cs[t.Corners[1]].Co, &cs[t.Corners[2]].Co}
	k := areaScale / totUV
	return &solver.Constraint{
		Name:      "area",
		Free:      free,
		Threshold: 1e-9,
		Eval: func() float64 {
			return (mesh.TriArea2(*p[0], *p[1], *p[2])*t.Wind - t.Goal) * k
		},
		Grad: func(g []mgl64.Vec2) {
			x1, y1 := p[0][0], p[0][1]
			x2, y2 := p[1][0], p[1][1]
			x3, y3 := p[2][0], p[2][1]
			full := [3]mgl64.Vec2{
				{0.5 * (y2 - y3), 0.5 * (x3 - x2)},
				{0.5 * (y3 - y1), 0.5 * (x1 - x3)},
				{0.5 * (y1 - y2), 0.5 * (x2 - x1)},
			}
			for i, vi := range idx {
				g[i] = full[vi].Mul(t.Wind * k)
			}
		},
	}
}

func (s *UnwrapSolver) reseed(is *Island) {
	base, ext := is.Min, math.Max(is.BoxSize[0], is.BoxSize[1])
	if math.IsNaN(base[0]) || math.IsNaN(base[1]) || math.IsInf(base[0], 0) || math.IsInf(base[1], 0) {
		base = mgl64.Vec2{}
	}
	if math.IsNaN(ext) || math.IsInf(ext, 0) || ext <= MinIslandSize {
		ext = 1
	}
	for _, cid := range is.Corners {
		c := s.W.Corners[cid]
		if c.HasPins {
			continue
		}
		c.Co = base.Add(mgl64.Vec2{s.rng.Float64(), s.rng.Float64()}.Mul(ext))
		c.OldCo = c.Co
		c.Vel = mgl64.Vec2{}
	}
	s.W.UpdateAABB(is)
}

func (s *UnwrapSolver) movable(c *Corner) bool {
	if c.HasPins || c.Island < 0 || c.Island >= len(s.active) {
		return false
	}
	return s.active[c.Island]
}

// Solve runs one damped solve: previous motion is carried forward scaled
// by VelocityDamping, each island's constraints are swept (with a
// least-squares pass when enabled) and the motion is recorded as the new
// velocity. It returns the Residual left after the step.
func (s *UnwrapSolver) Solve(gk float64) float64 {
	w := s.W
	for _, c := range w.Corners {
		if !s.movable(c) {
			continue
		}
		c.Co = c.Co.Add(c.Vel.Mul(VelocityDamping))
		c.OldCo = c.Co
	}

	for i, sv := range s.solvers {
		if sv == nil {
			continue
		}
		sv.Sweep(gk)
		if s.Opts.LeastSquares {
			if _, err := sv.LeastSquares(gk); err != nil {
				s.log.Warn("least squares pass failed", "island", i, "error", err)
			}
			sv.Sweep(gk)
		}
	}

	for _, is := range w.Islands() {
		if !s.active[is.Index] {
			continue
		}
		if s.hasNaN(is) {
			s.log.Warn("reseeding island", "island", is.Index, "reason", "NaN position")
			s.reseed(is)
		}
	}

	for _, c := range w.Corners {
		if !s.movable(c) {
			continue
		}
		c.Vel = c.Co.Sub(c.OldCo)
	}
	return s.Residual()
}

// Residual is the summed absolute constraint residual over every island.
func (s *UnwrapSolver) Residual() float64 {
	return lo.SumBy(s.solvers, func(sv *solver.Solver) float64 {
		if sv == nil {
			return 0
		}
		return sv.Error()
	})
}

func (s *UnwrapSolver) hasNaN(is *Island) bool {
	for _, cid := range is.Corners {
		co := s.W.Corners[cid].Co
		if math.IsNaN(co[0]) || math.IsNaN(co[1]) || math.IsInf(co[0], 0) || math.IsInf(co[1], 0) {
			return true
		}
	}
	return false
}

// Step smooths the active islands, runs one Solve and writes the result
// to the mesh. A zero gk means DefaultStepGain.
func (s *UnwrapSolver) Step(gk float64) float64 {
	if gk == 0 {
		gk = DefaultStepGain
	}
	for i := 0; i < smoothPasses; i++ {
		s.smooth(smoothFac)
	}
	err := s.Solve(gk)
	s.W.Finish()
	return err
}

// smooth moves every unpinned corner towards the weighted mean of itself
// and its graph neighbours. Seam corners weigh 10 and pinned neighbours
// 10000.
func (s *UnwrapSolver) smooth(fac float64) {
	w := s.W
	for cid, c := range w.Corners {
		if !s.movable(c) {
			continue
		}
		self := 1.0
		if c.IsCorner {
			self = 10
		}
		sum, tot := c.Co.Mul(self), self
		for _, ei := range c.Edges {
			n := w.Corners[w.Edges[ei].Other(CornerID(cid))]
			nw := 1.0
			if n.HasPins {
				nw = 10000
			}
			sum = sum.Add(n.Co.Mul(nw))
			tot += nw
		}
		avg := sum.Mul(1 / tot)
		c.Co = c.Co.Add(avg.Sub(c.Co).Mul(fac))
	}
}

// AreaError is Σ|signed area · winding − goal| over every triangle.
func (s *UnwrapSolver) AreaError() float64 {
	return lo.SumBy(s.Tris, func(t *SolveTri) float64 {
		return math.Abs(s.triArea(t)*t.Wind - t.Goal)
	})
}

// Finish repacks (unless islands are preserved), writes UVs and tags the
// solved faces for update.
func (s *UnwrapSolver) Finish() {
	if !s.Opts.PreserveIslands {
		s.W.PackIslands(s.packOptions())
	}
	s.W.Finish()
	for _, f := range s.W.Faces() {
		s.Mesh.SetFaceFlag(f, mesh.FlagUpdate, true)
	}
}
