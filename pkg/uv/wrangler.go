package uv

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Wrangler derives and maintains the UV graph of a face subset.
//
// The lookup maps are rebuilt by BuildIslands whenever NeedTopo is set.
// Corner and island pointers stay valid until the next rebuild.
type Wrangler struct {
	Mesh  *mesh.Mesh
	UVRef mesh.AttrRef

	// NeedTopo forces the next BuildIslands to rebuild corners and edges.
	NeedTopo bool

	Corners []*Corner
	Edges   []*GraphEdge

	faces   []mesh.FaceID
	faceSet map[mesh.FaceID]struct{}
	islands []*Island

	loopCorner map[mesh.LoopID]CornerID
	loopEdge   map[mesh.LoopID]int
	loopIsland map[mesh.LoopID]*Island
	faceIsland map[mesh.FaceID]*Island
	edgeIndex  map[[2]CornerID]int

	hash     *SpatialHash
	seamHash uint64
	seamTopo bool // topology came from mesh seams
	saved    *Snapshot

	log *slog.Logger
	rng *rand.Rand
}

// NewWrangler binds a Wrangler to the faces of m (every live face when
// faces is empty) and the UV layer ref. Nothing is built until
// BuildIslands.
func NewWrangler(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, opts ...Option) *Wrangler {
	o := buildOptions(opts)
	if len(faces) == 0 {
		faces = m.Faces()
	}
	w := &Wrangler{
		Mesh:     m,
		UVRef:    ref,
		NeedTopo: true,
		hash:     NewSpatialHash(o.snapLimit),
		log:      o.logger,
		rng:      o.rng,
	}
	w.setFaces(faces)
	return w
}

func (w *Wrangler) setFaces(faces []mesh.FaceID) {
	w.faces = w.faces[:0]
	w.faceSet = make(map[mesh.FaceID]struct{}, len(faces))
	for _, f := range faces {
		if !w.Mesh.FaceAlive(f) {
			continue
		}
		if _, dup := w.faceSet[f]; dup {
			continue
		}
		w.faceSet[f] = struct{}{}
		w.faces = append(w.faces, f)
	}
}

// Faces returns the face subset in processing order.
func (w *Wrangler) Faces() []mesh.FaceID { return w.faces }

// HasFace reports whether f is part of the subset.
func (w *Wrangler) HasFace(f mesh.FaceID) bool {
	_, ok := w.faceSet[f]
	return ok
}

// Islands returns the islands found by the last BuildIslands.
func (w *Wrangler) Islands() []*Island { return w.islands }

// SnapLimit is the corner merge distance.
func (w *Wrangler) SnapLimit() float64 { return w.hash.Limit() }

// SetSnapLimit changes the merge distance and schedules a rebuild.
func (w *Wrangler) SetSnapLimit(limit float64) {
	w.hash.Reset(limit)
	w.NeedTopo = true
}

// SeamHash is the topology digest recorded by the last BuildIslands.
func (w *Wrangler) SeamHash() uint64 { return w.seamHash }

// CornerOf returns the corner a loop was merged into.
func (w *Wrangler) CornerOf(l mesh.LoopID) (CornerID, bool) {
	c, ok := w.loopCorner[l]
	return c, ok
}

// Corner returns the corner for an id.
func (w *Wrangler) Corner(c CornerID) *Corner { return w.Corners[c] }

// EdgeOf returns the graph edge running along loop l, if any.
func (w *Wrangler) EdgeOf(l mesh.LoopID) (*GraphEdge, bool) {
	i, ok := w.loopEdge[l]
	if !ok {
		return nil, false
	}
	return w.Edges[i], true
}

// IslandOfLoop returns the island containing loop l, or nil.
func (w *Wrangler) IslandOfLoop(l mesh.LoopID) *Island { return w.loopIsland[l] }

// IslandOfFace returns the island containing face f, or nil.
func (w *Wrangler) IslandOfFace(f mesh.FaceID) *Island { return w.faceIsland[f] }

// IslandOfCorner returns the island containing corner c.
func (w *Wrangler) IslandOfCorner(c CornerID) *Island {
	i := w.Corners[c].Island
	if i < 0 || i >= len(w.islands) {
		return nil
	}
	return w.islands[i]
}

func (w *Wrangler) uv(l mesh.LoopID) *mesh.UV { return w.Mesh.UV(w.UVRef, l) }

func (w *Wrangler) resetGraph() {
	w.Corners = w.Corners[:0]
	w.Edges = w.Edges[:0]
	w.islands = nil
	w.loopCorner = make(map[mesh.LoopID]CornerID)
	w.loopEdge = make(map[mesh.LoopID]int)
	w.loopIsland = make(map[mesh.LoopID]*Island)
	w.faceIsland = make(map[mesh.FaceID]*Island)
	w.edgeIndex = make(map[[2]CornerID]int)
	w.hash.Reset(w.hash.Limit())
}

func (w *Wrangler) newCorner(co mgl64.Vec2) CornerID {
	w.Corners = append(w.Corners, &Corner{Co: co, Island: -1})
	return CornerID(len(w.Corners) - 1)
}

// BuildTopology merges every loop UV of the face subset into corners and
// joins them with graph edges. A loop joins the corner of the first
// unmerged loop within the snap limit of it; the corner sits at the mean
// of its loops.
func (w *Wrangler) BuildTopology() {
	w.resetGraph()
	if !w.UVRef.Exists() {
		w.NeedTopo = false
		return
	}

	var order []mesh.LoopID
	for _, f := range w.faces {
		for _, l := range w.Mesh.FaceLoops(f) {
			w.hash.Add(l, w.uv(l).UV)
			order = append(order, l)
		}
	}

	limit := w.hash.Limit()
	for _, l := range order {
		if _, ok := w.loopCorner[l]; ok {
			continue
		}
		p := w.uv(l).UV
		c := w.newCorner(p)
		w.loopCorner[l] = c
		sum, n := p, 1.0

		for _, l2 := range w.hash.Near(p) {
			if _, ok := w.loopCorner[l2]; ok {
				continue
			}
			p2 := w.uv(l2).UV
			if p2.Sub(p).Len() <= limit {
				w.loopCorner[l2] = c
				sum = sum.Add(p2)
				n++
			}
		}
		w.Corners[c].Co = sum.Mul(1 / n)
	}

	w.collectCornerLoops(order)
	w.buildEdges()
	w.NeedTopo = false
}

// BuildTopologySeam ignores UV positions: faces are flood filled across
// mesh edges that are neither SEAM nor hidden, and loops sharing a mesh
// vertex inside one such face island merge into a single corner placed at
// the first loop's UV.
func (w *Wrangler) BuildTopologySeam() {
	w.resetGraph()
	if !w.UVRef.Exists() {
		w.NeedTopo = false
		return
	}

	m := w.Mesh
	faceIsland := make(map[mesh.FaceID]int, len(w.faces))
	next := 0
	for _, f := range w.faces {
		if _, ok := faceIsland[f]; ok {
			continue
		}
		faceIsland[f] = next
		stack := []mesh.FaceID{f}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, l := range m.FaceLoops(cur) {
				if m.Edge(m.Loop(l).E).Flag&(mesh.FlagSeam|mesh.FlagHide) != 0 {
					continue
				}
				for r := m.Loop(l).RadialNext; r != l; r = m.Loop(r).RadialNext {
					f2 := m.Loop(r).F
					if !w.HasFace(f2) {
						continue
					}
					if _, ok := faceIsland[f2]; ok {
						continue
					}
					faceIsland[f2] = next
					stack = append(stack, f2)
				}
			}
		}
		next++
	}

	type key struct {
		island int
		v      mesh.VertID
	}
	byKey := make(map[key]CornerID)
	var order []mesh.LoopID
	for _, f := range w.faces {
		for _, l := range m.FaceLoops(f) {
			order = append(order, l)
			k := key{faceIsland[f], m.Loop(l).V}
			c, ok := byKey[k]
			if !ok {
				c = w.newCorner(w.uv(l).UV)
				byKey[k] = c
			}
			w.loopCorner[l] = c
			w.hash.Add(l, w.Corners[c].Co)
		}
	}

	w.collectCornerLoops(order)
	w.buildEdges()
	w.NeedTopo = false
}

func (w *Wrangler) collectCornerLoops(order []mesh.LoopID) {
	for _, l := range order {
		c := w.loopCorner[l]
		w.Corners[c].Loops = append(w.Corners[c].Loops, l)
	}
}

// buildEdges joins the corners of consecutive loops. Loops of one face
// that merged into the same corner get no edge.
func (w *Wrangler) buildEdges() {
	m := w.Mesh
	for _, f := range w.faces {
		for _, l := range m.FaceLoops(f) {
			c1 := w.loopCorner[l]
			c2 := w.loopCorner[m.Loop(l).Next]
			if c1 == c2 {
				continue
			}
			k := [2]CornerID{min(c1, c2), max(c1, c2)}
			i, ok := w.edgeIndex[k]
			if !ok {
				i = len(w.Edges)
				w.edgeIndex[k] = i
				w.Edges = append(w.Edges, &GraphEdge{C1: c1, C2: c2})
				w.Corners[c1].Edges = append(w.Corners[c1].Edges, i)
				w.Corners[c2].Edges = append(w.Corners[c2].Edges, i)
			}
			w.Edges[i].Loops = append(w.Edges[i].Loops, l)
			w.loopEdge[l] = i
		}
	}
}

// BuildIslands rebuilds the graph when NeedTopo is set (from mesh seams
// when buildSeams is true, from UV proximity otherwise), flood fills it
// into islands, re-derives seam tags and computes boundary tangents.
func (w *Wrangler) BuildIslands(buildSeams bool) {
	if w.NeedTopo || w.loopCorner == nil {
		w.seamTopo = buildSeams
		if buildSeams {
			w.BuildTopologySeam()
		} else {
			w.BuildTopology()
		}
	}

	for _, c := range w.Corners {
		c.HasPins = false
		c.Island = -1
		for _, l := range c.Loops {
			if w.uv(l).Pinned() {
				c.HasPins = true
				break
			}
		}
	}

	w.floodIslands()
	w.setSeamTags()
	w.computeTangents()
	w.seamHash = SeamHash(w.Mesh, w.faces)
}

func (w *Wrangler) floodIslands() {
	m := w.Mesh
	w.islands = nil
	w.loopIsland = make(map[mesh.LoopID]*Island)
	w.faceIsland = make(map[mesh.FaceID]*Island)

	visited := make([]bool, len(w.Corners))
	for start := range w.Corners {
		if visited[start] {
			continue
		}
		is := &Island{Index: len(w.islands)}
		w.islands = append(w.islands, is)

		visited[start] = true
		stack := []CornerID{CornerID(start)}
		for len(stack) > 0 {
			cid := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c := w.Corners[cid]
			c.Island = is.Index
			is.Corners = append(is.Corners, cid)
			if c.HasPins {
				is.HasPins = true
			}

			for _, l := range c.Loops {
				w.loopIsland[l] = is
				lp := m.Loop(l)
				hidden := lp.Flag&mesh.FlagHide != 0 || m.Face(lp.F).Flag&mesh.FlagHide != 0
				selected := lp.Flag&mesh.FlagSelect != 0 || w.uv(l).Flag&mesh.UVSelect != 0
				if selected && !hidden {
					is.HasSelLoops = true
				}
			}

			for _, ei := range c.Edges {
				other := w.Edges[ei].Other(cid)
				if !visited[other] {
					visited[other] = true
					stack = append(stack, other)
				}
			}
		}
		w.UpdateAABB(is)
	}

	for _, f := range w.faces {
		w.faceIsland[f] = w.loopIsland[m.Face(f).L]
	}
}

// setSeamTags marks a graph edge as seam when any of its loops lies on a
// mesh boundary or an explicit SEAM edge, or has a radial partner in
// another island or outside the face subset. Both endpoints of a seam
// edge become IsCorner.
func (w *Wrangler) setSeamTags() {
	for _, c := range w.Corners {
		c.IsCorner = false
	}
	for _, e := range w.Edges {
		e.Seam = false
		for _, l := range e.Loops {
			if w.loopIsSeam(l) {
				e.Seam = true
				break
			}
		}
		if e.Seam {
			w.Corners[e.C1].IsCorner = true
			w.Corners[e.C2].IsCorner = true
		}
	}
}

func (w *Wrangler) loopIsSeam(l mesh.LoopID) bool {
	m := w.Mesh
	lp := m.Loop(l)
	if lp.RadialNext == l || m.Edge(lp.E).Flag&mesh.FlagSeam != 0 {
		return true
	}
	is := w.loopIsland[l]
	for r := lp.RadialNext; r != l; r = m.Loop(r).RadialNext {
		other, ok := w.loopIsland[r]
		if !ok || other != is {
			return true
		}
	}
	return false
}

// UpdateAABB recomputes the bounds, clamped size and area of is.
func (w *Wrangler) UpdateAABB(is *Island) {
	if len(is.Corners) == 0 {
		is.Min, is.Max = mgl64.Vec2{}, mgl64.Vec2{}
		is.BoxSize = mgl64.Vec2{MinIslandSize, MinIslandSize}
		is.Area = MinIslandSize * MinIslandSize
		return
	}
	lo := mgl64.Vec2{math.Inf(1), math.Inf(1)}
	hi := mgl64.Vec2{math.Inf(-1), math.Inf(-1)}
	for _, c := range is.Corners {
		co := w.Corners[c].Co
		lo = mgl64.Vec2{math.Min(lo[0], co[0]), math.Min(lo[1], co[1])}
		hi = mgl64.Vec2{math.Max(hi[0], co[0]), math.Max(hi[1], co[1])}
	}
	is.Min, is.Max = lo, hi
	is.BoxSize = mgl64.Vec2{
		math.Max(hi[0]-lo[0], MinIslandSize),
		math.Max(hi[1]-lo[1], MinIslandSize),
	}
	is.Area = is.BoxSize[0] * is.BoxSize[1]
}

// Finish writes every corner position into the UVs of its merged loops.
func (w *Wrangler) Finish() {
	if !w.UVRef.Exists() {
		return
	}
	for _, c := range w.Corners {
		for _, l := range c.Loops {
			w.uv(l).UV = c.Co
		}
	}
}
