package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// MakeVert appends a vertex at co.
func (m *Mesh) MakeVert(co mgl64.Vec3) VertID {
	idx := int32(len(m.verts))
	m.verts = append(m.verts, Vertex{Co: co})
	m.verts[idx].EID = m.allocEID(TypeVert, idx)
	return VertID(idx)
}

// EdgeBetween returns the edge joining v1 and v2, if any.
func (m *Mesh) EdgeBetween(v1, v2 VertID) (EdgeID, bool) {
	for _, e := range m.verts[v1].Edges {
		ed := &m.edges[e]
		if (ed.V1 == v1 && ed.V2 == v2) || (ed.V1 == v2 && ed.V2 == v1) {
			return e, true
		}
	}
	return NoEdge, false
}

// MakeEdge returns the edge joining v1 and v2, creating it when missing.
func (m *Mesh) MakeEdge(v1, v2 VertID) EdgeID {
	if e, ok := m.EdgeBetween(v1, v2); ok {
		return e
	}
	idx := int32(len(m.edges))
	m.edges = append(m.edges, Edge{V1: v1, V2: v2, L: NoLoop})
	m.edges[idx].EID = m.allocEID(TypeEdge, idx)
	e := EdgeID(idx)
	m.verts[v1].Edges = append(m.verts[v1].Edges, e)
	m.verts[v2].Edges = append(m.verts[v2].Edges, e)
	return e
}

func (m *Mesh) makeLoop(v VertID, e EdgeID, f FaceID) LoopID {
	idx := int32(len(m.loops))
	m.loops = append(m.loops, Loop{
		V: v, E: e, F: f,
		Next: NoLoop, Prev: NoLoop,
	})
	l := LoopID(idx)
	m.loops[idx].EID = m.allocEID(TypeLoop, idx)

	// Splice into the radial cycle of e.
	ed := &m.edges[e]
	if ed.L == NoLoop {
		m.loops[idx].RadialNext = l
		m.loops[idx].RadialPrev = l
		ed.L = l
	} else {
		head := ed.L
		next := m.loops[head].RadialNext
		m.loops[idx].RadialPrev = head
		m.loops[idx].RadialNext = next
		m.loops[head].RadialNext = l
		m.loops[next].RadialPrev = l
	}

	for _, layer := range m.uvLayers {
		layer.grow(len(m.loops))
	}
	return l
}

// MakeFace creates a polygon over verts in order. Edges are created or
// reused as needed.
func (m *Mesh) MakeFace(verts []VertID) (FaceID, error) {
	if len(verts) < 3 {
		return NoFace, fmt.Errorf("mesh: face with %d vertices: %w", len(verts), ErrInvariant)
	}
	seen := make(map[VertID]struct{}, len(verts))
	for _, v := range verts {
		if v < 0 || int(v) >= len(m.verts) || m.verts[v].dead {
			return NoFace, fmt.Errorf("mesh: face references missing vertex %d: %w", v, ErrInvariant)
		}
		if _, dup := seen[v]; dup {
			return NoFace, fmt.Errorf("mesh: face repeats vertex %d: %w", v, ErrInvariant)
		}
		seen[v] = struct{}{}
	}

	fidx := int32(len(m.faces))
	m.faces = append(m.faces, Face{L: NoLoop, Len: len(verts)})
	f := FaceID(fidx)
	m.faces[fidx].EID = m.allocEID(TypeFace, fidx)

	loops := make([]LoopID, len(verts))
	for i, v := range verts {
		e := m.MakeEdge(v, verts[(i+1)%len(verts)])
		loops[i] = m.makeLoop(v, e, f)
	}
	for i, l := range loops {
		m.loops[l].Next = loops[(i+1)%len(loops)]
		m.loops[l].Prev = loops[(i+len(loops)-1)%len(loops)]
	}
	m.faces[fidx].L = loops[0]
	m.faces[fidx].No = m.FaceNormal(f)
	return f, nil
}

// KillFace removes f and its loops. Edges and vertices are left in place,
// edges without loops become wire edges.
func (m *Mesh) KillFace(f FaceID) {
	if !m.FaceAlive(f) {
		return
	}
	for _, l := range m.FaceLoops(f) {
		lp := &m.loops[l]
		ed := &m.edges[lp.E]
		if lp.RadialNext == l {
			ed.L = NoLoop
		} else {
			m.loops[lp.RadialPrev].RadialNext = lp.RadialNext
			m.loops[lp.RadialNext].RadialPrev = lp.RadialPrev
			if ed.L == l {
				ed.L = lp.RadialNext
			}
		}
		lp.dead = true
		delete(m.eidMap, lp.EID)
	}
	m.faces[f].dead = true
	delete(m.eidMap, m.faces[f].EID)
}

// SetFaceFlag sets or clears flag on f and all of its loops.
func (m *Mesh) SetFaceFlag(f FaceID, flag Flag, on bool) {
	set := func(dst *Flag) {
		if on {
			*dst |= flag
		} else {
			*dst &^= flag
		}
	}
	set(&m.faces[f].Flag)
	for _, l := range m.FaceLoops(f) {
		set(&m.loops[l].Flag)
	}
}
