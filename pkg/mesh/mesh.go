// Package mesh is a small half-edge mesh kernel stored as arenas of
// vertices, edges, loops and faces addressed by integer handles.
//
// Every element also carries a stable EID that survives serialization,
// and the mesh as a whole carries a LibID so saved state can tell the
// mesh it was built against from another mesh with matching EIDs.
// Deleted elements leave dead slots behind; handles and EIDs are never
// reused within one Mesh.
package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// ErrInvariant is returned when an operation would break a structural
// invariant of the mesh (for example a face with fewer than 3 loops).
var ErrInvariant = errors.New("mesh: structural invariant violated")

// ErrNoUVLayer is returned when an operation needs a UV layer the mesh
// does not have.
var ErrNoUVLayer = errors.New("mesh: no such UV layer")

// Handles into the element arenas. The zero value is a valid handle, so
// "no element" is spelled with the negative constants below.
type (
	VertID int32
	EdgeID int32
	LoopID int32
	FaceID int32
)

const (
	NoVert VertID = -1
	NoEdge EdgeID = -1
	NoLoop LoopID = -1
	NoFace FaceID = -1
)

// EID is a stable element ID, unique across all element types of a mesh.
type EID int64

// ElemType enumerates the element kinds.
type ElemType uint8

const (
	TypeVert ElemType = iota
	TypeEdge
	TypeLoop
	TypeFace
)

func (t ElemType) String() string {
	switch t {
	case TypeVert:
		return "vert"
	case TypeEdge:
		return "edge"
	case TypeLoop:
		return "loop"
	case TypeFace:
		return "face"
	default:
		return fmt.Sprintf("ElemType(%d)", int(t))
	}
}

// Flag is the per-element tag bitfield.
type Flag uint16

const (
	FlagSelect Flag = 1 << iota
	FlagHide
	FlagSeam
	FlagUpdate
)

// Vertex is a mesh vertex.
type Vertex struct {
	EID   EID
	Co    mgl64.Vec3
	Flag  Flag
	Edges []EdgeID
	dead  bool
}

// Edge connects two vertices. L is one loop of its radial cycle, or NoLoop
// for a wire edge.
type Edge struct {
	EID  EID
	V1   VertID
	V2   VertID
	L    LoopID
	Flag Flag
	dead bool
}

// Loop is a face corner. Next/Prev walk the face boundary, RadialNext and
// RadialPrev walk the other loops sharing the same edge. A boundary loop is
// its own radial partner.
type Loop struct {
	EID        EID
	V          VertID
	E          EdgeID
	F          FaceID
	Next       LoopID
	Prev       LoopID
	RadialNext LoopID
	RadialPrev LoopID
	Flag       Flag
	dead       bool
}

// Face is a polygon. L is its first loop.
type Face struct {
	EID  EID
	L    LoopID
	Len  int
	No   mgl64.Vec3
	Flag Flag
	dead bool
}

type elemRef struct {
	typ ElemType
	idx int32
}

// Mesh is the arena container.
//
// Pointers returned by Vert, Edge, Loop and Face are only valid until the
// next element of the same kind is created.
type Mesh struct {
	LibID uuid.UUID
	Name  string

	verts []Vertex
	edges []Edge
	loops []Loop
	faces []Face

	eidMap  map[EID]elemRef
	nextEID EID

	uvLayers []*uvLayer
}

// New returns an empty mesh with a fresh LibID.
func New() *Mesh {
	return &Mesh{
		LibID:   uuid.New(),
		eidMap:  make(map[EID]elemRef),
		nextEID: 1,
	}
}

func (m *Mesh) allocEID(t ElemType, idx int32) EID {
	id := m.nextEID
	m.nextEID++
	m.eidMap[id] = elemRef{typ: t, idx: idx}
	return id
}

// Vert returns the vertex for a handle.
func (m *Mesh) Vert(v VertID) *Vertex { return &m.verts[v] }

// Edge returns the edge for a handle.
func (m *Mesh) Edge(e EdgeID) *Edge { return &m.edges[e] }

// Loop returns the loop for a handle.
func (m *Mesh) Loop(l LoopID) *Loop { return &m.loops[l] }

// Face returns the face for a handle.
func (m *Mesh) Face(f FaceID) *Face { return &m.faces[f] }

// FaceAlive reports whether f is a handle to a live face.
func (m *Mesh) FaceAlive(f FaceID) bool {
	return f >= 0 && int(f) < len(m.faces) && !m.faces[f].dead
}

// LoopAlive reports whether l is a handle to a live loop.
func (m *Mesh) LoopAlive(l LoopID) bool {
	return l >= 0 && int(l) < len(m.loops) && !m.loops[l].dead
}

// Lookup resolves an EID to its element type and arena index.
func (m *Mesh) Lookup(id EID) (ElemType, int32, bool) {
	ref, ok := m.eidMap[id]
	if !ok {
		return 0, -1, false
	}
	return ref.typ, ref.idx, true
}

// FaceByEID resolves a face EID.
func (m *Mesh) FaceByEID(id EID) (FaceID, bool) {
	t, idx, ok := m.Lookup(id)
	if !ok || t != TypeFace {
		return NoFace, false
	}
	return FaceID(idx), true
}

// LoopByEID resolves a loop EID.
func (m *Mesh) LoopByEID(id EID) (LoopID, bool) {
	t, idx, ok := m.Lookup(id)
	if !ok || t != TypeLoop {
		return NoLoop, false
	}
	return LoopID(idx), true
}

// EdgeByEID resolves an edge EID.
func (m *Mesh) EdgeByEID(id EID) (EdgeID, bool) {
	t, idx, ok := m.Lookup(id)
	if !ok || t != TypeEdge {
		return NoEdge, false
	}
	return EdgeID(idx), true
}

// Verts returns the handles of all live vertices.
func (m *Mesh) Verts() []VertID {
	out := make([]VertID, 0, len(m.verts))
	for i := range m.verts {
		if !m.verts[i].dead {
			out = append(out, VertID(i))
		}
	}
	return out
}

// Edges returns the handles of all live edges.
func (m *Mesh) Edges() []EdgeID {
	out := make([]EdgeID, 0, len(m.edges))
	for i := range m.edges {
		if !m.edges[i].dead {
			out = append(out, EdgeID(i))
		}
	}
	return out
}

// Faces returns the handles of all live faces in creation order.
func (m *Mesh) Faces() []FaceID {
	out := make([]FaceID, 0, len(m.faces))
	for i := range m.faces {
		if !m.faces[i].dead {
			out = append(out, FaceID(i))
		}
	}
	return out
}

// FaceCount returns the number of live faces.
func (m *Mesh) FaceCount() int {
	n := 0
	for i := range m.faces {
		if !m.faces[i].dead {
			n++
		}
	}
	return n
}

// LoopCap is the size of the loop arena, live or not. Per-loop side
// tables can be sized with it.
func (m *Mesh) LoopCap() int { return len(m.loops) }

// FaceLoops returns the loops of f in boundary order.
func (m *Mesh) FaceLoops(f FaceID) []LoopID {
	face := &m.faces[f]
	out := make([]LoopID, 0, face.Len)
	l := face.L
	for i := 0; i < face.Len; i++ {
		out = append(out, l)
		l = m.loops[l].Next
	}
	return out
}

// EdgeLoops returns the radial cycle of e.
func (m *Mesh) EdgeLoops(e EdgeID) []LoopID {
	start := m.edges[e].L
	if start == NoLoop {
		return nil
	}
	var out []LoopID
	l := start
	for {
		out = append(out, l)
		l = m.loops[l].RadialNext
		if l == start {
			break
		}
	}
	return out
}

// IsBoundary reports whether loop l has no radial partner.
func (m *Mesh) IsBoundary(l LoopID) bool {
	return m.loops[l].RadialNext == l
}

// OtherVert returns the vertex of e that is not v.
func (m *Mesh) OtherVert(e EdgeID, v VertID) VertID {
	ed := &m.edges[e]
	if ed.V1 == v {
		return ed.V2
	}
	return ed.V1
}

// VertNeighbors returns the vertices sharing an edge with v.
func (m *Mesh) VertNeighbors(v VertID) []VertID {
	edges := m.verts[v].Edges
	out := make([]VertID, 0, len(edges))
	for _, e := range edges {
		out = append(out, m.OtherVert(e, v))
	}
	return out
}

// VertFaces returns the distinct faces using v.
func (m *Mesh) VertFaces(v VertID) []FaceID {
	seen := make(map[FaceID]struct{})
	var out []FaceID
	for _, e := range m.verts[v].Edges {
		for _, l := range m.EdgeLoops(e) {
			f := m.loops[l].F
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}
