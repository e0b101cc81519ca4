package uv

import (
	"errors"
	"fmt"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/ugorji/go/codec"
)

// ErrStale is returned when saved state no longer matches the mesh it is
// being restored against.
var ErrStale = errors.New("uv: saved state is stale")

var mh codec.MsgpackHandle

// SavedCorner is a corner with its loops referenced by EID.
type SavedCorner struct {
	Co       mgl64.Vec2 `codec:"co"`
	Vel      mgl64.Vec2 `codec:"vel"`
	Orig     mgl64.Vec2 `codec:"orig"`
	Loops    []mesh.EID `codec:"loops"`
	IsCorner bool       `codec:"is_corner"`
	HasPins  bool       `codec:"has_pins"`
}

// SavedEdge is a graph edge between two saved corner indices.
type SavedEdge struct {
	C1    int32      `codec:"c1"`
	C2    int32      `codec:"c2"`
	Seam  bool       `codec:"seam"`
	Loops []mesh.EID `codec:"loops"`
}

// Snapshot is the mesh independent form of a Wrangler.
type Snapshot struct {
	LibID     string        `codec:"lib_id"`
	UVLayer   string        `codec:"uv_layer"`
	SnapLimit float64       `codec:"snap_limit"`
	Faces     []mesh.EID    `codec:"faces"`
	Corners   []SavedCorner `codec:"corners"`
	Edges     []SavedEdge   `codec:"edges"`
	SeamHash  uint64        `codec:"seam_hash"`
	SeamTopo  bool          `codec:"seam_topo"`
}

// Encode serialises the snapshot as msgpack.
func (s *Snapshot) Encode() ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, &mh).Encode(s); err != nil {
		return nil, fmt.Errorf("uv: encode snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot parses a snapshot written by Encode.
func DecodeSnapshot(b []byte) (*Snapshot, error) {
	s := &Snapshot{}
	if err := codec.NewDecoderBytes(b, &mh).Decode(s); err != nil {
		return nil, fmt.Errorf("uv: decode snapshot: %w", err)
	}
	return s, nil
}

// Saved returns the snapshot of a saved Wrangler, or nil.
func (w *Wrangler) Saved() *Snapshot { return w.saved }

// IsSaved reports whether the Wrangler holds a snapshot instead of a live
// graph.
func (w *Wrangler) IsSaved() bool { return w.saved != nil }

// Save converts the live graph into a Snapshot and drops every reference
// to mesh handles. The Wrangler is unusable until Restore succeeds.
func (w *Wrangler) Save() *Snapshot {
	m := w.Mesh
	s := &Snapshot{
		LibID:     m.LibID.String(),
		UVLayer:   m.UVLayerName(w.UVRef),
		SnapLimit: w.hash.Limit(),
		SeamHash:  w.seamHash,
		SeamTopo:  w.seamTopo,
	}
	for _, f := range w.faces {
		s.Faces = append(s.Faces, m.Face(f).EID)
	}
	loopEIDs := func(ls []mesh.LoopID) []mesh.EID {
		out := make([]mesh.EID, len(ls))
		for i, l := range ls {
			out[i] = m.Loop(l).EID
		}
		return out
	}
	for _, c := range w.Corners {
		s.Corners = append(s.Corners, SavedCorner{
			Co: c.Co, Vel: c.Vel, Orig: c.Orig,
			Loops:    loopEIDs(c.Loops),
			IsCorner: c.IsCorner,
			HasPins:  c.HasPins,
		})
	}
	for _, e := range w.Edges {
		s.Edges = append(s.Edges, SavedEdge{
			C1: int32(e.C1), C2: int32(e.C2), Seam: e.Seam,
			Loops: loopEIDs(e.Loops),
		})
	}

	w.resetGraph()
	w.faces = nil
	w.faceSet = nil
	w.loopCorner = nil
	w.NeedTopo = true
	w.saved = s
	return s
}

// NewWranglerFromSnapshot returns a saved Wrangler holding s, ready for
// Restore.
func NewWranglerFromSnapshot(s *Snapshot, opts ...Option) *Wrangler {
	o := buildOptions(opts)
	return &Wrangler{
		UVRef:    mesh.NoAttr,
		NeedTopo: true,
		hash:     NewSpatialHash(s.SnapLimit),
		saved:    s,
		log:      o.logger,
		rng:      o.rng,
	}
}

// Restore rebinds a saved Wrangler to m. It fails, leaving the snapshot in
// place, when m is a different mesh, a referenced element is gone, the
// UV layer is missing or the seam topology changed.
func (w *Wrangler) Restore(m *mesh.Mesh) bool {
	if err := w.restore(m); err != nil {
		w.log.Warn("uv restore failed", "reason", err)
		return false
	}
	return true
}

func (w *Wrangler) restore(m *mesh.Mesh) error {
	s := w.saved
	if s == nil {
		return fmt.Errorf("%w: nothing saved", ErrStale)
	}
	if m.LibID.String() != s.LibID {
		return fmt.Errorf("%w: lib_id %s, saved %s", ErrStale, m.LibID, s.LibID)
	}
	ref := m.UVLayer(s.UVLayer)
	if !ref.Exists() {
		return fmt.Errorf("%w: uv layer %q: %w", ErrStale, s.UVLayer, mesh.ErrNoUVLayer)
	}

	faces := make([]mesh.FaceID, len(s.Faces))
	faceSet := make(map[mesh.FaceID]struct{}, len(s.Faces))
	nloops := 0
	for i, id := range s.Faces {
		f, ok := m.FaceByEID(id)
		if !ok {
			return fmt.Errorf("%w: face %d missing", ErrStale, id)
		}
		faces[i] = f
		faceSet[f] = struct{}{}
		nloops += m.Face(f).Len
	}
	if h := SeamHash(m, faces); h != s.SeamHash {
		return fmt.Errorf("%w: seam hash %x, saved %x", ErrStale, h, s.SeamHash)
	}

	resolve := func(ids []mesh.EID) ([]mesh.LoopID, error) {
		out := make([]mesh.LoopID, len(ids))
		for i, id := range ids {
			l, ok := m.LoopByEID(id)
			if !ok {
				return nil, fmt.Errorf("%w: loop %d missing", ErrStale, id)
			}
			if _, ok := faceSet[m.Loop(l).F]; !ok {
				return nil, fmt.Errorf("%w: loop %d left the face set", ErrStale, id)
			}
			out[i] = l
		}
		return out, nil
	}

	corners := make([][]mesh.LoopID, len(s.Corners))
	seen := 0
	for i, sc := range s.Corners {
		ls, err := resolve(sc.Loops)
		if err != nil {
			return err
		}
		corners[i] = ls
		seen += len(ls)
	}
	if seen != nloops {
		return fmt.Errorf("%w: %d loops saved, faces now have %d", ErrStale, seen, nloops)
	}
	edges := make([][]mesh.LoopID, len(s.Edges))
	for i, se := range s.Edges {
		if int(se.C1) >= len(corners) || int(se.C2) >= len(corners) || se.C1 < 0 || se.C2 < 0 {
			return fmt.Errorf("%w: edge %d references corner out of range", ErrStale, i)
		}
		ls, err := resolve(se.Loops)
		if err != nil {
			return err
		}
		edges[i] = ls
	}

	// Everything resolved; rebuild the live graph.
	w.Mesh = m
	w.UVRef = ref
	w.setFaces(faces)
	w.hash.Reset(s.SnapLimit)
	w.resetGraph()
	for i, sc := range s.Corners {
		c := w.newCorner(sc.Co)
		cn := w.Corners[c]
		cn.Vel, cn.Orig = sc.Vel, sc.Orig
		cn.Loops = corners[i]
		for _, l := range cn.Loops {
			w.loopCorner[l] = c
			w.hash.Add(l, sc.Co)
		}
	}
	for i, se := range s.Edges {
		c1, c2 := CornerID(se.C1), CornerID(se.C2)
		w.edgeIndex[[2]CornerID{min(c1, c2), max(c1, c2)}] = i
		w.Edges = append(w.Edges, &GraphEdge{C1: c1, C2: c2, Seam: se.Seam, Loops: edges[i]})
		w.Corners[c1].Edges = append(w.Corners[c1].Edges, i)
		w.Corners[c2].Edges = append(w.Corners[c2].Edges, i)
		for _, l := range edges[i] {
			w.loopEdge[l] = i
		}
	}
	w.NeedTopo = false
	w.seamTopo = s.SeamTopo
	w.saved = nil
	w.BuildIslands(false)
	return nil
}

// RestoreOrRebuild returns w restored against m when its snapshot is
// still valid for the given faces and layer, and a freshly built Wrangler
// otherwise. A live w is reused only while its faces, layer, topology
// mode and seam hash still match. The bool reports whether w was reused.
func RestoreOrRebuild(m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, w *Wrangler, buildSeams bool, opts ...Option) (*Wrangler, bool) {
	if len(faces) == 0 {
		faces = m.Faces()
	}
	if w != nil && w.saved != nil && w.saved.SeamTopo == buildSeams &&
		sameFaceSet(m, faces, w.saved.Faces) &&
		m.UVLayerName(ref) == w.saved.UVLayer && w.Restore(m) {
		return w, true
	}
	if w != nil && w.saved == nil && w.Mesh == m && w.UVRef == ref &&
		w.loopCorner != nil && w.seamTopo == buildSeams &&
		sameFaces(faces, w.faces) && w.seamHash == SeamHash(m, faces) {
		return w, true
	}

	nw := NewWrangler(m, faces, ref, opts...)
	nw.BuildIslands(buildSeams)
	return nw, false
}

func sameFaceSet(m *mesh.Mesh, faces []mesh.FaceID, saved []mesh.EID) bool {
	if len(faces) != len(saved) {
		return false
	}
	want := make(map[mesh.EID]struct{}, len(saved))
	for _, id := range saved {
		want[id] = struct{}{}
	}
	for _, f := range faces {
		if !m.FaceAlive(f) {
			return false
		}
		if _, ok := want[m.Face(f).EID]; !ok {
			return false
		}
	}
	return true
}

func sameFaces(a, b []mesh.FaceID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[mesh.FaceID]struct{}, len(b))
	for _, f := range b {
		set[f] = struct{}{}
	}
	for _, f := range a {
		if _, ok := set[f]; !ok {
			return false
		}
	}
	return true
}
