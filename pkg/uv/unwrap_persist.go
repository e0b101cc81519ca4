package uv

import (
	"fmt"

	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/ugorji/go/codec"
)

// SolverSnapshot is the saved form of an UnwrapSolver.
type SolverSnapshot struct {
	Opts     SolveOptions `codec:"opts"`
	UVLayer  string       `codec:"uv_layer"`
	Wrangler *Snapshot    `codec:"wrangler"`
}

// Encode serialises the snapshot as msgpack.
func (s *SolverSnapshot) Encode() ([]byte, error) {
	var b []byte
	if err := codec.NewEncoderBytes(&b, &mh).Encode(s); err != nil {
		return nil, fmt.Errorf("uv: encode solver snapshot: %w", err)
	}
	return b, nil
}

// DecodeSolverSnapshot parses a snapshot written by SolverSnapshot.Encode.
func DecodeSolverSnapshot(b []byte) (*SolverSnapshot, error) {
	s := &SolverSnapshot{}
	if err := codec.NewDecoderBytes(b, &mh).Decode(s); err != nil {
		return nil, fmt.Errorf("uv: decode solver snapshot: %w", err)
	}
	if s.Wrangler == nil {
		return nil, fmt.Errorf("uv: decode solver snapshot: %w: no wrangler state", ErrStale)
	}
	return s, nil
}

// NewUnwrapSolverFromSnapshot returns a saved solver holding snap, ready
// for Restore or RestoreOrRebuildSolver.
func NewUnwrapSolverFromSnapshot(snap *SolverSnapshot, o ...Option) *UnwrapSolver {
	bo := buildOptions(o)
	return &UnwrapSolver{
		UVRef: mesh.NoAttr,
		Opts:  snap.Opts,
		W:     NewWranglerFromSnapshot(snap.Wrangler, o...),
		saved: snap,
		wopts: append([]Option{WithLogger(bo.logger), WithRand(bo.rng)}, o...),
		log:   bo.logger,
		rng:   bo.rng,
	}
}

// IsSaved reports whether the solver holds a snapshot.
func (s *UnwrapSolver) IsSaved() bool { return s.saved != nil }

// Save drops every mesh reference, keeping the solver restorable. Saving
// twice returns the existing snapshot.
func (s *UnwrapSolver) Save() *SolverSnapshot {
	if s.saved != nil {
		return s.saved
	}
	if s.W == nil {
		s.Start()
	}
	s.saved = &SolverSnapshot{
		Opts:     s.Opts,
		UVLayer:  s.Mesh.UVLayerName(s.UVRef),
		Wrangler: s.W.Save(),
	}
	s.Tris = nil
	s.solvers = nil
	s.active = nil
	s.faces = nil
	return s.saved
}

// Restore rebinds a saved solver to m and rebuilds its constraints. It
// returns false, keeping the snapshot, when the saved state is stale.
func (s *UnwrapSolver) Restore(m *mesh.Mesh) bool {
	if s.saved == nil {
		s.log.Warn("uv solver restore failed", "reason", "not saved")
		return false
	}
	if !s.W.Restore(m) {
		return false
	}
	s.Mesh = m
	s.UVRef = s.W.UVRef
	s.faces = s.W.Faces()
	s.saved = nil
	s.BuildSolver()
	return true
}

// RestoreOrRebuildSolver reuses s when it was saved with the same options,
// UV layer and face set and restores cleanly against m. Otherwise it
// starts a new solver. The bool reports whether s was reused.
func RestoreOrRebuildSolver(s *UnwrapSolver, m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, opts SolveOptions, o ...Option) (*UnwrapSolver, bool) {
	if len(faces) == 0 {
		faces = m.Faces()
	}
	if reason := staleReason(s, m, faces, ref, opts); reason != "" {
		if s != nil {
			s.log.Info("rebuilding uv solver", "reason", reason)
		}
	} else if s.Restore(m) {
		return s, true
	}

	ns := NewUnwrapSolver(m, faces, ref, opts, o...)
	ns.Start()
	return ns, false
}

func staleReason(s *UnwrapSolver, m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, opts SolveOptions) string {
	switch {
	case s == nil:
		return "no solver"
	case s.saved == nil:
		return "solver not saved"
	case s.saved.Opts.PreserveIslands != opts.PreserveIslands:
		return "preserve islands changed"
	case s.saved.Opts.SelLoopsOnly != opts.SelLoopsOnly:
		return "selected loops only changed"
	case s.saved.Opts != opts:
		return "solve options changed"
	case len(s.saved.Wrangler.Faces) != len(faces):
		return "face count changed"
	case s.saved.UVLayer != m.UVLayerName(ref):
		return "uv layer changed"
	case !sameFaceSet(m, faces, s.saved.Wrangler.Faces):
		return "new face"
	}
	return ""
}
