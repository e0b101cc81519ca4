package mesh

import (
	"fmt"
	"math"
)

// ValidationSeverity indicates whether a finding means the mesh is broken
// or merely unusual.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // structural invariant broken
	SeverityWarning                           // legal but suspicious
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Type     ElemType
	EID      EID // zero if mesh-level
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.EID == 0 {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s %d: %s", e.Severity, e.Type, e.EID, e.Message)
}

// Unwrap lets errors.Is match structural findings against ErrInvariant.
func (e ValidationError) Unwrap() error {
	if e.Severity == SeverityError {
		return ErrInvariant
	}
	return nil
}

// Validate checks the structural invariants of m and returns every
// finding. It never mutates the mesh.
func Validate(m *Mesh) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateFaces(m)...)
	errs = append(errs, validateRadial(m)...)
	errs = append(errs, validateUVs(m)...)
	return errs
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []ValidationError) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

func validateFaces(m *Mesh) []ValidationError {
	var errs []ValidationError
	for _, f := range m.Faces() {
		face := &m.faces[f]
		if face.Len < 3 {
			errs = append(errs, ValidationError{TypeFace, face.EID,
				fmt.Sprintf("face has %d loops, need at least 3", face.Len), SeverityError})
			continue
		}
		l := face.L
		for i := 0; i < face.Len; i++ {
			lp := &m.loops[l]
			switch {
			case lp.dead:
				errs = append(errs, ValidationError{TypeFace, face.EID, "face cycle reaches a deleted loop", SeverityError})
			case lp.F != f:
				errs = append(errs, ValidationError{TypeLoop, lp.EID, "loop belongs to another face", SeverityError})
			case m.loops[lp.Next].Prev != l:
				errs = append(errs, ValidationError{TypeLoop, lp.EID, "next/prev links disagree", SeverityError})
			}
			ed := &m.edges[lp.E]
			nv := m.loops[lp.Next].V
			if !((ed.V1 == lp.V && ed.V2 == nv) || (ed.V2 == lp.V && ed.V1 == nv)) {
				errs = append(errs, ValidationError{TypeLoop, lp.EID, "loop edge does not join its vertex to the next one", SeverityError})
			}
			l = lp.Next
		}
		if l != face.L {
			errs = append(errs, ValidationError{TypeFace, face.EID, "loop cycle length differs from face length", SeverityError})
		}
		if m.FaceArea(f) < 1e-14 {
			errs = append(errs, ValidationError{TypeFace, face.EID, "face has zero area", SeverityWarning})
		}
	}
	return errs
}

func validateRadial(m *Mesh) []ValidationError {
	var errs []ValidationError
	for _, e := range m.Edges() {
		ed := &m.edges[e]
		loops := m.EdgeLoops(e)
		for _, l := range loops {
			lp := &m.loops[l]
			if lp.E != e {
				errs = append(errs, ValidationError{TypeLoop, lp.EID, "radial cycle crosses edges", SeverityError})
			}
			if m.loops[lp.RadialNext].RadialPrev != l {
				errs = append(errs, ValidationError{TypeLoop, lp.EID, "radial links disagree", SeverityError})
			}
		}
		if len(loops) > 2 {
			errs = append(errs, ValidationError{TypeEdge, ed.EID,
				fmt.Sprintf("non-manifold edge with %d faces", len(loops)), SeverityWarning})
		}
	}
	return errs
}

func validateUVs(m *Mesh) []ValidationError {
	var errs []ValidationError
	for ref := range m.uvLayers {
		for _, f := range m.Faces() {
			for _, l := range m.FaceLoops(f) {
				uv := m.UV(AttrRef(ref), l).UV
				if math.IsNaN(uv[0]) || math.IsNaN(uv[1]) || math.IsInf(uv[0], 0) || math.IsInf(uv[1], 0) {
					errs = append(errs, ValidationError{TypeLoop, m.loops[l].EID,
						fmt.Sprintf("non-finite UV in layer %q", m.uvLayers[ref].name), SeverityWarning})
				}
			}
		}
	}
	return errs
}
