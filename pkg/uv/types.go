package uv

import (
	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// MinIslandSize is the smallest extent an island AABB axis is given.
const MinIslandSize = 1e-5

// CornerID indexes Wrangler.Corners.
type CornerID int32

// NoCorner marks a missing corner.
const NoCorner CornerID = -1

// Corner is a UV graph vertex: one or more loop UVs merged into a single
// position.
type Corner struct {
	Co    mgl64.Vec2
	Loops []mesh.LoopID
	Edges []int

	// IsCorner is set for corners on a seam or boundary.
	IsCorner bool
	HasPins  bool
	// Tangent is the outward, miter scaled boundary direction of a seam
	// corner.
	Tangent mgl64.Vec2

	// Solver scratch.
	Vel   mgl64.Vec2
	OldCo mgl64.Vec2
	Orig  mgl64.Vec2

	Island int
}

// GraphEdge joins two corners that are adjacent inside at least one face.
type GraphEdge struct {
	C1, C2 CornerID
	Seam   bool
	// Loops are the face loops running along this edge.
	Loops []mesh.LoopID
}

// Other returns the endpoint that is not c.
func (e *GraphEdge) Other(c CornerID) CornerID {
	if e.C1 == c {
		return e.C2
	}
	return e.C1
}

// Island is one connected component of the UV graph.
type Island struct {
	Index   int
	Corners []CornerID

	Min, Max mgl64.Vec2
	BoxSize  mgl64.Vec2
	Area     float64

	HasPins     bool
	HasSelLoops bool

	// Pre-solve bounds recorded by UnwrapSolver.Start.
	OldMin, OldMax, OldSize mgl64.Vec2
}

// Centre is the midpoint of the island AABB.
func (is *Island) Centre() mgl64.Vec2 {
	return is.Min.Add(is.Max).Mul(0.5)
}
