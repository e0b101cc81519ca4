package scene

import (
	"github.com/chazu/uvkit/pkg/ops"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Primitives
// ---------------------------------------------------------------------------

// PrimitiveKind distinguishes between primitive shapes.
type PrimitiveKind int

const (
	PrimBox      PrimitiveKind = iota // solid, tessellated by the kernel
	PrimCylinder                      // solid, tessellated by the kernel
	PrimQuad                          // unit quad of two triangles
	PrimGrid                          // n×n planar grid
	PrimHexFan                        // six triangle fan
	PrimCube                          // six quad cube with per-face UVs
)

func (k PrimitiveKind) String() string {
	switch k {
	case PrimBox:
		return "box"
	case PrimCylinder:
		return "cylinder"
	case PrimQuad:
		return "quad"
	case PrimGrid:
		return "grid"
	case PrimHexFan:
		return "hexfan"
	case PrimCube:
		return "cube"
	default:
		return "unknown"
	}
}

// Solid reports whether shapes of kind k come from the geometry kernel.
func (k PrimitiveKind) Solid() bool { return k == PrimBox || k == PrimCylinder }

// PrimitiveData is a shape.
type PrimitiveData struct {
	Prim PrimitiveKind `json:"prim"`
	// Size is the box extent.
	Size   mgl64.Vec3 `json:"size,omitempty"`
	Radius float64    `json:"radius,omitempty"`
	Height float64    `json:"height,omitempty"`
	// Divisions is the grid resolution.
	Divisions int `json:"divisions,omitempty"`
}

func (PrimitiveData) nodeData() {}

// ---------------------------------------------------------------------------
// Transform
// ---------------------------------------------------------------------------

// TransformData places its children. Created by the (place ...) form.
type TransformData struct {
	Translation *mgl64.Vec3 `json:"translation,omitempty"`
	Rotation    *mgl64.Vec3 `json:"rotation,omitempty"` // Euler angles in degrees
}

func (TransformData) nodeData() {}

// ---------------------------------------------------------------------------
// Group
// ---------------------------------------------------------------------------

// GroupData collects children that stay separate meshes.
type GroupData struct {
	Description string `json:"description,omitempty"`
}

func (GroupData) nodeData() {}

// ---------------------------------------------------------------------------
// Boolean
// ---------------------------------------------------------------------------

// BoolOp is a solid combination.
type BoolOp int

const (
	BoolUnion BoolOp = iota
	BoolDifference
)

func (op BoolOp) String() string {
	switch op {
	case BoolUnion:
		return "union"
	case BoolDifference:
		return "difference"
	default:
		return "unknown"
	}
}

// BooleanData combines its children into one solid. Difference subtracts
// every later child from the first.
type BooleanData struct {
	Op BoolOp `json:"op"`
}

func (BooleanData) nodeData() {}

// ---------------------------------------------------------------------------
// UV steps
// ---------------------------------------------------------------------------

// Step is one UV operation in script order.
type Step struct {
	Op ops.Kind `json:"op"`
	// Target names an object; empty means every mesh.
	Target string     `json:"target,omitempty"`
	Params ops.Params `json:"params,omitempty"`
}
