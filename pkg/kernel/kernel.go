// Package kernel defines the solid-modelling interface used to produce
// meshes for UV work. Backends (sdfx) build solids and tessellate them
// into indexed triangle meshes that the half-edge importer can weld.
package kernel

// Solid is an opaque handle to a backend solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the solid-modelling backend interface.
type Kernel interface {
	// Primitives, centred on the origin.
	Box(x, y, z float64) Solid
	Cylinder(height, radius float64) Solid

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh tessellates s into an indexed triangle mesh with shared
	// vertices welded.
	ToMesh(s Solid) (*Mesh, error)
}
