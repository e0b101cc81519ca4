// Package tessellate walks a scene and produces half-edge meshes. Solids
// go through a geometry kernel; procedural surfaces are built directly.
// One mesh is produced per object.
package tessellate

import (
	"fmt"

	"github.com/chazu/uvkit/pkg/kernel"
	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// transformStack accumulates placements during scene traversal.
type transformStack struct {
	translations []mgl64.Vec3
	rotations    []mgl64.Vec3
}

func newTransformStack() *transformStack {
	return &transformStack{}
}

func (ts *transformStack) push(td scene.TransformData) {
	var t, r mgl64.Vec3
	if td.Translation != nil {
		t = *td.Translation
	}
	if td.Rotation != nil {
		r = *td.Rotation
	}
	ts.translations = append(ts.translations, t)
	ts.rotations = append(ts.rotations, r)
}

func (ts *transformStack) pop() {
	if len(ts.translations) > 0 {
		ts.translations = ts.translations[:len(ts.translations)-1]
	}
	if len(ts.rotations) > 0 {
		ts.rotations = ts.rotations[:len(ts.rotations)-1]
	}
}

// accumulatedTranslation returns the sum of all translations on the stack.
func (ts *transformStack) accumulatedTranslation() mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, t := range ts.translations {
		sum = sum.Add(t)
	}
	return sum
}

// accumulatedRotation returns the sum of all rotations on the stack.
func (ts *transformStack) accumulatedRotation() mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, r := range ts.rotations {
		sum = sum.Add(r)
	}
	return sum
}

// rotation returns the Z·Y·X Euler rotation for angles in degrees, the
// same order the kernel uses.
func rotation(deg mgl64.Vec3) mgl64.Mat3 {
	x, y, z := mgl64.DegToRad(deg[0]), mgl64.DegToRad(deg[1]), mgl64.DegToRad(deg[2])
	return mgl64.Rotate3DZ(z).Mul3(mgl64.Rotate3DY(y)).Mul3(mgl64.Rotate3DX(x))
}

// Tessellate walks the scene from its roots and produces one mesh per
// object using the provided geometry kernel. Every mesh carries a
// DefaultUVLayer. The tessellator never mutates the scene.
func Tessellate(s *scene.Scene, k kernel.Kernel) ([]*mesh.Mesh, error) {
	if s == nil {
		return nil, nil
	}

	var meshes []*mesh.Mesh
	ts := newTransformStack()

	for _, rootID := range s.Roots {
		root := s.Get(rootID)
		if root == nil {
			continue
		}
		collected, err := walkNode(s, k, root, ts)
		if err != nil {
			return nil, fmt.Errorf("tessellate: error walking root %s: %w", rootID.Short(), err)
		}
		meshes = append(meshes, collected...)
	}

	return meshes, nil
}

// Named returns the meshes whose name is target, or all of them when
// target is empty.
func Named(meshes []*mesh.Mesh, target string) []*mesh.Mesh {
	if target == "" {
		return meshes
	}
	var out []*mesh.Mesh
	for _, m := range meshes {
		if m.Name == target {
			out = append(out, m)
		}
	}
	return out
}

// walkNode recursively traverses a node and its children, collecting meshes.
func walkNode(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack) ([]*mesh.Mesh, error) {
	switch n.Kind {
	case scene.NodePrimitive:
		return handlePrimitive(k, n, ts)

	case scene.NodeBoolean:
		return handleBoolean(s, k, n, ts)

	case scene.NodeTransform:
		return handleTransform(s, k, n, ts)

	case scene.NodeGroup:
		return handleGroup(s, k, n, ts)

	default:
		return nil, fmt.Errorf("unknown node kind: %v", n.Kind)
	}
}

// handlePrimitive creates geometry for a primitive node.
func handlePrimitive(k kernel.Kernel, n *scene.Node, ts *transformStack) ([]*mesh.Mesh, error) {
	data, ok := n.Data.(scene.PrimitiveData)
	if !ok {
		return nil, fmt.Errorf("primitive node %s has unsupported data type %T", n.ID.Short(), n.Data)
	}

	var m *mesh.Mesh
	if data.Prim.Solid() {
		solid, err := primitiveSolid(k, n, data)
		if err != nil {
			return nil, err
		}
		if m, err = solidMesh(k, n, solid, ts); err != nil {
			return nil, err
		}
	} else {
		switch data.Prim {
		case scene.PrimQuad:
			m = mesh.Quad()
		case scene.PrimGrid:
			m = mesh.Grid(data.Divisions)
		case scene.PrimHexFan:
			m = mesh.HexFan()
		case scene.PrimCube:
			m = mesh.Cube()
		default:
			return nil, fmt.Errorf("primitive node %s has unknown shape %v", n.ID.Short(), data.Prim)
		}
		place(m, ts)
	}

	m.Name = nodeName(n)
	return []*mesh.Mesh{m}, nil
}

// handleBoolean folds the operands through the kernel into one mesh.
func handleBoolean(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack) ([]*mesh.Mesh, error) {
	solid, err := buildSolid(s, k, n)
	if err != nil {
		return nil, err
	}
	m, err := solidMesh(k, n, solid, ts)
	if err != nil {
		return nil, err
	}
	m.Name = nodeName(n)
	return []*mesh.Mesh{m}, nil
}

// handleTransform pushes the transform, recurses into children, then pops.
func handleTransform(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack) ([]*mesh.Mesh, error) {
	td, ok := n.Data.(scene.TransformData)
	if !ok {
		return nil, fmt.Errorf("transform node %s has unexpected data type %T", n.ID.Short(), n.Data)
	}

	ts.push(td)
	defer ts.pop()

	var meshes []*mesh.Mesh
	for _, child := range s.Children(n) {
		collected, err := walkNode(s, k, child, ts)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// handleGroup recurses into children; each child stays a separate mesh.
func handleGroup(s *scene.Scene, k kernel.Kernel, n *scene.Node, ts *transformStack) ([]*mesh.Mesh, error) {
	var meshes []*mesh.Mesh
	for _, child := range s.Children(n) {
		collected, err := walkNode(s, k, child, ts)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, collected...)
	}
	return meshes, nil
}

// buildSolid returns the kernel solid for a solid subtree in its local
// frame.
func buildSolid(s *scene.Scene, k kernel.Kernel, n *scene.Node) (kernel.Solid, error) {
	switch data := n.Data.(type) {
	case scene.PrimitiveData:
		return primitiveSolid(k, n, data)

	case scene.TransformData:
		children := s.Children(n)
		if len(children) != 1 {
			return nil, fmt.Errorf("transform node %s inside a boolean needs one child, has %d", n.ID.Short(), len(children))
		}
		solid, err := buildSolid(s, k, children[0])
		if err != nil {
			return nil, err
		}
		if r := data.Rotation; r != nil && *r != (mgl64.Vec3{}) {
			solid = k.Rotate(solid, r[0], r[1], r[2])
		}
		if t := data.Translation; t != nil && *t != (mgl64.Vec3{}) {
			solid = k.Translate(solid, t[0], t[1], t[2])
		}
		return solid, nil

	case scene.BooleanData:
		children := s.Children(n)
		if len(children) < 2 {
			return nil, fmt.Errorf("%s node %s needs two operands, has %d", data.Op, n.ID.Short(), len(children))
		}
		acc, err := buildSolid(s, k, children[0])
		if err != nil {
			return nil, err
		}
		for _, c := range children[1:] {
			operand, err := buildSolid(s, k, c)
			if err != nil {
				return nil, err
			}
			switch data.Op {
			case scene.BoolUnion:
				acc = k.Union(acc, operand)
			case scene.BoolDifference:
				acc = k.Difference(acc, operand)
			default:
				return nil, fmt.Errorf("boolean node %s has unknown op %v", n.ID.Short(), data.Op)
			}
		}
		return acc, nil

	default:
		return nil, fmt.Errorf("node %s (%s) is not a kernel solid", n.ID.Short(), n.Kind)
	}
}

func primitiveSolid(k kernel.Kernel, n *scene.Node, data scene.PrimitiveData) (kernel.Solid, error) {
	switch data.Prim {
	case scene.PrimBox:
		return k.Box(data.Size[0], data.Size[1], data.Size[2]), nil
	case scene.PrimCylinder:
		return k.Cylinder(data.Height, data.Radius), nil
	default:
		return nil, fmt.Errorf("primitive node %s (%s) is not a kernel solid", n.ID.Short(), data.Prim)
	}
}

// solidMesh applies the accumulated placement to solid, tessellates it and
// imports the result as a half-edge mesh.
func solidMesh(k kernel.Kernel, n *scene.Node, solid kernel.Solid, ts *transformStack) (*mesh.Mesh, error) {
	// Apply accumulated rotation first, then translation.
	if rot := ts.accumulatedRotation(); rot != (mgl64.Vec3{}) {
		solid = k.Rotate(solid, rot[0], rot[1], rot[2])
	}
	if trans := ts.accumulatedTranslation(); trans != (mgl64.Vec3{}) {
		solid = k.Translate(solid, trans[0], trans[1], trans[2])
	}

	km, err := k.ToMesh(solid)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for node %s: %w", n.ID.Short(), err)
	}
	km.Name = nodeName(n)
	m, err := mesh.FromKernel(km)
	if err != nil {
		return nil, fmt.Errorf("tessellate: import failed for node %s: %w", n.ID.Short(), err)
	}
	return m, nil
}

// place moves the vertices of a procedural mesh by the accumulated
// placement. UVs are untouched.
func place(m *mesh.Mesh, ts *transformStack) {
	rot := ts.accumulatedRotation()
	trans := ts.accumulatedTranslation()
	if rot == (mgl64.Vec3{}) && trans == (mgl64.Vec3{}) {
		return
	}
	r := rotation(rot)
	for _, v := range m.Verts() {
		vx := m.Vert(v)
		vx.Co = r.Mul3x1(vx.Co).Add(trans)
	}
	m.RecalcNormals()
}

// nodeName prefers the node's Name and falls back to its short ID.
func nodeName(n *scene.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID.Short()
}
