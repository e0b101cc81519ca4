package scene

import "fmt"

// ValidationSeverity indicates whether a validation finding blocks
// tessellation or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks tessellation
	SeverityWarning                           // informational
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
	NodeID   NodeID             // which node has the problem (zero if scene-level)
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if e.NodeID.IsZero() {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] node %s: %s", e.Severity, e.NodeID.Short(), e.Message)
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

// Validate runs the structural checks on the scene and returns every
// finding. An empty slice means the scene is valid. It never mutates the
// scene.
func Validate(s *Scene) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateDAG(s)...)
	errs = append(errs, validateReferences(s)...)
	errs = append(errs, validateNames(s)...)
	errs = append(errs, validateRoots(s)...)
	errs = append(errs, validatePrimitives(s)...)
	errs = append(errs, validateBooleans(s)...)
	errs = append(errs, validateSteps(s)...)
	return errs
}

// validateDAG checks for cycles using DFS with 3-color marking.
func validateDAG(s *Scene) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[NodeID]int)
	var errs []ValidationError

	var visit func(id NodeID) bool // returns true if cycle found
	visit = func(id NodeID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				NodeID:   id,
				Message:  fmt.Sprintf("cycle detected: node %s is part of a cycle", id.Short()),
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		node, ok := s.Nodes[id]
		if !ok {
			// Dangling reference; handled by validateReferences.
			color[id] = black
			return false
		}
		for _, childID := range node.Children {
			if visit(childID) {
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, n := range s.Ordered() {
		if color[n.ID] == white && visit(n.ID) {
			break
		}
	}
	return errs
}

// validateReferences checks that every child ID points to an existing
// node.
func validateReferences(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, node := range s.Ordered() {
		for _, childID := range node.Children {
			if _, ok := s.Nodes[childID]; !ok {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("child reference %s does not exist", childID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateNames checks that every NameIndex entry resolves and that no two
// nodes share a name.
func validateNames(s *Scene) []ValidationError {
	var errs []ValidationError
	for name, id := range s.NameIndex {
		if _, ok := s.Nodes[id]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("name index entry %q references non-existent node %s", name, id.Short()),
				Severity: SeverityError,
			})
		}
	}

	seen := make(map[string]int)
	for _, node := range s.Ordered() {
		if node.Name != "" {
			seen[node.Name]++
		}
	}
	for _, node := range s.Ordered() {
		if c := seen[node.Name]; c > 1 {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("duplicate name %q assigned to %d nodes", node.Name, c),
				Severity: SeverityError,
			})
			seen[node.Name] = 0
		}
	}
	return errs
}

// validateRoots checks that roots exist and warns about nodes no root
// reaches.
func validateRoots(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, rid := range s.Roots {
		if _, ok := s.Nodes[rid]; !ok {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("root reference %s does not exist", rid.Short()),
				Severity: SeverityError,
			})
		}
	}
	if len(s.Nodes) == 0 {
		return errs
	}

	reachable := make(map[NodeID]bool)
	var queue []NodeID
	for _, rid := range s.Roots {
		if _, ok := s.Nodes[rid]; ok && !reachable[rid] {
			reachable[rid] = true
			queue = append(queue, rid)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		node := s.Nodes[current]
		if node == nil {
			continue
		}
		for _, childID := range node.Children {
			if !reachable[childID] {
				reachable[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	for _, node := range s.Ordered() {
		if reachable[node.ID] {
			continue
		}
		name := node.Name
		if name == "" {
			name = node.ID.Short()
		}
		errs = append(errs, ValidationError{
			NodeID:   node.ID,
			Message:  fmt.Sprintf("node %q is not reachable from any root (orphan)", name),
			Severity: SeverityWarning,
		})
	}
	return errs
}

// validatePrimitives checks shape dimensions.
func validatePrimitives(s *Scene) []ValidationError {
	var errs []ValidationError
	bad := func(n *Node, msg string, args ...any) {
		errs = append(errs, ValidationError{NodeID: n.ID, Message: fmt.Sprintf(msg, args...), Severity: SeverityError})
	}
	for _, node := range s.Ordered() {
		switch d := node.Data.(type) {
		case PrimitiveData:
			if node.Kind != NodePrimitive {
				bad(node, "primitive data on %s node", node.Kind)
			}
			switch d.Prim {
			case PrimBox:
				if d.Size[0] <= 0 || d.Size[1] <= 0 || d.Size[2] <= 0 {
					bad(node, "box size %v must be positive", d.Size)
				}
			case PrimCylinder:
				if d.Radius <= 0 || d.Height <= 0 {
					bad(node, "cylinder radius %g and height %g must be positive", d.Radius, d.Height)
				}
			case PrimGrid:
				if d.Divisions < 1 {
					bad(node, "grid needs at least one division, got %d", d.Divisions)
				}
			}
			if len(node.Children) > 0 {
				bad(node, "primitive has %d children", len(node.Children))
			}
		case nil:
			bad(node, "%s node has no data", node.Kind)
		}
	}
	return errs
}

// validateBooleans checks that booleans combine at least two kernel
// solids.
func validateBooleans(s *Scene) []ValidationError {
	var errs []ValidationError
	for _, node := range s.Ordered() {
		bd, ok := node.Data.(BooleanData)
		if !ok {
			continue
		}
		if len(node.Children) < 2 {
			errs = append(errs, ValidationError{
				NodeID:   node.ID,
				Message:  fmt.Sprintf("%s needs at least two operands, got %d", bd.Op, len(node.Children)),
				Severity: SeverityError,
			})
		}
		for _, c := range s.Children(node) {
			if !s.IsSolid(c) {
				errs = append(errs, ValidationError{
					NodeID:   node.ID,
					Message:  fmt.Sprintf("%s operand %s is not a kernel solid", bd.Op, c.ID.Short()),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// IsSolid reports whether n tessellates through the geometry kernel:
// kernel primitives and booleans, possibly under transforms.
func (s *Scene) IsSolid(n *Node) bool {
	return s.isSolid(n, make(map[NodeID]bool))
}

func (s *Scene) isSolid(n *Node, seen map[NodeID]bool) bool {
	if seen[n.ID] {
		return false
	}
	seen[n.ID] = true
	switch d := n.Data.(type) {
	case PrimitiveData:
		return d.Prim.Solid()
	case BooleanData:
		return true
	case TransformData:
		children := s.Children(n)
		if len(children) != 1 {
			return false
		}
		return s.isSolid(children[0], seen)
	}
	return false
}

// validateSteps checks that every step targets a known object.
func validateSteps(s *Scene) []ValidationError {
	var errs []ValidationError
	for i, st := range s.Steps {
		if st.Op == "" {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("step %d has no operation", i+1),
				Severity: SeverityError,
			})
		}
		if st.Target != "" && s.Lookup(st.Target) == nil {
			errs = append(errs, ValidationError{
				Message:  fmt.Sprintf("step %d (%s) targets unknown object %q", i+1, st.Op, st.Target),
				Severity: SeverityError,
			})
		}
	}
	return errs
}
