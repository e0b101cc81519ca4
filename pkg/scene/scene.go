package scene

import "fmt"

// Scene is the immutable result of one script evaluation. Each evaluation
// produces a new scene.
type Scene struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
	Steps     []Step            `json:"steps"`

	// order records insertion so traversals are deterministic.
	order []NodeID
}

// New creates an empty Scene.
func New() *Scene {
	return &Scene{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the scene. Adding an ID twice replaces the node.
func (s *Scene) AddNode(n *Node) {
	if _, ok := s.Nodes[n.ID]; !ok {
		s.order = append(s.order, n.ID)
	}
	s.Nodes[n.ID] = n
	if n.Name != "" {
		s.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the scene. Repeats are ignored.
func (s *Scene) AddRoot(id NodeID) {
	for _, r := range s.Roots {
		if r == id {
			return
		}
	}
	s.Roots = append(s.Roots, id)
}

// AddStep appends a UV operation.
func (s *Scene) AddStep(st Step) {
	s.Steps = append(s.Steps, st)
}

// Lookup returns the node with the given name, or nil.
func (s *Scene) Lookup(name string) *Node {
	id, ok := s.NameIndex[name]
	if !ok {
		return nil
	}
	return s.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (s *Scene) MustLookup(name string) *Node {
	n := s.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("scene: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (s *Scene) Get(id NodeID) *Node {
	return s.Nodes[id]
}

// Ordered returns every node in insertion order.
func (s *Scene) Ordered() []*Node {
	out := make([]*Node, 0, len(s.order))
	for _, id := range s.order {
		if n := s.Nodes[id]; n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Children returns the child nodes of n.
func (s *Scene) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := s.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// AutoRoot makes every node that no other node references a root, in
// insertion order. It is a no-op when roots already exist.
func (s *Scene) AutoRoot() {
	if len(s.Roots) > 0 {
		return
	}
	referenced := make(map[NodeID]bool)
	for _, n := range s.Nodes {
		for _, c := range n.Children {
			referenced[c] = true
		}
	}
	for _, n := range s.Ordered() {
		if !referenced[n.ID] {
			s.AddRoot(n.ID)
		}
	}
}

// NodeCount returns the total number of nodes.
func (s *Scene) NodeCount() int {
	return len(s.Nodes)
}
