package scene

import "github.com/google/uuid"

// NodeID is a content-addressed identifier for scene nodes.
type NodeID uuid.UUID

// ZeroID is the zero NodeID.
var ZeroID NodeID

// nodeNamespace scopes NodeIDs derived from paths.
var nodeNamespace = uuid.MustParse("6f1c2b9e-4a57-4d0e-9c8e-3b1f5d2a7c40")

// NewNodeID derives a stable ID from a path such as "box/lid".
func NewNodeID(path string) NodeID {
	return NodeID(uuid.NewSHA1(nodeNamespace, []byte(path)))
}

// IsZero reports whether id is the zero ID.
func (id NodeID) IsZero() bool { return id == ZeroID }

// Short returns the first eight hex digits, for messages.
func (id NodeID) Short() string { return uuid.UUID(id).String()[:8] }

func (id NodeID) String() string { return uuid.UUID(id).String() }

// NodeKind enumerates the types of nodes in the scene.
type NodeKind int

const (
	NodePrimitive NodeKind = iota // shape (box, grid, ...)
	NodeTransform                 // placement (place)
	NodeGroup                     // named collection (group)
	NodeBoolean                   // solid combination (union, difference)
)

func (k NodeKind) String() string {
	switch k {
	case NodePrimitive:
		return "primitive"
	case NodeTransform:
		return "transform"
	case NodeGroup:
		return "group"
	case NodeBoolean:
		return "boolean"
	default:
		return "unknown"
	}
}

// Node is one element of the scene.
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Name     string   `json:"name,omitempty"`
	Children []NodeID `json:"children,omitempty"`
	Data     NodeData `json:"data"`
}

// NodeData is the interface for kind-specific node payloads.
type NodeData interface {
	nodeData() // marker method restricting implementations to this package
}
