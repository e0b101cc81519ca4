package scene

import (
	"strings"
	"testing"

	"github.com/chazu/uvkit/pkg/ops"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// buildValidScene creates a drilled block (box minus cylinder) placed
// above a grid, both under a group root, with two UV steps.
func buildValidScene() *Scene {
	s := New()

	blockID := NewNodeID("defobject/block")
	holeID := NewNodeID("defobject/hole")
	diffID := NewNodeID("difference/drilled")
	placeID := NewNodeID("place/drilled")
	floorID := NewNodeID("defobject/floor")
	groupID := NewNodeID("group/set")

	s.AddNode(&Node{ID: blockID, Kind: NodePrimitive, Name: "block",
		Data: PrimitiveData{Prim: PrimBox, Size: mgl64.Vec3{2, 2, 1}}})
	s.AddNode(&Node{ID: holeID, Kind: NodePrimitive, Name: "hole",
		Data: PrimitiveData{Prim: PrimCylinder, Radius: 0.4, Height: 3}})
	s.AddNode(&Node{ID: diffID, Kind: NodeBoolean, Name: "drilled",
		Children: []NodeID{blockID, holeID}, Data: BooleanData{Op: BoolDifference}})
	up := mgl64.Vec3{0, 0, 2}
	s.AddNode(&Node{ID: placeID, Kind: NodeTransform,
		Children: []NodeID{diffID}, Data: TransformData{Translation: &up}})
	s.AddNode(&Node{ID: floorID, Kind: NodePrimitive, Name: "floor",
		Data: PrimitiveData{Prim: PrimGrid, Divisions: 4}})
	s.AddNode(&Node{ID: groupID, Kind: NodeGroup, Name: "set",
		Children: []NodeID{placeID, floorID}, Data: GroupData{}})
	s.AddRoot(groupID)

	s.AddStep(Step{Op: ops.KindVoxelUnwrap, Target: "drilled"})
	s.AddStep(Step{Op: ops.KindUnwrapSolve, Params: ops.Params{"steps": 5}})
	return s
}

// hasError returns true if errs contains at least one error-severity finding
// whose message contains substr.
func hasError(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityError && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func hasWarning(errs []ValidationError, substr string) bool {
	for _, e := range errs {
		if e.Severity == SeverityWarning && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Scene basics
// ---------------------------------------------------------------------------

func TestNodeIDIsStable(t *testing.T) {
	a, b := NewNodeID("defobject/block"), NewNodeID("defobject/block")
	if a != b {
		t.Fatalf("NewNodeID not deterministic: %s vs %s", a, b)
	}
	if a == NewNodeID("defobject/other") {
		t.Error("different paths produced the same ID")
	}
	if a.IsZero() || !ZeroID.IsZero() {
		t.Error("IsZero is wrong")
	}
	if got := len(a.Short()); got != 8 {
		t.Errorf("Short length = %d, want 8", got)
	}
}

func TestLookupAndChildren(t *testing.T) {
	s := buildValidScene()
	if s.NodeCount() != 6 {
		t.Fatalf("NodeCount = %d, want 6", s.NodeCount())
	}
	set := s.Lookup("set")
	if set == nil {
		t.Fatal("Lookup(set) = nil")
	}
	if got := len(s.Children(set)); got != 2 {
		t.Errorf("set has %d children, want 2", got)
	}
	if s.Lookup("nope") != nil {
		t.Error("Lookup of unknown name should be nil")
	}

	defer func() {
		if recover() == nil {
			t.Error("MustLookup of unknown name should panic")
		}
	}()
	s.MustLookup("nope")
}

func TestOrderedFollowsInsertion(t *testing.T) {
	s := buildValidScene()
	var names []string
	for _, n := range s.Ordered() {
		if n.Name != "" {
			names = append(names, n.Name)
		}
	}
	want := "block,hole,drilled,floor,set"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestAutoRoot(t *testing.T) {
	s := New()
	a := &Node{ID: NewNodeID("a"), Kind: NodePrimitive, Name: "a", Data: PrimitiveData{Prim: PrimQuad}}
	b := &Node{ID: NewNodeID("b"), Kind: NodePrimitive, Name: "b", Data: PrimitiveData{Prim: PrimCube}}
	p := &Node{ID: NewNodeID("place/b"), Kind: NodeTransform, Children: []NodeID{b.ID}, Data: TransformData{}}
	s.AddNode(a)
	s.AddNode(b)
	s.AddNode(p)

	s.AutoRoot()
	if len(s.Roots) != 2 || s.Roots[0] != a.ID || s.Roots[1] != p.ID {
		t.Fatalf("roots = %v, want [a place/b]", s.Roots)
	}
	s.AddRoot(a.ID)
	if len(s.Roots) != 2 {
		t.Error("AddRoot should ignore repeats")
	}
}

func TestIsSolid(t *testing.T) {
	s := buildValidScene()
	for name, want := range map[string]bool{"block": true, "drilled": true, "floor": false, "set": false} {
		if got := s.IsSolid(s.MustLookup(name)); got != want {
			t.Errorf("IsSolid(%s) = %v, want %v", name, got, want)
		}
	}
	if !s.IsSolid(s.Get(NewNodeID("place/drilled"))) {
		t.Error("placed boolean should be solid")
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

func TestValidateValidScene(t *testing.T) {
	if errs := Validate(buildValidScene()); len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
}

func TestValidateCycle(t *testing.T) {
	s := buildValidScene()
	set := s.MustLookup("set")
	drilled := s.MustLookup("drilled")
	drilled.Children = append(drilled.Children, set.ID)
	if errs := Validate(s); !hasError(errs, "cycle") {
		t.Errorf("expected cycle error, got %v", errs)
	}
}

func TestValidateDanglingChild(t *testing.T) {
	s := buildValidScene()
	set := s.MustLookup("set")
	set.Children = append(set.Children, NewNodeID("ghost"))
	errs := Validate(s)
	if !hasError(errs, "does not exist") {
		t.Errorf("expected dangling reference error, got %v", errs)
	}
	if !HasErrors(errs) {
		t.Error("HasErrors = false")
	}
}

func TestValidateDuplicateName(t *testing.T) {
	s := buildValidScene()
	s.AddNode(&Node{ID: NewNodeID("second-floor"), Kind: NodePrimitive, Name: "floor",
		Data: PrimitiveData{Prim: PrimQuad}})
	if errs := Validate(s); !hasError(errs, "duplicate name") {
		t.Errorf("expected duplicate name error, got %v", errs)
	}
}

func TestValidateOrphan(t *testing.T) {
	s := buildValidScene()
	s.AddNode(&Node{ID: NewNodeID("stray"), Kind: NodePrimitive, Name: "stray",
		Data: PrimitiveData{Prim: PrimHexFan}})
	errs := Validate(s)
	if !hasWarning(errs, "orphan") {
		t.Errorf("expected orphan warning, got %v", errs)
	}
	if HasErrors(errs) {
		t.Errorf("orphan should not be an error: %v", errs)
	}
}

func TestValidatePrimitiveDimensions(t *testing.T) {
	tests := []struct {
		name string
		data PrimitiveData
		want string
	}{
		{"flat box", PrimitiveData{Prim: PrimBox, Size: mgl64.Vec3{1, 0, 1}}, "box size"},
		{"thin cylinder", PrimitiveData{Prim: PrimCylinder, Radius: 0, Height: 1}, "cylinder radius"},
		{"empty grid", PrimitiveData{Prim: PrimGrid}, "grid needs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			id := NewNodeID(tt.name)
			s.AddNode(&Node{ID: id, Kind: NodePrimitive, Name: "x", Data: tt.data})
			s.AddRoot(id)
			if errs := Validate(s); !hasError(errs, tt.want) {
				t.Errorf("expected %q error, got %v", tt.want, errs)
			}
		})
	}
}

func TestValidateBooleanOperands(t *testing.T) {
	s := buildValidScene()
	drilled := s.MustLookup("drilled")
	drilled.Children = append(drilled.Children, s.MustLookup("floor").ID)
	if errs := Validate(s); !hasError(errs, "not a kernel solid") {
		t.Errorf("expected operand error, got %v", errs)
	}

	s = buildValidScene()
	drilled = s.MustLookup("drilled")
	drilled.Children = drilled.Children[:1]
	if errs := Validate(s); !hasError(errs, "at least two operands") {
		t.Errorf("expected operand count error, got %v", errs)
	}
}

func TestValidateStepTargets(t *testing.T) {
	s := buildValidScene()
	s.AddStep(Step{Op: ops.KindPack, Target: "missing"})
	s.AddStep(Step{})
	errs := Validate(s)
	if !hasError(errs, "unknown object") {
		t.Errorf("expected unknown target error, got %v", errs)
	}
	if !hasError(errs, "no operation") {
		t.Errorf("expected missing op error, got %v", errs)
	}
}

func TestValidationErrorString(t *testing.T) {
	e := ValidationError{Message: "boom", Severity: SeverityWarning}
	if got := e.Error(); got != "[warning] boom" {
		t.Errorf("Error() = %q", got)
	}
	e.NodeID = NewNodeID("x")
	if !strings.Contains(e.Error(), "node "+e.NodeID.Short()) {
		t.Errorf("Error() = %q, want node id", e.Error())
	}
}
