package engine

import (
	"strings"
	"testing"

	"github.com/chazu/uvkit/pkg/ops"
	"github.com/chazu/uvkit/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(grid :n 4)`,
			expect: `(grid "__kw_n" 4)`,
		},
		{
			name:   "multiple keywords",
			input:  `(cylinder :radius 1 :height 2)`,
			expect: `(cylinder "__kw_radius" 1 "__kw_height" 2)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(voxel-unwrap :split-var 0.2)`,
			expect: `(voxel_unwrap "__kw_split-var" 0.2)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:budget-ms`,
			expect: `"__kw_budget-ms"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// evalOK evaluates source and fails the test on any error.
func evalOK(t *testing.T, source string) *scene.Scene {
	t.Helper()
	s, evalErrs, err := NewEngine(nil).Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if s == nil {
		t.Fatal("expected non-nil scene")
	}
	return s
}

// evalFails evaluates source and returns the eval errors, failing the test
// if there are none.
func evalFails(t *testing.T, source string) []EvalError {
	t.Helper()
	s, evalErrs, err := NewEngine(nil).Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if s != nil {
		t.Fatal("expected nil scene")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error")
	}
	return evalErrs
}

func mentions(errs []EvalError, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

func TestDefobjectBox(t *testing.T) {
	s := evalOK(t, `(defobject "crate" (box 2 3 1))`)
	if s.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", s.NodeCount())
	}
	crate := s.Lookup("crate")
	if crate == nil {
		t.Fatal("expected node named 'crate'")
	}
	if crate.Kind != scene.NodePrimitive {
		t.Errorf("expected NodePrimitive, got %s", crate.Kind)
	}
	pd, ok := crate.Data.(scene.PrimitiveData)
	if !ok {
		t.Fatalf("expected PrimitiveData, got %T", crate.Data)
	}
	if pd.Prim != scene.PrimBox || pd.Size != (mgl64.Vec3{2, 3, 1}) {
		t.Errorf("got %v %v, want box (2,3,1)", pd.Prim, pd.Size)
	}

	// A lone object is rooted automatically.
	if len(s.Roots) != 1 || s.Roots[0] != crate.ID {
		t.Errorf("roots = %v, want [crate]", s.Roots)
	}
	if crate.ID != scene.NewNodeID("defobject/crate") {
		t.Error("object ID should derive from its name")
	}
}

func TestShapeForms(t *testing.T) {
	s := evalOK(t, `
(defobject "a" (box :size (vec3 1 2 3)))
(defobject "b" (cylinder :radius 0.25 :height 4))
(defobject "c" (grid :n 3))
(defobject "d" (quad))
(defobject "e" (hexfan))
(defobject "f" (cube))
`)
	want := map[string]scene.PrimitiveData{
		"a": {Prim: scene.PrimBox, Size: mgl64.Vec3{1, 2, 3}},
		"b": {Prim: scene.PrimCylinder, Radius: 0.25, Height: 4},
		"c": {Prim: scene.PrimGrid, Divisions: 3},
		"d": {Prim: scene.PrimQuad},
		"e": {Prim: scene.PrimHexFan},
		"f": {Prim: scene.PrimCube},
	}
	for name, pd := range want {
		n := s.Lookup(name)
		if n == nil {
			t.Fatalf("missing %q", name)
		}
		if got := n.Data.(scene.PrimitiveData); got != pd {
			t.Errorf("%s: got %+v, want %+v", name, got, pd)
		}
	}
	if len(s.Roots) != 6 {
		t.Errorf("expected 6 roots, got %d", len(s.Roots))
	}
}

func TestVariableReference(t *testing.T) {
	s := evalOK(t, `
(def n 5)
(def side 2.5)
(defobject "floor" (grid :n n))
(defobject "crate" (box side side 1))
`)
	if got := s.Lookup("floor").Data.(scene.PrimitiveData).Divisions; got != 5 {
		t.Errorf("divisions = %d, want 5", got)
	}
	if got := s.Lookup("crate").Data.(scene.PrimitiveData).Size; got != (mgl64.Vec3{2.5, 2.5, 1}) {
		t.Errorf("size = %v, want (2.5,2.5,1)", got)
	}
}

func TestVec3(t *testing.T) {
	s := evalOK(t, `
(defobject "tile" (quad))
(place (object "tile") :at (vec3 1.5 -2 3) :rotate (vec3 0 0 45))
`)
	var td scene.TransformData
	for _, n := range s.Ordered() {
		if n.Kind == scene.NodeTransform {
			td = n.Data.(scene.TransformData)
		}
	}
	if td.Translation == nil || *td.Translation != (mgl64.Vec3{1.5, -2, 3}) {
		t.Errorf("translation = %v", td.Translation)
	}
	if td.Rotation == nil || *td.Rotation != (mgl64.Vec3{0, 0, 45}) {
		t.Errorf("rotation = %v", td.Rotation)
	}

	evalFails(t, `(vec3 1 2)`)
}

// ---------------------------------------------------------------------------
// Composition
// ---------------------------------------------------------------------------

func TestGroupWithPlacement(t *testing.T) {
	s := evalOK(t, `
(defobject "floor" (grid :n 4))
(defobject "crate" (box 1 1 1))

(group "yard"
  (object "floor")
  (place (object "crate") :at (vec3 2 2 0.5)))
`)
	// 2 primitives + 1 transform + 1 group = 4 nodes
	if s.NodeCount() != 4 {
		t.Fatalf("expected 4 nodes, got %d", s.NodeCount())
	}
	yard := s.Lookup("yard")
	if yard == nil {
		t.Fatal("expected node named 'yard'")
	}
	if yard.Kind != scene.NodeGroup {
		t.Errorf("yard: expected NodeGroup, got %s", yard.Kind)
	}
	if len(yard.Children) != 2 {
		t.Errorf("yard: expected 2 children, got %d", len(yard.Children))
	}
	if len(s.Roots) != 1 || s.Roots[0] != yard.ID {
		t.Errorf("expected yard as the only root, got %v", s.Roots)
	}

	place := s.Get(scene.NewNodeID("place/crate"))
	if place == nil {
		t.Fatal("placement of a named object should derive its ID from the name")
	}
	if td := place.Data.(scene.TransformData); td.Translation == nil || td.Rotation != nil {
		t.Errorf("unexpected transform %+v", td)
	}
}

func TestPlaceTwice(t *testing.T) {
	s := evalOK(t, `
(defobject "crate" (box 1 1 1))
(group "stack"
  (place (object "crate") :at (vec3 0 0 0))
  (place (object "crate") :at (vec3 0 0 1)))
`)
	if got := len(s.Lookup("stack").Children); got != 2 {
		t.Fatalf("expected 2 placements, got %d", got)
	}
	a, b := s.Lookup("stack").Children[0], s.Lookup("stack").Children[1]
	if a == b {
		t.Error("two placements share an ID")
	}
}

func TestBooleanObject(t *testing.T) {
	s := evalOK(t, `
(defobject "drilled"
  (difference (box 2 2 1)
              (cylinder :radius 0.4 :height 3)))
`)
	drilled := s.Lookup("drilled")
	if drilled == nil {
		t.Fatal("expected node named 'drilled'")
	}
	if drilled.Kind != scene.NodeBoolean {
		t.Fatalf("expected NodeBoolean, got %s", drilled.Kind)
	}
	if op := drilled.Data.(scene.BooleanData).Op; op != scene.BoolDifference {
		t.Errorf("op = %v, want difference", op)
	}
	if len(drilled.Children) != 2 {
		t.Fatalf("expected 2 operands, got %d", len(drilled.Children))
	}
	// Only the boolean is a root; its operands are referenced.
	if len(s.Roots) != 1 || s.Roots[0] != drilled.ID {
		t.Errorf("roots = %v, want [drilled]", s.Roots)
	}
}

func TestBooleanDeterministicIDs(t *testing.T) {
	src := `(defobject "u" (union (box 1 1 1) (place (box 1 1 1) :at (vec3 0.5 0 0))))`
	a, b := evalOK(t, src), evalOK(t, src)
	if a.Lookup("u").ID != b.Lookup("u").ID {
		t.Error("anonymous IDs differ between evaluations of the same source")
	}
}

func TestBooleanRejectsSurface(t *testing.T) {
	errs := evalFails(t, `(defobject "bad" (union (box 1 1 1) (quad)))`)
	if !mentions(errs, "not a kernel solid") {
		t.Errorf("expected operand error, got %v", errs)
	}
}

func TestObjectLookupError(t *testing.T) {
	errs := evalFails(t, `(object "nonexistent")`)
	if errs[0].Message == "" {
		t.Error("eval error should have a non-empty message")
	}
}

func TestInvalidShapeFailsValidation(t *testing.T) {
	errs := evalFails(t, `(defobject "flat" (box 1 0 1))`)
	if !mentions(errs, "box size") {
		t.Errorf("expected box size error, got %v", errs)
	}
}

// ---------------------------------------------------------------------------
// UV operations
// ---------------------------------------------------------------------------

func TestUVOperationSteps(t *testing.T) {
	s := evalOK(t, `
(defobject "crate" (box 2 2 1))
(defobject "floor" (grid :n 4))

(voxel-unwrap "crate" :split-var 0.2 :set-seams true)
(unwrap-solve (object "crate") :steps 20 :reset)
(grid-uvs "floor")
(pack-uvs :margin 0.01)
(fix-seams :tex-size 512)
`)
	if len(s.Steps) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(s.Steps))
	}

	want := []scene.Step{
		{Op: ops.KindVoxelUnwrap, Target: "crate", Params: ops.Params{"split_var": 0.2, "set_seams": 1}},
		{Op: ops.KindUnwrapSolve, Target: "crate", Params: ops.Params{"steps": 20, ops.ParamReset: 1}},
		{Op: ops.KindGrid, Target: "floor", Params: ops.Params{}},
		{Op: ops.KindPack, Params: ops.Params{"margin": 0.01}},
		{Op: ops.KindFixSeams, Params: ops.Params{"tex_size": 512}},
	}
	for i, w := range want {
		got := s.Steps[i]
		if got.Op != w.Op || got.Target != w.Target {
			t.Errorf("step %d = %s %q, want %s %q", i, got.Op, got.Target, w.Op, w.Target)
		}
		if len(got.Params) != len(w.Params) {
			t.Errorf("step %d params = %v, want %v", i, got.Params, w.Params)
			continue
		}
		for k, v := range w.Params {
			if got.Params[k] != v {
				t.Errorf("step %d param %s = %g, want %g", i, k, got.Params[k], v)
			}
		}
	}
}

func TestEveryKindHasBuiltin(t *testing.T) {
	var b strings.Builder
	b.WriteString("(defobject \"tile\" (quad))\n")
	for _, k := range ops.Kinds {
		b.WriteString("(" + strings.ReplaceAll(string(k), "_", "-") + " \"tile\")\n")
	}
	s := evalOK(t, b.String())
	if len(s.Steps) != len(ops.Kinds) {
		t.Fatalf("expected %d steps, got %d", len(ops.Kinds), len(s.Steps))
	}
	for i, k := range ops.Kinds {
		if s.Steps[i].Op != k {
			t.Errorf("step %d = %s, want %s", i, s.Steps[i].Op, k)
		}
	}
}

func TestUVOperationErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"unknown param", `(defobject "t" (quad)) (pack-uvs :wobble 1)`, "wobble"},
		{"invalid value", `(defobject "t" (quad)) (pack-uvs :margin -1)`, "margin"},
		{"unknown target", `(defobject "t" (quad)) (relax-uvs "missing")`, "unknown object"},
		{"unnamed target", `(relax-uvs (place (quad) :at (vec3 0 0 0)))`, "has no name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := evalFails(t, tt.source)
			if !mentions(errs, tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, errs)
			}
		})
	}
}
