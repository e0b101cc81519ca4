package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/uvkit/pkg/ops"
	"github.com/chazu/uvkit/pkg/scene"
)

const crateScript = `
; crate with a drilled hole, a floor and the steps that lay them out
(defobject "crate" (difference (box 2 2 1) (cylinder :radius 0.4 :height 3)))
(defobject "floor" (grid :n 4))

(voxel-unwrap "crate")
(unwrap-solve "crate" :steps 10)
(pack-uvs)
`

func TestEvaluateBlankScripts(t *testing.T) {
	sources := map[string]string{
		"empty":        "",
		"whitespace":   "   \n\t  \n",
		"comment only": "; nothing yet\n",
		"arithmetic":   "(+ 1 2)",
		"definitions":  "(def tiles 4)\n(def gap (+ tiles 1))",
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			s := evalOK(t, src)
			if s.NodeCount() != 0 || len(s.Steps) != 0 || len(s.Roots) != 0 {
				t.Errorf("nodes = %d, steps = %d, roots = %d, want an empty scene",
					s.NodeCount(), len(s.Steps), len(s.Roots))
			}
		})
	}
}

func TestEvaluateScriptWithSteps(t *testing.T) {
	s := evalOK(t, crateScript)

	// Box and cylinder hang off the boolean; only named objects are roots.
	if got := s.NodeCount(); got != 4 {
		t.Errorf("nodes = %d, want 4", got)
	}
	var roots []string
	for _, id := range s.Roots {
		roots = append(roots, s.Get(id).Name)
	}
	if want := []string{"crate", "floor"}; !reflect.DeepEqual(roots, want) {
		t.Errorf("roots = %v, want %v", roots, want)
	}

	want := []scene.Step{
		{Op: ops.KindVoxelUnwrap, Target: "crate", Params: ops.Params{}},
		{Op: ops.KindUnwrapSolve, Target: "crate", Params: ops.Params{"steps": 10}},
		{Op: ops.KindPack, Params: ops.Params{}},
	}
	if !reflect.DeepEqual(s.Steps, want) {
		t.Errorf("steps = %+v\nwant %+v", s.Steps, want)
	}
}

func TestEvaluateRejectsBadStepParams(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{`(voxel-unwrap :split-var 0)`, "voxel.split_var"},
		{`(voxel-unwrap :leaf-limit 0)`, "voxel.leaf_limit"},
		{`(unwrap-solve :gain 0)`, "solve.gain"},
		{`(unwrap-solve :steps -2)`, "solve.steps"},
		{`(pack-uvs :skip-chance 1)`, "pack.skip_chance"},
		{`(relax-uvs :boundary-weight -1)`, "relax.boundary_weight"},
		{`(fix-seams :tex-size 0)`, "tex_size"},
		{`(grid-uvs :margin "wide")`, "expected number"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			errs := evalFails(t, `(defobject "floor" (grid :n 2))`+"\n"+tt.source)
			if !mentions(errs, tt.want) {
				t.Errorf("errors %v do not mention %q", errs, tt.want)
			}
		})
	}
}

func TestEvaluateValidationErrorHasNoLine(t *testing.T) {
	errs := evalFails(t, `(defobject "post" (cylinder :radius 0))`)
	if !mentions(errs, "cylinder radius") {
		t.Fatalf("errors %v do not mention the radius", errs)
	}
	if errs[0].Line != 0 {
		t.Errorf("line = %d, want 0 for a scene finding", errs[0].Line)
	}
}

func TestEvaluateLogsOrphanWarning(t *testing.T) {
	var buf bytes.Buffer
	eng := NewEngine(slog.New(slog.NewTextHandler(&buf, nil)))

	s, evalErrs, err := eng.Evaluate(`
(defobject "spare" (cube))
(group "yard" (quad))
`)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("Evaluate: err = %v, eval errors = %v", err, evalErrs)
	}
	if s.Lookup("spare") == nil {
		t.Fatal("orphaned object should stay in the scene")
	}
	out := buf.String()
	if !strings.Contains(out, "scene validation") || !strings.Contains(out, "orphan") {
		t.Errorf("log = %q, want an orphan warning", out)
	}
}

func TestEvaluateSyntaxErrorDropsScene(t *testing.T) {
	errs := evalFails(t, "(defobject \"a\" (quad))\n(grid :n")
	if errs[0].Message == "" {
		t.Error("empty error message")
	}
}

func TestEvaluateIsRepeatable(t *testing.T) {
	eng := NewEngine(nil)
	ids := func(s *scene.Scene) []scene.NodeID {
		var out []scene.NodeID
		for _, n := range s.Ordered() {
			out = append(out, n.ID)
		}
		return out
	}

	first, _, err := eng.Evaluate(crateScript)
	if err != nil || first == nil {
		t.Fatalf("first evaluation: %v", err)
	}
	second, _, err := eng.Evaluate(crateScript)
	if err != nil || second == nil {
		t.Fatalf("second evaluation: %v", err)
	}
	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Errorf("node IDs differ between runs:\n%v\n%v", ids(first), ids(second))
	}
	if !reflect.DeepEqual(first.Steps, second.Steps) {
		t.Errorf("steps differ between runs")
	}
}

func TestEvaluateConcurrentCallers(t *testing.T) {
	const n = 8
	eng := NewEngine(nil)
	scenes := make([]*scene.Scene, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scenes[i], _, errs[i] = eng.Evaluate(crateScript)
		}()
	}
	wg.Wait()

	ok := 0
	for i, err := range errs {
		switch {
		case err == nil:
			ok++
			if scenes[i] == nil {
				t.Errorf("caller %d: nil scene without error", i)
			}
		case !errors.Is(err, ErrSuperseded):
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if ok == 0 {
		t.Error("the newest evaluation must always be delivered")
	}
}

func TestAwaitTimesOut(t *testing.T) {
	eng := NewEngine(nil)
	eng.Timeout = 20 * time.Millisecond
	eng.generation = 1

	start := time.Now()
	_, _, err := eng.await(make(chan evalResult), 1)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("await took %s with a 20ms timeout", elapsed)
	}
}

func TestAwaitGeneration(t *testing.T) {
	eng := NewEngine(nil)
	eng.generation = 2
	delivered := scene.New()

	ch := make(chan evalResult, 1)
	ch <- evalResult{scene: delivered}
	if _, _, err := eng.await(ch, 1); !errors.Is(err, ErrSuperseded) {
		t.Errorf("stale generation: err = %v, want ErrSuperseded", err)
	}

	ch <- evalResult{scene: delivered}
	got, _, err := eng.await(ch, 2)
	if err != nil || got != delivered {
		t.Errorf("current generation: got %p, %v; want %p", got, err, delivered)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		msg      string
		wantLine int
		wantMsg  string
	}{
		{"Error on line 4: voxel_unwrap: ops: unknown parameter: \"wobble\"\n", 4, `unknown parameter: "wobble"`},
		{"error on line 2: unexpected end of input", 2, "unexpected end of input"},
		{"line 7: defobject requires a name and a body expression", 7, "defobject requires a name"},
		{`object: no object named "crate"`, 0, `no object named "crate"`},
	}
	for _, tt := range tests {
		errs := parseZygomysError(errors.New(tt.msg))
		if len(errs) != 1 {
			t.Fatalf("%q: got %d errors, want 1", tt.msg, len(errs))
		}
		if errs[0].Line != tt.wantLine || !strings.Contains(errs[0].Message, tt.wantMsg) {
			t.Errorf("%q: got line %d %q, want line %d containing %q",
				tt.msg, errs[0].Line, errs[0].Message, tt.wantLine, tt.wantMsg)
		}
	}
}

func TestEvalErrorString(t *testing.T) {
	if got := (EvalError{Line: 3, Message: "grid: n: expected number"}).Error(); got != "line 3: grid: n: expected number" {
		t.Errorf("with line: %q", got)
	}
	if got := (EvalError{Message: `node "post": cylinder radius must be positive`}).Error(); strings.Contains(got, "line") {
		t.Errorf("without line: %q", got)
	}
}
