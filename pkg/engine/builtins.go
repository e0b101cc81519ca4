package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/uvkit/pkg/config"
	"github.com/chazu/uvkit/pkg/ops"
	"github.com/chazu/uvkit/pkg/scene"
	"github.com/go-gl/mathgl/mgl64"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source before passing it to zygomys.
// It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: voxel-unwrap -> voxel_unwrap
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
//  3. Line comments: ; and ;; become //.
//
// All transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpShape wraps primitive data so it can be returned from a shape
// builtin and consumed by `defobject` or a boolean.
type sexpShape struct {
	data scene.PrimitiveData
}

func (s *sexpShape) SexpString(ps *zygo.PrintState) string {
	switch s.data.Prim {
	case scene.PrimBox:
		return fmt.Sprintf("(box %g %g %g)", s.data.Size[0], s.data.Size[1], s.data.Size[2])
	case scene.PrimCylinder:
		return fmt.Sprintf("(cylinder :radius %g :height %g)", s.data.Radius, s.data.Height)
	case scene.PrimGrid:
		return fmt.Sprintf("(grid :n %d)", s.data.Divisions)
	}
	return fmt.Sprintf("(%s)", s.data.Prim)
}
func (s *sexpShape) Type() *zygo.RegisteredType { return nil }

// sexpNodeRef wraps a scene.NodeID so it can be passed between builtins.
type sexpNodeRef struct {
	id   scene.NodeID
	name string // human-readable name for error messages
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	if n.name != "" {
		return fmt.Sprintf("(object %q)", n.name)
	}
	return fmt.Sprintf("(noderef %s)", n.id.Short())
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpVec3 wraps an mgl64.Vec3.
type sexpVec3 struct {
	vec mgl64.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec[0], v.vec[1], v.vec[2])
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		if _, seen := result.kw[name]; !seen {
			result.order = append(result.order, name)
		}
		if i+1 < len(args) {
			if _, next := isKW(args[i+1]); !next {
				result.kw[name] = args[i+1]
				i += 2
				continue
			}
		}
		// Keyword with no value is a flag.
		result.kw[name] = zygo.SexpNull
		i++
	}
	return result
}

// number returns kw[key] as a float, or def when absent.
func (a kwArgs) number(key string, def float64) (float64, error) {
	v, ok := a.kw[key]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toParam extracts an operation parameter. Booleans become 0 or 1 and a
// bare flag keyword means true.
func toParam(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		if v.Val {
			return 1, nil
		}
		return 0, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return 1, nil
		}
	}
	return toFloat64(s)
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (mgl64.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return mgl64.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Scene building
// ---------------------------------------------------------------------------

// builder adds nodes to a scene on behalf of the builtins. Anonymous
// nodes are numbered per evaluation so IDs are stable across runs of the
// same source.
type builder struct {
	s     *scene.Scene
	anons int
}

func (b *builder) anonPath(prefix string) string {
	b.anons++
	return fmt.Sprintf("%s/_anon_%d", prefix, b.anons)
}

// operand resolves a shape or node reference to a node ID, adding an
// anonymous primitive node for bare shapes.
func (b *builder) operand(s zygo.Sexp) (scene.NodeID, error) {
	switch v := s.(type) {
	case *sexpNodeRef:
		return v.id, nil
	case *sexpShape:
		id := scene.NewNodeID(b.anonPath(v.data.Prim.String()))
		b.s.AddNode(&scene.Node{ID: id, Kind: scene.NodePrimitive, Data: v.data})
		return id, nil
	}
	return scene.ZeroID, fmt.Errorf("expected shape or object, got %T (%s)", s, s.SexpString(nil))
}

// target resolves the optional first argument of a UV operation to an
// object name. An empty name means every mesh.
func (b *builder) target(pos []zygo.Sexp) (string, error) {
	if len(pos) == 0 {
		return "", nil
	}
	if len(pos) > 1 {
		return "", fmt.Errorf("expected at most one target, got %d", len(pos))
	}
	switch v := pos[0].(type) {
	case *zygo.SexpStr:
		return v.S, nil
	case *sexpNodeRef:
		if n := b.s.Get(v.id); n != nil && n.Name != "" {
			return n.Name, nil
		}
		return "", fmt.Errorf("target %s has no name; wrap it in defobject", v.SexpString(nil))
	}
	return "", fmt.Errorf("expected object name or reference, got %T (%s)", pos[0], pos[0].SexpString(nil))
}

// params converts keyword arguments to operation parameters, mapping
// kebab-case keys to their underscore form.
func params(pa kwArgs) (ops.Params, error) {
	p := make(ops.Params, len(pa.order))
	for _, k := range pa.order {
		v, err := toParam(pa.kw[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		p[strings.ReplaceAll(k, "-", "_")] = v
	}
	if _, err := p.Apply(config.Default()); err != nil {
		return nil, err
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// zfunc is the signature zygomys expects for Go builtins.
type zfunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs all script builtins into a zygomys environment.
// The builtins operate on the provided Scene, populating it during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, s *scene.Scene) {
	b := &builder{s: s}

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		var v mgl64.Vec3
		for i, axis := range []string{"x", "y", "z"} {
			f, err := toFloat64(args[i])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
			}
			v[i] = f
		}
		return &sexpVec3{vec: v}, nil
	})

	// -----------------------------------------------------------------------
	// (box 2 2 1) or (box :size (vec3 2 2 1))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := scene.PrimitiveData{Prim: scene.PrimBox}
		if v, ok := pa.kw["size"]; ok {
			size, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			pd.Size = size
		} else {
			if len(pa.positional) != 3 {
				return zygo.SexpNull, fmt.Errorf("box requires :size or three dimensions, got %d arguments", len(pa.positional))
			}
			for i := range pa.positional {
				f, err := toFloat64(pa.positional[i])
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i+1, err)
				}
				pd.Size[i] = f
			}
		}
		return &sexpShape{data: pd}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :radius 0.5 :height 2)
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		pd := scene.PrimitiveData{Prim: scene.PrimCylinder}
		var err error
		if pd.Radius, err = pa.number("radius", 0.5); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		if pd.Height, err = pa.number("height", 1); err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: %w", err)
		}
		return &sexpShape{data: pd}, nil
	})

	// -----------------------------------------------------------------------
	// (grid :n 4)
	// -----------------------------------------------------------------------
	env.AddFunction("grid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		n, err := parseArgs(args).number("n", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("grid: %w", err)
		}
		return &sexpShape{data: scene.PrimitiveData{Prim: scene.PrimGrid, Divisions: int(n)}}, nil
	})

	// -----------------------------------------------------------------------
	// (quad) (hexfan) (cube)
	// -----------------------------------------------------------------------
	for fn, prim := range map[string]scene.PrimitiveKind{
		"quad":   scene.PrimQuad,
		"hexfan": scene.PrimHexFan,
		"cube":   scene.PrimCube,
	} {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 0 {
				return zygo.SexpNull, fmt.Errorf("%s takes no arguments, got %d", fn, len(args))
			}
			return &sexpShape{data: scene.PrimitiveData{Prim: prim}}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (defobject "name" (box ...)) names a shape, boolean or placement.
	// -----------------------------------------------------------------------
	env.AddFunction("defobject", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("defobject requires a name and a body expression")
		}
		objName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("defobject: name: %w", err)
		}
		if objName == "" {
			return zygo.SexpNull, fmt.Errorf("defobject: name must not be empty")
		}

		switch body := args[1].(type) {
		case *sexpShape:
			id := scene.NewNodeID("defobject/" + objName)
			s.AddNode(&scene.Node{ID: id, Kind: scene.NodePrimitive, Name: objName, Data: body.data})
			return &sexpNodeRef{id: id, name: objName}, nil
		case *sexpNodeRef:
			n := s.Get(body.id)
			if n == nil {
				return zygo.SexpNull, fmt.Errorf("defobject: unknown node %s", body.id.Short())
			}
			if n.Name != "" && n.Name != objName {
				return zygo.SexpNull, fmt.Errorf("defobject: %q is already named %q", objName, n.Name)
			}
			n.Name = objName
			s.AddNode(n)
			return &sexpNodeRef{id: n.ID, name: objName}, nil
		}
		return zygo.SexpNull, fmt.Errorf("defobject: expected shape or object, got %T (%s)", args[1], args[1].SexpString(nil))
	})

	// -----------------------------------------------------------------------
	// (object "name")
	// -----------------------------------------------------------------------
	env.AddFunction("object", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("object requires a name argument")
		}
		objName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("object: name: %w", err)
		}
		n := s.Lookup(objName)
		if n == nil {
			return zygo.SexpNull, fmt.Errorf("object: no object named %q", objName)
		}
		return &sexpNodeRef{id: n.ID, name: objName}, nil
	})

	// -----------------------------------------------------------------------
	// (place (object "crate") :at (vec3 0 0 2) :rotate (vec3 0 0 90))
	// -----------------------------------------------------------------------
	env.AddFunction("place", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("place requires an object as first argument")
		}
		childID, err := b.operand(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("place: %w", err)
		}

		td := scene.TransformData{}
		if v, ok := pa.kw["at"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: at: %w", err)
			}
			td.Translation = &vec
		}
		if v, ok := pa.kw["rotate"]; ok {
			vec, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("place: rotate: %w", err)
			}
			td.Rotation = &vec
		}

		// Placements of named objects get IDs derived from the name; a
		// second placement of the same object falls back to a counter.
		idPath := b.anonPath("place")
		if child := s.Get(childID); child != nil && child.Name != "" {
			if p := "place/" + child.Name; s.Get(scene.NewNodeID(p)) == nil {
				idPath = p
			}
		}
		id := scene.NewNodeID(idPath)
		s.AddNode(&scene.Node{
			ID:       id,
			Kind:     scene.NodeTransform,
			Children: []scene.NodeID{childID},
			Data:     td,
		})
		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...) (difference a b ...)
	// -----------------------------------------------------------------------
	for fn, op := range map[string]scene.BoolOp{
		"union":      scene.BoolUnion,
		"difference": scene.BoolDifference,
	} {
		env.AddFunction(fn, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least two operands, got %d", fn, len(args))
			}
			children := make([]scene.NodeID, 0, len(args))
			for i, a := range args {
				id, err := b.operand(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", fn, i+1, err)
				}
				children = append(children, id)
			}
			id := scene.NewNodeID(b.anonPath(fn))
			s.AddNode(&scene.Node{
				ID:       id,
				Kind:     scene.NodeBoolean,
				Children: children,
				Data:     scene.BooleanData{Op: op},
			})
			return &sexpNodeRef{id: id}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (group "name" (place ...) (object "floor") ...)
	// -----------------------------------------------------------------------
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("group requires a name argument")
		}
		groupName, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("group: name: %w", err)
		}

		var children []scene.NodeID
		for i := 1; i < len(args); i++ {
			items := []zygo.Sexp{args[i]}
			if list, err := sexpListToSlice(args[i]); err == nil {
				items = list
			}
			for _, item := range items {
				id, err := b.operand(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("group: child %d: %w", i, err)
				}
				children = append(children, id)
			}
		}

		id := scene.NewNodeID("group/" + groupName)
		s.AddNode(&scene.Node{
			ID:       id,
			Kind:     scene.NodeGroup,
			Name:     groupName,
			Children: children,
			Data:     scene.GroupData{},
		})
		s.AddRoot(id)
		return &sexpNodeRef{id: id, name: groupName}, nil
	})

	// -----------------------------------------------------------------------
	// UV operations, one builtin per kind:
	//   (voxel-unwrap "crate" :split-var 0.2)
	//   (unwrap-solve :steps 20 :reset)
	// -----------------------------------------------------------------------
	for _, kind := range ops.Kinds {
		env.AddFunction(string(kind), uvOp(b, kind))
	}
}

// uvOp returns the builtin that records a UV operation step.
func uvOp(b *builder, kind ops.Kind) zfunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		target, err := b.target(pa.positional)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		p, err := params(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		b.s.AddStep(scene.Step{Op: kind, Target: target, Params: p})
		return zygo.SexpNull, nil
	}
}
