package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/uvkit/pkg/config"
	"github.com/chazu/uvkit/pkg/engine"
	"github.com/chazu/uvkit/pkg/kernel"
	"github.com/chazu/uvkit/pkg/kernel/sdfx"
	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/ops"
	"github.com/chazu/uvkit/pkg/tessellate"
)

// App ties the script engine, the geometry kernel and the operation
// runner into one pipeline.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	runner *ops.Runner
	log    *slog.Logger
}

// StepReport is the outcome of one script step on one mesh.
type StepReport struct {
	Step int
	Mesh string
	ops.Report
}

// Result is everything one evaluation produced.
type Result struct {
	Meshes  []*mesh.Mesh
	Reports []StepReport
	Errors  []engine.EvalError
}

// NewApp creates an App with an engine, the sdfx kernel and a runner
// configured from opts.
func NewApp(opts config.Options, log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		engine: engine.NewEngine(log),
		kernel: &sdfx.SdfxKernel{Cells: opts.Kernel.Cells, Weld: opts.Kernel.Weld},
		runner: ops.NewRunner(opts, log),
		log:    log,
	}
}

// Evaluate runs source end to end: evaluate the script into a scene,
// tessellate it, then apply the scene's UV steps in order. Script errors
// come back in Result.Errors; everything else is returned as an error.
func (a *App) Evaluate(ctx context.Context, source string) (Result, error) {
	var result Result

	// Step 1: Evaluate the script into a scene.
	s, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		return result, fmt.Errorf("evaluate: %w", err)
	}
	if len(evalErrs) > 0 {
		result.Errors = evalErrs
		return result, nil
	}

	// Step 2: Tessellate the scene into half-edge meshes.
	meshes, err := tessellate.Tessellate(s, a.kernel)
	if err != nil {
		return result, err
	}
	result.Meshes = meshes

	// Step 3: Run the UV operations.
	for i, st := range s.Steps {
		targets := tessellate.Named(meshes, st.Target)
		if len(targets) == 0 {
			a.log.Warn("step matched no mesh", "step", i+1, "op", st.Op, "target", st.Target)
			continue
		}
		for _, m := range targets {
			rep, err := a.runner.Run(ctx, m, st.Op, st.Params)
			if err != nil {
				return result, fmt.Errorf("step %d: %w", i+1, err)
			}
			result.Reports = append(result.Reports, StepReport{Step: i + 1, Mesh: m.Name, Report: rep})
		}
	}
	return result, nil
}

// Apply runs kinds in order on a single mesh with shared params.
func (a *App) Apply(ctx context.Context, m *mesh.Mesh, kinds []ops.Kind, params ops.Params) ([]StepReport, error) {
	var reports []StepReport
	for i, k := range kinds {
		rep, err := a.runner.Run(ctx, m, k, params)
		if err != nil {
			return reports, fmt.Errorf("step %d: %w", i+1, err)
		}
		reports = append(reports, StepReport{Step: i + 1, Mesh: m.Name, Report: rep})
	}
	return reports, nil
}

// WriteMeshes writes each mesh to dir as <name>.obj and returns the paths.
func (a *App) WriteMeshes(dir string, meshes []*mesh.Mesh) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	seen := make(map[string]int)
	var paths []string
	for _, m := range meshes {
		name := sanitize(m.Name)
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		seen[sanitize(m.Name)]++

		path := filepath.Join(dir, name+".obj")
		if err := writeOBJFile(path, m, a.runner.Layer); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeOBJFile(path string, m *mesh.Mesh, layer string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return mesh.WriteOBJ(f, m, m.UVLayer(layer))
}

func readOBJFile(path string) (*mesh.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := mesh.ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return m, nil
}

// sanitize makes a mesh name safe to use as a file name.
func sanitize(name string) string {
	if name == "" {
		return "mesh"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, name)
}
