package ops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chazu/uvkit/pkg/config"
	"github.com/chazu/uvkit/pkg/mesh"
	"github.com/chazu/uvkit/pkg/uv"
	"github.com/chazu/uvkit/pkg/voxel"
)

// Report summarises one operation.
type Report struct {
	Kind    Kind
	Faces   int
	Islands int
	// Seams counts newly flagged mesh seams (voxel_unwrap) or aligned
	// seam edges (fix_seams).
	Seams    int
	Charts   int
	Steps    int
	Reused   bool
	Residual float64
}

// Runner applies operations to meshes with a shared option set and
// solver cache.
type Runner struct {
	Opts config.Options
	// Layer is the UV layer operations work on.
	Layer string
	Cache *SolverCache

	log *slog.Logger
}

// NewRunner returns a runner using opts. A nil logger means slog.Default.
func NewRunner(opts config.Options, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		Opts:  opts,
		Layer: mesh.DefaultUVLayer,
		Cache: NewSolverCache(DefaultCacheSize),
		log:   log,
	}
}

// Logger returns the runner's logger.
func (r *Runner) Logger() *slog.Logger { return r.log }

// Run applies kind to the selected faces of m (see SelectedFaces) with
// params overriding the runner's options.
func (r *Runner) Run(ctx context.Context, m *mesh.Mesh, kind Kind, params Params) (Report, error) {
	rep := Report{Kind: kind}
	o, err := params.Apply(r.Opts)
	if err != nil {
		return rep, err
	}
	ref := m.UVLayer(r.Layer)
	if !ref.Exists() {
		return rep, fmt.Errorf("ops: %s on %q: layer %q: %w", kind, m.Name, r.Layer, mesh.ErrNoUVLayer)
	}
	faces := SelectedFaces(m)
	rep.Faces = len(faces)
	if len(faces) == 0 {
		r.log.Debug("nothing to do", "op", kind, "mesh", m.Name)
		return rep, nil
	}
	uvopts := r.uvOptions(o)

	start := time.Now()
	switch kind {
	case KindVoxelUnwrap:
		var res *voxel.Result
		res, err = voxel.Unwrap(m, faces, ref, voxelOptions(o), uvopts...)
		if err == nil {
			rep.Charts = len(res.Charts)
			rep.Seams = res.Seams
			rep.Islands = len(res.Wrangler.Islands())
		}
	case KindUnwrapSolve:
		err = r.unwrapSolve(ctx, m, faces, ref, o, params.Bool(ParamReset), &rep)
	case KindRelax:
		var loops []mesh.LoopID
		for _, f := range faces {
			loops = append(loops, m.FaceLoops(f)...)
		}
		ro := uv.DefaultRelaxOptions()
		ro.BoundaryWeight = o.Relax.BoundaryWeight
		ro.Iterations = o.Relax.Iterations
		w := uv.Relax(m, ref, loops, ro, uvopts...)
		rep.Islands = len(w.Islands())
	case KindRandomize:
		err = RandomizeUVs(m, faces, ref, params.Bool(ParamRandAll), uv.NewRand(o.Pack.Seed), uvopts...)
	case KindReset:
		err = ResetUVs(m, faces, ref)
	case KindGrid:
		err = GridUVs(m, faces, ref)
	case KindPack:
		w := uv.NewWrangler(m, faces, ref, uvopts...)
		w.BuildIslands(false)
		w.PackIslands(packOptions(o))
		w.Finish()
		rep.Islands = len(w.Islands())
	case KindFixSeams:
		rep.Seams, rep.Residual, err = FixSeams(m, faces, ref, o.TexSize)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownOp, kind)
	}
	if err != nil {
		return rep, fmt.Errorf("ops: %s on %q: %w", kind, m.Name, err)
	}
	r.log.Debug("op done", "op", kind, "mesh", m.Name, "faces", rep.Faces,
		"islands", rep.Islands, "steps", rep.Steps, "elapsed", time.Since(start))
	return rep, nil
}

// unwrapSolve continues the cached solver for m when it is still valid,
// steps it until the step count or time budget runs out, finishes and
// caches it again.
func (r *Runner) unwrapSolve(ctx context.Context, m *mesh.Mesh, faces []mesh.FaceID, ref mesh.AttrRef, o config.Options, reset bool, rep *Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	so := uv.SolveOptions{
		PreserveIslands: o.Solve.PreserveIslands,
		IncludeArea:     o.Solve.IncludeArea,
		LeastSquares:    o.Solve.LeastSquares,
	}
	uvopts := r.uvOptions(o)
	key := CacheKey{Mesh: m.LibID, Kind: KindUnwrapSolve}

	var s *uv.UnwrapSolver
	if reset {
		s = uv.NewUnwrapSolver(m, faces, ref, so, uvopts...)
		s.Start()
	} else {
		s, rep.Reused = uv.RestoreOrRebuildSolver(r.Cache.Get(key), m, faces, ref, so, uvopts...)
	}

	if o.Solve.BudgetMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(o.Solve.BudgetMS)*time.Millisecond)
		defer cancel()
	}
	bounded := o.Solve.Steps > 0 || o.Solve.BudgetMS > 0
	for bounded && (o.Solve.Steps <= 0 || rep.Steps < o.Solve.Steps) {
		if ctx.Err() != nil {
			break
		}
		rep.Residual = s.Step(o.Solve.Gain)
		rep.Steps++
	}
	s.Finish()
	rep.Islands = len(s.W.Islands())
	r.Cache.Put(key, s)
	return nil
}

func (r *Runner) uvOptions(o config.Options) []uv.Option {
	return []uv.Option{
		uv.WithLogger(r.log),
		uv.WithSeed(o.Pack.Seed),
		uv.WithSnapLimit(o.Snap.Limit),
	}
}

func packOptions(o config.Options) uv.PackOptions {
	po := uv.DefaultPackOptions()
	po.Margin = o.Pack.Margin
	po.RotationSteps = o.Pack.RotationSteps
	po.MaxDepth = o.Pack.MaxDepth
	po.SkipChance = o.Pack.SkipChance
	return po
}

func voxelOptions(o config.Options) voxel.Options {
	return voxel.Options{
		SplitVar:   o.Voxel.SplitVar,
		LeafLimit:  o.Voxel.LeafLimit,
		DepthLimit: o.Voxel.DepthLimit,
		SetSeams:   o.Voxel.SetSeams,
	}
}
