package ops

import (
	"errors"
	"fmt"

	"github.com/chazu/uvkit/pkg/config"
)

// ErrUnknownParam is returned by Params.Apply for keys it does not know.
var ErrUnknownParam = errors.New("ops: unknown parameter")

// Params are per-call overrides of config options plus a few operation
// flags. Booleans are encoded as zero / non-zero.
type Params map[string]float64

// Operation flags that have no config counterpart.
const (
	ParamReset   = "reset"    // unwrap_solve: ignore the cached solver
	ParamRandAll = "rand_all" // randomize_uvs: jitter loops, not corners
)

// Bool reports whether flag k is set.
func (p Params) Bool(k string) bool { return p[k] != 0 }

// Apply returns o with the overrides in p and validates the result.
func (p Params) Apply(o config.Options) (config.Options, error) {
	for k, v := range p {
		switch k {
		case "snap":
			o.Snap.Limit = v
		case "margin":
			o.Pack.Margin = v
		case "rotation_steps":
			o.Pack.RotationSteps = int(v)
		case "max_depth":
			o.Pack.MaxDepth = int(v)
		case "skip_chance":
			o.Pack.SkipChance = v
		case "seed":
			o.Pack.Seed = uint64(v)
		case "gain":
			o.Solve.Gain = v
		case "include_area":
			o.Solve.IncludeArea = v != 0
		case "least_squares":
			o.Solve.LeastSquares = v != 0
		case "preserve_islands":
			o.Solve.PreserveIslands = v != 0
		case "steps":
			o.Solve.Steps = int(v)
		case "budget_ms":
			o.Solve.BudgetMS = int(v)
		case "split_var":
			o.Voxel.SplitVar = v
		case "leaf_limit":
			o.Voxel.LeafLimit = int(v)
		case "depth_limit":
			o.Voxel.DepthLimit = int(v)
		case "set_seams":
			o.Voxel.SetSeams = v != 0
		case "boundary_weight":
			o.Relax.BoundaryWeight = v
		case "iterations":
			o.Relax.Iterations = int(v)
		case "tex_size":
			o.TexSize = int(v)
		case ParamReset, ParamRandAll:
		default:
			return o, fmt.Errorf("%w: %q", ErrUnknownParam, k)
		}
	}
	if err := o.Validate(); err != nil {
		return o, fmt.Errorf("ops: %w", err)
	}
	return o, nil
}
