// Package config holds the tuning options shared by the UV operators,
// loaded from TOML and overlaid on built-in defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by Validate failures.
var ErrInvalid = errors.New("config: invalid option")

// Snap controls corner merging.
type Snap struct {
	Limit float64 `toml:"limit"`
}

// Pack controls the island packer.
type Pack struct {
	Margin        float64 `toml:"margin"`
	RotationSteps int     `toml:"rotation_steps"`
	MaxDepth      int     `toml:"max_depth"`
	SkipChance    float64 `toml:"skip_chance"`
	Seed          uint64  `toml:"seed"`
}

// Solve controls the relaxation solver.
type Solve struct {
	Gain            float64 `toml:"gain"`
	IncludeArea     bool    `toml:"include_area"`
	LeastSquares    bool    `toml:"least_squares"`
	PreserveIslands bool    `toml:"preserve_islands"`
	Steps           int     `toml:"steps"`
	// BudgetMS bounds one UnwrapSolve call in milliseconds. Zero means no
	// time limit.
	BudgetMS int `toml:"budget_ms"`
}

// Voxel controls chart segmentation.
type Voxel struct {
	SplitVar   float64 `toml:"split_var"`
	LeafLimit  int     `toml:"leaf_limit"`
	DepthLimit int     `toml:"depth_limit"`
	SetSeams   bool    `toml:"set_seams"`
}

// Relax controls Laplacian smoothing.
type Relax struct {
	BoundaryWeight float64 `toml:"boundary_weight"`
	Iterations     int     `toml:"iterations"`
}

// Kernel controls tessellation of script solids.
type Kernel struct {
	Cells int     `toml:"cells"`
	Weld  float64 `toml:"weld"`
}

// Options is the full option set.
type Options struct {
	Snap   Snap   `toml:"snap"`
	Pack   Pack   `toml:"pack"`
	Solve  Solve  `toml:"solve"`
	Voxel  Voxel  `toml:"voxel"`
	Relax  Relax  `toml:"relax"`
	Kernel Kernel `toml:"kernel"`
	// TexSize is the texture resolution FixSeams aligns to.
	TexSize int `toml:"tex_size"`
}

// Default returns the built-in option values.
func Default() Options {
	return Options{
		Snap: Snap{Limit: 0.001},
		Pack: Pack{
			Margin:        0.001,
			RotationSteps: 16,
			MaxDepth:      10,
			SkipChance:    0.15,
			Seed:          1,
		},
		Solve: Solve{
			Gain:         0.4,
			IncludeArea:  true,
			LeastSquares: false,
			Steps:        20,
			BudgetMS:     400,
		},
		Voxel: Voxel{
			SplitVar:   0.16,
			LeafLimit:  255,
			DepthLimit: 25,
			SetSeams:   true,
		},
		Relax:   Relax{BoundaryWeight: 400, Iterations: 1},
		Kernel:  Kernel{Cells: 48, Weld: 1e-7},
		TexSize: 1024,
	}
}

// Parse overlays TOML data on the defaults. Unknown keys are rejected.
func Parse(data []byte) (Options, error) {
	opts := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return Options{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Load reads and parses a TOML file. An empty path yields the defaults.
func Load(path string) (Options, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Encode renders opts as TOML.
func (o Options) Encode() ([]byte, error) {
	return toml.Marshal(o)
}

// Validate rejects values the operators cannot work with.
func (o Options) Validate() error {
	switch {
	case o.Snap.Limit <= 0:
		return fmt.Errorf("%w: snap.limit must be positive, got %g", ErrInvalid, o.Snap.Limit)
	case o.Pack.Margin < 0 || o.Pack.Margin >= 0.25:
		return fmt.Errorf("%w: pack.margin must be in [0, 0.25), got %g", ErrInvalid, o.Pack.Margin)
	case o.Pack.RotationSteps < 0:
		return fmt.Errorf("%w: pack.rotation_steps must not be negative", ErrInvalid)
	case o.Pack.MaxDepth < 1:
		return fmt.Errorf("%w: pack.max_depth must be at least 1", ErrInvalid)
	case o.Pack.SkipChance < 0 || o.Pack.SkipChance >= 1:
		return fmt.Errorf("%w: pack.skip_chance must be in [0, 1), got %g", ErrInvalid, o.Pack.SkipChance)
	case o.Solve.Gain <= 0:
		return fmt.Errorf("%w: solve.gain must be positive, got %g", ErrInvalid, o.Solve.Gain)
	case o.Solve.Steps < 0 || o.Solve.BudgetMS < 0:
		return fmt.Errorf("%w: solve.steps and solve.budget_ms must not be negative", ErrInvalid)
	case o.Voxel.SplitVar <= 0:
		return fmt.Errorf("%w: voxel.split_var must be positive, got %g", ErrInvalid, o.Voxel.SplitVar)
	case o.Voxel.LeafLimit < 1 || o.Voxel.DepthLimit < 1:
		return fmt.Errorf("%w: voxel.leaf_limit and voxel.depth_limit must be at least 1", ErrInvalid)
	case o.Relax.BoundaryWeight < 0:
		return fmt.Errorf("%w: relax.boundary_weight must not be negative", ErrInvalid)
	case o.Kernel.Cells < 4:
		return fmt.Errorf("%w: kernel.cells must be at least 4, got %d", ErrInvalid, o.Kernel.Cells)
	case o.TexSize < 1:
		return fmt.Errorf("%w: tex_size must be positive", ErrInvalid)
	}
	return nil
}
