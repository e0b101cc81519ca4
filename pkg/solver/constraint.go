// Package solver minimises sets of scalar residual constraints over 2D
// parameters.
//
// A Constraint owns pointers into caller storage (usually UV-graph corner
// positions) and evaluates a single residual. The Solver drives residuals
// towards zero with Gauss-Seidel sweeps and, optionally, a global
// least-squares pass through an SVD pseudo-inverse.
package solver

import "github.com/go-gl/mathgl/mgl64"

// DefaultDF is the forward-difference step used for numeric gradients.
const DefaultDF = 1e-4

// Constraint is one scalar residual f(Free...) that should be zero.
//
// Eval reads the current values of Free. Grad, when set, writes the
// closed-form partial derivatives into g (len(g) == len(Free)); otherwise
// Gradient falls back to forward differences.
type Constraint struct {
	Name string
	Free []*mgl64.Vec2
	Eval func() float64
	Grad func(g []mgl64.Vec2)

	// K scales the step taken for this constraint. Zero means 1.
	K float64
	// Residuals with magnitude below Threshold are treated as satisfied.
	Threshold float64
	// DF overrides DefaultDF when non-zero.
	DF float64
}

// Evaluate returns the current residual.
func (c *Constraint) Evaluate() float64 {
	return c.Eval()
}

// Gradient fills g with ∂r/∂Free[i]. g is reallocated when too short and
// returned.
func (c *Constraint) Gradient(g []mgl64.Vec2) []mgl64.Vec2 {
	if cap(g) < len(c.Free) {
		g = make([]mgl64.Vec2, len(c.Free))
	}
	g = g[:len(c.Free)]
	if c.Grad != nil {
		c.Grad(g)
		return g
	}

	df := c.DF
	if df == 0 {
		df = DefaultDF
	}
	r0 := c.Eval()
	for i, p := range c.Free {
		for axis := 0; axis < 2; axis++ {
			orig := p[axis]
			p[axis] = orig + df
			r1 := c.Eval()
			p[axis] = orig
			g[i][axis] = (r1 - r0) / df
		}
	}
	return g
}

func (c *Constraint) gain() float64 {
	if c.K == 0 {
		return 1
	}
	return c.K
}
