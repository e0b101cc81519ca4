package solver

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// Solver holds a constraint set. The zero value is ready to use.
type Solver struct {
	Constraints []*Constraint

	// Shuffle randomises the sweep order each pass when non-nil.
	Shuffle *rand.Rand

	grad []mgl64.Vec2
}

// Add appends constraints.
func (s *Solver) Add(cs ...*Constraint) {
	s.Constraints = append(s.Constraints, cs...)
}

// Len is the number of constraints.
func (s *Solver) Len() int { return len(s.Constraints) }

// Error is the summed absolute residual of every constraint.
func (s *Solver) Error() float64 {
	sum := 0.0
	for _, c := range s.Constraints {
		sum += math.Abs(c.Evaluate())
	}
	return sum
}

// Sweep runs one Gauss-Seidel pass: every constraint in turn takes a
// Newton step along its own gradient, scaled by gk and the constraint's K.
// It returns the summed absolute residual seen during the pass.
func (s *Solver) Sweep(gk float64) float64 {
	order := s.Constraints
	if s.Shuffle != nil {
		order = append([]*Constraint(nil), s.Constraints...)
		s.Shuffle.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	total := 0.0
	for _, c := range order {
		r := c.Evaluate()
		if math.IsNaN(r) {
			continue
		}
		total += math.Abs(r)
		if math.Abs(r) < c.Threshold {
			continue
		}
		s.grad = c.Gradient(s.grad)

		norm := 0.0
		for _, g := range s.grad {
			norm += g.Dot(g)
		}
		if norm < 1e-24 {
			continue
		}

		step := r / norm * gk * c.gain()
		for i, p := range c.Free {
			*p = p.Sub(s.grad[i].Mul(step))
		}
	}
	return total
}

// Solve runs passes sweeps and returns the error after the last one.
func (s *Solver) Solve(passes int, gk float64) float64 {
	for i := 0; i < passes; i++ {
		s.Sweep(gk)
	}
	return s.Error()
}
