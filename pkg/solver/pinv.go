package solver

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// PinvTol is the relative singular value cutoff below which a singular
// value is treated as zero when inverting.
const PinvTol = 1e-10

// Pinv returns the Moore-Penrose pseudo-inverse of a, computed from its
// SVD. Singular values below PinvTol·σmax invert to zero.
func Pinv(a mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, errors.New("solver: gonum mat.SVD Factorize failed")
	}
	vals := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cut := 0.0
	if len(vals) > 0 {
		cut = vals[0] * PinvTol
	}
	r, c := a.Dims()
	inv := make([]float64, c*r)
	sinv := mat.NewDense(c, r, inv)
	for i, s := range vals {
		if s > cut && s != 0 {
			sinv.Set(i, i, 1/s)
		}
	}

	// pinv = V · Σ⁺ · Uᵀ
	var tmp, out mat.Dense
	tmp.Mul(&v, sinv)
	out.Mul(&tmp, u.T())
	return &out, nil
}

// LeastSquares takes one global Gauss-Newton step over every constraint:
// with Jacobian G over the distinct free variables and residual vector r,
// Δx = -gk · pinv(GᵗG) · Gᵗr. It returns the error before the step.
func (s *Solver) LeastSquares(gk float64) (float64, error) {
	if len(s.Constraints) == 0 {
		return 0, nil
	}

	index := make(map[*mgl64.Vec2]int)
	var vars []*mgl64.Vec2
	for _, c := range s.Constraints {
		for _, p := range c.Free {
			if _, ok := index[p]; !ok {
				index[p] = len(vars)
				vars = append(vars, p)
			}
		}
	}
	if len(vars) == 0 {
		return s.Error(), nil
	}

	rows, cols := len(s.Constraints), len(vars)*2
	g := mat.NewDense(rows, cols, nil)
	r := mat.NewVecDense(rows, nil)
	total := 0.0
	for i, c := range s.Constraints {
		ri := c.Evaluate()
		if math.IsNaN(ri) {
			continue
		}
		total += math.Abs(ri)
		r.SetVec(i, ri)
		s.grad = c.Gradient(s.grad)
		for j, p := range c.Free {
			col := index[p] * 2
			g.Set(i, col, s.grad[j][0])
			g.Set(i, col+1, s.grad[j][1])
		}
	}

	var gtg mat.Dense
	gtg.Mul(g.T(), g)
	pinv, err := Pinv(&gtg)
	if err != nil {
		return total, err
	}

	var gtr, dx mat.VecDense
	gtr.MulVec(g.T(), r)
	dx.MulVec(pinv, &gtr)
	for i, p := range vars {
		p[0] -= dx.AtVec(i*2) * gk
		p[1] -= dx.AtVec(i*2+1) * gk
	}
	return total, nil
}
