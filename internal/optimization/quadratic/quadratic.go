// Package quadratic holds the unconstrained quadratic objective
// f(x) = ½xᵀPx + qᵀx whose gradient is P·x + q.
package quadratic

import (
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/plutobench/internal/optimization"
)

// Problem is a quadratic objective together with a starting point.
// P is conventionally symmetric but nothing here requires it.
type Problem struct {
	P  mat.Matrix
	Q  mat.Vector
	X0 mat.Vector
}

// New builds a problem from row-major data. It validates the shapes.
func New(p [][]float64, q, x0 []float64) (*Problem, error) {
	n := len(q)
	data := make([]float64, 0, n*n)
	for i, row := range p {
		if len(row) != n {
			return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
				"row %d of P has %d entries, want %d", i, len(row), n).WithOperation("new")
		}
		data = append(data, row...)
	}
	if len(p) != n || n == 0 {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"P has %d rows, q has %d entries", len(p), n).WithOperation("new")
	}
	if len(x0) != n {
		return nil, optimization.WrapErrorf(optimization.ErrDimensionMismatch,
			"x0 has %d entries, want %d", len(x0), n).WithOperation("new")
	}

	return &Problem{
		P:  mat.NewDense(n, n, data),
		Q:  mat.NewVecDense(n, append([]float64(nil), q...)),
		X0: mat.NewVecDense(n, append([]float64(nil), x0...)),
	}, nil
}

// Textbook returns the fixed 3x3 benchmark system
//
//	P = [[10,-1,0],[-1,1,0],[0,0,5]], q = [0,-10,20], x0 = 0.
func Textbook() *Problem {
	return &Problem{
		P: mat.NewDense(3, 3, []float64{
			10, -1, 0,
			-1, 1, 0,
			0, 0, 5,
		}),
		Q:  mat.NewVecDense(3, []float64{0, -10, 20}),
		X0: mat.NewVecDense(3, nil),
	}
}

// Dims returns n.
func (p *Problem) Dims() int {
	return p.Q.Len()
}

// Validate checks that P, q and x0 agree on n.
func (p *Problem) Validate() error {
	return CheckDims(p.P, p.Q, p.X0)
}

// Gradient returns P·x + q.
func (p *Problem) Gradient(x mat.Vector) *mat.VecDense {
	g := mat.NewVecDense(p.Dims(), nil)
	GradientTo(g, p.P, p.Q, x)
	return g
}

// Objective returns ½xᵀPx + qᵀx.
func (p *Problem) Objective(x mat.Vector) float64 {
	return 0.5*mat.Inner(x, p.P, x) + mat.Dot(p.Q, x)
}

// Minimizer solves P·x = -q for the stationary point.
func (p *Problem) Minimizer() (*mat.VecDense, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	x := mat.NewVecDense(p.Dims(), nil)
	if err := x.SolveVec(p.P, p.Q); err != nil {
		return nil, optimization.WrapErrorf(optimization.ErrSingular, "%v", err).WithOperation("minimizer")
	}
	x.ScaleVec(-1, x)
	return x, nil
}

// GradientTo stores P·x + q in dst. dst must not alias x.
func GradientTo(dst *mat.VecDense, p mat.Matrix, q, x mat.Vector) {
	dst.MulVec(p, x)
	dst.AddVec(dst, q)
}

// CheckDims reports ErrDimensionMismatch unless P is n×n and q, x0 have length n.
func CheckDims(p mat.Matrix, q, x0 mat.Vector) error {
	if p == nil || q == nil || x0 == nil {
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "P, q and x0 are required").WithOperation("check dims")
	}
	r, c := p.Dims()
	if r == 0 {
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "P is empty").WithOperation("check dims")
	}
	if r != c {
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "P is %dx%d, not square", r, c).WithOperation("check dims")
	}
	if q.Len() != r {
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "q has length %d, P is %dx%d", q.Len(), r, c).WithOperation("check dims")
	}
	if x0.Len() != r {
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "x0 has length %d, P is %dx%d", x0.Len(), r, c).WithOperation("check dims")
	}
	return nil
}
