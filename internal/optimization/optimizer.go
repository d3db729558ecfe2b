package optimization

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Default heavy-ball parameters.
const (
	DefaultAlpha   = 0.01
	DefaultBeta    = 0.8
	DefaultMaxIter = 1000
	DefaultEps     = 1e-5
)

// Minimizer defines the interface for unconstrained quadratic minimizers
// of f(x) = ½xᵀPx + qᵀx.
type Minimizer interface {
	// Minimize runs the method from x0 and reports how it ended.
	Minimize(ctx context.Context, p mat.Matrix, q, x0 mat.Vector, opts Options) (*Result, error)
}

// Options contains the tuning knobs of a heavy-ball descent run.
type Options struct {
	// Alpha scales the position update.
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Beta is the momentum coefficient blending the previous smoothed
	// gradient with the fresh one.
	Beta float64 `json:"beta" yaml:"beta"`

	// MaxIter is the hard iteration cap. Zero performs no iterations.
	MaxIter int `json:"maxiter" yaml:"maxiter"`

	// Eps is the stopping threshold on the smoothed gradient norm.
	Eps float64 `json:"eps" yaml:"eps"`
}

// DefaultOptions returns alpha=0.01, beta=0.8, maxiter=1000, eps=1e-5.
func DefaultOptions() Options {
	return Options{
		Alpha:   DefaultAlpha,
		Beta:    DefaultBeta,
		MaxIter: DefaultMaxIter,
		Eps:     DefaultEps,
	}
}

// Validate rejects options that cannot drive the loop at all. Values that
// merely make the method diverge are accepted.
func (o Options) Validate() error {
	switch {
	case o.MaxIter < 0:
		return WrapErrorf(ErrInvalidOptions, "maxiter must be non-negative, got %d", o.MaxIter).WithOperation("validate")
	case math.IsNaN(o.Alpha) || math.IsInf(o.Alpha, 0):
		return WrapErrorf(ErrInvalidOptions, "alpha must be finite, got %v", o.Alpha).WithOperation("validate")
	case math.IsNaN(o.Beta) || math.IsInf(o.Beta, 0):
		return WrapErrorf(ErrInvalidOptions, "beta must be finite, got %v", o.Beta).WithOperation("validate")
	case math.IsNaN(o.Eps):
		return WrapErrorf(ErrInvalidOptions, "eps must be a number").WithOperation("validate")
	}
	return nil
}

// String renders the options the way they appear in logs and CLI output.
func (o Options) String() string {
	return fmt.Sprintf("alpha=%g beta=%g maxiter=%d eps=%g", o.Alpha, o.Beta, o.MaxIter, o.Eps)
}

// Result contains the outcome of a minimization run.
type Result struct {
	// X is the final iterate. It never aliases the caller's x0.
	X []float64 `json:"x" yaml:"x"`

	// Iterations is the number of completed update steps.
	Iterations int `json:"iterations" yaml:"iterations"`

	// Converged reports whether the stopping criterion was met before the
	// iteration cap.
	Converged bool `json:"converged" yaml:"converged"`

	// GradNorm is the Euclidean norm of the method's gradient estimate at exit.
	GradNorm float64 `json:"grad_norm" yaml:"grad_norm"`
}

// Iteration is a snapshot handed to progress callbacks after each step.
type Iteration struct {
	Index    int
	GradNorm float64
}

// ProgressFunc observes a running minimization. It must not retain x.
type ProgressFunc func(it Iteration, x mat.Vector)
