// Package gradient implements heavy-ball (momentum) gradient descent on
// unconstrained quadratic objectives.
package gradient

import (
	"context"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/plutobench/internal/optimization"
	"github.com/copyleftdev/plutobench/internal/optimization/quadratic"
)

// HeavyBall runs momentum gradient descent. The zero value is usable and
// logs nothing. A HeavyBall holds no per-run state, so one value may serve
// concurrent callers.
type HeavyBall struct {
	logger   *zap.Logger
	progress optimization.ProgressFunc
}

// Option configures a HeavyBall.
type Option func(*HeavyBall)

// WithLogger traces every iteration at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(h *HeavyBall) {
		h.logger = logger
	}
}

// WithProgress registers a callback invoked after each iteration.
func WithProgress(fn optimization.ProgressFunc) Option {
	return func(h *HeavyBall) {
		h.progress = fn
	}
}

// New creates a HeavyBall with the given options.
func New(opts ...Option) *HeavyBall {
	h := &HeavyBall{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ optimization.Minimizer = (*HeavyBall)(nil)

// Minimize iterates
//
//	x  ← x + α·Dx
//	Dx ← β·Dx − (1−β)·(P·x + q)
//
// from x ← x0, Dx ← P·x0 + q, stopping once ‖Dx‖₂ < eps or after
// opts.MaxIter steps. Hitting the cap is not an error; Result.Converged
// tells the two apart. Divergence is not detected.
func (h *HeavyBall) Minimize(ctx context.Context, p mat.Matrix, q, x0 mat.Vector, opts optimization.Options) (*optimization.Result, error) {
	if err := quadratic.CheckDims(p, q, x0); err != nil {
		return nil, tag(err)
	}
	if err := opts.Validate(); err != nil {
		return nil, tag(err)
	}

	logger := h.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	n := x0.Len()
	x := mat.VecDenseCopyOf(x0)
	dx := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(n, nil)

	quadratic.GradientTo(dx, p, q, x)

	res := &optimization.Result{GradNorm: mat.Norm(dx, 2)}
	for i := 0; i < opts.MaxIter; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		x.AddScaledVec(x, opts.Alpha, dx)
		quadratic.GradientTo(grad, p, q, x)
		dx.ScaleVec(opts.Beta, dx)
		dx.AddScaledVec(dx, -(1 - opts.Beta), grad)

		res.Iterations = i + 1
		res.GradNorm = mat.Norm(dx, 2)

		if ce := logger.Check(zap.DebugLevel, "heavy-ball step"); ce != nil {
			ce.Write(zap.Int("iteration", res.Iterations), zap.Float64("grad_norm", res.GradNorm))
		}
		if h.progress != nil {
			h.progress(optimization.Iteration{Index: res.Iterations, GradNorm: res.GradNorm}, x)
		}

		if res.GradNorm < opts.Eps {
			res.Converged = true
			break
		}
	}

	res.X = append([]float64(nil), x.RawVector().Data...)

	logger.Debug("heavy-ball finished",
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged),
		zap.Float64("grad_norm", res.GradNorm),
	)
	return res, nil
}

// Descend runs heavy-ball descent with a background context and returns only
// the final iterate, matching the plain "return x" contract. Non-convergence
// is silent here; use Minimize to observe it.
func Descend(p mat.Matrix, q, x0 mat.Vector, opts optimization.Options) (*mat.VecDense, error) {
	res, err := New().Minimize(context.Background(), p, q, x0, opts)
	if err != nil {
		return nil, err
	}
	return mat.NewVecDense(len(res.X), res.X), nil
}

func tag(err error) error {
	if e, ok := optimization.AsError(err); ok {
		return e.WithComponent("heavyball")
	}
	return err
}
