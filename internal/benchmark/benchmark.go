// Package benchmark times heavy-ball descent against gonum's line-search
// methods on the same quadratic problem.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/copyleftdev/plutobench/internal/optimization"
	"github.com/copyleftdev/plutobench/internal/optimization/gradient"
	"github.com/copyleftdev/plutobench/internal/optimization/quadratic"
)

// Method names a minimizer that can be benchmarked.
type Method string

const (
	HeavyBall         Method = "heavyball"
	GradientDescent   Method = "gradientdescent"
	ConjugateGradient Method = "cg"
	LBFGS             Method = "lbfgs"
)

// Methods returns every known method, heavy-ball first.
func Methods() []Method {
	return []Method{HeavyBall, GradientDescent, ConjugateGradient, LBFGS}
}

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// Scenario is a named problem.
type Scenario struct {
	Name    string
	Problem *quadratic.Problem
}

// Textbook is the 3x3 system the heavy-ball timing was originally run on.
func Textbook() Scenario {
	return Scenario{Name: "textbook-3x3", Problem: quadratic.Textbook()}
}

// Config selects what Run measures.
type Config struct {
	Methods []Method
	// Repeats is how many timed runs each method gets.
	Repeats int
	// Options drive heavy-ball directly. For gonum methods MaxIter caps major
	// iterations and Eps is the gradient threshold.
	Options optimization.Options
	// Workers bounds how many methods run at once. Zero means one per method.
	Workers int
	Logger  *zap.Logger
}

// DefaultConfig benchmarks all methods 100 times with default options.
func DefaultConfig() Config {
	return Config{
		Methods: Methods(),
		Repeats: 100,
		Options: optimization.DefaultOptions(),
	}
}

// Measurement summarises the repeated runs of one method.
type Measurement struct {
	Method     Method        `json:"method" yaml:"method"`
	Runs       int           `json:"runs" yaml:"runs"`
	Mean       time.Duration `json:"mean_ns" yaml:"mean"`
	Min        time.Duration `json:"min_ns" yaml:"min"`
	Iterations int           `json:"iterations" yaml:"iterations"`
	Converged  bool          `json:"converged" yaml:"converged"`
	// GradNorm is ‖P·x + q‖₂ at the returned point.
	GradNorm float64 `json:"grad_norm" yaml:"grad_norm"`
	// Distance is ‖x − x*‖₂ to the closed-form minimizer.
	Distance float64   `json:"distance" yaml:"distance"`
	X        []float64 `json:"x" yaml:"x"`
}

// Report is the outcome of Run.
type Report struct {
	Scenario  string               `json:"scenario" yaml:"scenario"`
	Options   optimization.Options `json:"options" yaml:"options"`
	Minimizer []float64            `json:"minimizer" yaml:"minimizer"`
	Results   []Measurement        `json:"results" yaml:"results"`
}

// Run measures every configured method on sc. Methods run concurrently,
// repeats of one method run sequentially.
func Run(ctx context.Context, sc Scenario, cfg Config) (*Report, error) {
	if sc.Problem == nil {
		return nil, fmt.Errorf("scenario %q has no problem", sc.Name)
	}
	if err := sc.Problem.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if cfg.Repeats < 1 {
		return nil, fmt.Errorf("repeats must be positive, got %d", cfg.Repeats)
	}
	if len(cfg.Methods) == 0 {
		cfg.Methods = Methods()
	}
	for _, m := range cfg.Methods {
		if _, err := ParseMethod(string(m)); err != nil {
			return nil, err
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	xStar, err := sc.Problem.Minimizer()
	if err != nil {
		return nil, err
	}

	results := make([]Measurement, len(cfg.Methods))
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, m := range cfg.Methods {
		i, m := i, m
		g.Go(func() error {
			meas, err := measure(ctx, sc.Problem, m, cfg)
			if err != nil {
				return fmt.Errorf("%s: %w", m, err)
			}
			meas.GradNorm = mat.Norm(sc.Problem.Gradient(mat.NewVecDense(len(meas.X), meas.X)), 2)
			meas.Distance = distance(meas.X, xStar)
			results[i] = meas

			logger.Info("method measured",
				zap.String("scenario", sc.Name),
				zap.String("method", string(m)),
				zap.Duration("mean", meas.Mean),
				zap.Int("iterations", meas.Iterations),
				zap.Bool("converged", meas.Converged),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		Scenario:  sc.Name,
		Options:   cfg.Options,
		Minimizer: append([]float64(nil), xStar.RawVector().Data...),
		Results:   results,
	}, nil
}

// Fastest returns the measurements ordered by mean duration.
func (r *Report) Fastest() []Measurement {
	out := append([]Measurement(nil), r.Results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mean < out[j].Mean })
	return out
}

func measure(ctx context.Context, prob *quadratic.Problem, m Method, cfg Config) (Measurement, error) {
	meas := Measurement{Method: m, Min: time.Duration(1<<63 - 1)}
	var total time.Duration

	for r := 0; r < cfg.Repeats; r++ {
		if err := ctx.Err(); err != nil {
			return meas, err
		}

		start := time.Now()
		res, err := runOnce(ctx, prob, m, cfg.Options)
		elapsed := time.Since(start)
		if err != nil {
			return meas, err
		}

		total += elapsed
		if elapsed < meas.Min {
			meas.Min = elapsed
		}
		meas.Runs++
		meas.Iterations = res.Iterations
		meas.Converged = res.Converged
		meas.X = res.X
	}
	meas.Mean = total / time.Duration(meas.Runs)
	return meas, nil
}

func runOnce(ctx context.Context, prob *quadratic.Problem, m Method, opts optimization.Options) (*optimization.Result, error) {
	if m == HeavyBall {
		return gradient.New().Minimize(ctx, prob.P, prob.Q, prob.X0, opts)
	}
	return gonumMinimize(prob, methodFor(m), opts)
}

func methodFor(m Method) optimize.Method {
	switch m {
	case GradientDescent:
		return &optimize.GradientDescent{}
	case ConjugateGradient:
		return &optimize.CG{}
	default:
		return &optimize.LBFGS{}
	}
}

// gonumMinimize adapts the quadratic to optimize.Problem. MaxIter zero
// returns x0 untouched, as heavy-ball does; gonum would read it as no limit.
func gonumMinimize(prob *quadratic.Problem, method optimize.Method, opts optimization.Options) (*optimization.Result, error) {
	n := prob.Dims()
	if opts.MaxIter == 0 {
		return &optimization.Result{
			X:        mat.Col(nil, 0, prob.X0),
			GradNorm: mat.Norm(prob.Gradient(prob.X0), 2),
		}, nil
	}
	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return prob.Objective(mat.NewVecDense(n, x))
		},
		Grad: func(grad, x []float64) {
			quadratic.GradientTo(mat.NewVecDense(n, grad), prob.P, prob.Q, mat.NewVecDense(n, x))
		},
	}
	settings := &optimize.Settings{
		GradientThreshold: opts.Eps,
		MajorIterations:   opts.MaxIter,
	}

	res, err := optimize.Minimize(p, mat.Col(nil, 0, prob.X0), settings, method)
	if err != nil {
		return nil, err
	}

	return &optimization.Result{
		X:          res.X,
		Iterations: res.MajorIterations,
		Converged:  !res.Status.Early(),
		GradNorm:   normOrZero(res.Gradient),
	}, nil
}

func normOrZero(g []float64) float64 {
	if len(g) == 0 {
		return 0
	}
	return mat.Norm(mat.NewVecDense(len(g), g), 2)
}

func distance(x []float64, want *mat.VecDense) float64 {
	var d mat.VecDense
	d.SubVec(mat.NewVecDense(len(x), x), want)
	return mat.Norm(&d, 2)
}
