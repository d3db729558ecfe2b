package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/plutobench/internal/optimization"
	"github.com/copyleftdev/plutobench/internal/optimization/gradient"
	"github.com/copyleftdev/plutobench/internal/optimization/quadratic"
)

type descendOutput struct {
	optimization.Result `yaml:",inline"`

	Options   optimization.Options `json:"options" yaml:"options"`
	Minimizer []float64            `json:"minimizer" yaml:"minimizer"`
	Elapsed   time.Duration        `json:"elapsed_ns" yaml:"elapsed"`
}

func newDescendCmd(a *app) *cobra.Command {
	opts := optimization.DefaultOptions()
	var output string

	cmd := &cobra.Command{
		Use:   "descend",
		Short: "Run heavy-ball descent on the 3x3 textbook problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return err
			}
			prob := quadratic.Textbook()

			a.logger.Info("Starting descent", map[string]interface{}{"options": opts.String()})
			hb := gradient.New(gradient.WithLogger(a.zap))
			start := time.Now()
			res, err := hb.Minimize(cmd.Context(), prob.P, prob.Q, prob.X0, opts)
			if err != nil {
				return err
			}
			elapsed := time.Since(start)

			xStar, err := prob.Minimizer()
			if err != nil {
				return err
			}
			if !res.Converged {
				a.logger.Warn("Descent stopped at the iteration limit", map[string]interface{}{
					"iterations": res.Iterations,
					"grad_norm":  res.GradNorm,
				})
			}

			out := descendOutput{
				Result:    *res,
				Options:   opts,
				Minimizer: append([]float64(nil), xStar.RawVector().Data...),
				Elapsed:   elapsed,
			}
			if output == "text" {
				return writeDescendText(cmd, out)
			}
			return encode(cmd.OutOrStdout(), output, out)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&opts.Alpha, "alpha", opts.Alpha, "Step size")
	f.Float64Var(&opts.Beta, "beta", opts.Beta, "Momentum coefficient")
	f.IntVar(&opts.MaxIter, "maxiter", opts.MaxIter, "Maximum number of iterations")
	f.Float64Var(&opts.Eps, "eps", opts.Eps, "Stop when the momentum norm drops below this")
	f.StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	return cmd
}

func writeDescendText(cmd *cobra.Command, out descendOutput) error {
	x := mat.NewVecDense(len(out.X), out.X)
	_, err := fmt.Fprintf(cmd.OutOrStdout(),
		"options:    %s\nx:          %v\nminimizer:  %v\niterations: %d\nconverged:  %t\ngrad_norm:  %.3e\nelapsed:    %s\n",
		out.Options, mat.Formatted(x.T(), mat.Squeeze()), out.Minimizer,
		out.Iterations, out.Converged, out.GradNorm, out.Elapsed)
	return err
}
