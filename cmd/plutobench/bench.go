package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/plutobench/internal/benchmark"
)

func newBenchCmd(a *app) *cobra.Command {
	cfg := benchmark.DefaultConfig()
	var (
		methods []string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time heavy-ball against gonum's optimizers on the textbook problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Methods = cfg.Methods[:0]
			for _, name := range methods {
				m, err := benchmark.ParseMethod(name)
				if err != nil {
					return err
				}
				cfg.Methods = append(cfg.Methods, m)
			}
			cfg.Logger = a.zap

			report, err := benchmark.Run(cmd.Context(), benchmark.Textbook(), cfg)
			if err != nil {
				return err
			}
			if output == "text" {
				return writeReportText(cmd.OutOrStdout(), report)
			}
			return encode(cmd.OutOrStdout(), output, report)
		},
	}

	names := make([]string, 0, len(benchmark.Methods()))
	for _, m := range benchmark.Methods() {
		names = append(names, string(m))
	}

	f := cmd.Flags()
	f.StringSliceVar(&methods, "methods", names, "Methods to benchmark")
	f.IntVar(&cfg.Repeats, "repeats", cfg.Repeats, "Timed runs per method")
	f.IntVar(&cfg.Workers, "workers", 0, "Methods measured concurrently (0 = all)")
	f.Float64Var(&cfg.Options.Alpha, "alpha", cfg.Options.Alpha, "Heavy-ball step size")
	f.Float64Var(&cfg.Options.Beta, "beta", cfg.Options.Beta, "Heavy-ball momentum coefficient")
	f.IntVar(&cfg.Options.MaxIter, "maxiter", cfg.Options.MaxIter, "Maximum number of iterations")
	f.Float64Var(&cfg.Options.Eps, "eps", cfg.Options.Eps, "Convergence threshold")
	f.StringVarP(&output, "output", "o", "text", "Output format (text, json, yaml)")
	return cmd
}

func writeReportText(w io.Writer, r *benchmark.Report) error {
	fmt.Fprintf(w, "scenario:  %s\noptions:   %s\nminimizer: %v\n\n", r.Scenario, r.Options, r.Minimizer)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tRUNS\tMEAN\tMIN\tITERATIONS\tCONVERGED\tGRAD NORM\tDISTANCE")
	for _, m := range r.Fastest() {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%t\t%.3e\t%.3e\n",
			m.Method, m.Runs, m.Mean, m.Min, m.Iterations, m.Converged, m.GradNorm, m.Distance)
	}
	return tw.Flush()
}
