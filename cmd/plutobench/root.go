package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/plutobench/internal/logging"
)

// app holds what PersistentPreRunE sets up for the subcommands.
type app struct {
	logLevel string
	logger   *logging.Logger
	zap      *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "plutobench",
		Short: "Pluto notebook launch descriptor and heavy-ball descent tooling",
		Long: `plutobench prints the launch descriptor for a Pluto.jl notebook server
and runs heavy-ball gradient descent on quadratic problems, alone or
benchmarked against gonum's optimizers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.logger = logging.New(logging.ParseLevel(a.logLevel), cmd.ErrOrStderr())
			a.zap = logging.NewZapLogger(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newDescendCmd(a),
		newBenchCmd(a),
		newLauncherCmd(a),
	)
	return root
}

func encode(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}
