package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/plutobench/internal/benchmark"
	"github.com/copyleftdev/plutobench/internal/launcher"
	"github.com/copyleftdev/plutobench/internal/optimization"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestLauncherCommand(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		stdout, stderr, err := execute(t, "launcher")
		require.NoError(t, err)

		var got launcher.Descriptor
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, launcher.PlutoServer(), got)
		assert.Contains(t, stderr, "Descriptor disables Pluto authentication")
	})

	t.Run("yaml with port", func(t *testing.T) {
		stdout, _, err := execute(t, "launcher", "--port", "8888", "-o", "yaml")
		require.NoError(t, err)

		var got launcher.Descriptor
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, 60, got.Timeout)
		assert.Equal(t, "Pluto.jl", got.LauncherEntry.Title)
		require.Len(t, got.Command, 4)
		assert.Contains(t, got.Command[3], "port=8888")
		assert.NotContains(t, got.Command[3], launcher.PortPlaceholder)
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"port out of range", []string{"launcher", "--port", "0"}},
			{"unknown format", []string{"launcher", "-o", "xml"}},
			{"unexpected argument", []string{"launcher", "extra"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := execute(t, tt.args...)
				assert.Error(t, err)
			})
		}
	})

	t.Run("quiet at error level", func(t *testing.T) {
		_, stderr, err := execute(t, "--log-level", "error", "launcher")
		require.NoError(t, err)
		assert.Empty(t, stderr)
	})
}

func TestDescendCommand(t *testing.T) {
	t.Run("default budget", func(t *testing.T) {
		stdout, stderr, err := execute(t, "descend", "-o", "json")
		require.NoError(t, err)

		var got descendOutput
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, optimization.DefaultOptions(), got.Options)
		assert.Equal(t, 1000, got.Iterations)
		assert.False(t, got.Converged)
		require.Len(t, got.X, 3)
		assert.InDeltaSlice(t, got.Minimizer, got.X, 1e-2)
		assert.Contains(t, stderr, "Descent stopped at the iteration limit")
	})

	t.Run("larger budget converges", func(t *testing.T) {
		stdout, stderr, err := execute(t, "descend", "--maxiter", "5000", "-o", "yaml")
		require.NoError(t, err)

		var got descendOutput
		require.NoError(t, yaml.Unmarshal([]byte(stdout), &got))
		assert.True(t, got.Converged)
		assert.Less(t, got.Iterations, 5000)
		assert.Less(t, got.GradNorm, got.Options.Eps)
		assert.InDeltaSlice(t, got.Minimizer, got.X, 1e-3)
		assert.NotContains(t, stderr, "iteration limit")
	})

	t.Run("text", func(t *testing.T) {
		stdout, _, err := execute(t, "descend", "--maxiter", "0")
		require.NoError(t, err)
		assert.Contains(t, stdout, "iterations: 0")
		assert.Contains(t, stdout, "converged:  false")
		assert.Contains(t, stdout, "maxiter=0")
	})

	t.Run("invalid options", func(t *testing.T) {
		_, _, err := execute(t, "descend", "--maxiter", "-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, optimization.ErrInvalidOptions))
	})
}

func TestBenchCommand(t *testing.T) {
	t.Run("json subset", func(t *testing.T) {
		stdout, _, err := execute(t, "bench", "--methods", "heavyball,lbfgs", "--repeats", "2", "--maxiter", "5000", "-o", "json")
		require.NoError(t, err)

		var got benchmark.Report
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, "textbook-3x3", got.Scenario)
		require.Len(t, got.Results, 2)
		assert.Equal(t, benchmark.HeavyBall, got.Results[0].Method)
		assert.Equal(t, benchmark.LBFGS, got.Results[1].Method)
		for _, m := range got.Results {
			assert.Equal(t, 2, m.Runs)
			assert.True(t, m.Converged, m.Method)
		}
	})

	t.Run("text", func(t *testing.T) {
		stdout, _, err := execute(t, "bench", "--methods", "heavyball", "--repeats", "1")
		require.NoError(t, err)
		assert.Contains(t, stdout, "scenario:  textbook-3x3")
		assert.Contains(t, stdout, "METHOD")

		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		assert.True(t, strings.HasPrefix(lines[len(lines)-1], "heavyball"))
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			args []string
		}{
			{"unknown method", []string{"bench", "--methods", "newton"}},
			{"no repeats", []string{"bench", "--repeats", "0"}},
			{"unknown format", []string{"bench", "--repeats", "1", "-o", "csv"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, _, err := execute(t, tt.args...)
				assert.Error(t, err)
			})
		}
	})
}
