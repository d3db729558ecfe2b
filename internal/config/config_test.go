package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/plutobench/internal/optimization"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 10, cfg.Optimization.MaxJobs)
	assert.Equal(t, 15*time.Minute, cfg.Optimization.JobTTL)
	assert.Equal(t, optimization.DefaultOptions(), cfg.DescentOptions())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OPT_ALPHA", "0.02")
	t.Setenv("OPT_MAX_ITER", "5000")
	t.Setenv("OPT_JOB_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, time.Hour, cfg.Optimization.JobTTL)

	opts := cfg.DescentOptions()
	assert.Equal(t, 0.02, opts.Alpha)
	assert.Equal(t, 0.8, opts.Beta)
	assert.Equal(t, 5000, opts.MaxIter)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unparsable port", "HTTP_PORT", "eighty"},
		{"port out of range", "HTTP_PORT", "70000"},
		{"negative maxiter", "OPT_MAX_ITER", "-1"},
		{"no jobs", "OPT_MAX_JOBS", "0"},
		{"no dims", "OPT_MAX_DIMS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
