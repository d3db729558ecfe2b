package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/copyleftdev/plutobench/internal/optimization"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
		RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"60s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Optimization struct {
		Alpha   float64       `env:"OPT_ALPHA" envDefault:"0.01"`
		Beta    float64       `env:"OPT_BETA" envDefault:"0.8"`
		MaxIter int           `env:"OPT_MAX_ITER" envDefault:"1000"`
		Eps     float64       `env:"OPT_EPS" envDefault:"1e-5"`
		MaxJobs int           `env:"OPT_MAX_JOBS" envDefault:"10"`
		JobTTL  time.Duration `env:"OPT_JOB_TTL" envDefault:"15m"`
		// MaxDims caps n for problems submitted over HTTP.
		MaxDims int `env:"OPT_MAX_DIMS" envDefault:"512"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Set default logging level based on environment
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d out of range", c.HTTP.Port)
	}
	if c.Optimization.MaxJobs < 1 {
		return fmt.Errorf("OPT_MAX_JOBS must be positive, got %d", c.Optimization.MaxJobs)
	}
	if c.Optimization.MaxDims < 1 {
		return fmt.Errorf("OPT_MAX_DIMS must be positive, got %d", c.Optimization.MaxDims)
	}
	if err := c.DescentOptions().Validate(); err != nil {
		return fmt.Errorf("optimizer defaults: %w", err)
	}
	return nil
}

// DescentOptions returns the configured heavy-ball defaults.
func (c *Config) DescentOptions() optimization.Options {
	return optimization.Options{
		Alpha:   c.Optimization.Alpha,
		Beta:    c.Optimization.Beta,
		MaxIter: c.Optimization.MaxIter,
		Eps:     c.Optimization.Eps,
	}
}
