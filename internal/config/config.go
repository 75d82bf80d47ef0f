// Package config resolves runner settings from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config carries every knob the CLI exposes through the environment.
// Flags override these values where a flag exists.
type Config struct {
	// Shell runs command steps that do not name their own shell.
	Shell string `env:"STEPLINE_SHELL, default=bash"`

	// WorkRoot is where job workspaces and run history live. Empty
	// means the workspace default (temp dir for workspaces, the
	// workflow's directory for history).
	WorkRoot string `env:"STEPLINE_WORK_ROOT"`

	// StepTimeout bounds a single step. Zero means unbounded.
	StepTimeout time.Duration `env:"STEPLINE_STEP_TIMEOUT"`

	// JobTimeout bounds a whole job. The default mirrors the hosted
	// runner limit of six hours.
	JobTimeout time.Duration `env:"STEPLINE_JOB_TIMEOUT, default=6h"`

	// Concurrency bounds simultaneously running jobs.
	Concurrency int `env:"STEPLINE_CONCURRENCY, default=2"`

	// CheckoutAttempts bounds clone retries for checkout steps.
	CheckoutAttempts uint `env:"STEPLINE_CHECKOUT_ATTEMPTS, default=3"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `env:"STEPLINE_LOG_LEVEL, default=info"`
}

// Load resolves the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves the configuration from an explicit lookuper.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("STEPLINE_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.CheckoutAttempts < 1 {
		return fmt.Errorf("STEPLINE_CHECKOUT_ATTEMPTS must be at least 1, got %d", c.CheckoutAttempts)
	}
	if c.StepTimeout < 0 || c.JobTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}
