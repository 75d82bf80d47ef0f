package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(nil))
	require.NoError(t, err)

	assert.Equal(t, "bash", cfg.Shell)
	assert.Empty(t, cfg.WorkRoot)
	assert.Zero(t, cfg.StepTimeout)
	assert.Equal(t, 6*time.Hour, cfg.JobTimeout)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, uint(3), cfg.CheckoutAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"STEPLINE_SHELL":             "sh",
		"STEPLINE_WORK_ROOT":         "/var/lib/stepline",
		"STEPLINE_STEP_TIMEOUT":      "90s",
		"STEPLINE_JOB_TIMEOUT":       "30m",
		"STEPLINE_CONCURRENCY":       "8",
		"STEPLINE_CHECKOUT_ATTEMPTS": "5",
		"STEPLINE_LOG_LEVEL":         "debug",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sh", cfg.Shell)
	assert.Equal(t, "/var/lib/stepline", cfg.WorkRoot)
	assert.Equal(t, 90*time.Second, cfg.StepTimeout)
	assert.Equal(t, 30*time.Minute, cfg.JobTimeout)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, uint(5), cfg.CheckoutAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"zero concurrency", map[string]string{"STEPLINE_CONCURRENCY": "0"}},
		{"zero checkout attempts", map[string]string{"STEPLINE_CHECKOUT_ATTEMPTS": "0"}},
		{"negative step timeout", map[string]string{"STEPLINE_STEP_TIMEOUT": "-1s"}},
		{"unparsable duration", map[string]string{"STEPLINE_JOB_TIMEOUT": "soon"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(tc.env))
			assert.Error(t, err)
		})
	}
}
