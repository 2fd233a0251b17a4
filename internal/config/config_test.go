package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
port: "9090"
rate:
  rps: 2.5
  burst: 3
solver:
  default_budget: 30s
  max_budget: 10m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2.5, cfg.Rate.RPS)
	assert.Equal(t, 3, cfg.Rate.Burst)
	assert.Equal(t, 30*time.Second, cfg.Solver.DefaultBudget)
	assert.Equal(t, 10*time.Minute, cfg.Solver.MaxBudget)
	// untouched keys keep their defaults
	assert.Equal(t, 2, cfg.Solver.Regret)
	assert.Equal(t, "dev", cfg.Auth.Mode)
	require.NoError(t, cfg.Validate())
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "solver:\n  budget: 5s\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":                  "7000",
		"DATABASE_URL":          "postgres://localhost/vrptw",
		"DB_MIGRATE":            "false",
		"REDIS_URL":             "redis://localhost:6379/0",
		"RATE_RPS":              "0",
		"WEBHOOK_URL":           "http://hooks.local/run",
		"WEBHOOK_MAX_ATTEMPTS":  "3",
		"SOLVER_DEFAULT_BUDGET": "2s",
		"SOLVER_REGRET":         "3",
	}))
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "postgres://localhost/vrptw", cfg.DatabaseURL)
	assert.False(t, cfg.DBMigrate)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Zero(t, cfg.Rate.RPS)
	assert.Equal(t, "http://hooks.local/run", cfg.Webhook.URL)
	assert.Equal(t, 3, cfg.Webhook.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Solver.DefaultBudget)
	assert.Equal(t, 3, cfg.Solver.Regret)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"RATE_BURST":        "lots",
		"SOLVER_MAX_BUDGET": "forever",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_BURST")
	assert.Contains(t, err.Error(), "SOLVER_MAX_BUDGET")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Port = "http" }, "port"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"burst", func(c *Config) { c.Rate.Burst = 0 }, "rate.burst"},
		{"auth mode", func(c *Config) { c.Auth.Mode = "jwks" }, "auth.mode"},
		{"hmac secret", func(c *Config) { c.Auth.Mode = "hmac" }, "hmac_secret"},
		{"attempts", func(c *Config) { c.Webhook.MaxAttempts = 0 }, "max_attempts"},
		{"budget order", func(c *Config) { c.Solver.MaxBudget = time.Second }, "max_budget"},
		{"regret", func(c *Config) { c.Solver.Regret = 1 }, "regret"},
		{"runs", func(c *Config) { c.Solver.MaxRuns = 0 }, "max_runs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
