// Package config loads service settings from a YAML file and the environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the full settings tree. Every key must be listed here; unknown
// keys in the file are rejected.
type Config struct {
	Port        string  `yaml:"port"`
	LogLevel    string  `yaml:"log_level"`
	DatabaseURL string  `yaml:"database_url"`
	DBMigrate   bool    `yaml:"db_migrate"`
	RedisURL    string  `yaml:"redis_url"`
	Rate        Rate    `yaml:"rate"`
	Auth        Auth    `yaml:"auth"`
	Webhook     Webhook `yaml:"webhook"`
	Solver      Solver  `yaml:"solver"`
}

// Rate limits POST /v1/solve per tenant. RPS 0 disables limiting.
type Rate struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Auth selects how bearer tokens are verified: "dev" (tenant:role) or
// "hmac" (HS256 JWT).
type Auth struct {
	Mode        string `yaml:"mode"`
	HMACSecret  string `yaml:"hmac_secret"`
	TenantClaim string `yaml:"tenant_claim"`
	RoleClaim   string `yaml:"role_claim"`
}

// Webhook is the run-completion notification target. An empty URL disables it.
type Webhook struct {
	URL         string        `yaml:"url"`
	Secret      string        `yaml:"secret"`
	MaxAttempts int           `yaml:"max_attempts"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Solver bounds what a single request may ask for.
type Solver struct {
	DefaultBudget time.Duration `yaml:"default_budget"`
	MaxBudget     time.Duration `yaml:"max_budget"`
	Regret        int           `yaml:"regret"`
	// MaxRuns caps concurrently running solves; each run is single-threaded.
	MaxRuns int `yaml:"max_runs"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:      "8080",
		LogLevel:  "info",
		DBMigrate: true,
		Rate:      Rate{RPS: 5, Burst: 10},
		Auth:      Auth{Mode: "dev", TenantClaim: "tenant", RoleClaim: "role"},
		Webhook:   Webhook{MaxAttempts: 10, Timeout: 5 * time.Second},
		Solver: Solver{
			DefaultBudget: 10 * time.Second,
			MaxBudget:     5 * time.Minute,
			Regret:        2,
			MaxRuns:       4,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. getenv is usually
// os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("DATABASE_URL", &c.DatabaseURL)
	str("REDIS_URL", &c.RedisURL)
	str("AUTH_MODE", &c.Auth.Mode)
	str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
	str("AUTH_TENANT_CLAIM", &c.Auth.TenantClaim)
	str("AUTH_ROLE_CLAIM", &c.Auth.RoleClaim)
	str("WEBHOOK_URL", &c.Webhook.URL)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)

	var errs []string
	parse := func(key string, set func(string) error) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		if err := set(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s=%q: %v", key, v, err))
		}
	}
	atoi := func(dst *int) func(string) error {
		return func(s string) error {
			n, err := strconv.Atoi(s)
			if err == nil {
				*dst = n
			}
			return err
		}
	}
	dur := func(dst *time.Duration) func(string) error {
		return func(s string) error {
			d, err := time.ParseDuration(s)
			if err == nil {
				*dst = d
			}
			return err
		}
	}
	parse("DB_MIGRATE", func(s string) error {
		b, err := strconv.ParseBool(s)
		if err == nil {
			c.DBMigrate = b
		}
		return err
	})
	parse("RATE_RPS", func(s string) error {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil {
			c.Rate.RPS = f
		}
		return err
	})
	parse("RATE_BURST", atoi(&c.Rate.Burst))
	parse("WEBHOOK_MAX_ATTEMPTS", atoi(&c.Webhook.MaxAttempts))
	parse("WEBHOOK_TIMEOUT", dur(&c.Webhook.Timeout))
	parse("SOLVER_DEFAULT_BUDGET", dur(&c.Solver.DefaultBudget))
	parse("SOLVER_MAX_BUDGET", dur(&c.Solver.MaxBudget))
	parse("SOLVER_REGRET", atoi(&c.Solver.Regret))
	parse("SOLVER_MAX_RUNS", atoi(&c.Solver.MaxRuns))
	if len(errs) > 0 {
		return fmt.Errorf("config env: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	var errs []string
	bad := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }
	if p, err := strconv.Atoi(c.Port); err != nil || p <= 0 || p > 65535 {
		bad("port %q is not a TCP port", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		bad("log_level: %v", err)
	}
	if c.Rate.RPS < 0 {
		bad("rate.rps must be >= 0")
	}
	if c.Rate.RPS > 0 && c.Rate.Burst < 1 {
		bad("rate.burst must be >= 1 when rate.rps is set")
	}
	switch c.Auth.Mode {
	case "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			bad("auth.hmac_secret is required in hmac mode")
		}
	default:
		bad("auth.mode %q is not dev or hmac", c.Auth.Mode)
	}
	if c.Webhook.MaxAttempts < 1 {
		bad("webhook.max_attempts must be >= 1")
	}
	if c.Webhook.Timeout <= 0 {
		bad("webhook.timeout must be positive")
	}
	if c.Solver.DefaultBudget <= 0 {
		bad("solver.default_budget must be positive")
	}
	if c.Solver.MaxBudget < c.Solver.DefaultBudget {
		bad("solver.max_budget %s is below default_budget %s", c.Solver.MaxBudget, c.Solver.DefaultBudget)
	}
	if c.Solver.Regret < 2 {
		bad("solver.regret must be >= 2")
	}
	if c.Solver.MaxRuns < 1 {
		bad("solver.max_runs must be >= 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
