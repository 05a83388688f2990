// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gopkg.in/yaml.v3"

	"github.com/formbase/formbase-go/model"
)

// Config is the root application configuration.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Records       RecordsConfig       `yaml:"records"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// APIConfig describes the backend endpoint and credentials. The token is a
// static bearer token supplied at process start; it is never refreshed or
// rotated. Every write body is augmented with Username before transmission,
// the server enforces row ownership on it.
type APIConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Token          string               `yaml:"token"`
	Username       string               `yaml:"username"`
	Timeout        time.Duration        `yaml:"timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig describes circuit breaker settings for the backend.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// RecordsConfig describes record listing settings.
type RecordsConfig struct {
	PageSize int `yaml:"page_size"`
}

// ObservabilityConfig describes logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			Timeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Records: RecordsConfig{
			PageSize: 20,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields. A missing file is not an error; the
// FORMBASE_* environment alone can carry a full configuration.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Environment-only configuration.
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if cfg.API.Username == "" {
		cfg.API.Username = usernameFromToken(cfg.API.Token)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate is the environment-not-ready check: required connection settings
// must be present before any network call is attempted.
func (c *Config) Validate() error {
	var errs []string

	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.API.Token == "" {
		errs = append(errs, "api.token is required")
	}
	if c.API.Username == "" {
		errs = append(errs, "api.username is required")
	}
	if c.Records.PageSize < 1 {
		errs = append(errs, "records.page_size must be positive")
	}

	if len(errs) > 0 {
		return model.NewConfigError(strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads FORMBASE_* environment variables and overrides
// config values. A malformed value fails like a malformed file would; a
// typo'd deployment variable must not fall back silently.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("FORMBASE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FORMBASE_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}
	if v := os.Getenv("FORMBASE_API_USERNAME"); v != "" {
		cfg.API.Username = v
	}
	if v := os.Getenv("FORMBASE_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: parsing FORMBASE_API_TIMEOUT: %w", err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv("FORMBASE_RECORDS_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: parsing FORMBASE_RECORDS_PAGE_SIZE: %w", err)
		}
		cfg.Records.PageSize = n
	}
	if v := os.Getenv("FORMBASE_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	return nil
}

// usernameFromToken derives the username from the bearer token's claims when
// no explicit username is configured. The token is parsed without signature
// verification: the backend is the verifier, this side only needs the claim
// to scope its own writes and deletes.
func usernameFromToken(token string) string {
	if token == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ""
	}

	for _, key := range []string{"username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
