package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.TLS.Enabled {
		if cfg.Gateway.TLS.CertPath == "" || cfg.Gateway.TLS.KeyPath == "" {
			issues = append(issues, ValidationIssue{
				Path:    "gateway.tls",
				Message: "certPath and keyPath are required when TLS is enabled",
			})
		}
	}

	if cfg.Provider.BaseURL == "" {
		issues = append(issues, ValidationIssue{
			Path:    "provider.baseUrl",
			Message: "base URL is required",
		})
	}

	if cfg.RateLimit.WindowMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "rateLimit.windowMs",
			Message: fmt.Sprintf("must be positive, got %d", cfg.RateLimit.WindowMs),
		})
	}
	if cfg.RateLimit.MaxRequests < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "rateLimit.maxRequests",
			Message: fmt.Sprintf("must be positive, got %d", cfg.RateLimit.MaxRequests),
		})
	}

	validStores := []string{"memory", "redis"}
	if cfg.RateLimit.Store != "" && !slices.Contains(validStores, cfg.RateLimit.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "rateLimit.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.RateLimit.Store),
		})
	}
	if cfg.RateLimit.Store == "redis" && cfg.RateLimit.RedisAddr == "" {
		issues = append(issues, ValidationIssue{
			Path:    "rateLimit.redisAddr",
			Message: "required when store is redis",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
