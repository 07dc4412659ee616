package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Gateway: GatewayConfig{
			Port: 17870,
			Bind: "loopback",
		},
		Provider: ProviderConfig{
			BaseURL:        "https://api.elevenlabs.io",
			TimeoutSeconds: 10,
		},
		RateLimit: RateLimitConfig{
			WindowMs:    60_000,
			MaxRequests: 60,
			Store:       "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
