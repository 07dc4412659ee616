package config

// Config is the root configuration for convobridge.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Provider  ProviderConfig  `yaml:"provider,omitempty"`
	RateLimit RateLimitConfig `yaml:"rateLimit,omitempty"`
	Ledger    LedgerConfig    `yaml:"ledger,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// GatewayConfig controls the HTTP/WebSocket server.
type GatewayConfig struct {
	Port           int        `yaml:"port,omitempty"`
	Bind           string     `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string     `yaml:"customBindHost,omitempty"`
	APIKey         string     `yaml:"apiKey,omitempty"` // Bearer key for issuance + analytics
	AllowedOrigins []string   `yaml:"allowedOrigins,omitempty"`
	TLS            GatewayTLS `yaml:"tls,omitempty"`
}

// GatewayTLS configures TLS for the gateway.
type GatewayTLS struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// ProviderConfig points at the upstream conversational-AI provider.
type ProviderConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	APIKey         string `yaml:"apiKey,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// RateLimitConfig controls signed-URL issuance limiting.
type RateLimitConfig struct {
	WindowMs    int    `yaml:"windowMs,omitempty"`
	MaxRequests int    `yaml:"maxRequests,omitempty"`
	Store       string `yaml:"store,omitempty"` // "memory" | "redis"
	RedisAddr   string `yaml:"redisAddr,omitempty"`
	RedisDB     int    `yaml:"redisDb,omitempty"`
}

// LedgerConfig controls conversation persistence.
type LedgerConfig struct {
	Path string `yaml:"path,omitempty"` // SQLite file; empty uses the data dir default
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}
