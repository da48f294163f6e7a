// Package config provides unified configuration for the OneDay.run platform.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (ONEDAY_ prefix, plus the
//     conventional GITHUB_TOKEN / RAILWAY_TOKEN / VERCEL_TOKEN /
//     RENDER_TOKEN names)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the platform server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Session       SessionConfig       `yaml:"session"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	GitHub        GitHubConfig        `yaml:"github"`
	Deploy        DeployConfig        `yaml:"deploy"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// EngineConfig holds inference backend and conversation loop settings.
type EngineConfig struct {
	BackendURL    string            `yaml:"backend_url"`    // required
	APIKey        string            `yaml:"api_key"`        // optional
	APIKeyFile    string            `yaml:"api_key_file"`   // _file variant for api_key
	DefaultModel  string            `yaml:"default_model"`  // default: "qwen2.5-coder:7b"
	MaxTurns      int               `yaml:"max_turns"`      // default: 4
	Temperature   float64           `yaml:"temperature"`    // default: 0.7
	MaxTokens     int               `yaml:"max_tokens"`     // default: 8192
	SupportsTools bool              `yaml:"supports_tools"` // default: true
	ModelMapping  map[string]string `yaml:"model_mapping"`
}

// SessionConfig holds chat session lifecycle settings.
type SessionConfig struct {
	MaxSessions       int           `yaml:"max_sessions"`       // default: 1000
	Timeout           time.Duration `yaml:"timeout"`            // default: 60m
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // default: 30s
}

// StorageConfig holds project archive settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory" or "postgres", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // API key entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig caps request rates per authenticated subject. Budgets
// are keyed by the caller's service tier, so clients on faster delivery
// packages get more headroom.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`     // default: true
	DefaultRPM int            `yaml:"default_rpm"` // default: 120
	TierRPM    map[string]int `yaml:"tier_rpm"`    // per-tier overrides, 0 = unlimited
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key"`
	KeyFile     string `yaml:"key_file"` // _file variant for key
	Subject     string `yaml:"subject"`
	ServiceTier string `yaml:"service_tier"`
}

// JWTConfig holds JWT bearer authentication settings.
type JWTConfig struct {
	JWKSURL  string `yaml:"jwks_url"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// GitHubConfig holds repository service settings.
type GitHubConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"` // _file variant for token
	Org       string `yaml:"org"`        // default: "prototypowanie-pl"
}

// DeployConfig holds deployment platform credentials.
type DeployConfig struct {
	RailwayToken     string `yaml:"railway_token"`
	RailwayTokenFile string `yaml:"railway_token_file"`
	VercelToken      string `yaml:"vercel_token"`
	VercelTokenFile  string `yaml:"vercel_token_file"`
	RenderToken      string `yaml:"render_token"`
	RenderTokenFile  string `yaml:"render_token_file"`
	DefaultPlatform  string `yaml:"default_platform"` // default: "railway"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Engine: EngineConfig{
			BackendURL:    "http://localhost:11434",
			DefaultModel:  "qwen2.5-coder:7b",
			MaxTurns:      4,
			Temperature:   0.7,
			MaxTokens:     8192,
			SupportsTools: true,
		},
		Session: SessionConfig{
			MaxSessions:       1000,
			Timeout:           60 * time.Minute,
			HeartbeatInterval: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			RateLimit: RateLimitConfig{
				Enabled:    true,
				DefaultRPM: 120,
				TierRPM: map[string]int{
					"1h":  600,
					"8h":  360,
					"24h": 240,
					"36h": 180,
					"48h": 150,
					"72h": 120,
				},
			},
		},
		GitHub: GitHubConfig{
			Org: "prototypowanie-pl",
		},
		Deploy: DeployConfig{
			DefaultPlatform: "railway",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
