package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, ONEDAY_CONFIG env, ./config.yaml, /etc/oneday/config.yaml)
//  3. Environment variable mapping
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	// Start with defaults.
	cfg := Defaults()

	// Discover and load YAML config file.
	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	// Apply environment variable overrides.
	applyEnvOverrides(&cfg)

	// Resolve _file references.
	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	// Validate.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. ONEDAY_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/oneday/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	// Explicit path takes priority.
	if configPath != "" {
		return configPath
	}

	// Check ONEDAY_CONFIG env var.
	if envPath := os.Getenv("ONEDAY_CONFIG"); envPath != "" {
		return envPath
	}

	// Check common locations.
	candidates := []string{
		"config.yaml",
		"/etc/oneday/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields. Platform
// settings use the ONEDAY_ prefix; external service credentials keep their
// conventional names (GITHUB_TOKEN, RAILWAY_TOKEN, ...).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ONEDAY_BACKEND_URL"); v != "" {
		cfg.Engine.BackendURL = v
	}
	if v := os.Getenv("ONEDAY_MODEL"); v != "" {
		cfg.Engine.DefaultModel = v
	}
	if v := os.Getenv("ONEDAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ONEDAY_API_KEY"); v != "" {
		cfg.Engine.APIKey = v
	}
	if v := os.Getenv("ONEDAY_MAX_TURNS"); v != "" {
		if turns, err := strconv.Atoi(v); err == nil {
			cfg.Engine.MaxTurns = turns
		}
	}
	if v := os.Getenv("ONEDAY_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("ONEDAY_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("ONEDAY_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}
	if v := os.Getenv("ONEDAY_RATE_LIMIT"); v != "" {
		cfg.Auth.RateLimit.Enabled = v != "off" && v != "false" && v != "0"
	}
	if v := os.Getenv("ONEDAY_RATE_LIMIT_RPM"); v != "" {
		if rpm, err := strconv.Atoi(v); err == nil {
			cfg.Auth.RateLimit.DefaultRPM = rpm
		}
	}

	// ONEDAY_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("ONEDAY_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err == nil && len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// External service credentials.
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("ONEDAY_GITHUB_ORG"); v != "" {
		cfg.GitHub.Org = v
	}
	if v := os.Getenv("RAILWAY_TOKEN"); v != "" {
		cfg.Deploy.RailwayToken = v
	}
	if v := os.Getenv("VERCEL_TOKEN"); v != "" {
		cfg.Deploy.VercelToken = v
	}
	if v := os.Getenv("RENDER_TOKEN"); v != "" {
		cfg.Deploy.RenderToken = v
	}
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	type ref struct {
		file  string
		value *string
		field string
	}

	refs := []ref{
		{cfg.Engine.APIKeyFile, &cfg.Engine.APIKey, "engine.api_key_file"},
		{cfg.Storage.Postgres.DSNFile, &cfg.Storage.Postgres.DSN, "storage.postgres.dsn_file"},
		{cfg.GitHub.TokenFile, &cfg.GitHub.Token, "github.token_file"},
		{cfg.Deploy.RailwayTokenFile, &cfg.Deploy.RailwayToken, "deploy.railway_token_file"},
		{cfg.Deploy.VercelTokenFile, &cfg.Deploy.VercelToken, "deploy.vercel_token_file"},
		{cfg.Deploy.RenderTokenFile, &cfg.Deploy.RenderToken, "deploy.render_token_file"},
	}

	for _, r := range refs {
		if r.file == "" || *r.value != "" {
			continue
		}
		val, err := readSecretFile(r.file)
		if err != nil {
			return fmt.Errorf("%s: %w", r.field, err)
		}
		*r.value = val
	}

	// auth.api_keys[*].key_file -> auth.api_keys[*].key
	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
