package identityauth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file. The signing secret should
// normally arrive this way rather than from the file.
const (
	EnvJWTSecret   = "IDENTITYAUTH_JWT_SECRET"
	EnvJWTIssuer   = "IDENTITYAUTH_JWT_ISSUER"
	EnvJWTAudience = "IDENTITYAUTH_JWT_AUDIENCE"
)

// LoadConfig reads a YAML file over DefaultConfig, applies environment
// overrides and validates the result. Durations use Go syntax ("15m").
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parsing config: %v", ErrConfiguration, err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvJWTSecret); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv(EnvJWTIssuer); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv(EnvJWTAudience); v != "" {
		cfg.JWT.Audience = v
	}
}
