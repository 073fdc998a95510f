package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config defines server configuration. Every policy constant the control
// plane depends on (credential TTL, heartbeat timeout, inactivity
// threshold, retry budget) is injectable here rather than compiled in.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Auth      AuthConfig      `yaml:"auth"`
	Directory DirectoryConfig `yaml:"directory"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type StoreConfig struct {
	// Driver selects the store backend: "sqlite" or "memory".
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	// RetryAttempts bounds tries per store operation, first try included.
	RetryAttempts int `yaml:"retry_attempts"`
	// RetryBackoff is the delay before the first retry; doubles per retry.
	RetryBackoff Duration `yaml:"retry_backoff"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type AuthConfig struct {
	// SecretHex is the hex-encoded HMAC secret. Environment only in
	// production; the YAML field exists for development setups.
	SecretHex     string   `yaml:"secret_hex"`
	CredentialTTL Duration `yaml:"credential_ttl"`
}

type DirectoryConfig struct {
	HeartbeatTimeout Duration `yaml:"heartbeat_timeout"`
}

type SweeperConfig struct {
	Interval            Duration `yaml:"interval"`
	InactivityThreshold Duration `yaml:"inactivity_threshold"`
	BatchLimit          int      `yaml:"batch_limit"`
}

// Load reads configuration from an optional YAML file and environment
// variables. Environment overrides the file; the file overrides defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Store: StoreConfig{
			Driver:        "sqlite",
			Path:          "hallpass.db",
			RetryAttempts: 4,
			RetryBackoff:  Duration(50 * time.Millisecond),
		},
		Log: LogConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			CredentialTTL: Duration(2 * time.Hour),
		},
		Directory: DirectoryConfig{
			HeartbeatTimeout: Duration(30 * time.Second),
		},
		Sweeper: SweeperConfig{
			Interval:            Duration(1 * time.Minute),
			InactivityThreshold: Duration(10 * time.Minute),
			BatchLimit:          100,
		},
	}

	if path := os.Getenv("HALLPASS_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("HALLPASS_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("HALLPASS_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HALLPASS_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if driver := os.Getenv("HALLPASS_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if path := os.Getenv("HALLPASS_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if level := os.Getenv("HALLPASS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if secret := os.Getenv("HALLPASS_AUTH_SECRET"); secret != "" {
		cfg.Auth.SecretHex = secret
	}
	if ttl := os.Getenv("HALLPASS_CREDENTIAL_TTL"); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HALLPASS_CREDENTIAL_TTL: %w", err)
		}
		cfg.Auth.CredentialTTL = Duration(parsed)
	}

	if cfg.Store.Driver != "sqlite" && cfg.Store.Driver != "memory" {
		return Config{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	return cfg, nil
}

// Secret decodes the configured HMAC secret.
func (c AuthConfig) Secret() ([]byte, error) {
	if c.SecretHex == "" {
		return nil, fmt.Errorf("auth secret not configured")
	}
	secret, err := hex.DecodeString(c.SecretHex)
	if err != nil {
		return nil, fmt.Errorf("invalid auth secret: %w", err)
	}
	return secret, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
