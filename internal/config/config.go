// Package config loads, defaults, and validates the botpack YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/botpack/internal/foundation/errors"
)

// Config represents the application configuration.
type Config struct {
	Template TemplateConfig `yaml:"template"`
	Modules  ModulesConfig  `yaml:"modules"`
	Output   OutputConfig   `yaml:"output"`
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TemplateConfig locates the immutable base template archive.
type TemplateConfig struct {
	Path string `yaml:"path"`
}

// ModulesConfig describes the selectable module directory and how selected
// modules are injected into the deliverable.
type ModulesConfig struct {
	Root      string `yaml:"root"`
	Extension string `yaml:"extension"`
	// Namespace is the archive directory injected modules are placed under.
	Namespace string `yaml:"namespace"`
	// MaxInjectedBytes caps the uncompressed size of injected content; 0 means unlimited.
	MaxInjectedBytes int64 `yaml:"max_injected_bytes"`
	// KeepExtension names injected entries <namespace>/<id><extension>
	// instead of <namespace>/<id>.
	KeepExtension bool        `yaml:"keep_extension,omitempty"`
	Sync          *SyncConfig `yaml:"sync,omitempty"`
}

// SyncConfig enables keeping the module root in sync with a git repository.
type SyncConfig struct {
	URL      string        `yaml:"url"`
	Branch   string        `yaml:"branch,omitempty"`
	Token    string        `yaml:"token,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
	Retry    RetryConfig   `yaml:"retry,omitempty"`
}

// Enabled reports whether a sync source is configured.
func (s *SyncConfig) Enabled() bool {
	return s != nil && s.URL != ""
}

// RetryConfig tunes retries of transient sync failures.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// OutputConfig describes the deliverable handed to callers.
type OutputConfig struct {
	Name string `yaml:"name"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr            string          `yaml:"addr"`
	MaxConnections  int             `yaml:"max_connections"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	AssembleTimeout time.Duration   `yaml:"assemble_timeout"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	StaticDir       string          `yaml:"static_dir,omitempty"`
}

// RateLimitConfig bounds package downloads; zero RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventsConfig configures optional assembly event publishing to NATS.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load loads configuration from the specified file.
func Load(configPath string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, derrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				WithCause(err).
				Build()
		}
		return nil, derrors.ConfigError("failed to read config file").
			WithContext("path", configPath).
			WithCause(err).
			Build()
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references from the
// environment, then applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, derrors.ConfigError("failed to unmarshal config").WithCause(err).Build()
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.Modules.MaxInjectedBytes = 1_000_000
	example.Server.RateLimit = RateLimitConfig{RequestsPerSecond: 5, Burst: 10}
	example.Server.StaticDir = "./static"
	example.Metrics.Enabled = true

	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
