// Package config loads and validates the service configuration.
//
// DESIGN: Configuration comes from a YAML file. Secrets are referenced
// with ${VAR} / ${VAR:-default} placeholders and resolved from the
// environment at load time, so the file itself can be committed.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatdigest/chatdigest/internal/monitoring"
)

// Duration is a time.Duration that unmarshals from YAML strings such
// as "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
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

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration.
type Config struct {
	Server     ServerConfig            `yaml:"server"`     // HTTP server settings
	Storage    StorageConfig           `yaml:"storage"`    // message store backend
	Summarizer SummarizerConfig        `yaml:"summarizer"` // generative-text backend
	Gateway    GatewayConfig           `yaml:"gateway"`    // messaging gateway credentials
	Webhook    WebhookConfig           `yaml:"webhook"`    // inbound webhook settings
	Logging    monitoring.LoggerConfig `yaml:"logging"`    // zerolog settings
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int      `yaml:"port"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// StorageConfig selects and configures the message store backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "postgres" or "sqlite"
	DSN    string `yaml:"dsn"`    // connection string or sqlite file path
}

// SummarizerConfig configures the Gemini adapter.
type SummarizerConfig struct {
	APIKey  string   `yaml:"api_key"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// GatewayConfig configures the ultramsg delivery client.
type GatewayConfig struct {
	BaseURL    string   `yaml:"base_url"` // empty means the public API
	InstanceID string   `yaml:"instance_id"`
	Token      string   `yaml:"token"`
	Timeout    Duration `yaml:"timeout"`
}

// WebhookConfig contains inbound webhook settings.
type WebhookConfig struct {
	Path     string `yaml:"path"`     // defaults to /whatsapp-webhook
	Timezone string `yaml:"timezone"` // IANA name for summary timestamps, defaults to UTC
}

// envPlaceholderRe matches ${VAR} and ${VAR:-default}.
var envPlaceholderRe = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults resolves ${VAR:-default} placeholders from the
// environment, falling back to the default (or empty) when unset.
func expandEnvWithDefaults(s string) string {
	return envPlaceholderRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envPlaceholderRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes, expanding
// environment placeholders and validating the result.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Webhook.Path == "" {
		c.Webhook.Path = "/whatsapp-webhook"
	}
	if c.Webhook.Timezone == "" {
		c.Webhook.Timezone = "UTC"
	}
}

// Validate checks that the configuration is complete and coherent.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite":
	case "":
		return fmt.Errorf("storage.driver is required")
	default:
		return fmt.Errorf("unknown storage.driver: %q (must be postgres or sqlite)", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required")
	}

	if c.Summarizer.APIKey == "" {
		return fmt.Errorf("summarizer.api_key is required")
	}

	if c.Gateway.InstanceID == "" {
		return fmt.Errorf("gateway.instance_id is required")
	}
	if c.Gateway.Token == "" {
		return fmt.Errorf("gateway.token is required")
	}

	if _, err := time.LoadLocation(c.Webhook.Timezone); err != nil {
		return fmt.Errorf("invalid webhook.timezone %q: %w", c.Webhook.Timezone, err)
	}
	return nil
}

// Location returns the configured summary timezone. Validate has already
// checked it, so failures cannot happen on a validated config.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Webhook.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
