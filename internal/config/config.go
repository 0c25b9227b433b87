// Package config loads guardstream configuration from a YAML file,
// applying service-quota defaults for anything left unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/guardstream/internal/guard"
)

// Guardrail identifies the externally configured policy to evaluate
// against. Version "DRAFT" targets the working draft.
type Guardrail struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

// Retry tunes throttle handling.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
}

// Config is the full guardstream configuration.
type Config struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`

	Guardrail Guardrail    `yaml:"guardrail"`
	Limits    guard.Limits `yaml:"limits"`
	Retry     Retry        `yaml:"retry"`

	Model    string `yaml:"model"`     // default model for `stream`
	AuditLog string `yaml:"audit_log"` // JSONL verdict audit trail, empty disables
	Store    string `yaml:"store"`     // sqlite verdict store, empty disables
	Inbox    string `yaml:"inbox"`     // watch mode input directory
	Outbox   string `yaml:"outbox"`    // watch mode verdict directory
}

// Default returns a configuration with service defaults filled in.
func Default() *Config {
	return &Config{
		Guardrail: Guardrail{Version: "DRAFT"},
		Limits:    guard.Limits{}.WithDefaults(),
		Retry:     Retry{MaxAttempts: guard.DefaultMaxAttempts},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Limits = cfg.Limits.WithDefaults()
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = guard.DefaultMaxAttempts
	}
	if cfg.Guardrail.Version == "" {
		cfg.Guardrail.Version = "DRAFT"
	}
	return cfg, nil
}

// RequireGuardrail validates that a guardrail is configured for commands
// that call the evaluation service.
func (c *Config) RequireGuardrail() error {
	if c.Guardrail.ID == "" {
		return fmt.Errorf("no guardrail configured: set guardrail.id in the config file or pass --guardrail")
	}
	return nil
}
