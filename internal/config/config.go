package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/emergentdev/emergent/internal/engine"
	"github.com/emergentdev/emergent/internal/loop"
	"github.com/emergentdev/emergent/internal/supervisor"
)

// Config represents the full Emergent configuration
type Config struct {
	Workspace     WorkspaceConfig     `mapstructure:"workspace"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Run           RunConfig           `mapstructure:"run"`
	Reliability   ReliabilityConfig   `mapstructure:"reliability"`
	Cloud         CloudConfig         `mapstructure:"cloud"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// WorkspaceConfig contains workspace-level settings
type WorkspaceConfig struct {
	Dir        string `mapstructure:"dir"`
	HistoryCap int    `mapstructure:"history_cap"`
}

// EngineConfig contains reasoning-engine connection settings
type EngineConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	APIKeySecret string  `mapstructure:"api_key_secret"` // Secret Manager resource holding the key
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
}

// RunConfig contains session-cadence settings
type RunConfig struct {
	Goal                 string `mapstructure:"goal"`
	TotalDuration        string `mapstructure:"total_duration"`
	SessionTimeout       string `mapstructure:"session_timeout"`
	RestartDelay         string `mapstructure:"restart_delay"`
	IterationsPerSession int    `mapstructure:"iterations_per_session"`
}

// ReliabilityConfig contains stuck-detection and reflection settings
type ReliabilityConfig struct {
	LoopThreshold       int    `mapstructure:"loop_threshold"`
	LoopWindow          int    `mapstructure:"loop_window"`
	ReflectionThreshold int    `mapstructure:"reflection_threshold"`
	StallTimeout        string `mapstructure:"stall_timeout"`
	TokenBudget         int    `mapstructure:"token_budget"`
}

// CloudConfig contains cloud logging settings
type CloudConfig struct {
	Provider string `mapstructure:"provider"` // "gcp" or empty for local-only
	Project  string `mapstructure:"project"`  // GCP project ID
	LogName  string `mapstructure:"log_name"`
}

// ObservabilityConfig contains trace-export settings
type ObservabilityConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	PublicKey string `mapstructure:"public_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	cfg := &Config{}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Workspace.Dir == "" {
		cfg.Workspace.Dir = "."
	}

	if cfg.Engine.Model == "" {
		cfg.Engine.Model = engine.DefaultModel
	}

	if cfg.Run.TotalDuration == "" {
		cfg.Run.TotalDuration = supervisor.DefaultTotalDuration.String()
	}

	if cfg.Run.SessionTimeout == "" {
		cfg.Run.SessionTimeout = supervisor.DefaultSessionTimeout.String()
	}

	if cfg.Run.RestartDelay == "" {
		cfg.Run.RestartDelay = supervisor.DefaultRestartDelay.String()
	}

	if cfg.Run.IterationsPerSession == 0 {
		cfg.Run.IterationsPerSession = loop.DefaultMaxIterations
	}

	if cfg.Cloud.LogName == "" {
		cfg.Cloud.LogName = "emergent"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cloud.Provider != "" && c.Cloud.Provider != "gcp" {
		return fmt.Errorf("invalid cloud provider: %s (only gcp is supported)", c.Cloud.Provider)
	}

	if c.Cloud.Provider == "gcp" && c.Cloud.Project == "" {
		return fmt.Errorf("cloud project is required when provider is gcp")
	}

	for name, value := range map[string]string{
		"total_duration":  c.Run.TotalDuration,
		"session_timeout": c.Run.SessionTimeout,
		"restart_delay":   c.Run.RestartDelay,
		"stall_timeout":   c.Reliability.StallTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if c.Run.IterationsPerSession < 0 {
		return fmt.Errorf("iterations_per_session must not be negative")
	}

	if c.Observability.Enabled {
		if c.Observability.Host == "" {
			return fmt.Errorf("observability host is required when enabled")
		}
		if c.Observability.PublicKey == "" || c.Observability.SecretKey == "" {
			return fmt.Errorf("observability keys are required when enabled")
		}
	}

	return nil
}

// ValidateForRun performs additional validation required before running
func (c *Config) ValidateForRun() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Run.Goal == "" {
		return fmt.Errorf("a goal is required")
	}

	if c.Engine.APIKey == "" && c.Engine.APIKeySecret == "" {
		return fmt.Errorf("an engine API key (or Secret Manager reference) is required")
	}

	return nil
}

// Duration parses a configured duration string, returning the fallback
// for empty values. Call Validate first; parse errors here are treated
// as the fallback.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
