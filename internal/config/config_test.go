package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty config is valid",
			config:  Config{},
			wantErr: false,
		},
		{
			name: "valid gcp config",
			config: Config{
				Cloud: CloudConfig{Provider: "gcp", Project: "my-project"},
			},
			wantErr: false,
		},
		{
			name: "invalid provider",
			config: Config{
				Cloud: CloudConfig{Provider: "aws"},
			},
			wantErr: true,
			errMsg:  "invalid cloud provider",
		},
		{
			name: "gcp without project",
			config: Config{
				Cloud: CloudConfig{Provider: "gcp"},
			},
			wantErr: true,
			errMsg:  "cloud project is required",
		},
		{
			name: "invalid total_duration",
			config: Config{
				Run: RunConfig{TotalDuration: "yesterday"},
			},
			wantErr: true,
			errMsg:  "invalid total_duration",
		},
		{
			name: "invalid stall_timeout",
			config: Config{
				Reliability: ReliabilityConfig{StallTimeout: "forever"},
			},
			wantErr: true,
			errMsg:  "invalid stall_timeout",
		},
		{
			name: "valid duration format",
			config: Config{
				Run: RunConfig{TotalDuration: "2h30m", SessionTimeout: "45m"},
			},
			wantErr: false,
		},
		{
			name: "negative iterations",
			config: Config{
				Run: RunConfig{IterationsPerSession: -1},
			},
			wantErr: true,
			errMsg:  "iterations_per_session",
		},
		{
			name: "observability enabled without host",
			config: Config{
				Observability: ObservabilityConfig{Enabled: true, PublicKey: "pk", SecretKey: "sk"},
			},
			wantErr: true,
			errMsg:  "observability host is required",
		},
		{
			name: "observability enabled without keys",
			config: Config{
				Observability: ObservabilityConfig{Enabled: true, Host: "https://cloud.langfuse.com"},
			},
			wantErr: true,
			errMsg:  "observability keys are required",
		},
		{
			name: "observability fully configured",
			config: Config{
				Observability: ObservabilityConfig{
					Enabled:   true,
					Host:      "https://cloud.langfuse.com",
					PublicKey: "pk",
					SecretKey: "sk",
				},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.errMsg)
					return
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.errMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestConfig_ValidateForRun(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid run config with direct key",
			config: Config{
				Run:    RunConfig{Goal: "build a parser"},
				Engine: EngineConfig{APIKey: "sk-test"},
			},
			wantErr: false,
		},
		{
			name: "valid run config with secret reference",
			config: Config{
				Run:    RunConfig{Goal: "build a parser"},
				Engine: EngineConfig{APIKeySecret: "projects/p/secrets/openai-key"},
			},
			wantErr: false,
		},
		{
			name: "missing goal",
			config: Config{
				Engine: EngineConfig{APIKey: "sk-test"},
			},
			wantErr: true,
			errMsg:  "a goal is required",
		},
		{
			name: "missing api key",
			config: Config{
				Run: RunConfig{Goal: "build a parser"},
			},
			wantErr: true,
			errMsg:  "API key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateForRun()
			if tt.wantErr {
				if err == nil {
					t.Errorf("ValidateForRun() expected error containing %q, got nil", tt.errMsg)
					return
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ValidateForRun() error = %q, want error containing %q", err.Error(), tt.errMsg)
				}
			} else {
				if err != nil {
					t.Errorf("ValidateForRun() unexpected error: %v", err)
				}
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Workspace.Dir != "." {
		t.Errorf("Workspace.Dir = %q, want .", cfg.Workspace.Dir)
	}
	if cfg.Engine.Model == "" {
		t.Error("Engine.Model default not applied")
	}
	if cfg.Run.TotalDuration != "8h0m0s" {
		t.Errorf("Run.TotalDuration = %q, want 8h0m0s", cfg.Run.TotalDuration)
	}
	if cfg.Run.IterationsPerSession != 50 {
		t.Errorf("Run.IterationsPerSession = %d, want 50", cfg.Run.IterationsPerSession)
	}
	if cfg.Cloud.LogName != "emergent" {
		t.Errorf("Cloud.LogName = %q, want emergent", cfg.Cloud.LogName)
	}

	// Explicit values are preserved
	cfg = &Config{
		Run:   RunConfig{TotalDuration: "30m", IterationsPerSession: 5},
		Cloud: CloudConfig{LogName: "custom"},
	}
	applyDefaults(cfg)
	if cfg.Run.TotalDuration != "30m" || cfg.Run.IterationsPerSession != 5 {
		t.Errorf("explicit run settings overridden: %+v", cfg.Run)
	}
	if cfg.Cloud.LogName != "custom" {
		t.Errorf("explicit log name overridden: %q", cfg.Cloud.LogName)
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("45m", time.Hour); got != 45*time.Minute {
		t.Errorf("Duration(45m) = %s", got)
	}
	if got := Duration("", time.Hour); got != time.Hour {
		t.Errorf("Duration(empty) = %s, want fallback", got)
	}
	if got := Duration("garbage", time.Hour); got != time.Hour {
		t.Errorf("Duration(garbage) = %s, want fallback", got)
	}
}
