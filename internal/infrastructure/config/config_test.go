package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validSecret = "0123456789abcdef0123456789abcdef"

// writeConfig writes a config file into a temp directory and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  username: roomwatch
security:
  jwt:
    secret: `+validSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Port != 11080 {
		t.Errorf("Agent.Port = %d, want default 11080", cfg.Agent.Port)
	}
	if cfg.Agent.AuthMethod != "logon" {
		t.Errorf("Agent.AuthMethod = %q, want default logon", cfg.Agent.AuthMethod)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
	if cfg.Screenshot.Format != "jpeg" {
		t.Errorf("Screenshot.Format = %q, want default jpeg", cfg.Screenshot.Format)
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = true, want disabled by default")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want disabled by default")
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  username: roomwatch
  port: 12000
poll:
  interval: 2
  jitter_ms: 250
security:
  jwt:
    secret: `+validSecret+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Port != 12000 {
		t.Errorf("Agent.Port = %d, want 12000 from file", cfg.Agent.Port)
	}
	if got := cfg.GetPollInterval(); got != 2*time.Second {
		t.Errorf("GetPollInterval() = %v, want 2s", got)
	}
	if got := cfg.GetPollJitter(); got != 250*time.Millisecond {
		t.Errorf("GetPollJitter() = %v, want 250ms", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ROOMWATCH_AGENT_PASSWORD", "env-password")
	t.Setenv("ROOMWATCH_DATABASE_PATH", "/tmp/env.db")
	t.Setenv("ROOMWATCH_JWT_SECRET", validSecret)

	path := writeConfig(t, `
agent:
  username: roomwatch
  password: file-password
database:
  path: /tmp/file.db
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.Password != "env-password" {
		t.Errorf("Agent.Password = %q, want environment value", cfg.Agent.Password)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("Database.Path = %q, want environment value", cfg.Database.Path)
	}
	if cfg.Security.JWT.Secret != validSecret {
		t.Error("JWT secret was not taken from the environment")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing file) error = nil, want error")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "agent: [not a mapping")

	if _, err := Load(path); err == nil {
		t.Error("Load(malformed yaml) error = nil, want error")
	}
}

func TestAPIConfig_TimeoutHelpers(t *testing.T) {
	cfg := APIConfig{Timeouts: APITimeoutConfig{Read: 15, Write: 20, Idle: 90}}

	if got := cfg.GetReadTimeout(); got != 15*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 15s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 20*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 20s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 90*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 90s", got)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Agent.Username = "roomwatch"
		cfg.Security.JWT.Secret = validSecret
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(*Config) {},
		},
		{
			name:    "unknown auth method",
			modify:  func(c *Config) { c.Agent.AuthMethod = "kerberos" },
			wantErr: "agent.auth_method",
		},
		{
			name:    "logon without username",
			modify:  func(c *Config) { c.Agent.Username = "" },
			wantErr: "agent.username",
		},
		{
			name: "authkey without key file",
			modify: func(c *Config) {
				c.Agent.AuthMethod = "authkey"
				c.Agent.KeyFile = ""
			},
			wantErr: "agent.key_file",
		},
		{
			name:    "agent port out of range",
			modify:  func(c *Config) { c.Agent.Port = 70000 },
			wantErr: "agent.port",
		},
		{
			name:    "poll interval too small",
			modify:  func(c *Config) { c.Poll.Interval = 0 },
			wantErr: "poll.interval",
		},
		{
			name:    "unknown screenshot format",
			modify:  func(c *Config) { c.Screenshot.Format = "bmp" },
			wantErr: "screenshot.format",
		},
		{
			name:    "empty database path",
			modify:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name: "mqtt qos out of range",
			modify: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: "mqtt.qos",
		},
		{
			name:    "missing jwt secret",
			modify:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "short jwt secret",
			modify:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
