package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Roomwatch Core.
// All configuration is loaded from YAML and can be overridden by environment
// variables.
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Poll       PollConfig       `yaml:"poll"`
	Screenshot ScreenshotConfig `yaml:"screenshot"`
	Database   DatabaseConfig   `yaml:"database"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
}

// AgentConfig contains connection and authentication settings for the
// per-device management agents.
type AgentConfig struct {
	// Port is the TCP port every agent listens on.
	Port int `yaml:"port"`

	// AuthMethod selects how sessions are established: "logon" or "authkey".
	AuthMethod string `yaml:"auth_method"`

	// Username and Password are the credentials for the logon method.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// KeyName and KeyFile identify the pre-shared key for the authkey method.
	KeyName string `yaml:"key_name"`
	KeyFile string `yaml:"key_file"`

	// RequestTimeout bounds each agent HTTP request (seconds).
	RequestTimeout int `yaml:"request_timeout"`

	// PingTimeout bounds the per-address liveness check (seconds).
	PingTimeout int `yaml:"ping_timeout"`
}

// PollConfig contains device poller timing settings.
type PollConfig struct {
	// Interval is the base delay between poll cycles (seconds).
	Interval int `yaml:"interval"`

	// JitterMS is the maximum random addition per cycle (milliseconds).
	JitterMS int `yaml:"jitter_ms"`
}

// ScreenshotConfig bounds framebuffer captures.
type ScreenshotConfig struct {
	// Format is the preferred image format: "jpeg" or "png".
	Format string `yaml:"format"`

	// Quality is the JPEG quality (1-100).
	Quality int `yaml:"quality"`

	// Compression is the PNG compression level (0-9).
	Compression int `yaml:"compression"`

	// MaxWidth and MaxHeight cap requested dimensions. 0 means native size.
	MaxWidth  int `yaml:"max_width"`
	MaxHeight int `yaml:"max_height"`
}

// DatabaseConfig contains SQLite settings for the roster database.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket push settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains settings for the optional state-event publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// MetricsConfig contains settings for the optional InfluxDB poll-metrics
// writer.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings for the serving layer.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer-token settings for operator requests.
type JWTConfig struct {
	// Secret signs and verifies operator tokens. Required.
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern ROOMWATCH_SECTION_KEY, for
// example ROOMWATCH_AGENT_PASSWORD or ROOMWATCH_DATABASE_PATH.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Port:           11080,
			AuthMethod:     "logon",
			RequestTimeout: 10,
			PingTimeout:    3,
		},
		Poll: PollConfig{
			Interval: 5,
			JitterMS: 500,
		},
		Screenshot: ScreenshotConfig{
			Format:      "jpeg",
			Quality:     75,
			Compression: 6,
			MaxWidth:    1920,
			MaxHeight:   1080,
		},
		Database: DatabaseConfig{
			Path:        "./data/roomwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Host:     "localhost",
			Port:     1883,
			ClientID: "roomwatch-core",
			QoS:      1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Credentials are the common case: they belong in the
// environment, not in config.yaml.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ROOMWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("ROOMWATCH_AGENT_USERNAME"); v != "" {
		cfg.Agent.Username = v
	}
	if v := os.Getenv("ROOMWATCH_AGENT_PASSWORD"); v != "" {
		cfg.Agent.Password = v
	}
	if v := os.Getenv("ROOMWATCH_AGENT_KEY_FILE"); v != "" {
		cfg.Agent.KeyFile = v
	}

	if v := os.Getenv("ROOMWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ROOMWATCH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("ROOMWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("ROOMWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("ROOMWATCH_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}

	if v := os.Getenv("ROOMWATCH_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// minJWTSecretLength is the minimum accepted JWT secret length. Screen
// locking and power control act on physical classroom machines; a forgeable
// operator token would hand them to anyone on the network.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Agent.AuthMethod {
	case "logon":
		if c.Agent.Username == "" {
			errs = append(errs, "agent.username is required for the logon method")
		}
	case "authkey":
		if c.Agent.KeyFile == "" {
			errs = append(errs, "agent.key_file is required for the authkey method")
		}
	default:
		errs = append(errs, "agent.auth_method must be \"logon\" or \"authkey\"")
	}

	if c.Agent.Port < 1 || c.Agent.Port > 65535 {
		errs = append(errs, "agent.port must be between 1 and 65535")
	}

	if c.Poll.Interval < 1 {
		errs = append(errs, "poll.interval must be at least 1 second")
	}

	if f := c.Screenshot.Format; f != "jpeg" && f != "png" {
		errs = append(errs, "screenshot.format must be \"jpeg\" or \"png\"")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set ROOMWATCH_JWT_SECRET)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetRequestTimeout returns the agent request timeout as a Duration.
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.Agent.RequestTimeout) * time.Second
}

// GetPingTimeout returns the agent ping timeout as a Duration.
func (c *Config) GetPingTimeout() time.Duration {
	return time.Duration(c.Agent.PingTimeout) * time.Second
}

// GetPollInterval returns the poll interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}

// GetPollJitter returns the poll jitter as a Duration.
func (c *Config) GetPollJitter() time.Duration {
	return time.Duration(c.Poll.JitterMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
