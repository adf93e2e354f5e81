package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the agent.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Server   ServerConfig   `yaml:"server"`
	Selector SelectorConfig `yaml:"selector"`
	Executor ExecutorConfig `yaml:"executor"`
	History  HistoryConfig  `yaml:"history"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// AgentConfig identifies this agent and selects its backend.
type AgentConfig struct {
	// DeviceID is the unique identity sent in handshakes, heartbeats and
	// events.
	DeviceID string `yaml:"device_id"`

	// Backend selects the UI-automation backend. Currently "simulator".
	Backend string `yaml:"backend"`

	Device DeviceConfig `yaml:"device"`
}

// DeviceConfig describes the device advertised during handshake.
type DeviceConfig struct {
	Model        string `yaml:"model"`
	Manufacturer string `yaml:"manufacturer"`
	OSVersion    string `yaml:"os_version"`
	SDKVersion   int    `yaml:"sdk_version"`
}

// ServerConfig locates the automation server and tunes session timing.
// All durations are in seconds.
type ServerConfig struct {
	Host              string          `yaml:"host"`
	Port              int             `yaml:"port"`
	ConnectTimeout    int             `yaml:"connect_timeout"`
	HeartbeatInterval int             `yaml:"heartbeat_interval"`
	RequestTimeout    int             `yaml:"request_timeout"`
	Reconnect         ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig tunes the session reconnect loop. Delays are in seconds;
// MaxAttempts 0 means retry forever.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// SelectorConfig tunes element resolution.
type SelectorConfig struct {
	// BoundsTolerance is the per-edge pixel slack when matching elements
	// by bounds.
	BoundsTolerance int `yaml:"bounds_tolerance"`
}

// ExecutorConfig tunes action execution. Durations are in seconds.
type ExecutorConfig struct {
	// GestureTimeout bounds how long a dispatched gesture may take.
	GestureTimeout int `yaml:"gesture_timeout"`

	// DedupeWindow is how long duplicate dispatch of the same action is
	// suppressed.
	DedupeWindow int `yaml:"dedupe_window"`
}

// HistoryConfig contains the action-history store settings.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays is how long recorded actions are kept. 0 disables
	// pruning.
	RetentionDays int `yaml:"retention_days"`
}

// MQTTConfig contains MQTT broker connection settings for the out-of-band
// event feed.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// InfluxDBConfig contains action-metric recording settings.
type InfluxDBConfig struct {
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DROIDAGENT_SECTION_KEY
// For example: DROIDAGENT_SERVER_HOST, DROIDAGENT_AGENT_DEVICE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			DeviceID: "droid-agent-001",
			Backend:  "simulator",
			Device: DeviceConfig{
				Model:        "Simulated Device",
				Manufacturer: "droid-agent",
				OSVersion:    "14",
				SDKVersion:   34,
			},
		},
		Server: ServerConfig{
			Host:              "localhost",
			Port:              8765,
			ConnectTimeout:    10,
			HeartbeatInterval: 30,
			RequestTimeout:    30,
			Reconnect: ReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Selector: SelectorConfig{
			BoundsTolerance: 10,
		},
		Executor: ExecutorConfig{
			GestureTimeout: 10,
			DedupeWindow:   5,
		},
		History: HistoryConfig{
			Enabled:       true,
			Path:          "./data/droidagent.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "droid-agent",
			},
			QoS: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DROIDAGENT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Agent
	if v := os.Getenv("DROIDAGENT_AGENT_DEVICE_ID"); v != "" {
		cfg.Agent.DeviceID = v
	}

	// Server
	if v := os.Getenv("DROIDAGENT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DROIDAGENT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// History
	if v := os.Getenv("DROIDAGENT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// MQTT
	if v := os.Getenv("DROIDAGENT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DROIDAGENT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DROIDAGENT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DROIDAGENT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Agent.DeviceID == "" {
		errs = append(errs, "agent.device_id is required")
	}
	if c.Agent.Backend != "simulator" {
		errs = append(errs, fmt.Sprintf("agent.backend %q is not supported", c.Agent.Backend))
	}

	if c.Server.Host == "" {
		errs = append(errs, "server.host is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.HeartbeatInterval < 1 {
		errs = append(errs, "server.heartbeat_interval must be at least 1 second")
	}
	if c.Server.RequestTimeout < 1 {
		errs = append(errs, "server.request_timeout must be at least 1 second")
	}

	if c.Selector.BoundsTolerance < 0 {
		errs = append(errs, "selector.bounds_tolerance must not be negative")
	}
	if c.Executor.GestureTimeout < 1 {
		errs = append(errs, "executor.gesture_timeout must be at least 1 second")
	}
	if c.Executor.DedupeWindow < 0 {
		errs = append(errs, "executor.dedupe_window must not be negative")
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
