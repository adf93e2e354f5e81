package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "agent:\n  device_id: test-agent\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Agent.DeviceID != "test-agent" {
		t.Errorf("DeviceID = %q", cfg.Agent.DeviceID)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("Server.Port = %d, want default 8765", cfg.Server.Port)
	}
	if cfg.Server.HeartbeatInterval != 30 {
		t.Errorf("HeartbeatInterval = %d, want 30", cfg.Server.HeartbeatInterval)
	}
	if cfg.Selector.BoundsTolerance != 10 {
		t.Errorf("BoundsTolerance = %d, want 10", cfg.Selector.BoundsTolerance)
	}
	if cfg.Executor.GestureTimeout != 10 || cfg.Executor.DedupeWindow != 5 {
		t.Errorf("Executor = %+v", cfg.Executor)
	}
	if !cfg.History.Enabled || cfg.History.Path == "" {
		t.Errorf("History = %+v", cfg.History)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
agent:
  device_id: pixel-lab-3
server:
  host: automation.lab
  port: 9900
selector:
  bounds_tolerance: 4
executor:
  gesture_timeout: 15
mqtt:
  enabled: true
  broker:
    host: broker.lab
    client_id: pixel-lab-3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "automation.lab" || cfg.Server.Port != 9900 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Selector.BoundsTolerance != 4 {
		t.Errorf("BoundsTolerance = %d", cfg.Selector.BoundsTolerance)
	}
	if cfg.Executor.GestureTimeout != 15 {
		t.Errorf("GestureTimeout = %d", cfg.Executor.GestureTimeout)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker.Host != "broker.lab" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DROIDAGENT_SERVER_HOST", "override.example")
	t.Setenv("DROIDAGENT_SERVER_PORT", "7001")
	t.Setenv("DROIDAGENT_AGENT_DEVICE_ID", "env-device")

	path := writeConfig(t, "server:\n  host: file.example\n  port: 9000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Host != "override.example" {
		t.Errorf("Host = %q, want env override", cfg.Server.Host)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Port = %d, want env override 7001", cfg.Server.Port)
	}
	if cfg.Agent.DeviceID != "env-device" {
		t.Errorf("DeviceID = %q, want env override", cfg.Agent.DeviceID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() on missing file succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantText string
	}{
		{"missing device id", func(c *Config) { c.Agent.DeviceID = "" }, "agent.device_id"},
		{"unknown backend", func(c *Config) { c.Agent.Backend = "quantum" }, "agent.backend"},
		{"missing host", func(c *Config) { c.Server.Host = "" }, "server.host"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"zero heartbeat", func(c *Config) { c.Server.HeartbeatInterval = 0 }, "heartbeat_interval"},
		{"negative tolerance", func(c *Config) { c.Selector.BoundsTolerance = -1 }, "bounds_tolerance"},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"influx enabled without url", func(c *Config) { c.InfluxDB.Enabled = true }, "influxdb.url"},
		{"history enabled without path", func(c *Config) { c.History.Path = "" }, "history.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantText)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}
