package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
osc:
  listen_ip: "127.0.0.1"
  listen_port: 6000
  target_ip: "10.0.0.5"
  target_port: 9001
shogun:
  host: "mocap-01"
  check_interval: 0.5
database:
  path: "/tmp/test.db"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OSC.ListenIP != "127.0.0.1" {
		t.Errorf("OSC.ListenIP = %q, want %q", cfg.OSC.ListenIP, "127.0.0.1")
	}
	if cfg.OSC.ListenPort != 6000 {
		t.Errorf("OSC.ListenPort = %d, want 6000", cfg.OSC.ListenPort)
	}
	if cfg.Shogun.Host != "mocap-01" {
		t.Errorf("Shogun.Host = %q, want %q", cfg.Shogun.Host, "mocap-01")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "osc: [not a mapping"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestDefaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.OSC.ListenPort != 5555 {
		t.Errorf("default OSC.ListenPort = %d, want 5555", cfg.OSC.ListenPort)
	}
	if cfg.OSC.TargetIP != "255.255.255.255" {
		t.Errorf("default OSC.TargetIP = %q, want broadcast", cfg.OSC.TargetIP)
	}
	if cfg.Shogun.MaxReconnectAttempts != 10 {
		t.Errorf("default MaxReconnectAttempts = %d, want 10", cfg.Shogun.MaxReconnectAttempts)
	}
	if cfg.Shogun.GetCheckInterval() != time.Second {
		t.Errorf("default GetCheckInterval() = %v, want 1s", cfg.Shogun.GetCheckInterval())
	}
	if cfg.Shogun.GetBaseReconnectDelay() != time.Second {
		t.Errorf("default GetBaseReconnectDelay() = %v, want 1s", cfg.Shogun.GetBaseReconnectDelay())
	}
	if cfg.Shogun.GetMaxReconnectDelay() != 30*time.Second {
		t.Errorf("default GetMaxReconnectDelay() = %v, want 30s", cfg.Shogun.GetMaxReconnectDelay())
	}
	if cfg.OSC.Addresses.StartRecording == "" {
		t.Error("default start_recording address is empty")
	}
	if cfg.MQTT.Enabled {
		t.Error("MQTT should be disabled by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SHOGUNOSC_SHOGUN_HOST", "env-host")
	t.Setenv("SHOGUNOSC_DATABASE_PATH", "/env/path.db")
	t.Setenv("SHOGUNOSC_MQTT_PASSWORD", "secret")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Shogun.Host != "env-host" {
		t.Errorf("Shogun.Host = %q, want %q", cfg.Shogun.Host, "env-host")
	}
	if cfg.Database.Path != "/env/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/env/path.db")
	}
	if cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "secret")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad listen port",
			mutate:  func(c *Config) { c.OSC.ListenPort = 0 },
			wantSub: "osc.listen_port",
		},
		{
			name:    "bad target port",
			mutate:  func(c *Config) { c.OSC.TargetPort = 70000 },
			wantSub: "osc.target_port",
		},
		{
			name:    "missing address",
			mutate:  func(c *Config) { c.OSC.Addresses.StartRecording = "" },
			wantSub: "start_recording",
		},
		{
			name:    "address without slash",
			mutate:  func(c *Config) { c.OSC.Addresses.StopRecording = "RecordStop" },
			wantSub: "must start with '/'",
		},
		{
			name:    "empty host",
			mutate:  func(c *Config) { c.Shogun.Host = "" },
			wantSub: "shogun.host",
		},
		{
			name:    "no process names",
			mutate:  func(c *Config) { c.Shogun.ProcessNames = nil },
			wantSub: "process_names",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Shogun.MaxReconnectAttempts = 0 },
			wantSub: "max_reconnect_attempts",
		},
		{
			name: "max delay below base",
			mutate: func(c *Config) {
				c.Shogun.BaseReconnectDelay = 5
				c.Shogun.MaxReconnectDelay = 1
			},
			wantSub: "max_reconnect_delay",
		},
		{
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			wantSub: "mqtt.broker.host",
		},
		{
			name: "influxdb enabled without url",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.Bucket = "b"
			},
			wantSub: "influxdb.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidate_DefaultsAreValid(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}
