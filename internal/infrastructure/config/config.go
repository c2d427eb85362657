package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Shogun OSC bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	OSC      OSCConfig      `yaml:"osc"`
	Shogun   ShogunConfig   `yaml:"shogun"`
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// OSCConfig contains OSC transport settings for the inbound server and
// the outbound notification target.
type OSCConfig struct {
	// ListenIP is the address the inbound UDP server binds to.
	ListenIP string `yaml:"listen_ip"`

	// ListenPort is the port the inbound UDP server binds to.
	ListenPort int `yaml:"listen_port"`

	// TargetIP is where outbound OSC messages are sent. The broadcast
	// address 255.255.255.255 is supported and enables SO_BROADCAST on
	// the outbound socket.
	TargetIP string `yaml:"target_ip"`

	// TargetPort is the port outbound OSC messages are sent to.
	TargetPort int `yaml:"target_port"`

	// Addresses maps the recognised operations to OSC address strings.
	Addresses AddressesConfig `yaml:"addresses"`
}

// AddressesConfig maps bridge operations to OSC address patterns.
// Inbound addresses select the command handler; outbound addresses are
// used when mirroring events back onto the network.
type AddressesConfig struct {
	StartRecording        string `yaml:"start_recording"`
	StopRecording         string `yaml:"stop_recording"`
	SetCaptureName        string `yaml:"set_capture_name"`
	SetCaptureFolder      string `yaml:"set_capture_folder"`
	SetCaptureDescription string `yaml:"set_capture_description"`

	// Outbound addresses.
	CaptureError         string `yaml:"capture_error"`
	CaptureNameChanged   string `yaml:"capture_name_changed"`
	CaptureFolderChanged string `yaml:"capture_folder_changed"`
}

// ShogunConfig contains settings for the Shogun Live session supervisor.
type ShogunConfig struct {
	// Host is where the Shogun Live API listens. Usually localhost.
	Host string `yaml:"host"`

	// ProcessNames are substrings matched against running process names
	// for presence and restart detection.
	ProcessNames []string `yaml:"process_names"`

	// CheckInterval is how often the supervisor runs its presence,
	// connection and recording checks, in seconds.
	CheckInterval float64 `yaml:"check_interval"`

	// MaxReconnectAttempts bounds a single reconnect sequence.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// BaseReconnectDelay is the first backoff delay, in seconds.
	BaseReconnectDelay float64 `yaml:"base_reconnect_delay"`

	// MaxReconnectDelay caps the backoff delay, in seconds.
	MaxReconnectDelay float64 `yaml:"max_reconnect_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig contains SQLite settings for the notification journal.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains settings for the optional MQTT notification mirror.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for the optional session-event history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHOGUNOSC_SECTION_KEY
// For example: SHOGUNOSC_DATABASE_PATH, SHOGUNOSC_MQTT_HOST
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
		OSC: OSCConfig{
			ListenIP:   "0.0.0.0",
			ListenPort: 5555,
			TargetIP:   "255.255.255.255",
			TargetPort: 9000,
			Addresses: AddressesConfig{
				StartRecording:        "/RecordStartShogunLive",
				StopRecording:         "/RecordStopShogunLive",
				SetCaptureName:        "/ShogunLiveSetCaptureName",
				SetCaptureFolder:      "/ShogunLiveSetCaptureFolder",
				SetCaptureDescription: "/ShogunLiveSetCaptureDescription",
				CaptureError:          "/ShogunLiveCaptureError",
				CaptureNameChanged:    "/ShogunLiveCaptureNameChanged",
				CaptureFolderChanged:  "/ShogunLiveCaptureFolderChanged",
			},
		},
		Shogun: ShogunConfig{
			Host:                 "localhost",
			ProcessNames:         []string{"ShogunLive", "Shogun Live"},
			CheckInterval:        1.0,
			MaxReconnectAttempts: 10,
			BaseReconnectDelay:   1.0,
			MaxReconnectDelay:    30.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Path:        "./data/shogunosc.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "shogunosc-bridge",
			},
			QoS:         1,
			TopicPrefix: "shogunosc",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHOGUNOSC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHOGUNOSC_SHOGUN_HOST"); v != "" {
		cfg.Shogun.Host = v
	}
	if v := os.Getenv("SHOGUNOSC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SHOGUNOSC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHOGUNOSC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHOGUNOSC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("SHOGUNOSC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.OSC.ListenPort < 1 || c.OSC.ListenPort > 65535 {
		errs = append(errs, "osc.listen_port must be between 1 and 65535")
	}
	if c.OSC.TargetPort < 1 || c.OSC.TargetPort > 65535 {
		errs = append(errs, "osc.target_port must be between 1 and 65535")
	}

	// Every recognised inbound operation needs an address to map from.
	inbound := map[string]string{
		"osc.addresses.start_recording":         c.OSC.Addresses.StartRecording,
		"osc.addresses.stop_recording":          c.OSC.Addresses.StopRecording,
		"osc.addresses.set_capture_name":        c.OSC.Addresses.SetCaptureName,
		"osc.addresses.set_capture_folder":      c.OSC.Addresses.SetCaptureFolder,
		"osc.addresses.set_capture_description": c.OSC.Addresses.SetCaptureDescription,
	}
	for key, addr := range inbound {
		if addr == "" {
			errs = append(errs, key+" is required")
		} else if !strings.HasPrefix(addr, "/") {
			errs = append(errs, key+" must start with '/'")
		}
	}

	if c.Shogun.Host == "" {
		errs = append(errs, "shogun.host is required")
	}
	if len(c.Shogun.ProcessNames) == 0 {
		errs = append(errs, "shogun.process_names must not be empty")
	}
	if c.Shogun.MaxReconnectAttempts < 1 {
		errs = append(errs, "shogun.max_reconnect_attempts must be at least 1")
	}
	if c.Shogun.BaseReconnectDelay <= 0 {
		errs = append(errs, "shogun.base_reconnect_delay must be positive")
	}
	if c.Shogun.MaxReconnectDelay < c.Shogun.BaseReconnectDelay {
		errs = append(errs, "shogun.max_reconnect_delay must be at least base_reconnect_delay")
	}
	if c.Shogun.CheckInterval <= 0 {
		errs = append(errs, "shogun.check_interval must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCheckInterval returns the supervisor check cadence as a Duration.
func (c *ShogunConfig) GetCheckInterval() time.Duration {
	return time.Duration(c.CheckInterval * float64(time.Second))
}

// GetBaseReconnectDelay returns the first backoff delay as a Duration.
func (c *ShogunConfig) GetBaseReconnectDelay() time.Duration {
	return time.Duration(c.BaseReconnectDelay * float64(time.Second))
}

// GetMaxReconnectDelay returns the backoff cap as a Duration.
func (c *ShogunConfig) GetMaxReconnectDelay() time.Duration {
	return time.Duration(c.MaxReconnectDelay * float64(time.Second))
}
