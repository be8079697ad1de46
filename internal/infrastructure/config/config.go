package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Boom Gate Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gate      GateConfig      `yaml:"gate"`
	Sound     SoundConfig     `yaml:"sound"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GateConfig contains the physical timing parameters of the simulated actuator.
// All durations are expressed in milliseconds except DefaultOpenDuration,
// which callers supply in seconds (matching the trigger contract).
type GateConfig struct {
	// ID identifies this gate instance in snapshots, topics and audit records.
	ID string `yaml:"id"`

	// TravelTimeMillis is how long the barrier arm takes to travel
	// between fully closed and fully open.
	TravelTimeMillis int `yaml:"travel_time_millis"`

	// WarningIntervalMillis is the spacing between warning beeps before
	// the arm starts moving.
	WarningIntervalMillis int `yaml:"warning_interval_millis"`

	// OpenWarningBeeps is the number of warning beeps before opening.
	OpenWarningBeeps int `yaml:"open_warning_beeps"`

	// CloseWarningBeeps is the number of warning beeps before closing.
	CloseWarningBeeps int `yaml:"close_warning_beeps"`

	// MotorStartLeadMillis is the pause between the motor-start cue and
	// the arm beginning to travel.
	MotorStartLeadMillis int `yaml:"motor_start_lead_millis"`

	// DefaultOpenDurationSeconds is how long an auto cycle holds the gate
	// open when the trigger does not specify a duration.
	DefaultOpenDurationSeconds float64 `yaml:"default_open_duration_seconds"`
}

// TravelTime returns the arm travel time as a duration.
func (g GateConfig) TravelTime() time.Duration {
	return time.Duration(g.TravelTimeMillis) * time.Millisecond
}

// WarningInterval returns the warning beep spacing as a duration.
func (g GateConfig) WarningInterval() time.Duration {
	return time.Duration(g.WarningIntervalMillis) * time.Millisecond
}

// MotorStartLead returns the motor spin-up lead as a duration.
func (g GateConfig) MotorStartLead() time.Duration {
	return time.Duration(g.MotorStartLeadMillis) * time.Millisecond
}

// SoundConfig contains audio playback settings.
type SoundConfig struct {
	// Enabled is the initial state of the sound toggle.
	Enabled bool `yaml:"enabled"`

	// ClipDir is the directory holding the audio clip files.
	// Playback fails soft when a clip is missing; the mechanical
	// sequence is never affected.
	ClipDir string `yaml:"clip_dir"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for transition telemetry.
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
// Environment variables follow the pattern: BOOMGATE_SECTION_KEY
// For example: BOOMGATE_DATABASE_PATH, BOOMGATE_MQTT_HOST
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
// The gate timings match the reference actuator: three warning beeps
// before opening (two before closing) at 500ms spacing, 500ms motor
// spin-up, 2s arm travel, 5s default open hold.
func Default() *Config {
	return &Config{
		Gate: GateConfig{
			ID:                         "gate-main",
			TravelTimeMillis:           2000,
			WarningIntervalMillis:      500,
			OpenWarningBeeps:           3,
			CloseWarningBeeps:          2,
			MotorStartLeadMillis:       500,
			DefaultOpenDurationSeconds: 5,
		},
		Sound: SoundConfig{
			Enabled: true,
			ClipDir: "./sounds",
		},
		Database: DatabaseConfig{
			Path:        "./data/boomgate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "boomgate-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BOOMGATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gate
	if v := os.Getenv("BOOMGATE_GATE_ID"); v != "" {
		cfg.Gate.ID = v
	}

	// Database
	if v := os.Getenv("BOOMGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BOOMGATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BOOMGATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BOOMGATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("BOOMGATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BOOMGATE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("BOOMGATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("BOOMGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for invalid or inconsistent values.
//
// Returns:
//   - error: Describing the first validation failure, or nil if valid
func (c *Config) Validate() error {
	if c.Gate.ID == "" {
		return fmt.Errorf("gate.id cannot be empty")
	}
	if c.Gate.TravelTimeMillis <= 0 {
		return fmt.Errorf("gate.travel_time_millis must be positive, got %d", c.Gate.TravelTimeMillis)
	}
	if c.Gate.WarningIntervalMillis < 0 {
		return fmt.Errorf("gate.warning_interval_millis cannot be negative, got %d", c.Gate.WarningIntervalMillis)
	}
	if c.Gate.OpenWarningBeeps < 0 || c.Gate.CloseWarningBeeps < 0 {
		return fmt.Errorf("gate warning beep counts cannot be negative")
	}
	if c.Gate.DefaultOpenDurationSeconds <= 0 {
		return fmt.Errorf("gate.default_open_duration_seconds must be positive, got %v", c.Gate.DefaultOpenDurationSeconds)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path cannot be empty")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
	}
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			return fmt.Errorf("mqtt.broker.host cannot be empty when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
		}
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		return fmt.Errorf("influxdb.url cannot be empty when influxdb is enabled")
	}
	return nil
}
