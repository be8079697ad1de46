package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}

	if cfg.Gate.TravelTimeMillis != 2000 {
		t.Errorf("TravelTimeMillis = %d, want 2000", cfg.Gate.TravelTimeMillis)
	}
	if cfg.Gate.OpenWarningBeeps != 3 || cfg.Gate.CloseWarningBeeps != 2 {
		t.Errorf("warning beeps = %d/%d, want 3/2",
			cfg.Gate.OpenWarningBeeps, cfg.Gate.CloseWarningBeeps)
	}
	if cfg.Gate.DefaultOpenDurationSeconds != 5 {
		t.Errorf("DefaultOpenDurationSeconds = %v, want 5", cfg.Gate.DefaultOpenDurationSeconds)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gate:
  id: "gate-7"
  travel_time_millis: 1500
api:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gate.ID != "gate-7" {
		t.Errorf("Gate.ID = %q, want %q", cfg.Gate.ID, "gate-7")
	}
	if cfg.Gate.TravelTimeMillis != 1500 {
		t.Errorf("TravelTimeMillis = %d, want 1500", cfg.Gate.TravelTimeMillis)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}

	// Untouched values keep their defaults.
	if cfg.Gate.WarningIntervalMillis != 500 {
		t.Errorf("WarningIntervalMillis = %d, want default 500", cfg.Gate.WarningIntervalMillis)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
gate:
  id: "gate-from-file"
`)

	t.Setenv("BOOMGATE_GATE_ID", "gate-from-env")
	t.Setenv("BOOMGATE_API_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Gate.ID != "gate-from-env" {
		t.Errorf("Gate.ID = %q, want env override", cfg.Gate.ID)
	}
	if cfg.API.Port != 7070 {
		t.Errorf("API.Port = %d, want 7070", cfg.API.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "gate: [not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail for invalid YAML")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty gate id", func(c *Config) { c.Gate.ID = "" }},
		{"zero travel time", func(c *Config) { c.Gate.TravelTimeMillis = 0 }},
		{"negative warning interval", func(c *Config) { c.Gate.WarningIntervalMillis = -1 }},
		{"negative beeps", func(c *Config) { c.Gate.OpenWarningBeeps = -1 }},
		{"zero default open", func(c *Config) { c.Gate.DefaultOpenDurationSeconds = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"port too high", func(c *Config) { c.API.Port = 70000 }},
		{"mqtt enabled without host", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.Broker.Host = ""
		}},
		{"bad qos", func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.QoS = 3
		}},
		{"influx enabled without url", func(c *Config) {
			c.InfluxDB.Enabled = true
			c.InfluxDB.URL = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should have failed")
			}
		})
	}
}

func TestDurationHelpers(t *testing.T) {
	g := GateConfig{
		TravelTimeMillis:      2000,
		WarningIntervalMillis: 500,
		MotorStartLeadMillis:  500,
	}

	if got := g.TravelTime(); got != 2*time.Second {
		t.Errorf("TravelTime() = %v, want 2s", got)
	}
	if got := g.WarningInterval(); got != 500*time.Millisecond {
		t.Errorf("WarningInterval() = %v, want 500ms", got)
	}
	if got := g.MotorStartLead(); got != 500*time.Millisecond {
		t.Errorf("MotorStartLead() = %v, want 500ms", got)
	}
}
