package influxdb

import (
	"errors"
	"testing"

	"github.com/nerrad567/boomgate-core/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping network test in short mode")
	}

	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:19999",
		Token:   "test-token",
		Org:     "boomgate",
		Bucket:  "gate_telemetry",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
