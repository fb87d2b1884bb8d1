package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "DEVICE_NAME", "DEVICE_PREFIX", "SCAN_TIMEOUT",
	"SERVICE_UUID", "CHARACTERISTIC_UUID", "WINDOW_SIZE", "EXPORT_DIR", "EXPORT_PREFIX",
	"SQLITE_PATH", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX", "METRICS_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bleframe.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.AppEnv != "dev" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("env/level = %s/%v", cfg.AppEnv, cfg.LogLevel)
	}
	if cfg.ScanTimeout != 10*time.Second || cfg.WindowSize != 4 {
		t.Errorf("scan timeout/window = %v/%d", cfg.ScanTimeout, cfg.WindowSize)
	}
	if cfg.ExportPrefix != "rame_data_" || cfg.MQTTPort != 1883 || cfg.MQTTClientID != "bleframe" || cfg.MQTTTopicPrefix != "bleframe" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.SQLitePath != "" || cfg.MQTTBroker != "" || cfg.MetricsAddr != "" {
		t.Errorf("optional sinks should be disabled by default: %+v", cfg)
	}
}

func TestLoad_fileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, strings.Join([]string{
		"log_level: debug",
		"mqtt_broker: broker.local",
		"mqtt_port: 8883",
		"window_size: 6",
		"scan_timeout: 3s",
		"device_name: RAME-01",
	}, "\n"))

	t.Setenv("MQTT_BROKER", "env.local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTTBroker != "env.local" {
		t.Errorf("MQTTBroker = %q, environment should win", cfg.MQTTBroker)
	}
	if cfg.MQTTPort != 8883 || cfg.WindowSize != 6 || cfg.ScanTimeout != 3*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.DeviceName != "RAME-01" {
		t.Errorf("file values not applied: %+v", cfg)
	}
}

func TestLoad_invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"APP_ENV", "staging", "APP_ENV"},
		{"LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"SCAN_TIMEOUT", "soon", "SCAN_TIMEOUT"},
		{"SCAN_TIMEOUT", "-1s", "SCAN_TIMEOUT"},
		{"WINDOW_SIZE", "0", "WINDOW_SIZE"},
		{"MQTT_PORT", "abc", "MQTT_PORT"},
		{"MQTT_PORT", "70000", "MQTT_PORT"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoad_badFile(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := Load(writeFile(t, "mqtt: {broker: x}")); err == nil {
		t.Error("nested keys should fail")
	}
	if _, err := Load(writeFile(t, "window_size: [unclosed")); err == nil {
		t.Error("invalid yaml should fail")
	}
}
